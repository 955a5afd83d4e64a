package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/http/middleware"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/http/validation"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/payments"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/shared/apperr"
)

type AdminPaymentHandler struct {
	Logger     *slog.Logger
	Reconciler *payments.Reconciler
}

func NewAdminPaymentHandler(logger *slog.Logger, r *payments.Reconciler) *AdminPaymentHandler {
	return &AdminPaymentHandler{Logger: logger, Reconciler: r}
}

type overrideRequest struct {
	Status string `json:"status" binding:"required,oneof=completed failed"`
}

// POST /admin/payments/:reference/override
//
// Force-resolves a stuck pending payment. Bypasses the token check but
// still rides the same CAS, so it cannot double-apply against a racing
// webhook or poll.
func (h *AdminPaymentHandler) Override(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fields := validation.FromBindError(err, &req)
		middleware.Fail(c, apperr.InvalidErr("Invalid override request.", fields))
		return
	}

	reference := c.Param("reference")

	id, _ := middleware.CurrentIdentity(c)
	h.Logger.Info("manual payment override requested",
		"client_reference", reference, "status", req.Status, "admin_id", id.UserID)

	out, err := h.Reconciler.ApplyResult(c.Request.Context(), reference, req.Status, payments.SourceManual)
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       out.Status,
		"transitioned": out.Transitioned,
	})
}
