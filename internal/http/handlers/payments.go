package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/http/middleware"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/http/validation"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/payments"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/shared/apperr"
)

type PaymentHandler struct {
	Logger     *slog.Logger
	Reconciler *payments.Reconciler
	Poller     *payments.Poller
	Store      payments.Store
}

func NewPaymentHandler(logger *slog.Logger, r *payments.Reconciler, p *payments.Poller, store payments.Store) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Reconciler: r, Poller: p, Store: store}
}

type initiateRequest struct {
	AmountCents int    `json:"amountCents" binding:"required,gt=0"`
	Phone       string `json:"phone" binding:"required,min=9,max=15"`
	Provider    string `json:"provider" binding:"required,oneof=mtn vodafone airteltigo"`
	PaymentType string `json:"paymentType" binding:"required,max=32"`
}

// POST /payments/initiate
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fields := validation.FromBindError(err, &req)
		middleware.Fail(c, apperr.InvalidErr("Invalid payment request.", fields))
		return
	}

	id, _ := middleware.CurrentIdentity(c)

	res, err := h.Reconciler.Initiate(c.Request.Context(), payments.InitiateInput{
		UserID:      id.UserID,
		AmountCents: req.AmountCents,
		Phone:       req.Phone,
		Provider:    req.Provider,
		PaymentType: req.PaymentType,
	})
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	// Active poll outlives the request; detach from its cancellation.
	go h.Poller.WatchPayment(context.WithoutCancel(c.Request.Context()), res.ClientReference)

	c.JSON(http.StatusOK, gin.H{
		"clientReference": res.ClientReference,
		"displayText":     res.DisplayText,
		"status":          res.Status,
	})
}

type verifyRequest struct {
	ClientReference string `json:"clientReference" binding:"required,min=8,max=64"`
}

// POST /payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fields := validation.FromBindError(err, &req)
		middleware.Fail(c, apperr.InvalidErr("Invalid verify request.", fields))
		return
	}

	id, _ := middleware.CurrentIdentity(c)

	rec, err := h.Store.Get(c.Request.Context(), req.ClientReference)
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}
	if rec.UserID != id.UserID {
		middleware.Fail(c, apperr.ForbiddenErr("Not your payment."))
		return
	}

	status, err := h.Poller.VerifyNow(c.Request.Context(), req.ClientReference)
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

type paymentView struct {
	ClientReference string     `json:"clientReference"`
	AmountCents     int        `json:"amountCents"`
	Currency        string     `json:"currency"`
	Provider        string     `json:"provider"`
	Phone           string     `json:"phone"`
	PaymentType     string     `json:"paymentType"`
	Status          string     `json:"status"`
	PaymentDate     *time.Time `json:"paymentDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// GET /payments
//
// Loading history doubles as the passive reconciliation trigger: stale
// pending records get one verify-and-apply pass before the list is read.
func (h *PaymentHandler) History(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)

	h.Poller.SweepUser(c.Request.Context(), id.UserID)

	recs, err := h.Store.ListByUser(c.Request.Context(), id.UserID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	views := make([]paymentView, 0, len(recs))
	for _, r := range recs {
		views = append(views, paymentView{
			ClientReference: r.ClientReference,
			AmountCents:     r.AmountCents,
			Currency:        r.Currency,
			Provider:        r.Provider,
			Phone:           r.Phone,
			PaymentType:     r.PaymentType,
			Status:          r.Status,
			PaymentDate:     r.PaymentDate,
			CreatedAt:       r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"payments": views})
}

func mapPaymentErr(err error) error {
	switch {
	case errors.Is(err, payments.ErrUnknownReference):
		return apperr.NotFoundErr("Payment not found.")
	case errors.Is(err, payments.ErrDuplicateReference):
		return apperr.ConflictErr("Payment reference collision, please retry.")
	case errors.Is(err, payments.ErrGatewayUnavailable):
		return apperr.UnavailableErr("Payment provider is unavailable, please retry.", err)
	case errors.Is(err, payments.ErrInvalidAmount):
		return apperr.InvalidErr("Invalid amount.", nil)
	case errors.Is(err, payments.ErrInvalidProvider):
		return apperr.InvalidErr("Invalid provider.", nil)
	default:
		return apperr.Wrap(err)
	}
}
