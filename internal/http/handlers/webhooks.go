package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/payments"
)

// referencePattern is the allowed client-reference character set. The
// endpoint is unauthenticated, so reject junk before touching storage.
var referencePattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

type WebhookHandler struct {
	Logger      *slog.Logger
	Reconciler  *payments.Reconciler
	CallbackLog *payments.CallbackLog
}

func NewWebhookHandler(logger *slog.Logger, r *payments.Reconciler, log *payments.CallbackLog) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Reconciler: r, CallbackLog: log}
}

type providerCallback struct {
	ClientReference string `json:"clientReference"`
	Status          string `json:"status"`
	TransactionID   string `json:"transactionId"`
	Provider        string `json:"provider"`
}

// POST /webhooks/provider-callback
//
// Always 200 once the reference is recognized, duplicates included; a
// non-200 would invite the provider to retry an event that was already
// fully handled. 400/404 are safe to retry since nothing was mutated.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	var cb providerCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid payload"})
		return
	}
	if !referencePattern.MatchString(cb.ClientReference) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid client reference"})
		return
	}

	ctx := c.Request.Context()

	var eventID string
	if h.CallbackLog != nil {
		eventID, err = h.CallbackLog.Record(ctx, cb.Provider, cb.ClientReference, cb.TransactionID, body)
		if err != nil {
			// Audit row is not worth failing the callback over.
			h.Logger.Error("callback audit write failed",
				"client_reference", cb.ClientReference, "err", err)
		}
	}

	out, err := h.Reconciler.ApplyResult(ctx, cb.ClientReference, cb.Status, payments.SourceWebhook)
	if err != nil {
		if errors.Is(err, payments.ErrUnknownReference) {
			h.resolve(c, eventID, "unknown_reference")
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown reference"})
			return
		}
		h.Logger.Error("webhook apply failed",
			"client_reference", cb.ClientReference, "err", err)
		h.resolve(c, eventID, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}

	switch {
	case out.Transitioned:
		h.resolve(c, eventID, "applied")
	case out.Suppressed:
		h.resolve(c, eventID, "duplicate")
	default:
		h.resolve(c, eventID, "no_transition")
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": out.Status})
}

func (h *WebhookHandler) resolve(c *gin.Context, eventID, outcome string) {
	if h.CallbackLog == nil || eventID == "" {
		return
	}
	h.CallbackLog.Resolve(c.Request.Context(), eventID, outcome)
}
