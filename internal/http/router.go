package apphttp

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/http/handlers"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/http/middleware"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/auth"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/payments"
)

type Deps struct {
	Logger      *slog.Logger
	Authorizer  auth.Authorizer
	Store       payments.Store
	Reconciler  *payments.Reconciler
	Poller      *payments.Poller
	CallbackLog *payments.CallbackLog
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.ErrorHandler(d.Logger))

	paymentH := handlers.NewPaymentHandler(d.Logger, d.Reconciler, d.Poller, d.Store)
	webhookH := handlers.NewWebhookHandler(d.Logger, d.Reconciler, d.CallbackLog)
	adminH := handlers.NewAdminPaymentHandler(d.Logger, d.Reconciler)

	// Provider push has no shared secret; the per-payment one-time token
	// inside the reconciler is the replay guard.
	r.POST("/webhooks/provider-callback", webhookH.Handle)

	member := r.Group("/payments", middleware.RequireAuth(d.Authorizer))
	{
		member.POST("/initiate", paymentH.Initiate)
		member.POST("/verify", paymentH.Verify)
		member.GET("", paymentH.History)
	}

	admin := r.Group("/admin", middleware.RequireAuth(d.Authorizer), middleware.RequireAdmin())
	{
		admin.POST("/payments/:reference/override", adminH.Override)
	}

	return r
}
