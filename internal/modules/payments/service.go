package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CompletionHook receives the one dispatch a record gets when it reaches
// completed. The reconciler guarantees at most one call per client
// reference; implementations must keep their own steps idempotent so they
// can be retried out-of-band if they fail after the status is durable.
type CompletionHook interface {
	OnPaymentCompleted(ctx context.Context, rec *PaymentRecord) error
}

// Reconciler owns the payment state machine. Webhook, poll and manual
// events all funnel through ApplyResult; the store-level CAS is the only
// synchronization, so the same code is correct across processes.
type Reconciler struct {
	store    Store
	gateway  Gateway
	hook     CompletionHook
	logger   *slog.Logger
	currency string

	casAttempts int
	casBackoff  time.Duration
}

func NewReconciler(store Store, gateway Gateway, hook CompletionHook, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:       store,
		gateway:     gateway,
		hook:        hook,
		logger:      logger,
		currency:    "GHS",
		casAttempts: 3,
		casBackoff:  100 * time.Millisecond,
	}
}

type InitiateInput struct {
	UserID      string
	AmountCents int
	Phone       string
	Provider    string
	PaymentType string
}

type InitiateResult struct {
	ClientReference string
	DisplayText     string
	Status          string
}

// Initiate charges the payer via the gateway and creates the pending
// record. Gateway first, record second: a gateway failure leaves nothing
// behind and the caller can retry safely.
func (r *Reconciler) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	if in.AmountCents <= 0 {
		return InitiateResult{}, ErrInvalidAmount
	}
	if !ValidProvider(in.Provider) {
		return InitiateResult{}, ErrInvalidProvider
	}

	clientReference := uuid.NewString()
	token, err := randomToken(32)
	if err != nil {
		return InitiateResult{}, err
	}

	resp, err := r.gateway.Initiate(ctx, InitiateRequest{
		ClientReference: clientReference,
		AmountCents:     in.AmountCents,
		Currency:        r.currency,
		Phone:           in.Phone,
		Provider:        in.Provider,
		Description:     "Membership dues (" + in.PaymentType + ")",
	})
	if err != nil {
		return InitiateResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	now := time.Now()
	rec := &PaymentRecord{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		AmountCents:     in.AmountCents,
		Currency:        r.currency,
		Provider:        in.Provider,
		Phone:           in.Phone,
		PaymentType:     in.PaymentType,
		ClientReference: clientReference,
		Status:          StatusPending,
		WebhookToken:    &token,
		Notes:           auditLine(now, fmt.Sprintf("initiated via %s for %s %d.%02d", in.Provider, r.currency, in.AmountCents/100, in.AmountCents%100)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			// Charge already initiated at the provider; the reference can
			// never be reconciled. Loud log so an operator can chase it.
			r.logger.ErrorContext(ctx, "payment reference collision after gateway initiate",
				"client_reference", clientReference, "transaction_id", resp.TransactionID)
			return InitiateResult{}, ErrDuplicateReference
		}
		return InitiateResult{}, err
	}

	r.logger.InfoContext(ctx, "payment initiated",
		"client_reference", clientReference,
		"user_id", in.UserID,
		"provider", in.Provider,
		"amount_cents", in.AmountCents)

	return InitiateResult{
		ClientReference: clientReference,
		DisplayText:     resp.DisplayText,
		Status:          StatusPending,
	}, nil
}

type ApplyOutcome struct {
	Status       string
	Transitioned bool // this call performed the CAS write
	Suppressed   bool // replay or lost race, answered as a no-op success
}

// ApplyResult is the single entry point for every confirmation event.
// Duplicate deliveries and lost CAS races both come back as successful
// no-ops so callers (especially the webhook endpoint) never invite
// provider retry storms.
func (r *Reconciler) ApplyResult(ctx context.Context, clientReference, observedStatus string, source Source) (ApplyOutcome, error) {
	rec, err := r.getWithRetry(ctx, clientReference)
	if err != nil {
		return ApplyOutcome{}, err
	}

	// Token already consumed and this is an automatic event: a replay of
	// a confirmation that was already handled.
	if !rec.TokenPresent() && source != SourceManual {
		r.logger.InfoContext(ctx, "replay suppressed",
			"client_reference", clientReference, "source", string(source), "status", rec.Status)
		return ApplyOutcome{Status: rec.Status, Suppressed: true}, nil
	}

	mapped, ok := MapProviderStatus(observedStatus)
	if !ok {
		// Still pending at the provider. No transition, token untouched.
		return ApplyOutcome{Status: rec.Status}, nil
	}

	now := time.Now()
	mut := Mutation{
		Status: mapped,
		Notes:  rec.Notes + auditLine(now, fmt.Sprintf("%s via %s", mapped, source)),
	}
	if mapped == StatusCompleted {
		mut.PaymentDate = &now
	}

	cond := SwapCondition{Status: StatusPending, RequireToken: source != SourceManual}

	updated, err := r.casWithRetry(ctx, clientReference, cond, mut)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Another writer (webhook vs poll race) already transitioned
			// the record. First writer wins; exit quietly.
			r.logger.InfoContext(ctx, "confirmation lost cas race",
				"client_reference", clientReference, "source", string(source))
			return ApplyOutcome{Status: rec.Status, Suppressed: true}, nil
		}
		return ApplyOutcome{}, err
	}

	r.logger.InfoContext(ctx, "payment transitioned",
		"client_reference", clientReference,
		"source", string(source),
		"status", updated.Status)

	if updated.Status == StatusCompleted && r.hook != nil {
		// Synchronous, exactly once: only the CAS winner reaches here.
		// The transition is already durable; hook failures are logged for
		// out-of-band retry rather than unwound (each hook step is
		// idempotent).
		if err := r.hook.OnPaymentCompleted(ctx, updated); err != nil {
			r.logger.ErrorContext(ctx, "completion side effects failed",
				"client_reference", clientReference, "err", err)
		}
	}

	return ApplyOutcome{Status: updated.Status, Transitioned: true}, nil
}

func (r *Reconciler) getWithRetry(ctx context.Context, clientReference string) (*PaymentRecord, error) {
	var rec *PaymentRecord
	err := r.retryTransient(ctx, func() error {
		var e error
		rec, e = r.store.Get(ctx, clientReference)
		return e
	})
	return rec, err
}

func (r *Reconciler) casWithRetry(ctx context.Context, clientReference string, cond SwapCondition, mut Mutation) (*PaymentRecord, error) {
	var rec *PaymentRecord
	err := r.retryTransient(ctx, func() error {
		var e error
		rec, e = r.store.CompareAndSwap(ctx, clientReference, cond, mut)
		return e
	})
	return rec, err
}

// retryTransient retries storage failures a bounded number of times with
// backoff. Conflict and unknown-reference are outcomes, not failures, and
// pass straight through.
func (r *Reconciler) retryTransient(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.casAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrUnknownReference) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.casBackoff << attempt):
		}
	}
	return err
}

func auditLine(t time.Time, msg string) string {
	return t.UTC().Format(time.RFC3339) + " " + msg + "\n"
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
