package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type PollConfig struct {
	GraceDelay  time.Duration
	Interval    time.Duration
	MaxAttempts int
}

// Poller drives the verify fallback for payments whose webhook never
// lands (or loses the race). It never mutates records itself: every
// observation goes through ApplyResult, so racing a webhook is safe.
type Poller struct {
	reconciler *Reconciler
	gateway    Gateway
	cfg        PollConfig
	logger     *slog.Logger
}

func NewPoller(r *Reconciler, g Gateway, cfg PollConfig, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{reconciler: r, gateway: g, cfg: cfg, logger: logger}
}

// WatchPayment is the active poll started right after Initiate. It waits
// out the grace delay (the payer is authorizing on their phone), then
// verifies on a fixed interval until a terminal status is applied or the
// attempt budget runs out. Exhaustion leaves the record pending for the
// passive sweep or a manual override; that is policy, not an error.
func (p *Poller) WatchPayment(ctx context.Context, clientReference string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(p.cfg.GraceDelay):
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		done, err := p.pollOnce(ctx, clientReference)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			p.logger.WarnContext(ctx, "poll attempt failed",
				"client_reference", clientReference, "attempt", attempt, "err", err)
		}
		if done {
			return
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Interval):
		}
	}

	p.logger.InfoContext(ctx, "active poll budget exhausted, leaving record pending",
		"client_reference", clientReference, "attempts", p.cfg.MaxAttempts)
}

// SweepUser is the passive reconciliation pass: one verify-and-apply per
// stale pending record belonging to the user. Runs whenever payment
// history is loaded; concurrent webhooks or active polls are resolved by
// the CAS, not by exclusion here.
func (p *Poller) SweepUser(ctx context.Context, userID string) {
	pending, err := p.reconciler.store.ListPendingByUser(ctx, userID)
	if err != nil {
		p.logger.WarnContext(ctx, "sweep list failed", "user_id", userID, "err", err)
		return
	}

	for _, rec := range pending {
		if _, err := p.pollOnce(ctx, rec.ClientReference); err != nil {
			p.logger.WarnContext(ctx, "sweep verify failed",
				"client_reference", rec.ClientReference, "err", err)
		}
	}
}

// VerifyNow runs one verify-and-apply pass on behalf of a caller (the
// client-driven verify endpoint) and reports the resulting status.
func (p *Poller) VerifyNow(ctx context.Context, clientReference string) (string, error) {
	status, err := p.gateway.Verify(ctx, clientReference)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	out, err := p.reconciler.ApplyResult(ctx, clientReference, status, SourcePoll)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}

// pollOnce verifies the reference at the gateway and feeds the result to
// the reconciler. done reports that no further polling is useful: the
// record reached a terminal state or someone else already resolved it.
func (p *Poller) pollOnce(ctx context.Context, clientReference string) (done bool, err error) {
	status, err := p.gateway.Verify(ctx, clientReference)
	if err != nil {
		// Skipped attempt, nothing was recorded.
		return false, err
	}

	out, err := p.reconciler.ApplyResult(ctx, clientReference, status, SourcePoll)
	if err != nil {
		if errors.Is(err, ErrUnknownReference) {
			return true, err
		}
		return false, err
	}
	return out.Transitioned || out.Suppressed || out.Status != StatusPending, nil
}
