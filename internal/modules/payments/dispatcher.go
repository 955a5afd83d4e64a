package payments

import (
	"context"
	"log/slog"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/mailer"
	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/memberships"
)

// Directory resolves a member's contact details. Profile storage lives
// outside this subsystem, so it is consumed as a capability.
type Directory interface {
	Lookup(ctx context.Context, userID string) (name, email string, err error)
}

// DirectoryFunc adapts a plain function to Directory.
type DirectoryFunc func(ctx context.Context, userID string) (string, string, error)

func (f DirectoryFunc) Lookup(ctx context.Context, userID string) (string, string, error) {
	return f(ctx, userID)
}

// Dispatcher runs the side effects of a genuine pending→completed
// transition: extend the membership window, then a best-effort receipt.
// The reconciler invokes it at most once per client reference; both steps
// stay individually idempotent so a failed run can be repeated by hand.
type Dispatcher struct {
	memberships *memberships.Service
	directory   Directory
	mail        mailer.Service
	logger      *slog.Logger
	from        string
	fromName    string
}

func NewDispatcher(m *memberships.Service, dir Directory, mail mailer.Service, logger *slog.Logger, from, fromName string) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		memberships: m,
		directory:   dir,
		mail:        mail,
		logger:      logger,
		from:        from,
		fromName:    fromName,
	}
}

func (d *Dispatcher) OnPaymentCompleted(ctx context.Context, rec *PaymentRecord) error {
	if err := d.memberships.Extend(ctx, rec.UserID); err != nil {
		return err
	}

	// Receipt is fire-and-forget: not required for correctness, logged on
	// failure.
	name, email, err := d.directory.Lookup(ctx, rec.UserID)
	if err != nil {
		d.logger.WarnContext(ctx, "receipt skipped, member lookup failed",
			"client_reference", rec.ClientReference, "user_id", rec.UserID, "err", err)
		return nil
	}
	e := receiptEmail(rec, name, email, d.from, d.fromName)
	if err := d.mail.Send(ctx, e); err != nil {
		d.logger.WarnContext(ctx, "receipt dispatch failed",
			"client_reference", rec.ClientReference, "to", email, "err", err)
	}
	return nil
}
