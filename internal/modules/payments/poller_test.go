package payments

import (
	"context"
	"testing"
	"time"
)

func newTestPoller(f *fixture, maxAttempts int) *Poller {
	return NewPoller(f.rec, f.gateway, PollConfig{
		GraceDelay:  time.Millisecond,
		Interval:    time.Millisecond,
		MaxAttempts: maxAttempts,
	}, nil)
}

func TestWatchPaymentStopsAtAttemptCeiling(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)
	initiateCalls := f.gateway.VerifyCalls

	// Gateway never reaches a terminal status.
	f.gateway.VerifyStatuses = []string{"pending"}

	p := newTestPoller(f, 3)
	p.WatchPayment(context.Background(), ref)

	if got := f.gateway.VerifyCalls - initiateCalls; got != 3 {
		t.Fatalf("verify calls = %d, want exactly the attempt ceiling 3", got)
	}

	rec := f.get(t, ref)
	if rec.Status != StatusPending {
		t.Fatalf("status = %q, want pending after budget exhaustion", rec.Status)
	}
	if !rec.TokenPresent() {
		t.Fatal("token must survive an exhausted poll budget")
	}
}

func TestWatchPaymentStopsOnTerminalStatus(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	f.gateway.VerifyStatuses = []string{"pending", "success"}

	p := newTestPoller(f, 10)
	p.WatchPayment(context.Background(), ref)

	if f.gateway.VerifyCalls != 2 {
		t.Fatalf("verify calls = %d, want 2 (stop on first terminal)", f.gateway.VerifyCalls)
	}
	if rec := f.get(t, ref); rec.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", rec.Status)
	}
	if got := f.hook.calls.Load(); got != 1 {
		t.Fatalf("side effect dispatches = %d, want 1", got)
	}
}

func TestWatchPaymentStopsWhenAlreadyResolved(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)
	ctx := context.Background()

	// Webhook lands before the first poll attempt.
	if _, err := f.rec.ApplyResult(ctx, ref, "success", SourceWebhook); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	f.gateway.VerifyStatuses = []string{"success"}
	p := newTestPoller(f, 10)
	p.WatchPayment(ctx, ref)

	if f.gateway.VerifyCalls != 1 {
		t.Fatalf("verify calls = %d, want 1 (first answer says done)", f.gateway.VerifyCalls)
	}
	if got := f.hook.calls.Load(); got != 1 {
		t.Fatalf("side effect dispatches = %d, want 1", got)
	}
}

func TestWatchPaymentHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	p := NewPoller(f.rec, f.gateway, PollConfig{
		GraceDelay:  time.Hour,
		Interval:    time.Hour,
		MaxAttempts: 5,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.WatchPayment(ctx, ref)

	if f.gateway.VerifyCalls != 0 {
		t.Fatalf("verify calls = %d, want 0 after cancellation in grace period", f.gateway.VerifyCalls)
	}
}

func TestSweepUserResolvesStalePending(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	f.gateway.VerifyStatuses = []string{"failed"}
	p := newTestPoller(f, 1)
	p.SweepUser(context.Background(), "user-1")

	rec := f.get(t, ref)
	if rec.Status != StatusFailed {
		t.Fatalf("status = %q, want failed after sweep", rec.Status)
	}
	if got := f.hook.calls.Load(); got != 0 {
		t.Fatalf("side effect dispatches = %d, want 0 for a failed payment", got)
	}
}

func TestSweepUserIgnoresOtherUsers(t *testing.T) {
	f := newFixture(t)
	f.initiate(t)

	f.gateway.VerifyStatuses = []string{"success"}
	p := newTestPoller(f, 1)
	p.SweepUser(context.Background(), "someone-else")

	if f.gateway.VerifyCalls != 0 {
		t.Fatalf("verify calls = %d, want 0", f.gateway.VerifyCalls)
	}
}

func TestVerifyNowReportsResultingStatus(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	f.gateway.VerifyStatuses = []string{"success"}
	p := newTestPoller(f, 1)

	status, err := p.VerifyNow(context.Background(), ref)
	if err != nil {
		t.Fatalf("verify now failed: %v", err)
	}
	if status != StatusCompleted {
		t.Fatalf("status = %q, want completed", status)
	}
}
