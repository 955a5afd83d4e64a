package payments

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingHook struct {
	calls atomic.Int32
	err   error
	last  *PaymentRecord
}

func (h *countingHook) OnPaymentCompleted(ctx context.Context, rec *PaymentRecord) error {
	h.calls.Add(1)
	h.last = rec
	return h.err
}

type fixture struct {
	store   *MemStore
	gateway *GatewayMock
	hook    *countingHook
	rec     *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: NewMemStore(),
		gateway: &GatewayMock{
			InitiateResp: InitiateResponse{TransactionID: "txn_1", DisplayText: "Check your phone."},
		},
		hook: &countingHook{},
	}
	f.rec = NewReconciler(f.store, f.gateway, f.hook, nil)
	f.rec.casBackoff = time.Millisecond
	return f
}

func (f *fixture) initiate(t *testing.T) string {
	t.Helper()
	res, err := f.rec.Initiate(context.Background(), InitiateInput{
		UserID:      "user-1",
		AmountCents: 10000,
		Phone:       "0241234567",
		Provider:    ProviderMTN,
		PaymentType: "annual",
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	return res.ClientReference
}

func (f *fixture) get(t *testing.T, ref string) *PaymentRecord {
	t.Helper()
	rec, err := f.store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("get %s failed: %v", ref, err)
	}
	return rec
}

func TestInitiateCreatesPendingRecord(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	rec := f.get(t, ref)
	if rec.Status != StatusPending {
		t.Fatalf("status = %q, want pending", rec.Status)
	}
	if !rec.TokenPresent() {
		t.Fatal("fresh record must carry a webhook token")
	}
	if rec.PaymentDate != nil {
		t.Fatal("payment date must not be set before completion")
	}
	if len(f.gateway.Initiated) != 1 {
		t.Fatalf("gateway initiate calls = %d, want 1", len(f.gateway.Initiated))
	}
	if f.gateway.Initiated[0].ClientReference != ref {
		t.Fatal("gateway must be charged with the record's client reference")
	}
}

func TestInitiateGatewayFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.gateway.InitiateErr = errors.New("momo down")

	_, err := f.rec.Initiate(context.Background(), InitiateInput{
		UserID: "user-1", AmountCents: 10000, Phone: "0241234567", Provider: ProviderMTN, PaymentType: "annual",
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}

	recs, _ := f.store.ListByUser(context.Background(), "user-1")
	if len(recs) != 0 {
		t.Fatalf("records after failed initiate = %d, want 0", len(recs))
	}
}

func TestInitiateRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.rec.Initiate(context.Background(), InitiateInput{
		UserID: "u", AmountCents: 0, Phone: "024", Provider: ProviderMTN,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}

	_, err = f.rec.Initiate(context.Background(), InitiateInput{
		UserID: "u", AmountCents: 100, Phone: "024", Provider: "western-union",
	})
	if !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("err = %v, want ErrInvalidProvider", err)
	}
	if len(f.gateway.Initiated) != 0 {
		t.Fatal("gateway must not be called for invalid input")
	}
}

func TestApplyResultCompletesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)
	ctx := context.Background()

	out, err := f.rec.ApplyResult(ctx, ref, "success", SourceWebhook)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !out.Transitioned || out.Status != StatusCompleted {
		t.Fatalf("outcome = %+v, want transitioned to completed", out)
	}

	rec := f.get(t, ref)
	if rec.TokenPresent() {
		t.Fatal("token must be cleared after the first accepted event")
	}
	if rec.PaymentDate == nil {
		t.Fatal("payment date must be set on completion")
	}
	if got := f.hook.calls.Load(); got != 1 {
		t.Fatalf("side effect dispatches = %d, want 1", got)
	}
	firstDate := *rec.PaymentDate

	// Identical replay: success, no mutation, no new dispatch.
	out, err = f.rec.ApplyResult(ctx, ref, "success", SourceWebhook)
	if err != nil {
		t.Fatalf("replay must not error: %v", err)
	}
	if !out.Suppressed || out.Transitioned {
		t.Fatalf("replay outcome = %+v, want suppressed no-op", out)
	}

	rec = f.get(t, ref)
	if !rec.PaymentDate.Equal(firstDate) {
		t.Fatal("replay must not touch payment date")
	}
	if got := f.hook.calls.Load(); got != 1 {
		t.Fatalf("side effect dispatches after replay = %d, want 1", got)
	}
}

func TestApplyResultPendingStatusIsNoOp(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	out, err := f.rec.ApplyResult(context.Background(), ref, "pending", SourcePoll)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out.Transitioned || out.Suppressed {
		t.Fatalf("outcome = %+v, want plain no-op", out)
	}

	rec := f.get(t, ref)
	if rec.Status != StatusPending {
		t.Fatalf("status = %q, want pending", rec.Status)
	}
	if !rec.TokenPresent() {
		t.Fatal("an ambiguous result must not consume the token")
	}
}

func TestApplyResultUnmappedStatusIsNoOp(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	out, err := f.rec.ApplyResult(context.Background(), ref, "processing-maybe", SourceWebhook)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out.Transitioned {
		t.Fatal("unmapped vocabulary must not transition the record")
	}
	if rec := f.get(t, ref); !rec.TokenPresent() {
		t.Fatal("token must survive an unmapped status")
	}
}

func TestApplyResultUnknownReference(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.ApplyResult(context.Background(), "no-such-reference", "success", SourceWebhook)
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("err = %v, want ErrUnknownReference", err)
	}
}

func TestApplyResultFailureSkipsSideEffects(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	out, err := f.rec.ApplyResult(context.Background(), ref, "failed", SourcePoll)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !out.Transitioned || out.Status != StatusFailed {
		t.Fatalf("outcome = %+v, want transitioned to failed", out)
	}

	rec := f.get(t, ref)
	if rec.PaymentDate != nil {
		t.Fatal("failed payment must not get a payment date")
	}
	if got := f.hook.calls.Load(); got != 0 {
		t.Fatalf("side effect dispatches = %d, want 0", got)
	}
}

func TestReplayCannotFlipTerminalStatus(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)
	ctx := context.Background()

	if _, err := f.rec.ApplyResult(ctx, ref, "failed", SourcePoll); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// A late webhook claiming success: token is consumed, first writer won.
	out, err := f.rec.ApplyResult(ctx, ref, "success", SourceWebhook)
	if err != nil {
		t.Fatalf("late webhook must not error: %v", err)
	}
	if !out.Suppressed {
		t.Fatalf("outcome = %+v, want suppressed", out)
	}
	if rec := f.get(t, ref); rec.Status != StatusFailed {
		t.Fatalf("status = %q, want failed to stick", rec.Status)
	}
	if got := f.hook.calls.Load(); got != 0 {
		t.Fatalf("side effect dispatches = %d, want 0", got)
	}
}

func TestConcurrentWebhookAndPollRace(t *testing.T) {
	const rounds = 50

	for i := 0; i < rounds; i++ {
		f := newFixture(t)
		ref := f.initiate(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		var transitions atomic.Int32
		start := make(chan struct{})

		for _, src := range []Source{SourceWebhook, SourcePoll} {
			wg.Add(1)
			go func(src Source) {
				defer wg.Done()
				<-start
				out, err := f.rec.ApplyResult(ctx, ref, "success", src)
				if err != nil {
					t.Errorf("apply via %s failed: %v", src, err)
					return
				}
				if out.Transitioned {
					transitions.Add(1)
				}
			}(src)
		}

		close(start)
		wg.Wait()

		if got := transitions.Load(); got != 1 {
			t.Fatalf("round %d: transitions = %d, want exactly 1", i, got)
		}
		if got := f.hook.calls.Load(); got != 1 {
			t.Fatalf("round %d: side effect dispatches = %d, want exactly 1", i, got)
		}
		if rec := f.get(t, ref); rec.Status != StatusCompleted {
			t.Fatalf("round %d: status = %q, want completed", i, rec.Status)
		}
	}
}

func TestManualOverrideResolvesStuckPayment(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)
	ctx := context.Background()

	out, err := f.rec.ApplyResult(ctx, ref, "completed", SourceManual)
	if err != nil {
		t.Fatalf("manual override failed: %v", err)
	}
	if !out.Transitioned || out.Status != StatusCompleted {
		t.Fatalf("outcome = %+v, want transitioned to completed", out)
	}
	if got := f.hook.calls.Load(); got != 1 {
		t.Fatalf("side effect dispatches = %d, want 1", got)
	}

	// Second manual attempt: the record is no longer pending, the CAS
	// rejects it and the call is a quiet no-op.
	out, err = f.rec.ApplyResult(ctx, ref, "failed", SourceManual)
	if err != nil {
		t.Fatalf("second manual override must not error: %v", err)
	}
	if !out.Suppressed {
		t.Fatalf("outcome = %+v, want suppressed", out)
	}
	if rec := f.get(t, ref); rec.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed to stick", rec.Status)
	}
}

// flakyStore fails the first n calls of each operation with a transient
// error, then delegates.
type flakyStore struct {
	Store
	failures atomic.Int32
}

func (s *flakyStore) CompareAndSwap(ctx context.Context, ref string, cond SwapCondition, mut Mutation) (*PaymentRecord, error) {
	if s.failures.Add(-1) >= 0 {
		return nil, errors.New("storage timeout")
	}
	return s.Store.CompareAndSwap(ctx, ref, cond, mut)
}

func TestTransientStoreErrorsAreRetried(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	flaky := &flakyStore{Store: f.store}
	flaky.failures.Store(2)
	f.rec.store = flaky

	out, err := f.rec.ApplyResult(context.Background(), ref, "success", SourceWebhook)
	if err != nil {
		t.Fatalf("apply must survive transient store errors: %v", err)
	}
	if !out.Transitioned {
		t.Fatalf("outcome = %+v, want transitioned", out)
	}
}

func TestAuditNotesAppend(t *testing.T) {
	f := newFixture(t)
	ref := f.initiate(t)

	created := f.get(t, ref).Notes
	if created == "" {
		t.Fatal("initiation must write an audit line")
	}

	if _, err := f.rec.ApplyResult(context.Background(), ref, "success", SourceWebhook); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	after := f.get(t, ref).Notes
	if len(after) <= len(created) || after[:len(created)] != created {
		t.Fatal("transition must append to notes, never rewrite them")
	}
}
