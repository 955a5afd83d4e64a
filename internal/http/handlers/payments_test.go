package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/modules/payments"
)

func TestInitiateEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/payments/initiate", "member-token", map[string]any{
		"amountCents": 10000,
		"phone":       "0241234567",
		"provider":    "mtn",
		"paymentType": "annual",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp struct {
		ClientReference string `json:"clientReference"`
		DisplayText     string `json:"displayText"`
		Status          string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ClientReference == "" {
		t.Fatal("response must carry the client reference")
	}
	if resp.Status != payments.StatusPending {
		t.Fatalf("status = %q, want pending", resp.Status)
	}
	if resp.DisplayText == "" {
		t.Fatal("response must carry the payer instruction")
	}

	rec, err := s.store.Get(context.Background(), resp.ClientReference)
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if rec.UserID != "user-1" {
		t.Fatalf("record user = %q, want the authenticated caller", rec.UserID)
	}
}

func TestInitiateRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/payments/initiate", "", map[string]any{
		"amountCents": 10000, "phone": "0241234567", "provider": "mtn", "paymentType": "annual",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestInitiateValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/payments/initiate", "member-token", map[string]any{
		"amountCents": -5,
		"phone":       "024",
		"provider":    "cash",
		"paymentType": "annual",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Fields) == 0 {
		t.Fatal("validation response must name the offending fields")
	}
}

func TestInitiateGatewayDown(t *testing.T) {
	s := newTestServer(t)
	s.gateway.InitiateErr = context.DeadlineExceeded

	w := s.do(t, http.MethodPost, "/payments/initiate", "member-token", map[string]any{
		"amountCents": 10000, "phone": "0241234567", "provider": "mtn", "paymentType": "annual",
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (body: %s)", w.Code, w.Body.String())
	}
}

func TestVerifyEndpoint(t *testing.T) {
	s := newTestServer(t)
	ref := s.initiated(t)
	s.gateway.VerifyStatuses = []string{"success"}

	w := s.do(t, http.MethodPost, "/payments/verify", "member-token", map[string]string{
		"clientReference": ref,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != payments.StatusCompleted {
		t.Fatalf("status = %q, want completed", resp.Status)
	}
	if got := s.hook.calls.Load(); got != 1 {
		t.Fatalf("dispatches = %d, want 1", got)
	}
}

func TestVerifyRejectsForeignPayment(t *testing.T) {
	s := newTestServer(t)

	res, err := s.rec.Initiate(context.Background(), payments.InitiateInput{
		UserID: "someone-else", AmountCents: 5000, Phone: "0551234567",
		Provider: payments.ProviderVodafone, PaymentType: "annual",
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	w := s.do(t, http.MethodPost, "/payments/verify", "member-token", map[string]string{
		"clientReference": res.ClientReference,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHistoryRunsPassiveSweep(t *testing.T) {
	s := newTestServer(t)
	ref := s.initiated(t)

	// Gateway learned the payment failed, but no webhook ever arrived.
	s.gateway.VerifyStatuses = []string{"failed"}

	w := s.do(t, http.MethodGet, "/payments", "member-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Payments []struct {
			ClientReference string `json:"clientReference"`
			Status          string `json:"status"`
		} `json:"payments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(resp.Payments))
	}
	if resp.Payments[0].ClientReference != ref || resp.Payments[0].Status != payments.StatusFailed {
		t.Fatalf("payment = %+v, want the swept failed record", resp.Payments[0])
	}
	if got := s.hook.calls.Load(); got != 0 {
		t.Fatalf("dispatches = %d, want 0 for a failed payment", got)
	}
}

func TestAdminOverride(t *testing.T) {
	s := newTestServer(t)
	ref := s.initiated(t)

	w := s.do(t, http.MethodPost, "/admin/payments/"+ref+"/override", "admin-token", map[string]string{
		"status": "completed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	rec, _ := s.store.Get(context.Background(), ref)
	if rec.Status != payments.StatusCompleted {
		t.Fatalf("record status = %q, want completed", rec.Status)
	}
	if got := s.hook.calls.Load(); got != 1 {
		t.Fatalf("dispatches = %d, want 1", got)
	}
}

func TestAdminOverrideForbiddenForMembers(t *testing.T) {
	s := newTestServer(t)
	ref := s.initiated(t)

	w := s.do(t, http.MethodPost, "/admin/payments/"+ref+"/override", "member-token", map[string]string{
		"status": "completed",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestAdminOverrideRejectsUnknownStatus(t *testing.T) {
	s := newTestServer(t)
	ref := s.initiated(t)

	w := s.do(t, http.MethodPost, "/admin/payments/"+ref+"/override", "admin-token", map[string]string{
		"status": "refunded",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
