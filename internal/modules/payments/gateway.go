package payments

import (
	"context"
	"sync"
)

type InitiateRequest struct {
	ClientReference string
	AmountCents     int
	Currency        string
	Phone           string
	Provider        string
	Description     string
}

type InitiateResponse struct {
	TransactionID string
	// Instruction shown to the payer, e.g. "Approve the prompt on your phone."
	DisplayText string
}

// Gateway is the mobile-money provider boundary. Verify returns the
// provider's raw status vocabulary; MapProviderStatus folds it into ours.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error)
	Verify(ctx context.Context, clientReference string) (string, error)
}

// GatewayMock records calls and serves scripted responses.
type GatewayMock struct {
	mu sync.Mutex

	InitiateResp InitiateResponse
	InitiateErr  error
	VerifyErr    error

	// VerifyStatuses is consumed one per Verify call; after it runs out
	// the last entry repeats. Empty means "pending".
	VerifyStatuses []string

	Initiated   []InitiateRequest
	VerifyCalls int
}

func (g *GatewayMock) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Initiated = append(g.Initiated, req)
	if g.InitiateErr != nil {
		return InitiateResponse{}, g.InitiateErr
	}
	return g.InitiateResp, nil
}

func (g *GatewayMock) Verify(ctx context.Context, clientReference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.VerifyCalls++
	if g.VerifyErr != nil {
		return "", g.VerifyErr
	}
	if len(g.VerifyStatuses) == 0 {
		return "pending", nil
	}
	i := g.VerifyCalls - 1
	if i >= len(g.VerifyStatuses) {
		i = len(g.VerifyStatuses) - 1
	}
	return g.VerifyStatuses[i], nil
}
