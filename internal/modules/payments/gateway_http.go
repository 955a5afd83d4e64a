package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway is a thin client for the mobile-money aggregator's REST
// API. The aggregator itself is an external system; this adapter only
// shapes requests and reads statuses back.
type HTTPGateway struct {
	baseURL   string
	clientID  string
	clientKey string
	http      *http.Client
}

func NewHTTPGateway(baseURL, clientID, clientKey string) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		clientID:  clientID,
		clientKey: clientKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type chargeRequest struct {
	ClientReference string `json:"clientReference"`
	Amount          int    `json:"amount"`
	Currency        string `json:"currency"`
	CustomerMsisdn  string `json:"customerMsisdn"`
	Channel         string `json:"channel"`
	Description     string `json:"description"`
}

type chargeResponse struct {
	TransactionID string `json:"transactionId"`
	Description   string `json:"description"`
}

func (g *HTTPGateway) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	body, err := json.Marshal(chargeRequest{
		ClientReference: req.ClientReference,
		Amount:          req.AmountCents,
		Currency:        req.Currency,
		CustomerMsisdn:  req.Phone,
		Channel:         req.Provider,
		Description:     req.Description,
	})
	if err != nil {
		return InitiateResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return InitiateResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(g.clientID, g.clientKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return InitiateResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return InitiateResponse{}, fmt.Errorf("gateway initiate: status %d", resp.StatusCode)
	}

	var cr chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return InitiateResponse{}, err
	}

	display := cr.Description
	if display == "" {
		display = "Approve the payment prompt on your phone."
	}
	return InitiateResponse{TransactionID: cr.TransactionID, DisplayText: display}, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

func (g *HTTPGateway) Verify(ctx context.Context, clientReference string) (string, error) {
	url := g.baseURL + "/charges/" + clientReference + "/status"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(g.clientID, g.clientKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gateway verify: status %d", resp.StatusCode)
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", err
	}
	return sr.Status, nil
}
