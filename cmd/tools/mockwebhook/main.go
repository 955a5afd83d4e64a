// Command mockwebhook fires a synthetic provider callback at a running
// instance. Useful for exercising the replay guard: run it twice with the
// same reference and the second delivery must come back as a 200 no-op.
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

type callbackPayload struct {
	ClientReference string `json:"clientReference"`
	Status          string `json:"status"`
	TransactionID   string `json:"transactionId"`
	Provider        string `json:"provider"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/provider-callback", "Webhook URL")
	reference := flag.String("reference", "", "Client reference of the payment (required)")
	status := flag.String("status", "success", "Provider status (success, failed, pending)")
	txid := flag.String("transaction-id", "txn_"+randomHex(8), "Provider transaction id")
	provider := flag.String("provider", "mtn", "Provider (mtn, vodafone, airteltigo)")
	dryRun := flag.Bool("dry-run", false, "Only print the payload, don't send")

	flag.Parse()

	if *reference == "" {
		fmt.Fprintf(os.Stderr, "Error: -reference is required\n")
		os.Exit(1)
	}

	payload := callbackPayload{
		ClientReference: *reference,
		Status:          *status,
		TransactionID:   *txid,
		Provider:        *provider,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest("POST", *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
