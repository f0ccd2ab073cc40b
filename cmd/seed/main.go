// Command seed drives a running flowpay instance through a demo flow:
// it registers a webhook, raises and approves a collect, funds a pool to
// its goal, remits a corridor and contributes to a multi-currency pool.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

var baseURL = flag.String("base-url", "http://localhost:8080", "flowpay API base URL")

func main() {
	flag.Parse()

	post("/v1/webhooks", map[string]any{
		"url":    "http://localhost:9999/hooks",
		"events": []string{"*"},
	})

	collect := post("/v1/collects", map[string]any{
		"payer_account_id": "acc_alice",
		"payee_account_id": "acc_bob",
		"amount":           4900,
		"currency":         "usd",
		"description":      "Dinner split",
		"expires_at":       time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	post(fmt.Sprintf("/v1/collects/%s/approve", collect["id"]), nil)

	pool := post("/v1/pools", map[string]any{
		"organizer_account_id": "acc_carol",
		"payee_account_id":     "acc_venue",
		"goal_amount":          20000,
		"currency":             "usd",
		"description":          "Office party",
		"deadline":             time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	for _, payer := range []string{"acc_alice", "acc_bob", "acc_dave", "acc_erin"} {
		post(fmt.Sprintf("/v1/pools/%s/contribute", pool["id"]), map[string]any{
			"payer_account_id": payer,
			"amount":           5000,
		})
	}

	corridor := post("/v1/corridors", map[string]any{
		"source_currency":   "usd",
		"target_currency":   "inr",
		"source_account_id": "acc_alice",
		"target_account_id": "acc_mumbai",
		"amount_target":     500000,
		"description":       "Family remittance",
	})
	post(fmt.Sprintf("/v1/corridors/%s/remit", corridor["id"]), nil)

	fxpool := post("/v1/fxpools", map[string]any{
		"organizer_account_id": "acc_carol",
		"payee_account_id":     "acc_charity",
		"goal_amount_usd":      10000,
		"description":          "Relief fund",
		"deadline":             time.Now().Add(72 * time.Hour).Format(time.RFC3339),
	})
	post(fmt.Sprintf("/v1/fxpools/%s/contribute", fxpool["id"]), map[string]any{
		"payer_account_id": "acc_hans",
		"currency":         "eur",
		"amount_local":     4000,
	})
	post(fmt.Sprintf("/v1/fxpools/%s/contribute", fxpool["id"]), map[string]any{
		"payer_account_id": "acc_priya",
		"currency":         "inr",
		"amount_local":     450000,
	})

	fmt.Println("seed complete")
}

func post(path string, payload any) map[string]any {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			fail(path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, *baseURL+path, body)
	if err != nil {
		fail(path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail(path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		fail(path, err)
	}
	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "POST %s -> %d: %v\n", path, resp.StatusCode, decoded)
		os.Exit(1)
	}

	fmt.Printf("POST %s -> %d\n", path, resp.StatusCode)
	return decoded
}

func fail(path string, err error) {
	fmt.Fprintf(os.Stderr, "POST %s failed: %v\n", path, err)
	os.Exit(1)
}
