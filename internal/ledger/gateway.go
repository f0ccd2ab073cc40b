package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

var ErrAccountNotFound = errors.New("ledger: account not found")

// Gateway is the external funds-movement service. Calls may fail; failures
// are reported to the caller, never retried here.
type Gateway interface {
	Transfer(ctx context.Context, payerAccountID, payeeAccountID string, amount int64, memo string) (string, error)
	Balance(ctx context.Context, accountID string) (int64, error)
}

// HTTPGateway speaks the sandbox bank API: account objects carry a balance
// field, transfers are posted under the payer's account.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(baseURL, apiKey string, logger *slog.Logger) *HTTPGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (g *HTTPGateway) endpoint(path string) string {
	return fmt.Sprintf("%s%s?key=%s", g.baseURL, path, url.QueryEscape(g.apiKey))
}

type transferRequest struct {
	Medium          string `json:"medium"`
	PayeeID         string `json:"payee_id"`
	TransactionDate string `json:"transaction_date"`
	Amount          int64  `json:"amount"`
	Description     string `json:"description"`
}

type createdResponse struct {
	ObjectCreated struct {
		ID string `json:"_id"`
	} `json:"objectCreated"`
}

func (g *HTTPGateway) Transfer(ctx context.Context, payerAccountID, payeeAccountID string, amount int64, memo string) (string, error) {
	body, err := json.Marshal(transferRequest{
		Medium:          "balance",
		PayeeID:         payeeAccountID,
		TransactionDate: time.Now().UTC().Format("2006-01-02"),
		Amount:          amount,
		Description:     memo,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.endpoint("/accounts/"+payerAccountID+"/transfers"), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ledger transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrAccountNotFound, payerAccountID)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ledger transfer rejected: status %d", resp.StatusCode)
	}

	var created createdResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("ledger transfer response malformed: %w", err)
	}
	g.logger.Debug("ledger transfer executed",
		slog.String("payer", payerAccountID),
		slog.String("payee", payeeAccountID),
		slog.Int64("amount", amount))
	return created.ObjectCreated.ID, nil
}

func (g *HTTPGateway) Balance(ctx context.Context, accountID string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("/accounts/"+accountID), nil)
	if err != nil {
		return 0, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ledger balance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("ledger balance rejected: status %d", resp.StatusCode)
	}

	var account struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return 0, fmt.Errorf("ledger balance response malformed: %w", err)
	}
	return account.Balance, nil
}
