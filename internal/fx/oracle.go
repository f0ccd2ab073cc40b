package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Oracle answers live spot rates for a currency pair. Implementations may
// fail; Service applies the static fallback so flows never block on the
// oracle.
type Oracle interface {
	Rate(ctx context.Context, source, target string) (float64, error)
}

// fallbackRatesToUSD holds approximate rates used when the oracle is
// unreachable. Unknown currencies fall back to parity.
var fallbackRatesToUSD = map[string]float64{
	"usd": 1.0,
	"eur": 1.08,
	"gbp": 1.27,
	"inr": 0.01202,
	"jpy": 0.0066,
	"cad": 0.74,
	"aud": 0.64,
	"cny": 0.138,
	"sgd": 0.74,
	"mxn": 0.051,
}

// HTTPOracle queries an exchange-rate API of the open.er-api.com shape:
// GET {base}/{SRC} returns {"rates": {"TGT": <rate>, ...}}.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (o *HTTPOracle) Rate(ctx context.Context, source, target string) (float64, error) {
	url := o.baseURL + "/" + strings.ToUpper(source)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fx oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fx oracle returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("fx oracle response malformed: %w", err)
	}

	rate, ok := payload.Rates[strings.ToUpper(target)]
	if !ok || rate == 0 {
		return 0, fmt.Errorf("fx oracle has no rate for %s/%s", source, target)
	}
	return rate, nil
}

// StaticOracle serves rates from a mutable in-memory table, keyed by
// "src/tgt". Used in sandbox mode and by tests that need to move the
// market. Unset pairs report an error so the caller's fallback applies.
type StaticOracle struct {
	mu    sync.RWMutex
	rates map[string]float64
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{rates: make(map[string]float64)}
}

func (o *StaticOracle) SetRate(source, target string, rate float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rates[pairKey(source, target)] = rate
}

func (o *StaticOracle) Rate(ctx context.Context, source, target string) (float64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	rate, ok := o.rates[pairKey(source, target)]
	if !ok {
		return 0, fmt.Errorf("static oracle has no rate for %s/%s", source, target)
	}
	return rate, nil
}

func pairKey(source, target string) string {
	return strings.ToLower(source) + "/" + strings.ToLower(target)
}
