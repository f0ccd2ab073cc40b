package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// stubGateway records transfers and supports failure injection per call.
type stubGateway struct {
	mu            sync.Mutex
	balances      map[string]int64
	transfers     []stubTransfer
	failTransfers int
	failAfter     int
	failBalance   bool
}

type stubTransfer struct {
	Payer  string
	Payee  string
	Amount int64
	Memo   string
}

func newStubGateway() *stubGateway {
	return &stubGateway{balances: make(map[string]int64)}
}

func (g *stubGateway) setBalance(accountID string, balance int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[accountID] = balance
}

func (g *stubGateway) Transfer(ctx context.Context, payer, payee string, amount int64, memo string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failTransfers > 0 {
		g.failTransfers--
		return "", errors.New("stub: transfer refused")
	}
	if g.failAfter > 0 && len(g.transfers) >= g.failAfter {
		g.failAfter = 0
		return "", errors.New("stub: transfer refused")
	}
	g.transfers = append(g.transfers, stubTransfer{Payer: payer, Payee: payee, Amount: amount, Memo: memo})
	return fmt.Sprintf("txn_%06d", len(g.transfers)), nil
}

func (g *stubGateway) Balance(ctx context.Context, accountID string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failBalance {
		return 0, errors.New("stub: balance unavailable")
	}
	if balance, ok := g.balances[accountID]; ok {
		return balance, nil
	}
	return 1_000_000, nil
}

func (g *stubGateway) transferCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.transfers)
}

// recordingSink captures dispatched event types in order.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Dispatch(eventType string, object any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
}

func (s *recordingSink) has(eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == eventType {
			return true
		}
	}
	return false
}
