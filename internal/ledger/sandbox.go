package ledger

import (
	"context"
	"fmt"
	"sync"

	"flowpay/internal/domain"
)

// SandboxTransfer is one executed movement, retained for inspection.
type SandboxTransfer struct {
	ID             string
	PayerAccountID string
	PayeeAccountID string
	Amount         int64
	Memo           string
}

// Sandbox is an in-process ledger used for demos and integration tests.
// Accounts are provisioned lazily with an opening balance so a demo flow
// never blocks on an unknown account.
type Sandbox struct {
	mu             sync.Mutex
	openingBalance int64
	balances       map[string]int64
	transfers      []SandboxTransfer
}

func NewSandbox(openingBalance int64) *Sandbox {
	return &Sandbox{
		openingBalance: openingBalance,
		balances:       make(map[string]int64),
	}
}

// SetBalance provisions or overwrites an account balance.
func (s *Sandbox) SetBalance(accountID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[accountID] = balance
}

func (s *Sandbox) account(id string) int64 {
	if _, ok := s.balances[id]; !ok {
		s.balances[id] = s.openingBalance
	}
	return s.balances[id]
}

func (s *Sandbox) Transfer(ctx context.Context, payerAccountID, payeeAccountID string, amount int64, memo string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payerBalance := s.account(payerAccountID)
	s.account(payeeAccountID)
	if payerBalance < amount {
		return "", fmt.Errorf("sandbox: account %s has %d, needs %d", payerAccountID, payerBalance, amount)
	}

	s.balances[payerAccountID] -= amount
	s.balances[payeeAccountID] += amount

	transfer := SandboxTransfer{
		ID:             domain.NewID("txn"),
		PayerAccountID: payerAccountID,
		PayeeAccountID: payeeAccountID,
		Amount:         amount,
		Memo:           memo,
	}
	s.transfers = append(s.transfers, transfer)
	return transfer.ID, nil
}

func (s *Sandbox) Balance(ctx context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account(accountID), nil
}

// Transfers returns a copy of every executed transfer in order.
func (s *Sandbox) Transfers() []SandboxTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SandboxTransfer(nil), s.transfers...)
}

var _ Gateway = (*Sandbox)(nil)
