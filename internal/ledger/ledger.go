package ledger

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"biogate/internal/model"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccessDenied    = errors.New("account access denied")
)

// Ledger holds accounts and the immutable transaction history. The engine
// only ever appends transactions; records are never updated after creation.
type Ledger struct {
	mu           sync.RWMutex
	accounts     map[string]model.Account
	transactions []model.Transaction
}

func New() *Ledger {
	return &Ledger{accounts: make(map[string]model.Account)}
}

func (l *Ledger) AddAccount(a model.Account) model.Account {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	l.mu.Lock()
	l.accounts[a.ID] = a
	l.mu.Unlock()
	return a
}

// Authorize verifies the account exists, is active, and belongs to userID.
// The engine must only evaluate transfers against owned accounts.
func (l *Ledger) Authorize(accountID, userID string) (model.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[accountID]
	if !ok || !a.Active {
		return model.Account{}, ErrAccountNotFound
	}
	if a.UserID != userID {
		return model.Account{}, ErrAccessDenied
	}
	return a, nil
}

func (l *Ledger) AccountsByUser(userID string) []model.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Account, 0)
	for _, a := range l.accounts {
		if a.UserID == userID && a.Active {
			out = append(out, a)
		}
	}
	return out
}

// Append records a completed transaction decision.
func (l *Ledger) Append(tx model.Transaction) {
	l.mu.Lock()
	l.transactions = append(l.transactions, tx)
	l.mu.Unlock()
}

// RecentByUser returns up to limit transactions for a user, newest first.
func (l *Ledger) RecentByUser(userID string, limit int) []model.Transaction {
	if limit <= 0 {
		limit = 20
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Transaction, 0, limit)
	for i := len(l.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if l.transactions[i].UserID == userID {
			out = append(out, l.transactions[i])
		}
	}
	return out
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	l.transactions = nil
	l.mu.Unlock()
}

// SeedDemoAccounts creates the demo checking and savings accounts for a user
// if the user has none yet. Idempotent across repeated runs.
func (l *Ledger) SeedDemoAccounts(userID string) ([]model.Account, error) {
	if userID == "" {
		return nil, errors.New("empty user id")
	}
	if existing := l.AccountsByUser(userID); len(existing) > 0 {
		return existing, nil
	}
	checking := l.AddAccount(model.Account{
		UserID:  userID,
		Number:  fmt.Sprintf("CHK%010d", rand.Int63n(1e10)),
		Type:    "checking",
		Balance: 5000.00,
		Active:  true,
	})
	savings := l.AddAccount(model.Account{
		UserID:  userID,
		Number:  fmt.Sprintf("SAV%010d", rand.Int63n(1e10)),
		Type:    "savings",
		Balance: 15000.00,
		Active:  true,
	})
	return []model.Account{checking, savings}, nil
}
