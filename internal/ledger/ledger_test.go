package ledger

import (
	"errors"
	"testing"
	"time"

	"biogate/internal/model"
)

func TestAuthorize(t *testing.T) {
	l := New()
	acct := l.AddAccount(model.Account{UserID: "user01", Number: "CHK1", Type: "checking", Balance: 100, Active: true})
	inactive := l.AddAccount(model.Account{UserID: "user01", Number: "CHK2", Type: "checking", Balance: 100, Active: false})

	got, err := l.Authorize(acct.ID, "user01")
	if err != nil || got.ID != acct.ID {
		t.Fatalf("expected authorized account, got %v/%v", got, err)
	}
	if _, err := l.Authorize(acct.ID, "other"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if _, err := l.Authorize("missing", "user01"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := l.Authorize(inactive.ID, "user01"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("inactive account must look absent, got %v", err)
	}
}

func TestAccountsByUserSkipsInactive(t *testing.T) {
	l := New()
	l.AddAccount(model.Account{UserID: "user01", Active: true})
	l.AddAccount(model.Account{UserID: "user01", Active: false})
	l.AddAccount(model.Account{UserID: "other", Active: true})
	if got := l.AccountsByUser("user01"); len(got) != 1 {
		t.Fatalf("expected 1 active account, got %d", len(got))
	}
}

func TestRecentByUserNewestFirst(t *testing.T) {
	l := New()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		l.Append(model.Transaction{ID: string(rune('a' + i)), UserID: "user01", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	l.Append(model.Transaction{ID: "other", UserID: "other"})

	got := l.RecentByUser("user01", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[0].ID != "e" || got[2].ID != "c" {
		t.Fatalf("expected newest first, got %v", got)
	}
}

func TestSeedDemoAccountsIdempotent(t *testing.T) {
	l := New()
	first, err := l.SeedDemoAccounts("user01")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected checking and savings, got %d", len(first))
	}
	var checking, savings bool
	for _, a := range first {
		switch a.Type {
		case "checking":
			checking = a.Balance == 5000
		case "savings":
			savings = a.Balance == 15000
		}
	}
	if !checking || !savings {
		t.Fatalf("unexpected demo accounts %v", first)
	}
	second, err := l.SeedDemoAccounts("user01")
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("reseed must not create more accounts, got %d", len(second))
	}
	if _, err := l.SeedDemoAccounts(""); err == nil {
		t.Fatalf("empty user id must fail")
	}
}
