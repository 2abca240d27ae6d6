package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBankClientSummary(t *testing.T) {
	b := newStubBackend(t)
	b.addUser("alice", "pw", "t1", "ADMIN")
	b.addUser("bob", "pw", "t2", "USER")
	ctx := context.Background()

	admin := newTestSession(t, b, NewMemoryKV())
	if _, err := admin.Auth.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s, err := admin.Bank.Summary(ctx, true)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Accounts != 2 || s.Customers != 3 || !s.TotalBalance.Equal(decimal.RequireFromString("150.75")) {
		t.Fatalf("summary = %+v", s)
	}

	user := newTestSession(t, b, NewMemoryKV())
	if _, err := user.Auth.Login(ctx, "bob", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s, err = user.Bank.Summary(ctx, false)
	if err != nil || s.Customers != 0 || s.Accounts != 2 {
		t.Fatalf("user summary = %+v err=%v", s, err)
	}
	if _, err := user.Bank.Customers(ctx); err == nil {
		t.Fatal("back-end should refuse customers to a USER")
	}
}

func TestBankClientHistoryAndCredit(t *testing.T) {
	b := newStubBackend(t)
	b.addUser("alice", "pw", "t1", "ADMIN")
	sess := newTestSession(t, b, NewMemoryKV())
	ctx := context.Background()
	if _, err := sess.Auth.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	h, err := sess.Bank.AccountHistory(ctx, "acc-1", -1, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if h.AccountID != "acc-1" || h.TotalPages != 2 || len(h.Operations) != 1 || h.Operations[0].Amount.IntPart() != 10 {
		t.Fatalf("history = %+v", h)
	}

	amount, _ := ParseAmount("19.99")
	if err := sess.Bank.Credit(ctx, "acc-1", amount, "refund"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.credits) != 1 || fmt.Sprint(b.credits[0]["amount"]) != "19.99" || b.credits[0]["description"] != "refund" {
		t.Fatalf("credit body = %v", b.credits)
	}
}

func TestBankClientAccount(t *testing.T) {
	b := newStubBackend(t)
	b.addUser("bob", "pw", "t2", "USER")
	sess := newTestSession(t, b, NewMemoryKV())
	ctx := context.Background()
	if _, err := sess.Auth.Login(ctx, "bob", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	acc, err := sess.Bank.Account(ctx, "acc-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acc.Type != "CurrentAccount" || acc.Customer == nil || acc.Customer.Name != "Alice" {
		t.Fatalf("account = %+v", acc)
	}
	if !acc.Balance.Equal(decimal.RequireFromString("100.25")) || acc.OverDraft == nil || acc.OverDraft.IntPart() != 500 {
		t.Fatalf("amounts = %s %v", acc.Balance, acc.OverDraft)
	}

	_, err = sess.Bank.Account(ctx, "missing")
	if StatusCode(err) != 404 || UserMessage(err, "") != "Account not found" {
		t.Fatalf("missing account: status %d err %v", StatusCode(err), err)
	}
}

func TestOpenAccountRejectsUnknownKind(t *testing.T) {
	b := newStubBackend(t)
	sess := newTestSession(t, b, NewMemoryKV())
	_, err := sess.Bank.OpenAccount(context.Background(), "crypto", 1, decimal.Zero, decimal.Zero)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v", err)
	}
	if b.requestCount() != 0 {
		t.Fatal("invalid input must not reach the back-end")
	}
}

func TestAPIErrorMessages(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"error":"Invalid username or password"}`, "Invalid username or password"},
		{`{"message":"Customer not found"}`, "Customer not found"},
		{`{"error":{"code":"X"}}`, ""},
		{`<html>oops</html>`, ""},
		{``, ""},
	}
	for _, tc := range cases {
		e := &APIError{Method: "GET", Path: "/x", Status: 400, Body: []byte(tc.body)}
		if got := e.ServerMessage(); got != tc.want {
			t.Errorf("body %q: got %q want %q", tc.body, got, tc.want)
		}
	}

	if StatusCode(&APIError{Status: 404}) != 404 {
		t.Fatal("4xx passes through")
	}
	if StatusCode(&APIError{Status: 503}) != 502 {
		t.Fatal("5xx becomes bad gateway")
	}
	if StatusCode(validationError("x")) != 400 || StatusCode(nil) != 200 {
		t.Fatal("validation / nil mapping")
	}
}
