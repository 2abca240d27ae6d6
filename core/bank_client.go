package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Customer as returned by /customers.
type Customer struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BankAccount covers both current and saving accounts.
type BankAccount struct {
	ID           string           `json:"id"`
	Balance      decimal.Decimal  `json:"balance"`
	CreatedAt    string           `json:"createdAt"`
	Status       string           `json:"status"`
	Type         string           `json:"type"`
	Currency     string           `json:"currency,omitempty"`
	OverDraft    *decimal.Decimal `json:"overDraft,omitempty"`
	InterestRate *decimal.Decimal `json:"interestRate,omitempty"`
	Customer     *Customer        `json:"customerDTO,omitempty"`
}

// AccountOperation is one credit or debit line.
type AccountOperation struct {
	ID            int64           `json:"id"`
	OperationDate string          `json:"operationDate"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	BankAccountID string          `json:"bankAccountId"`
}

// AccountHistory is one page of operations for an account.
type AccountHistory struct {
	AccountID   string             `json:"accountId"`
	Balance     decimal.Decimal    `json:"balance"`
	CurrentPage int                `json:"currentPage"`
	TotalPages  int                `json:"totalPages"`
	PageSize    int                `json:"pageSize"`
	Operations  []AccountOperation `json:"accountOperationDTOS"`
}

// DashboardSummary holds the totals shown on the dashboard.
type DashboardSummary struct {
	Customers    int
	Accounts     int
	TotalBalance decimal.Decimal
}

// BankClient wraps the customer, account and dashboard endpoints.
// It only forwards input and decodes output; authorization is the back-end's call.
type BankClient struct {
	api *APIClient
}

func NewBankClient(api *APIClient) *BankClient {
	return &BankClient{api: api}
}

func (b *BankClient) Customers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	err := b.api.Get(ctx, "/customers", &out)
	return out, err
}

func (b *BankClient) SearchCustomers(ctx context.Context, keyword string) ([]Customer, error) {
	var out []Customer
	err := b.api.Get(ctx, "/customers/search?keyword="+url.QueryEscape(keyword), &out)
	return out, err
}

func (b *BankClient) Customer(ctx context.Context, id int64) (Customer, error) {
	var out Customer
	err := b.api.Get(ctx, fmt.Sprintf("/customers/%d", id), &out)
	return out, err
}

func (b *BankClient) SaveCustomer(ctx context.Context, c Customer) (Customer, error) {
	var out Customer
	err := b.api.Post(ctx, "/customers", c, &out)
	return out, err
}

func (b *BankClient) UpdateCustomer(ctx context.Context, c Customer) (Customer, error) {
	var out Customer
	err := b.api.Put(ctx, fmt.Sprintf("/customers/%d", c.ID), c, &out)
	return out, err
}

func (b *BankClient) DeleteCustomer(ctx context.Context, id int64) error {
	return b.api.Delete(ctx, fmt.Sprintf("/customers/%d", id))
}

func (b *BankClient) Accounts(ctx context.Context) ([]BankAccount, error) {
	var out []BankAccount
	err := b.api.Get(ctx, "/accounts", &out)
	return out, err
}

func (b *BankClient) Account(ctx context.Context, id string) (BankAccount, error) {
	var out BankAccount
	err := b.api.Get(ctx, "/accounts/"+url.PathEscape(id), &out)
	return out, err
}

func (b *BankClient) CustomerAccounts(ctx context.Context, customerID int64) ([]BankAccount, error) {
	var out []BankAccount
	err := b.api.Get(ctx, fmt.Sprintf("/accounts/customer/%d", customerID), &out)
	return out, err
}

func (b *BankClient) AccountHistory(ctx context.Context, accountID string, page, size int) (AccountHistory, error) {
	if size <= 0 {
		size = 10
	}
	if page < 0 {
		page = 0
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	var out AccountHistory
	path := "/accounts/" + url.PathEscape(accountID) + "/operations/page?" + q.Encode()
	err := b.api.Get(ctx, path, &out)
	return out, err
}

type operationRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

type transferRequest struct {
	AccountIDSource      string      `json:"accountIdSource"`
	AccountIDDestination string      `json:"accountIdDestination"`
	Amount               json.Number `json:"amount"`
}

func (b *BankClient) Credit(ctx context.Context, accountID string, amount decimal.Decimal, description string) error {
	req := operationRequest{Amount: json.Number(amount.String()), Description: description}
	return b.api.Post(ctx, "/accounts/"+url.PathEscape(accountID)+"/operations/credit", req, nil)
}

func (b *BankClient) Debit(ctx context.Context, accountID string, amount decimal.Decimal, description string) error {
	req := operationRequest{Amount: json.Number(amount.String()), Description: description}
	return b.api.Post(ctx, "/accounts/"+url.PathEscape(accountID)+"/operations/debit", req, nil)
}

func (b *BankClient) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error {
	req := transferRequest{AccountIDSource: from, AccountIDDestination: to, Amount: json.Number(amount.String())}
	return b.api.Post(ctx, "/accounts/transfer", req, nil)
}

// OpenAccount creates a current ("current") or saving ("saving") account.
// rate is the overdraft for current accounts and the interest rate for saving ones.
func (b *BankClient) OpenAccount(ctx context.Context, kind string, customerID int64, initial, rate decimal.Decimal) (BankAccount, error) {
	body := map[string]any{
		"initialBalance": json.Number(initial.String()),
		"customerId":     customerID,
	}
	switch strings.ToLower(kind) {
	case "current":
		body["overDraft"] = json.Number(rate.String())
	case "saving":
		body["interestRate"] = json.Number(rate.String())
	default:
		return BankAccount{}, validationError("Account type must be current or saving")
	}
	var out BankAccount
	err := b.api.Post(ctx, "/accounts/"+strings.ToLower(kind), body, &out)
	return out, err
}

// DashboardStats returns the back-end's aggregate payload untouched.
func (b *BankClient) DashboardStats(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := b.api.Get(ctx, "/dashboard/stats", &out)
	return out, err
}

// Summary counts accounts and customers and sums balances.
// Customers are only listed for admins; others get a zero customer count.
func (b *BankClient) Summary(ctx context.Context, includeCustomers bool) (DashboardSummary, error) {
	accounts, err := b.Accounts(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	s := DashboardSummary{Accounts: len(accounts), TotalBalance: decimal.Zero}
	for _, a := range accounts {
		s.TotalBalance = s.TotalBalance.Add(a.Balance)
	}
	if includeCustomers {
		customers, err := b.Customers(ctx)
		if err != nil {
			return s, err
		}
		s.Customers = len(customers)
	}
	return s, nil
}
