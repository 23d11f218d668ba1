package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lachiem1/driverlog/internal/ledger"
)

// Login calls POST /auth/login and returns the bearer token.
func (c *Client) Login(ctx context.Context, mobilePhone, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"mobilePhone": mobilePhone, "password": password}
	if err := c.post(ctx, "/auth/login", body, &out); err != nil {
		return "", err
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		return "", errors.New("login response did not include a token")
	}
	return token, nil
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.post(ctx, "/auth/register", req, nil)
}

// OpenDay calls POST /driver/day/open.
func (c *Client) OpenDay(ctx context.Context) (Day, error) {
	var out Day
	if err := c.post(ctx, "/driver/day/open", nil, &out); err != nil {
		return Day{}, err
	}
	return out, nil
}

// CloseDay calls POST /driver/day/close.
func (c *Client) CloseDay(ctx context.Context) (Day, error) {
	var out Day
	if err := c.post(ctx, "/driver/day/close", nil, &out); err != nil {
		return Day{}, err
	}
	return out, nil
}

// CurrentDay calls GET /driver/day/current. A 404 means no active day and
// is reported as ok=false, not as an error.
func (c *Client) CurrentDay(ctx context.Context) (Day, bool, error) {
	var out Day
	if err := c.get(ctx, "/driver/day/current", &out); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return Day{}, false, nil
		}
		return Day{}, false, err
	}
	if out.ID == "" && out.Status == "" {
		return Day{}, false, nil
	}
	return out, true, nil
}

// CreateTransaction calls POST /transactions.
func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (Transaction, error) {
	var out Transaction
	if err := c.post(ctx, "/transactions", req, &out); err != nil {
		return Transaction{}, err
	}
	return out, nil
}

// ListTransactions calls GET /transactions.
func (c *Client) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	if err := c.get(ctx, "/transactions", &out); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}
