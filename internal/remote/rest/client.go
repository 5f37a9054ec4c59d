// Package rest is the HTTP+JSON adapter for the remote ports. It talks to
// the external tracker backend with a bearer token. No retry policy lives
// here: a failed call is wrapped and surfaced, the caller decides.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/remote"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Interface conformance
var (
	_ remote.OperationStore    = (*Client)(nil)
	_ remote.WalletDirectory   = (*Client)(nil)
	_ remote.CategoryDirectory = (*Client)(nil)
	_ remote.GoalStore         = (*Client)(nil)
)

// New creates a backend client. The token is injected into every request as
// a bearer Authorization header.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	return &Client{
		baseURL: u.String(),
		token:   token,
		http:    newHTTPClient(),
	}, nil
}

// newHTTPClient returns a client with connection pooling and conservative
// timeouts.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return remote.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: backend returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) ListOperations(ctx context.Context) ([]core.Operation, error) {
	var ops []core.Operation
	if err := c.do(ctx, http.MethodGet, "/operations", nil, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func (c *Client) GetOperation(ctx context.Context, id string) (core.Operation, error) {
	var o core.Operation
	if err := c.do(ctx, http.MethodGet, "/operations/"+url.PathEscape(id), nil, &o); err != nil {
		return core.Operation{}, err
	}
	return o, nil
}

func (c *Client) CreateOperation(ctx context.Context, o core.Operation) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/operations", o, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) UpdateOperation(ctx context.Context, o core.Operation) error {
	return c.do(ctx, http.MethodPut, "/operations/"+url.PathEscape(o.ID), o, nil)
}

func (c *Client) DeleteOperation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/operations/"+url.PathEscape(id), nil, nil)
}

// directoryRecord is the wire shape of wallet and category listings.
type directoryRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func (c *Client) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	var recs []directoryRecord
	if err := c.do(ctx, http.MethodGet, "/wallets", nil, &recs); err != nil {
		return nil, err
	}
	wallets := make([]core.Wallet, 0, len(recs))
	for _, r := range recs {
		wallets = append(wallets, core.Wallet{ID: r.ID, Name: r.Name, Color: r.Color, Icon: r.Icon})
	}
	return wallets, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var recs []directoryRecord
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &recs); err != nil {
		return nil, err
	}
	categories := make([]core.Category, 0, len(recs))
	for _, r := range recs {
		cat := core.Category{ID: r.ID, Name: r.Name, Color: r.Color, Icon: r.Icon}
		// Category kind is optional; unknown tokens stay empty.
		if k, err := core.ParseKind(r.Kind); err == nil {
			cat.Kind = k
		}
		categories = append(categories, cat)
	}
	return categories, nil
}

// goalWire is the wire shape of a savings goal. Amounts travel as decimal
// numbers of currency units.
type goalWire struct {
	ID         string           `json:"id,omitempty"`
	Name       string           `json:"name"`
	Target     json.Number      `json:"targetAmount"`
	Current    json.Number      `json:"currentAmount"`
	Operations []core.Operation `json:"operations,omitempty"`
}

func (c *Client) ListGoals(ctx context.Context) ([]core.SavingsGoal, error) {
	var recs []goalWire
	if err := c.do(ctx, http.MethodGet, "/goals", nil, &recs); err != nil {
		return nil, err
	}
	goals := make([]core.SavingsGoal, 0, len(recs))
	for _, r := range recs {
		goals = append(goals, r.toGoal())
	}
	return goals, nil
}

func (c *Client) GetGoal(ctx context.Context, id string) (core.SavingsGoal, error) {
	var r goalWire
	if err := c.do(ctx, http.MethodGet, "/goals/"+url.PathEscape(id), nil, &r); err != nil {
		return core.SavingsGoal{}, err
	}
	return r.toGoal(), nil
}

func (c *Client) SaveGoal(ctx context.Context, g core.SavingsGoal) (string, error) {
	wire := goalFromCore(g)
	if g.ID == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := c.do(ctx, http.MethodPost, "/goals", wire, &created); err != nil {
			return "", err
		}
		return created.ID, nil
	}
	if err := c.do(ctx, http.MethodPut, "/goals/"+url.PathEscape(g.ID), wire, nil); err != nil {
		return "", err
	}
	return g.ID, nil
}

func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/goals/"+url.PathEscape(id), nil, nil)
}

func (w goalWire) toGoal() core.SavingsGoal {
	return core.SavingsGoal{
		ID:            w.ID,
		Name:          w.Name,
		TargetAmount:  amountFromNumber(w.Target),
		CurrentAmount: amountFromNumber(w.Current),
		Operations:    w.Operations,
	}
}

func goalFromCore(g core.SavingsGoal) goalWire {
	return goalWire{
		ID:         g.ID,
		Name:       g.Name,
		Target:     numberFromAmount(g.TargetAmount),
		Current:    numberFromAmount(g.CurrentAmount),
		Operations: g.Operations,
	}
}

// amountFromNumber is lenient: goal baselines may legitimately be zero, and
// a malformed number degrades to zero rather than failing the record.
func amountFromNumber(n json.Number) core.Money {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return core.Money{}
	}
	neg := strings.HasPrefix(s, "-")
	if cents, err := core.ParseDecimalToCents(strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")); err == nil {
		if neg {
			return core.Money{Cents: -cents}
		}
		return core.Money{Cents: cents}
	}
	return core.Money{}
}

func numberFromAmount(m core.Money) json.Number {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return json.Number(fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100))
}
