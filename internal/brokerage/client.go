package brokerage

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tradestation/pkg/logging"
)

const subsystem = "Brokerage"

// Requester sends authenticated JSON requests. *transport.Transport implements it.
type Requester interface {
	DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error
}

// Client calls the brokerage and market data REST endpoints.
type Client struct {
	api Requester
}

// NewClient creates a Client sending through api.
func NewClient(api Requester) *Client {
	return &Client{api: api}
}

// Accounts lists the accounts of the authenticated user.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var resp struct {
		Accounts []Account `json:"Accounts"`
	}
	if err := c.api.DoJSON(ctx, http.MethodGet, "brokerage/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// Balances returns the balances of the given accounts. Accounts the server
// could not serve are reported in the returned PartialErrors.
func (c *Client) Balances(ctx context.Context, accountIDs ...string) ([]Balance, []PartialError, error) {
	ids, err := joinIDs("account", accountIDs)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		Balances []Balance      `json:"Balances"`
		Errors   []PartialError `json:"Errors"`
	}
	if err := c.api.DoJSON(ctx, http.MethodGet, "brokerage/accounts/"+ids+"/balances", nil, nil, &resp); err != nil {
		return nil, nil, err
	}
	logPartial(resp.Errors)
	return resp.Balances, resp.Errors, nil
}

// Positions returns the positions of the given accounts, optionally filtered
// by symbols (wildcards are allowed by the server).
func (c *Client) Positions(ctx context.Context, accountIDs []string, symbols ...string) ([]Position, []PartialError, error) {
	ids, err := joinIDs("account", accountIDs)
	if err != nil {
		return nil, nil, err
	}

	var query url.Values
	if len(symbols) > 0 {
		query = url.Values{"symbol": {strings.Join(symbols, ",")}}
	}

	var resp struct {
		Positions []Position     `json:"Positions"`
		Errors    []PartialError `json:"Errors"`
	}
	if err := c.api.DoJSON(ctx, http.MethodGet, "brokerage/accounts/"+ids+"/positions", query, nil, &resp); err != nil {
		return nil, nil, err
	}
	logPartial(resp.Errors)
	return resp.Positions, resp.Errors, nil
}

// Orders returns today's orders and open orders of the given accounts.
func (c *Client) Orders(ctx context.Context, accountIDs ...string) ([]Order, []PartialError, error) {
	ids, err := joinIDs("account", accountIDs)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		Orders []Order        `json:"Orders"`
		Errors []PartialError `json:"Errors"`
	}
	if err := c.api.DoJSON(ctx, http.MethodGet, "brokerage/accounts/"+ids+"/orders", nil, nil, &resp); err != nil {
		return nil, nil, err
	}
	logPartial(resp.Errors)
	return resp.Orders, resp.Errors, nil
}

// Bars fetches historical bars.
func (c *Client) Bars(ctx context.Context, req BarsRequest) ([]Bar, error) {
	query, err := req.Query()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Bars []Bar `json:"Bars"`
	}
	if err := c.api.DoJSON(ctx, http.MethodGet, "marketdata/barcharts/"+url.PathEscape(req.Symbol), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Bars, nil
}

// PlaceOrder submits an order. A request is only sent once it passes Validate.
func (c *Client) PlaceOrder(ctx context.Context, order OrderRequest) ([]OrderResult, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	var resp struct {
		Orders []OrderResult `json:"Orders"`
		Errors []OrderResult `json:"Errors"`
	}
	if err := c.api.DoJSON(ctx, http.MethodPost, "brokerage/accounts/orders", nil, order, &resp); err != nil {
		return nil, err
	}

	logging.Audit(subsystem, "order_placed",
		"account", order.AccountID,
		"symbol", order.Symbol,
		"action", string(order.TradeAction),
		"accepted", strconv.Itoa(len(resp.Orders)),
		"rejected", strconv.Itoa(len(resp.Errors)))
	return append(resp.Orders, resp.Errors...), nil
}

func joinIDs(what string, ids []string) (string, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			clean = append(clean, url.PathEscape(id))
		}
	}
	if len(clean) == 0 {
		return "", &ValidationError{Field: what, Message: "at least one " + what + " ID is required"}
	}
	return strings.Join(clean, ","), nil
}

func logPartial(errs []PartialError) {
	for _, e := range errs {
		logging.Warn(subsystem, "account %s: %s %s", e.AccountID, e.Error, e.Message)
	}
}
