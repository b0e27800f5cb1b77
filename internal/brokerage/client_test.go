package brokerage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tradestation/internal/transport"
	"tradestation/pkg/oauth"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	query  url.Values
	body   []byte
}

// fakeAPI answers every request with a canned JSON body.
type fakeAPI struct {
	calls    []call
	response string
	err      error
}

func (f *fakeAPI) DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	c := call{method: method, path: path, query: query}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		c.body = data
	}
	f.calls = append(f.calls, c)
	if f.err != nil {
		return f.err
	}
	if out != nil && f.response != "" {
		return json.Unmarshal([]byte(f.response), out)
	}
	return nil
}

func TestClient_Accounts(t *testing.T) {
	api := &fakeAPI{response: `{"Accounts":[{"AccountID":"11111111","AccountType":"Margin","Currency":"USD","Status":"Active"}]}`}
	accounts, err := NewClient(api).Accounts(context.Background())

	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "11111111", accounts[0].AccountID)
	assert.Equal(t, "brokerage/accounts", api.calls[0].path)
	assert.Equal(t, http.MethodGet, api.calls[0].method)
}

func TestClient_BalancesJoinsAccounts(t *testing.T) {
	api := &fakeAPI{response: `{"Balances":[{"AccountID":"1","CashBalance":"1000.25","Equity":"1500.50"}],
		"Errors":[{"AccountID":"2","Error":"Forbidden","Message":"no access"}]}`}
	balances, partial, err := NewClient(api).Balances(context.Background(), "1", " 2 ", "")

	require.NoError(t, err)
	assert.Equal(t, "brokerage/accounts/1,2/balances", api.calls[0].path)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].CashBalance.Equal(decimal.RequireFromString("1000.25")))
	require.Len(t, partial, 1)
	assert.Equal(t, "2", partial[0].AccountID)
}

func TestClient_RequiresAccountIDs(t *testing.T) {
	api := &fakeAPI{}
	_, _, err := NewClient(api).Balances(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, api.calls)
}

func TestClient_PositionsSymbolFilter(t *testing.T) {
	api := &fakeAPI{response: `{"Positions":[{"AccountID":"1","Symbol":"MSFT","Quantity":"10","AveragePrice":"401.10"}]}`}
	positions, _, err := NewClient(api).Positions(context.Background(), []string{"1"}, "MSFT", "AAPL")

	require.NoError(t, err)
	assert.Equal(t, "MSFT,AAPL", api.calls[0].query.Get("symbol"))
	require.Len(t, positions, 1)
	assert.Equal(t, "10", positions[0].Quantity.String())
}

func TestClient_Bars(t *testing.T) {
	api := &fakeAPI{response: `{"Bars":[{"High":"218.32","Low":"212.42","Open":"214.02","Close":"216.39","TimeStamp":"2024-03-01T21:00:00Z","TotalVolume":"42311777"}]}`}
	bars, err := NewClient(api).Bars(context.Background(), BarsRequest{Symbol: "MSFT", Unit: UnitMinute, Interval: 5})

	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "216.39", bars[0].Close.String())
	assert.Equal(t, "marketdata/barcharts/MSFT", api.calls[0].path)
	assert.Equal(t, "1", api.calls[0].query.Get("barsback"))
	assert.Equal(t, "5", api.calls[0].query.Get("interval"))
}

func TestClient_PlaceOrder(t *testing.T) {
	api := &fakeAPI{response: `{"Orders":[{"OrderID":"286234131","Message":"Sent order"}]}`}
	limit := decimal.RequireFromString("412.50")
	results, err := NewClient(api).PlaceOrder(context.Background(), OrderRequest{
		AccountID:   "11111111",
		Symbol:      "MSFT",
		Quantity:    decimal.NewFromInt(10),
		OrderType:   OrderTypeLimit,
		TradeAction: Buy,
		TimeInForce: TimeInForce{Duration: "DAY"},
		Route:       "Intelligent",
		LimitPrice:  &limit,
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "286234131", results[0].OrderID)
	assert.Equal(t, http.MethodPost, api.calls[0].method)
	assert.JSONEq(t, `{"AccountID":"11111111","Symbol":"MSFT","Quantity":"10","OrderType":"Limit",
		"TradeAction":"BUY","TimeInForce":{"Duration":"DAY"},"Route":"Intelligent","LimitPrice":"412.5"}`, string(api.calls[0].body))
}

func TestClient_PlaceOrderRejectsInvalid(t *testing.T) {
	api := &fakeAPI{}
	_, err := NewClient(api).PlaceOrder(context.Background(), OrderRequest{
		AccountID:   "1",
		Symbol:      "MSFT",
		Quantity:    decimal.NewFromInt(1),
		OrderType:   OrderTypeLimit,
		TimeInForce: TimeInForce{Duration: "DAY"},
	})
	require.Error(t, err)
	assert.Empty(t, api.calls)
}

func TestClient_PropagatesTransportErrors(t *testing.T) {
	api := &fakeAPI{err: oauth.ErrReauthorizationRequired}
	_, err := NewClient(api).Accounts(context.Background())
	assert.True(t, oauth.IsReauthorizationRequired(err))
}

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context) (*oauth.Token, error) {
	return &oauth.Token{AccessToken: "access", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (staticTokens) ForceRefresh(ctx context.Context, stale string) (*oauth.Token, error) {
	return staticTokens{}.Token(ctx)
}

func TestClient_OverTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/marketdata/barcharts/$SPX.X", r.URL.Path)
		assert.Equal(t, "2024-03-01T14:30:00Z", r.URL.Query().Get("firstdate"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Bars":[{"Close":"5137.08"}]}`))
	}))
	defer server.Close()

	client := NewClient(transport.New(server.URL+"/v3", staticTokens{}))
	bars, err := client.Bars(context.Background(), BarsRequest{
		Symbol:    "$SPX.X",
		FirstDate: time.Date(2024, 3, 1, 9, 30, 0, 500, time.FixedZone("EST", -5*3600)),
	})

	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "5137.08", bars[0].Close.String())
}
