package brokerage

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarsRequest_Query(t *testing.T) {
	first := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     BarsRequest
		want    map[string]string
		wantErr string
	}{
		{
			name: "defaults to one bar",
			req:  BarsRequest{Symbol: "MSFT"},
			want: map[string]string{"interval": "1", "unit": "Daily", "sessiontemplate": "Default", "barsback": "1"},
		},
		{
			name: "first date instead of bars back",
			req:  BarsRequest{Symbol: "MSFT", FirstDate: first, LastDate: first.Add(24 * time.Hour)},
			want: map[string]string{"firstdate": "2024-01-02T15:00:00Z", "lastdate": "2024-01-03T15:00:00Z", "barsback": ""},
		},
		{
			name:    "mutually exclusive",
			req:     BarsRequest{Symbol: "MSFT", BarsBack: 10, FirstDate: first},
			wantErr: "barsback",
		},
		{
			name:    "symbol required",
			req:     BarsRequest{},
			wantErr: "symbol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.req.Query()
			if tt.wantErr != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantErr, verr.Field)
				return
			}
			require.NoError(t, err)
			for k, v := range tt.want {
				assert.Equal(t, v, q.Get(k), k)
			}
		})
	}
}

func TestBarStreamRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     BarStreamRequest
		wantErr bool
	}{
		{"defaults", BarStreamRequest{Symbol: "MSFT"}, false},
		{"lowest interval", BarStreamRequest{Symbol: "MSFT", Interval: 1}, false},
		{"highest interval", BarStreamRequest{Symbol: "MSFT", Interval: 64999}, false},
		{"interval too large", BarStreamRequest{Symbol: "MSFT", Interval: 65000}, true},
		{"negative interval", BarStreamRequest{Symbol: "MSFT", Interval: -1}, true},
		{"highest bars back", BarStreamRequest{Symbol: "MSFT", BarsBack: 57600}, false},
		{"bars back too large", BarStreamRequest{Symbol: "MSFT", BarsBack: 57601}, true},
		{"negative bars back", BarStreamRequest{Symbol: "MSFT", BarsBack: -3}, true},
		{"no symbol", BarStreamRequest{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBarStreamRequest_StreamRequest(t *testing.T) {
	req, err := BarStreamRequest{Symbol: "@ES", Interval: 5, Unit: UnitMinute, BarsBack: 100}.StreamRequest()
	require.NoError(t, err)

	assert.Equal(t, "marketdata/stream/barcharts/@ES", req.Path)
	assert.Equal(t, "5", req.Query.Get("interval"))
	assert.Equal(t, "Minute", req.Query.Get("unit"))
	assert.Equal(t, "100", req.Query.Get("barsback"))

	_, err = BarStreamRequest{Symbol: "@ES", Interval: 70000}.StreamRequest()
	assert.Error(t, err)
}

func TestPositionAndOrderStreamRequests(t *testing.T) {
	req, err := PositionStreamRequest(true, "1", "2")
	require.NoError(t, err)
	assert.Equal(t, "brokerage/stream/accounts/1,2/positions", req.Path)
	assert.Equal(t, "true", req.Query.Get("changes"))

	req, err = OrderStreamRequest("1")
	require.NoError(t, err)
	assert.Equal(t, "brokerage/stream/accounts/1/orders", req.Path)

	_, err = OrderStreamRequest()
	assert.Error(t, err)
}

func TestOrderRequest_Validate(t *testing.T) {
	price := decimal.RequireFromString("10.5")
	base := OrderRequest{
		AccountID:   "1",
		Symbol:      "MSFT",
		Quantity:    decimal.NewFromInt(1),
		OrderType:   OrderTypeMarket,
		TradeAction: Buy,
		TimeInForce: TimeInForce{Duration: "DAY"},
	}

	assert.NoError(t, base.Validate())

	zero := base
	zero.Quantity = decimal.Zero
	assert.Error(t, zero.Validate())

	stopLimit := base
	stopLimit.OrderType = OrderTypeStopLimit
	stopLimit.LimitPrice = &price
	assert.Error(t, stopLimit.Validate())
	stopLimit.StopPrice = &price
	assert.NoError(t, stopLimit.Validate())

	unknown := base
	unknown.OrderType = "Iceberg"
	assert.Error(t, unknown.Validate())
}
