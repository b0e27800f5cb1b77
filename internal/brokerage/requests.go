package brokerage

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradestation/internal/stream"
)

const (
	MinInterval       = 1
	MaxInterval       = 64999
	MinStreamBarsBack = 1
	MaxStreamBarsBack = 57600
)

// ValidationError reports a request rejected before it was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// BarsRequest selects historical bars. BarsBack and FirstDate are mutually
// exclusive; when neither is set one bar is requested.
type BarsRequest struct {
	Symbol          string
	Interval        int
	Unit            Unit
	BarsBack        int
	FirstDate       time.Time
	LastDate        time.Time
	SessionTemplate SessionTemplate
}

// Query validates the request and returns its query parameters.
func (r BarsRequest) Query() (url.Values, error) {
	if strings.TrimSpace(r.Symbol) == "" {
		return nil, &ValidationError{Field: "symbol", Message: "is required"}
	}
	if r.BarsBack != 0 && !r.FirstDate.IsZero() {
		return nil, &ValidationError{Field: "barsback", Message: "barsback and firstdate are mutually exclusive"}
	}
	if r.BarsBack < 0 {
		return nil, &ValidationError{Field: "barsback", Message: "must be positive"}
	}

	if r.Interval < 0 {
		return nil, &ValidationError{Field: "interval", Message: "must be positive"}
	}

	q := barQuery(r.Interval, r.Unit, r.SessionTemplate)
	if !r.FirstDate.IsZero() {
		q.Set("firstdate", formatDate(r.FirstDate))
	} else {
		barsBack := r.BarsBack
		if barsBack == 0 {
			barsBack = 1
		}
		q.Set("barsback", strconv.Itoa(barsBack))
	}
	if !r.LastDate.IsZero() {
		q.Set("lastdate", formatDate(r.LastDate))
	}
	return q, nil
}

// BarStreamRequest selects a live bar chart stream.
type BarStreamRequest struct {
	Symbol          string
	Interval        int
	Unit            Unit
	BarsBack        int
	SessionTemplate SessionTemplate
}

// Validate checks the interval and bars-back ranges.
func (r BarStreamRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return &ValidationError{Field: "symbol", Message: "is required"}
	}
	interval := r.Interval
	if interval == 0 {
		interval = 1
	}
	if interval < MinInterval || interval > MaxInterval {
		return &ValidationError{Field: "interval", Message: fmt.Sprintf("must be between %d and %d", MinInterval, MaxInterval)}
	}
	if r.BarsBack != 0 && (r.BarsBack < MinStreamBarsBack || r.BarsBack > MaxStreamBarsBack) {
		return &ValidationError{Field: "barsback", Message: fmt.Sprintf("must be between %d and %d", MinStreamBarsBack, MaxStreamBarsBack)}
	}
	return nil
}

// StreamRequest validates r and returns the streaming endpoint to open.
func (r BarStreamRequest) StreamRequest() (stream.Request, error) {
	if err := r.Validate(); err != nil {
		return stream.Request{}, err
	}
	q := barQuery(r.Interval, r.Unit, r.SessionTemplate)
	if r.BarsBack != 0 {
		q.Set("barsback", strconv.Itoa(r.BarsBack))
	}
	return stream.Request{
		Path:  "marketdata/stream/barcharts/" + url.PathEscape(r.Symbol),
		Query: q,
	}, nil
}

// PositionStreamRequest returns the position stream of the given accounts.
// With changes set the server sends only deltas after the initial snapshot.
func PositionStreamRequest(changes bool, accountIDs ...string) (stream.Request, error) {
	ids, err := joinIDs("account", accountIDs)
	if err != nil {
		return stream.Request{}, err
	}
	return stream.Request{
		Path:  "brokerage/stream/accounts/" + ids + "/positions",
		Query: url.Values{"changes": {strconv.FormatBool(changes)}},
	}, nil
}

// OrderStreamRequest returns the order stream of the given accounts.
func OrderStreamRequest(accountIDs ...string) (stream.Request, error) {
	ids, err := joinIDs("account", accountIDs)
	if err != nil {
		return stream.Request{}, err
	}
	return stream.Request{Path: "brokerage/stream/accounts/" + ids + "/orders"}, nil
}

// Validate checks the fields an order cannot be placed without.
func (o OrderRequest) Validate() error {
	switch {
	case o.AccountID == "":
		return &ValidationError{Field: "account", Message: "is required"}
	case o.Symbol == "":
		return &ValidationError{Field: "symbol", Message: "is required"}
	case !o.Quantity.IsPositive():
		return &ValidationError{Field: "quantity", Message: "must be positive"}
	case o.TimeInForce.Duration == "":
		return &ValidationError{Field: "duration", Message: "is required"}
	}

	switch o.OrderType {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if o.LimitPrice == nil {
			return &ValidationError{Field: "limit price", Message: "is required for limit orders"}
		}
	case OrderTypeStopMarket:
		if o.StopPrice == nil {
			return &ValidationError{Field: "stop price", Message: "is required for stop orders"}
		}
	case OrderTypeStopLimit:
		if o.LimitPrice == nil || o.StopPrice == nil {
			return &ValidationError{Field: "price", Message: "stop limit orders need both a limit and a stop price"}
		}
	default:
		return &ValidationError{Field: "order type", Message: fmt.Sprintf("unknown order type %q", o.OrderType)}
	}
	return nil
}

func barQuery(interval int, unit Unit, session SessionTemplate) url.Values {
	if interval == 0 {
		interval = 1
	}
	if unit == "" {
		unit = UnitDaily
	}
	if session == "" {
		session = SessionDefault
	}
	return url.Values{
		"interval":        {strconv.Itoa(interval)},
		"unit":            {string(unit)},
		"sessiontemplate": {string(session)},
	}
}

func formatDate(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
