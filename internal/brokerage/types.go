package brokerage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a brokerage account of the authenticated user.
type Account struct {
	AccountID   string `json:"AccountID"`
	AccountType string `json:"AccountType"`
	Alias       string `json:"Alias,omitempty"`
	Currency    string `json:"Currency"`
	Status      string `json:"Status"`
}

// Balance is the real-time balance of one account.
type Balance struct {
	AccountID        string          `json:"AccountID"`
	AccountType      string          `json:"AccountType"`
	CashBalance      decimal.Decimal `json:"CashBalance"`
	BuyingPower      decimal.Decimal `json:"BuyingPower"`
	Equity           decimal.Decimal `json:"Equity"`
	MarketValue      decimal.Decimal `json:"MarketValue"`
	TodaysProfitLoss decimal.Decimal `json:"TodaysProfitLoss"`
	UnclearedDeposit decimal.Decimal `json:"UnclearedDeposit"`
}

// Position is an open position in one account.
type Position struct {
	AccountID            string          `json:"AccountID"`
	PositionID           string          `json:"PositionID"`
	Symbol               string          `json:"Symbol"`
	AssetType            string          `json:"AssetType"`
	LongShort            string          `json:"LongShort"`
	Quantity             decimal.Decimal `json:"Quantity"`
	AveragePrice         decimal.Decimal `json:"AveragePrice"`
	Last                 decimal.Decimal `json:"Last"`
	MarketValue          decimal.Decimal `json:"MarketValue"`
	UnrealizedProfitLoss decimal.Decimal `json:"UnrealizedProfitLoss"`
	Timestamp            time.Time       `json:"Timestamp"`
}

// Order is an order as reported by the order listing endpoints.
type Order struct {
	AccountID   string          `json:"AccountID"`
	OrderID     string          `json:"OrderID"`
	Status      string          `json:"Status"`
	StatusDesc  string          `json:"StatusDescription"`
	OrderType   string          `json:"OrderType"`
	LimitPrice  decimal.Decimal `json:"LimitPrice"`
	StopPrice   decimal.Decimal `json:"StopPrice"`
	FilledPrice decimal.Decimal `json:"FilledPrice"`
	OpenedAt    time.Time       `json:"OpenedDateTime"`
	Legs        []OrderLeg      `json:"Legs"`
}

// OrderLeg is one leg of a listed order.
type OrderLeg struct {
	Symbol          string          `json:"Symbol"`
	BuyOrSell       string          `json:"BuyOrSell"`
	QuantityOrdered decimal.Decimal `json:"QuantityOrdered"`
	ExecQuantity    decimal.Decimal `json:"ExecQuantity"`
}

// Bar is one OHLC bar. Streamed bars have the same shape.
type Bar struct {
	High           decimal.Decimal `json:"High"`
	Low            decimal.Decimal `json:"Low"`
	Open           decimal.Decimal `json:"Open"`
	Close          decimal.Decimal `json:"Close"`
	TimeStamp      time.Time       `json:"TimeStamp"`
	TotalVolume    string          `json:"TotalVolume"`
	UpVolume       int64           `json:"UpVolume"`
	DownVolume     int64           `json:"DownVolume"`
	OpenInterest   string          `json:"OpenInterest"`
	IsRealtime     bool            `json:"IsRealtime"`
	IsEndOfHistory bool            `json:"IsEndOfHistory"`
	BarStatus      string          `json:"BarStatus"`
	Epoch          int64           `json:"Epoch"`
}

// PartialError is reported alongside results for the accounts that failed.
type PartialError struct {
	AccountID string `json:"AccountID"`
	Error     string `json:"Error"`
	Message   string `json:"Message"`
}

// OrderRequest describes an order to place. Prices are sent as decimal
// strings; nil prices are omitted.
type OrderRequest struct {
	AccountID       string           `json:"AccountID"`
	Symbol          string           `json:"Symbol"`
	Quantity        decimal.Decimal  `json:"Quantity"`
	OrderType       OrderType        `json:"OrderType"`
	TradeAction     TradeAction      `json:"TradeAction"`
	TimeInForce     TimeInForce      `json:"TimeInForce"`
	Route           string           `json:"Route,omitempty"`
	LimitPrice      *decimal.Decimal `json:"LimitPrice,omitempty"`
	StopPrice       *decimal.Decimal `json:"StopPrice,omitempty"`
	OrderConfirmID  string           `json:"OrderConfirmID,omitempty"`
	AdvancedOptions map[string]any   `json:"AdvancedOptions,omitempty"`
}

// TimeInForce is the duration of an order.
type TimeInForce struct {
	Duration   string     `json:"Duration"`
	Expiration *time.Time `json:"Expiration,omitempty"`
}

// OrderType is the type of an order.
type OrderType string

const (
	OrderTypeLimit      OrderType = "Limit"
	OrderTypeMarket     OrderType = "Market"
	OrderTypeStopMarket OrderType = "StopMarket"
	OrderTypeStopLimit  OrderType = "StopLimit"
)

// TradeAction is the intent of a trade.
type TradeAction string

const (
	Buy        TradeAction = "BUY"
	Sell       TradeAction = "SELL"
	BuyToCover TradeAction = "BUYTOCOVER"
	SellShort  TradeAction = "SELLSHORT"
)

// OrderResult is the outcome of one placed order.
type OrderResult struct {
	OrderID string `json:"OrderID"`
	Message string `json:"Message"`
	Error   string `json:"Error,omitempty"`
}

// Unit is the bar interval unit.
type Unit string

const (
	UnitMinute  Unit = "Minute"
	UnitDaily   Unit = "Daily"
	UnitWeekly  Unit = "Weekly"
	UnitMonthly Unit = "Monthly"
)

// SessionTemplate selects the trading sessions a bar covers.
type SessionTemplate string

const (
	SessionDefault        SessionTemplate = "Default"
	SessionUSEQPre        SessionTemplate = "USEQPre"
	SessionUSEQPost       SessionTemplate = "USEQPost"
	SessionUSEQPreAndPost SessionTemplate = "USEQPreAndPost"
	SessionUSEQ24Hour     SessionTemplate = "USEQ24Hour"
)
