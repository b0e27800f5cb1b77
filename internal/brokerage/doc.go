// Package brokerage wraps the account, order and market data endpoints of the
// brokerage API on top of an authenticated Requester, and builds the
// stream.Request values for the bar chart, position and order streams.
//
// Money and quantity fields use decimal.Decimal so prices round-trip exactly.
package brokerage
