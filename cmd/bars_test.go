package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tradestation/internal/brokerage"

	"github.com/shopspring/decimal"
)

func TestBarsRequestFromFlags(t *testing.T) {
	defer func() {
		barsInterval, barsUnit, barsBack, barsSession, barsFirst, barsLast = 1, "Daily", 0, "Default", "", ""
	}()

	barsInterval, barsUnit, barsBack, barsSession = 5, "Minute", 0, "USEQPreAndPost"
	barsFirst, barsLast = "2024-03-01T14:30:00Z", "2024-03-01T21:00:00Z"

	req, err := barsRequestFromFlags("MSFT")
	if err != nil {
		t.Fatalf("barsRequestFromFlags() error = %v", err)
	}
	if req.Interval != 5 || req.Unit != brokerage.UnitMinute || req.SessionTemplate != brokerage.SessionUSEQPreAndPost {
		t.Errorf("unexpected request %+v", req)
	}
	if !req.FirstDate.Equal(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)) {
		t.Errorf("FirstDate = %v", req.FirstDate)
	}

	barsFirst = "yesterday"
	if _, err := barsRequestFromFlags("MSFT"); err == nil {
		t.Error("expected an error for an invalid --first")
	}
}

func TestRenderBars(t *testing.T) {
	var buf bytes.Buffer
	renderBars(&buf, []brokerage.Bar{{
		Open:        decimal.RequireFromString("410"),
		High:        decimal.RequireFromString("413.2"),
		Low:         decimal.RequireFromString("409.5"),
		Close:       decimal.RequireFromString("412.5"),
		TimeStamp:   time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
		TotalVolume: "1200",
	}})

	out := buf.String()
	for _, want := range []string{"OPEN", "CLOSE", "413.2", "412.5", "1200"} {
		if !strings.Contains(out, want) {
			t.Errorf("table should contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderAccountsAndBalances(t *testing.T) {
	var buf bytes.Buffer
	renderAccounts(&buf, []brokerage.Account{{AccountID: "11111111", AccountType: "Margin", Currency: "USD", Status: "Active"}})
	renderBalances(&buf, []brokerage.Balance{{AccountID: "11111111", CashBalance: decimal.RequireFromString("1000.5"), TodaysProfitLoss: decimal.RequireFromString("-12.345")}})

	out := buf.String()
	for _, want := range []string{"11111111", "Margin", "1000.50", "-12.35"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}
