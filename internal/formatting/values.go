package formatting

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

// MinTruncateLen is the minimum maxLen value for Truncate.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate collapses whitespace to single spaces and shortens s to maxLen
// runes, ending with "..." when something was cut.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Money formats d with two decimal places.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Signed formats d with two decimal places, green when positive and red when negative.
func Signed(d decimal.Decimal) string {
	s := Money(d)
	switch {
	case d.IsPositive():
		return text.FgGreen.Sprint(s)
	case d.IsNegative():
		return text.FgRed.Sprint(s)
	}
	return s
}

// Change colours current against reference: green above, red below.
func Change(current, reference decimal.Decimal) string {
	s := current.String()
	switch current.Cmp(reference) {
	case 1:
		return text.FgGreen.Sprint(s)
	case -1:
		return text.FgRed.Sprint(s)
	}
	return s
}

// PrettyJSON formats any value as indented JSON for human-readable display.
// It falls back to fmt.Sprintf when v cannot be marshaled.
func PrettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
