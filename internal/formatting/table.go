package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// NewTable creates a rounded table mirrored to w with cyan headers.
func NewTable(w io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if len(headers) > 0 {
		row := make(table.Row, 0, len(headers))
		for _, h := range headers {
			row = append(row, text.FgHiCyan.Sprint(h))
		}
		t.AppendHeader(row)
	}
	return t
}

// Empty writes a highlighted message for an empty result.
func Empty(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", text.FgYellow.Sprint("-"), text.FgYellow.Sprint(message))
}

// Warning writes a highlighted warning line.
func Warning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", text.FgYellow.Sprint("!"), fmt.Sprintf(format, args...))
}
