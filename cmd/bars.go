package cmd

import (
	"fmt"
	"io"
	"time"

	"tradestation/internal/brokerage"
	"tradestation/internal/formatting"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// Flags shared by bars and stream bars.
var (
	barsInterval int
	barsUnit     string
	barsBack     int
	barsSession  string
	barsFirst    string
	barsLast     string
)

// barsCmd represents the bars command
var barsCmd = &cobra.Command{
	Use:   "bars SYMBOL",
	Short: "Fetch historical bars",
	Long: `Fetch historical OHLC bars for a symbol.

--barsback and --first are mutually exclusive; without either the most
recent bar is returned.

Examples:
  tradestation bars MSFT                              # Latest daily bar
  tradestation bars MSFT --unit Minute --interval 5 --barsback 20
  tradestation bars @ES --first 2024-03-01T14:30:00Z --last 2024-03-01T21:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runBars,
}

func init() {
	rootCmd.AddCommand(barsCmd)
	addBarFlags(barsCmd)
	barsCmd.Flags().StringVar(&barsFirst, "first", "", "First bar date (RFC 3339)")
	barsCmd.Flags().StringVar(&barsLast, "last", "", "Last bar date (RFC 3339)")
	barsCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")
	barsCmd.MarkFlagsMutuallyExclusive("barsback", "first")
}

func addBarFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&barsInterval, "interval", 1, "Bar interval in units")
	cmd.Flags().StringVar(&barsUnit, "unit", string(brokerage.UnitDaily), "Interval unit: Minute, Daily, Weekly or Monthly")
	cmd.Flags().IntVar(&barsBack, "barsback", 0, "Number of bars to fetch")
	cmd.Flags().StringVar(&barsSession, "session", string(brokerage.SessionDefault), "Session template, e.g. USEQPreAndPost")
}

// barsRequestFromFlags builds a BarsRequest from the command line.
func barsRequestFromFlags(symbol string) (brokerage.BarsRequest, error) {
	req := brokerage.BarsRequest{
		Symbol:          symbol,
		Interval:        barsInterval,
		Unit:            brokerage.Unit(barsUnit),
		BarsBack:        barsBack,
		SessionTemplate: brokerage.SessionTemplate(barsSession),
	}
	var err error
	if barsFirst != "" {
		if req.FirstDate, err = time.Parse(time.RFC3339, barsFirst); err != nil {
			return req, fmt.Errorf("--first: %w", err)
		}
	}
	if barsLast != "" {
		if req.LastDate, err = time.Parse(time.RFC3339, barsLast); err != nil {
			return req, fmt.Errorf("--last: %w", err)
		}
	}
	return req, nil
}

func runBars(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	req, err := barsRequestFromFlags(args[0])
	if err != nil {
		return err
	}
	if _, err := req.Query(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	bars, err := client.Brokerage().Bars(cmd.Context(), req)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), formatting.PrettyJSON(bars))
		return nil
	}
	if len(bars) == 0 {
		formatting.Empty(cmd.OutOrStdout(), "No bars returned")
		return nil
	}
	renderBars(cmd.OutOrStdout(), bars)
	return nil
}

func renderBars(w io.Writer, bars []brokerage.Bar) {
	t := formatting.NewTable(w, "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
	for _, b := range bars {
		t.AppendRow(table.Row{
			b.TimeStamp.Local().Format("2006-01-02 15:04"),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			formatting.Change(b.Close, b.Open),
			b.TotalVolume,
		})
	}
	t.Render()
}
