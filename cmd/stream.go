package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/template"
	"time"

	"tradestation/internal/brokerage"
	"tradestation/internal/formatting"
	"tradestation/internal/stream"
	"tradestation/pkg/logging"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultBarTemplate = `{{ printf "%-8s" .Symbol }} {{ date "15:04:05" .Bar.TimeStamp }}  O {{ .Bar.Open }}  H {{ .Bar.High }}  L {{ .Bar.Low }}  C {{ .Bar.Close }}  V {{ default "0" .Bar.TotalVolume }}{{ if not .Bar.IsRealtime }}  (history){{ end }}`

var (
	streamTemplate    string
	streamMetricsAddr string
)

// streamCmd represents the stream command group
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Follow live data streams",
	Long: `Follow live data streams until interrupted.

Streams reconnect on their own when the connection drops or goes quiet,
and the access token is refreshed in the background while they run.`,
}

// streamBarsCmd represents the stream bars command
var streamBarsCmd = &cobra.Command{
	Use:   "bars SYMBOL...",
	Short: "Stream live bars for one or more symbols",
	Long: `Stream live bars for one or more symbols, one line per bar.

Each line is rendered with a Go template; the Sprig functions are available.
The template receives .Symbol, .Seq and .Bar (Open, High, Low, Close,
TimeStamp, TotalVolume, IsRealtime, ...).

Examples:
  tradestation stream bars MSFT AAPL --unit Minute
  tradestation stream bars @ES --unit Minute --barsback 10 \
      --template '{{ .Symbol }} {{ .Bar.Close }}'
  tradestation stream bars MSFT --metrics-addr :9100`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStreamBars,
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.AddCommand(streamBarsCmd)

	addBarFlags(streamBarsCmd)
	streamBarsCmd.Flags().StringVar(&streamTemplate, "template", defaultBarTemplate, "Output template for each bar")
	streamBarsCmd.Flags().StringVar(&streamMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while streaming")
}

// barLine is the data handed to the output template.
type barLine struct {
	Symbol string
	Seq    uint64
	Bar    brokerage.Bar
}

// barPrinter renders bars of several sessions to one writer.
type barPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	errw io.Writer
	tmpl *template.Template
}

func newBarPrinter(out, errw io.Writer, tmplText string) (*barPrinter, error) {
	tmpl, err := template.New("bar").Funcs(sprig.TxtFuncMap()).Parse(tmplText)
	if err != nil {
		return nil, fmt.Errorf("invalid --template: %w", err)
	}
	return &barPrinter{out: out, errw: errw, tmpl: tmpl}, nil
}

// handler returns the stream handler for symbol.
func (p *barPrinter) handler(symbol string) stream.Handler {
	return stream.HandlerFuncs{
		Data: func(ctx context.Context, ev stream.Event) error {
			var bar brokerage.Bar
			if err := ev.Decode(&bar); err != nil {
				return fmt.Errorf("failed to decode bar: %w", err)
			}
			// Stream status markers such as EndSnapshot carry no bar.
			if bar.TimeStamp.IsZero() {
				logging.Debug("CLI", "%s: %s", symbol, string(ev.Payload))
				return nil
			}
			return p.print(barLine{Symbol: symbol, Seq: ev.Seq, Bar: bar})
		},
		Error: func(ctx context.Context, ev stream.Event) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			formatting.Warning(p.errw, "%s: %v", symbol, ev.Err)
			return nil
		},
		Heartbeat: func(ctx context.Context, ev stream.Event) error {
			logging.Debug("CLI", "%s: heartbeat", symbol)
			return nil
		},
	}
}

func (p *barPrinter) print(line barLine) error {
	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, line); err != nil {
		return fmt.Errorf("failed to render bar: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, sb.String())
	return err
}

func runStreamBars(cmd *cobra.Command, args []string) error {
	requests := make([]brokerage.BarStreamRequest, 0, len(args))
	for _, symbol := range args {
		req := brokerage.BarStreamRequest{
			Symbol:          symbol,
			Interval:        barsInterval,
			Unit:            brokerage.Unit(barsUnit),
			BarsBack:        barsBack,
			SessionTemplate: brokerage.SessionTemplate(barsSession),
		}
		if err := req.Validate(); err != nil {
			return err
		}
		requests = append(requests, req)
	}

	printer, err := newBarPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), streamTemplate)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	// Fail fast when there is no usable login.
	if _, err := client.Token(cmd.Context()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(client.Manager().KeepFresh(ctx))
	})
	g.Go(func() error {
		return client.Manager().Store().Watch(ctx)
	})

	addr := streamMetricsAddr
	if addr == "" {
		addr = client.Config().Metrics.Addr
	}
	if addr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, addr, client.Metrics().Handler())
		})
	}

	for _, req := range requests {
		sr, err := req.StreamRequest()
		if err != nil {
			return err
		}
		g.Go(func() error {
			err := client.RunStream(ctx, sr, printer.handler(req.Symbol))
			if err != nil {
				return fmt.Errorf("%s: %w", req.Symbol, err)
			}
			return nil
		})
	}

	// Streams only end on their own when they give up; stop the rest then.
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveMetrics serves /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("CLI", "Serving metrics on %s/metrics", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
