package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// buildInfo is what the version command reports.
type buildInfo struct {
	Version   string
	GoVersion string
	Platform  string
	UserAgent string
}

func currentBuildInfo() buildInfo {
	v := GetVersion()
	if v == "" {
		v = "unknown"
	}
	return buildInfo{
		Version:   v,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		UserAgent: userAgent(),
	}
}

// userAgent identifies the CLI to the brokerage API.
func userAgent() string {
	v := GetVersion()
	if v == "" {
		v = "unknown"
	}
	return "tradestation-cli/" + v
}

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version and build details",
		Long: `Print the tradestation CLI version, the Go toolchain it was built with,
the platform, and the User-Agent sent to the brokerage API.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printBuildInfo(cmd.OutOrStdout(), currentBuildInfo(), short)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func printBuildInfo(w io.Writer, info buildInfo, short bool) {
	if short {
		fmt.Fprintln(w, info.Version)
		return
	}
	fmt.Fprintf(w, "tradestation version %s\n", info.Version)
	fmt.Fprintf(w, "  go:         %s\n", info.GoVersion)
	fmt.Fprintf(w, "  platform:   %s\n", info.Platform)
	fmt.Fprintf(w, "  user agent: %s\n", info.UserAgent)
}
