package cmd

import (
	"fmt"
	"io"

	"tradestation/internal/brokerage"
	"tradestation/internal/formatting"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var accountsBalances bool

// outputFormat is the --output flag of list commands: table or json.
var outputFormat string

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List your brokerage accounts",
	Long: `List the brokerage accounts of the logged in user.

Examples:
  tradestation accounts                # Accounts only
  tradestation accounts --balances     # Accounts and their balances
  tradestation accounts -o json        # Raw JSON`,
	Args: cobra.NoArgs,
	RunE: runAccounts,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.Flags().BoolVar(&accountsBalances, "balances", false, "Also show the balance of every account")
	accountsCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")
}

func validateOutputFormat() error {
	switch outputFormat {
	case "table", "json":
		return nil
	}
	return fmt.Errorf("unsupported --output %q, use table or json", outputFormat)
}

func runAccounts(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}

	accounts, err := client.Brokerage().Accounts(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !accountsBalances || len(accounts) == 0 {
		if outputFormat == "json" {
			fmt.Fprintln(out, formatting.PrettyJSON(accounts))
			return nil
		}
		if len(accounts) == 0 {
			formatting.Empty(out, "No accounts found")
			return nil
		}
		renderAccounts(out, accounts)
		return nil
	}

	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.AccountID)
	}
	balances, partial, err := client.Brokerage().Balances(cmd.Context(), ids...)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		fmt.Fprintln(out, formatting.PrettyJSON(map[string]any{"Accounts": accounts, "Balances": balances, "Errors": partial}))
		return nil
	}
	renderAccounts(out, accounts)
	renderBalances(out, balances)
	for _, p := range partial {
		formatting.Warning(cmd.ErrOrStderr(), "%s: %s", p.AccountID, formatting.Truncate(p.Message, 80))
	}
	return nil
}

func renderAccounts(w io.Writer, accounts []brokerage.Account) {
	t := formatting.NewTable(w, "ACCOUNT", "TYPE", "CURRENCY", "STATUS", "ALIAS")
	for _, a := range accounts {
		status := a.Status
		if status == "Active" {
			status = text.FgGreen.Sprint(status)
		}
		t.AppendRow(table.Row{a.AccountID, a.AccountType, a.Currency, status, formatting.Truncate(a.Alias, 30)})
	}
	t.Render()
}

func renderBalances(w io.Writer, balances []brokerage.Balance) {
	t := formatting.NewTable(w, "ACCOUNT", "CASH", "EQUITY", "MARKET VALUE", "BUYING POWER", "TODAY P/L")
	for _, b := range balances {
		t.AppendRow(table.Row{
			b.AccountID,
			formatting.Money(b.CashBalance),
			formatting.Money(b.Equity),
			formatting.Money(b.MarketValue),
			formatting.Money(b.BuyingPower),
			formatting.Signed(b.TodaysProfitLoss),
		})
	}
	t.Render()
}
