package commands

import (
	"log/slog"

	"bankwest-session/internal/components/serviceutil"
	"bankwest-session/internal/ledger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var accountsDb *string

func init() {
	accountsDb = accountsCmd.Flags().String("db", "", "A sqlite database to also write the accounts to.")
	rootCmd.AddCommand(accountsCmd)
}

var accountsCmd = &cobra.Command{
	Use:   "accounts [--db <path/to/output.db>]",
	Short: "Lists accounts and their balances.",
	Run: func(cmd *cobra.Command, args []string) {
		accounts, err := session.ListAccounts(cmd.Context())
		if err != nil {
			fatalSession("failed to list accounts", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Account", "Number", "Balance", "Available"})
		for _, a := range accounts {
			t.AppendRow(table.Row{a.Name, a.Number, a.Balance.StringFixed(2), a.Available.StringFixed(2)})
		}
		t.Render()

		if *accountsDb == "" {
			return
		}
		out, err := ledger.Open(*accountsDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer out.Close()

		err = out.SaveAccounts(cmd.Context(), accounts, clock.Now())
		if err != nil {
			serviceutil.Fatal("failed to save accounts", err)
		}
		slog.Info("saved accounts", "db", *accountsDb, "count", len(accounts))
	},
}
