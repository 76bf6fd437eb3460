package commands

import (
	"log/slog"

	"bankwest-session/internal/components/serviceutil"
	"bankwest-session/internal/ledger"
	"bankwest-session/internal/scrapers/bankwest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	transactionsAccount *string
	transactionsFrom    *string
	transactionsTo      *string
	transactionsDb      *string
)

func init() {
	transactionsAccount = transactionsCmd.Flags().String("account", "", "The account to export, as BBB-BBB AAAAAAA.")
	transactionsFrom = transactionsCmd.Flags().String("from", "", "The first day to export, as dd/mm/yyyy.")
	transactionsTo = transactionsCmd.Flags().String("to", "", "The last day to export, as dd/mm/yyyy. Leave out to export up to today.")
	transactionsDb = transactionsCmd.Flags().String("db", "", "A sqlite database to also write the transactions to.")
	transactionsCmd.MarkFlagRequired("account")
	transactionsCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(transactionsCmd)
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions --account <BBB-BBB AAAAAAA> --from <dd/mm/yyyy> [--to <dd/mm/yyyy>] [--db <path/to/output.db>]",
	Short: "Exports the transactions of an account over a range of dates.",
	Run: func(cmd *cobra.Command, args []string) {
		err := bankwest.ValidateAccount(*transactionsAccount)
		if err != nil {
			serviceutil.Fatal("invalid account", err)
		}
		from, err := bankwest.ParseDate(*transactionsFrom)
		if err != nil {
			serviceutil.Fatal("invalid from date", err)
		}
		to, err := bankwest.ParseDate(*transactionsTo)
		if err != nil {
			serviceutil.Fatal("invalid to date", err)
		}
		err = bankwest.CheckDateRange(clock.Now(), from, to)
		if err != nil {
			serviceutil.Fatal("dates are outside what the bank will search", err)
		}

		transactions, err := session.ExportTransactions(cmd.Context(), *transactionsAccount, from, to)
		if err != nil {
			fatalSession("failed to export transactions", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Date", "Narrative", "Amount", "Balance", "Type"})
		for _, tx := range transactions {
			t.AppendRow(table.Row{
				bankwest.FormatDate(tx.Date),
				tx.Narrative,
				tx.Amount.StringFixed(2),
				tx.Balance.StringFixed(2),
				tx.Type,
			})
		}
		t.Render()

		if *transactionsDb == "" {
			return
		}
		out, err := ledger.Open(*transactionsDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer out.Close()

		inserted, err := out.SaveTransactions(cmd.Context(), transactions)
		if err != nil {
			serviceutil.Fatal("failed to save transactions", err)
		}
		slog.Info(
			"saved transactions",
			"db", *transactionsDb,
			"exported", len(transactions),
			"new", inserted,
		)
	},
}
