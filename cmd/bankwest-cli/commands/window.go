package commands

import (
	"bankwest-session/internal/scrapers/bankwest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(windowCmd)
}

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Prints the range of dates the bank will currently search.",
	Run: func(cmd *cobra.Command, args []string) {
		earliest, latest := bankwest.DateWindow(clock.Now())

		t := newTable()
		t.AppendHeader(table.Row{"Earliest from", "Latest to"})
		t.AppendRow(table.Row{bankwest.FormatDate(earliest), bankwest.FormatDate(latest)})
		t.Render()
	},
}
