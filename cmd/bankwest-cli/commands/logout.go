package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Ends the session, the cookies in the config are useless afterwards.",
	Run: func(cmd *cobra.Command, args []string) {
		err := session.Logout(cmd.Context())
		if err != nil {
			fatalSession("failed to logout", err)
		}
		slog.Info("logged out")
	},
}
