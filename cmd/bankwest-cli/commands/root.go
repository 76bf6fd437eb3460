package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"bankwest-session/internal/components/chrono"
	"bankwest-session/internal/components/serviceutil"
	"bankwest-session/internal/components/telemetry"
	"bankwest-session/internal/scrapers/bankwest"
	"bankwest-session/pkg/configutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	BaseUrl string `json:"base_url"`
	// Cookies of a session logged in through the browser.
	Cookies          map[string]string    `json:"cookies"`
	AccountsUri      string               `json:"accounts_uri"`
	TransactionsUri  string               `json:"transactions_uri"`
	LogoutUri        string               `json:"logout_uri"`
	BypassCloudflare bool                 `json:"bypass_cloudflare"`
	DumpDir          string               `json:"dump_dir"`
	Otlp             telemetry.OtlpConfig `json:"otlp"`
}

var (
	configPath *string
	debug      *bool

	session *bankwest.Session
	clock   chrono.API
	otel    telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "bankwest-cli",
	Short: "bankwest-cli reads accounts and transactions out of a logged in Bankwest online banking session.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*debug)

		var err error
		clock, err = chrono.NewStandardImpl()
		if err != nil {
			serviceutil.Fatal("failed to load bank timezone", err)
		}

		// window needs neither a config nor a session
		if cmd == windowCmd {
			return
		}

		var cfg Config
		if cmd.Flags().Changed("config") {
			cfg, err = configutil.ReadConfig[Config](*configPath)
		} else {
			cfg, err = configutil.ReadRecursively[Config](*configPath)
		}
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		otel, err = telemetry.Setup(cmd.Context(), "bankwest-cli", cfg.Otlp)
		if err != nil {
			serviceutil.Fatal("failed to setup tracing", err)
		}

		session, err = createSession(cfg)
		if err != nil {
			serviceutil.Fatal("failed to create session", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := otel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to flush traces", "err", err)
		}
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file holding the session cookies, looked for in every parent directory when not given.")
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Log every request.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createSession(cfg Config) (*bankwest.Session, error) {
	tel := telemetry.SlogAPI{}

	var output telemetry.MessageOutput
	if cfg.DumpDir != "" {
		fsOutput, err := telemetry.NewFilesystemOutput(cfg.DumpDir)
		if err != nil {
			return nil, err
		}
		output = fsOutput
	}

	client, err := bankwest.NewClient(bankwest.ClientOptions{
		BaseUrl:          cfg.BaseUrl,
		Cookies:          cfg.Cookies,
		BypassCloudflare: cfg.BypassCloudflare,
		Output:           output,
	}, tel)
	if err != nil {
		return nil, err
	}

	return bankwest.NewSession(client, bankwest.SessionOptions{
		AccountsUri:     cfg.AccountsUri,
		TransactionsUri: cfg.TransactionsUri,
		LogoutUri:       cfg.LogoutUri,
	}, tel)
}

// fatalSession exits with a message telling the user what they can do about
// `err`.
func fatalSession(message string, err error) {
	var exportErr *bankwest.ExportFailedError
	switch {
	case errors.Is(err, bankwest.ErrSessionExpired):
		serviceutil.Fatal("session expired, log in through the browser and update the cookies in your config", err)
	case errors.As(err, &exportErr) && exportErr.Reason == bankwest.ExportFailureRejected:
		serviceutil.Fatal("the bank rejected the account or dates", err)
	case errors.Is(err, bankwest.ErrUnexpectedPage):
		serviceutil.Fatal("the bank returned a page this tool does not recognize, rerun with dump_dir set to inspect it", err)
	}
	serviceutil.Fatal(message, err)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
