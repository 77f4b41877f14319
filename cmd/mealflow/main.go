// Command mealflow is the CLI entrypoint (spec.md §6): global flags
// resolve the runtime config and credential once, then dispatch to the
// terminal UI (default), the web server, the clear-db maintenance command,
// or the batch CSV exporter. Flag/subcommand wiring follows
// Dirstral-dir2mcp's cobra root-command shape; everything downstream of
// flag parsing is this module's own core.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/config"
	"github.com/mealflow/mealflow/internal/credentials"
	"github.com/mealflow/mealflow/internal/export"
	"github.com/mealflow/mealflow/internal/fetch"
	"github.com/mealflow/mealflow/internal/httpserver"
	"github.com/mealflow/mealflow/internal/logging"
	"github.com/mealflow/mealflow/internal/metrics"
	"github.com/mealflow/mealflow/internal/query"
	"github.com/mealflow/mealflow/internal/remote"
	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/internal/tui"
)

// exit codes per spec.md §6.
const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

type globalFlags struct {
	tickRate    float64
	frameRate   float64
	dataDir     string
	dbInMemory  bool
	account     string
	hallticket  string
	useMockData bool
}

func main() {
	_ = godotenv.Load()

	var flags globalFlags

	root := &cobra.Command{
		Use:           "mealflow",
		Short:         "campus card transaction ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().Float64Var(&flags.tickRate, "tick-rate", 2, "background refresh rate in Hz")
	root.PersistentFlags().Float64Var(&flags.frameRate, "frame-rate", 30, "terminal UI render rate in Hz (stored in the settings; the terminal UI does not read it)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "override the resolved data directory")
	root.PersistentFlags().BoolVar(&flags.dbInMemory, "db-in-mem", false, "use an in-memory store instead of the on-disk database")
	root.PersistentFlags().StringVar(&flags.account, "account", "", "campus card account identifier")
	root.PersistentFlags().StringVar(&flags.hallticket, "hallticket", "", "session hallticket/cookie value")
	root.PersistentFlags().BoolVar(&flags.useMockData, "use-mock-data", false, "fetch from the deterministic mock client instead of the real remote")

	root.AddCommand(newClearDBCommand(&flags))
	root.AddCommand(newWebCommand(&flags))
	root.AddCommand(newExportCSVCommand(&flags))

	if err := root.Execute(); err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Code == apperrors.CodeValidation {
			fmt.Fprintln(os.Stderr, appErr.Message)
			os.Exit(exitUsage)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}

// resolved bundles everything every subcommand needs after flag parsing:
// the settings, the store handle, the credential store, the effective
// credential, and a logger, all built exactly once (Design Notes'
// "resolve the effective credential once at process start").
type resolved struct {
	cfg       config.Settings
	handle    *store.Handle
	credStore *credentials.Store
	cred      credentials.Credential
	logger    zerolog.Logger
}

func resolve(flags globalFlags) (*resolved, error) {
	cfg := config.Default()
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	cfg.DBInMemory = flags.dbInMemory
	cfg.UseMockData = flags.useMockData
	cfg.TickRate = flags.tickRate
	cfg.FrameRate = flags.frameRate

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStore, "ensure data directory", err)
	}

	logger := logging.New(logging.Config{Level: os.Getenv("XMF_LOG_LEVEL"), Format: "console"})

	credStore := credentials.NewStore(cfg.CredentialsPath())
	cred, err := credentials.Resolve(credentials.Flags{Account: flags.account, Hallticket: flags.hallticket}, credStore)
	if err != nil {
		return nil, err
	}

	handle, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	return &resolved{cfg: cfg, handle: handle, credStore: credStore, cred: cred, logger: logger}, nil
}

func buildRemoteClient(r *resolved) remote.Client {
	if r.cfg.UseMockData {
		return remote.NewMockClient()
	}
	endpoint := os.Getenv("XMF_REMOTE_ENDPOINT")
	if endpoint == "" {
		endpoint = remote.DefaultEndpoint
	}
	return remote.NewHTTPClient(endpoint, r.cred.Cookie, r.logger)
}

func runTUI(ctx context.Context, flags globalFlags) error {
	r, err := resolve(flags)
	if err != nil {
		return err
	}
	defer r.handle.Close()

	m := metrics.New(nil)
	coordinator := fetch.New(r.handle, buildRemoteClient(r), m, r.logger)

	return tui.Run(r.handle, coordinator, r.cred, r.cfg.TickRate, r.logger)
}

func newClearDBCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-db",
		Short: "truncate the transaction store",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolve(*flags)
			if err != nil {
				return err
			}
			defer r.handle.Close()
			return r.handle.Clear(cmd.Context())
		},
	}
}

func newWebCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "start the local HTTP API and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolve(*flags)
			if err != nil {
				return err
			}
			defer r.handle.Close()

			m := metrics.New(nil)
			coordinator := fetch.New(r.handle, buildRemoteClient(r), m, r.logger)
			srv := httpserver.New(r.cfg, r.handle, r.credStore, coordinator, m, r.logger, r.cred)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-sigCtx.Done():
				r.logger.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ServerTimeout.ShutdownGrace)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
}

func newExportCSVCommand(flags *globalFlags) *cobra.Command {
	var (
		output    string
		merchant  string
		minAmount float64
		maxAmount float64
		timeStart string
		timeEnd   string
		hasMin    bool
		hasMax    bool
	)

	cmd := &cobra.Command{
		Use:   "export-csv",
		Short: "export stored transactions to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolve(*flags)
			if err != nil {
				return err
			}
			defer r.handle.Close()

			filter := query.FilterSpec{Merchant: merchant, TimeStart: timeStart, TimeEnd: timeEnd}
			if hasMin {
				filter.AmountMin = &minAmount
			}
			if hasMax {
				filter.AmountMax = &maxAmount
			}

			rows, err := r.handle.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = r.cfg.DefaultExportPath()
			}

			n, err := export.WriteFile(path, export.FormatCSV, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "destination file path (default: <data-dir>/transactions_export.csv)")
	cmd.Flags().StringVar(&merchant, "merchant", "", "filter by merchant substring")
	cmd.Flags().Float64Var(&minAmount, "min-amount", 0, "filter by minimum spend magnitude")
	cmd.Flags().Float64Var(&maxAmount, "max-amount", 0, "filter by maximum spend magnitude")
	cmd.Flags().StringVar(&timeStart, "time-start", "", "inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&timeEnd, "time-end", "", "exclusive end date (YYYY-MM-DD)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasMin = cmd.Flags().Changed("min-amount")
		hasMax = cmd.Flags().Changed("max-amount")
	}

	return cmd
}
