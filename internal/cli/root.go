// Package cli implements ledgerctl, the operator command line for the ledger.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/transfa/ledger-service/internal/app"
	"github.com/transfa/ledger-service/internal/config"
	"github.com/transfa/ledger-service/internal/identifier"
	"github.com/transfa/ledger-service/internal/store"
	"github.com/transfa/ledger-service/pkg/rabbitmq"
)

// runtime opens the database and service on first use so that commands such
// as --help never need a reachable database.
type runtime struct {
	envDir     string
	withEvents bool

	cfg    config.Config
	pool   *pgxpool.Pool
	repo   *store.PostgresRepository
	svc    *app.Service
	events rabbitmq.Publisher
}

func (r *runtime) loadConfig() error {
	cfg, err := config.LoadConfig(r.envDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	r.cfg = cfg
	return nil
}

func (r *runtime) open(ctx context.Context) error {
	if r.svc != nil {
		return nil
	}
	if err := r.loadConfig(); err != nil {
		return err
	}

	pool, err := store.OpenPool(ctx, r.cfg.DatabaseURL, 4, 0)
	if err != nil {
		return err
	}
	r.pool = pool
	r.repo = store.NewPostgresRepository(pool)

	r.events = &rabbitmq.EventProducerFallback{}
	if r.withEvents && r.cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(r.cfg.RabbitMQURL)
		if err != nil {
			pterm.Warning.Printfln("RabbitMQ unavailable, events will not be published: %v", err)
		} else {
			r.events = producer
		}
	}

	ids := identifier.NewGenerator(
		identifier.WithChecker(r.repo),
		identifier.WithMaxAttempts(r.cfg.IdentifierMaxAttempts),
	)
	r.svc = app.NewService(r.repo, ids, r.events, r.cfg.LedgerEventsExchange)
	return nil
}

func (r *runtime) reconciler() *app.Reconciler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return app.NewReconciler(r.repo, r.events, r.cfg.LedgerEventsExchange, logger)
}

func (r *runtime) close() {
	if r.events != nil {
		r.events.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

// NewRootCmd builds the ledgerctl command tree.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "ledgerctl operates the ledger database",
		Long:          `ledgerctl applies schema migrations, opens and manages accounts, inspects history and runs balance reconciliation.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&rt.envDir, "env-dir", ".", "directory holding an optional .env file")
	rootCmd.PersistentFlags().BoolVar(&rt.withEvents, "publish-events", false, "publish ledger events to RabbitMQ")

	rootCmd.AddCommand(newMigrateCmd(rt))
	rootCmd.AddCommand(newAccountsCmd(rt))
	rootCmd.AddCommand(newHistoryCmd(rt))
	rootCmd.AddCommand(newReconcileCmd(rt))

	return rootCmd
}

// Execute runs ledgerctl and exits non-zero on failure.
func Execute() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	if err := NewRootCmd().Execute(); err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(1)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return strings.TrimSpace(string(runes))
}
