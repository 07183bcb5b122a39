package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"pricetracker-backend/internal/components/chrono"
	"pricetracker-backend/internal/scraper/discovery"
	"pricetracker-backend/internal/scraper/fetch"
	"pricetracker-backend/internal/scraper/stores"
	"pricetracker-backend/lib/configutil"
	"pricetracker-backend/lib/pricestore"
	"pricetracker-backend/lib/pricestore/db"
	"pricetracker-backend/lib/restyutil"
	"pricetracker-backend/lib/telemetry"
	"pricetracker-backend/lib/timezone"
	"pricetracker-backend/services/tracker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpDir    string
)

type environment struct {
	config    Config
	db        *sql.DB
	service   *tracker.Service
	telemetry telemetry.Telemetry
}

// env is populated before any subcommand runs.
var env environment

var rootCmd = &cobra.Command{
	Use:   "pricetracker",
	Short: "pricetracker tracks product prices across retailers and compares equivalent listings.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		env, err = setup(cmd.Context())
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		env.close(context.Background())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "Path to the config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-dir", "", "Write every request/response made to retailers into this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (environment, error) {
	telemetry.InitSlog(verbose)

	config, err := configutil.ReadConfig[Config](configPath)
	if os.IsNotExist(err) {
		slog.Warn("no config found, using defaults", "path", configPath)
		config.SetDefaults()
		err = config.Validate()
	}
	if err != nil {
		return environment{}, fmt.Errorf("read config: %w", err)
	}

	tel, err := setupTelemetry(ctx, config.Telemetry)
	if err != nil {
		return environment{}, fmt.Errorf("setup telemetry: %w", err)
	}

	database, err := config.Database.OpenDB(db.Schema)
	if err != nil {
		return environment{}, fmt.Errorf("open database: %w", err)
	}

	fetchOpts := fetch.Options{
		Timeout:           secondsOf(config.Fetch.TimeoutSeconds),
		HumanDelay:        config.humanDelay(),
		RequestsPerSecond: config.Fetch.RequestsPerSecond,
		Clock:             chrono.NewStandardTime(timezone.Location),
	}
	if dumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(dumpDir)
		if err != nil {
			database.Close()
			return environment{}, fmt.Errorf("dump dir: %w", err)
		}
		fetchOpts.Dump = output
	}
	client := fetch.NewClient(fetchOpts)
	registry := stores.NewRegistry()
	discoverer := discovery.NewDiscoverer(client, registry, discovery.Options{
		Workers: config.Discovery.Workers,
	})

	service, err := tracker.NewService(
		pricestore.NewStore(database, nil),
		client,
		registry,
		discoverer,
		config.serviceOptions(),
	)
	if err != nil {
		database.Close()
		return environment{}, err
	}

	return environment{
		config:    config,
		db:        database,
		service:   service,
		telemetry: tel,
	}, nil
}

func setupTelemetry(ctx context.Context, config telemetry.Config) (telemetry.Telemetry, error) {
	if config.Configured() {
		return telemetry.Setup(ctx, "pricetracker", config)
	}
	tel, err := telemetry.SetupFromEnv(ctx, "pricetracker")
	if os.IsNotExist(err) {
		return telemetry.Telemetry{}, nil
	}
	return tel, err
}

func (e environment) close(ctx context.Context) {
	if e.service != nil {
		e.service.StopBackgroundChecker()
	}
	if e.db != nil {
		e.db.Close()
	}
	err := e.telemetry.Shutdown(ctx)
	if err != nil {
		slog.Warn("shutdown telemetry", "err", err)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
