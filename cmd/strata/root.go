package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/internal/cli"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/load"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     = slog.New(slog.DiscardHandler)

	// Persistent flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Compile entity queries to SQL",
	Long: `strata - entity query compiler

Strata compiles queries over YAML model definitions into complete SQL
statements for PostgreSQL, MySQL, MariaDB, SQLite, MSSQL and Oracle.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile, cmd.Flags())
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}
		logger, err = cfg.Log.Logger(cmd.ErrOrStderr())
		if err != nil {
			return cli.ConfigError("configuring logger", err)
		}
		if configPath != "" {
			logger.Debug("using config file", "path", configPath)
		}
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: auto-discover strata.yaml)")
	flags.String("dialect", "", "SQL dialect: postgres, mysql, mariadb, sqlite, mssql or oracle")
	flags.String("models", "", "YAML model definition file")
	flags.String("dsn", "", "database connection string")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(ddlCmd)
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.ExitWithError(err)
	}
}

// loadGraph reads the configured model definitions.
func loadGraph() (*schema.Graph, error) {
	g, err := load.LoadFile(cfg.Models)
	if err != nil {
		return nil, cli.ModelsError("loading models", err)
	}
	return g, nil
}

// newGenerator returns a generator for the configured dialect.
func newGenerator(g *schema.Graph) (*sqlgen.Generator, error) {
	d, err := sqlgen.ForName(cfg.Dialect)
	if err != nil {
		return nil, cli.ConfigError("selecting dialect", err)
	}
	loc, err := cfg.Compile.TimeLocation()
	if err != nil {
		return nil, cli.ConfigError("selecting time zone", err)
	}
	opts := []sqlgen.Option{sqlgen.WithLocation(loc)}
	if cfg.Compile.Bind {
		opts = append(opts, sqlgen.WithBind())
	}
	if cfg.Compile.MinifyAliases {
		opts = append(opts, sqlgen.WithMinifyAliases())
	}
	return sqlgen.New(d, g, opts...), nil
}

// openDriver connects to the configured database. Statements are logged
// at debug level and slow ones reported at warn level.
func openDriver(ctx context.Context) (*sql.StatsDriver, error) {
	if cfg.Database.DSN == "" {
		return nil, cli.ConfigError("database.dsn is required (via --dsn, STRATA_DATABASE_DSN or strata.yaml)", nil)
	}
	drv, err := sql.Open(cfg.Dialect, cfg.Database.DSN)
	if err != nil {
		return nil, cli.DBConnectError("opening database", err)
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		_ = drv.Close()
		return nil, cli.DBConnectError("connecting to database", err)
	}
	var d dialect.Driver = sql.NewDebugDriver(drv, sql.DebugWithLogger(logger), sql.DebugWithLevel(slog.LevelDebug))
	return sql.NewStatsDriver(d,
		sql.WithSlowThreshold(cfg.Database.SlowThreshold),
		sql.WithSlowQueryLog(logger),
	), nil
}

// writeStatement prints a statement followed by its bound arguments and
// minified aliases as SQL comments.
func writeStatement(w io.Writer, st sqlgen.Statement) error {
	if _, err := fmt.Fprintln(w, st.SQL); err != nil {
		return err
	}
	for i, arg := range st.Args {
		if _, err := fmt.Fprintf(w, "-- [%d] %#v\n", i+1, arg); err != nil {
			return err
		}
	}
	aliases := make([]string, 0, len(st.Aliases))
	for a := range st.Aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		if _, err := fmt.Fprintf(w, "-- %s = %s\n", a, st.Aliases[a]); err != nil {
			return err
		}
	}
	return nil
}
