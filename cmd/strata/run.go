package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/internal/cli"
	"github.com/syssam/strata/model"
	"github.com/syssam/strata/schema/load"
)

var (
	runEntity string
	runCount  bool
	runStats  bool
)

var runCmd = &cobra.Command{
	Use:   "run <query.yaml>",
	Short: "Run a query spec against a database",
	Long: `Run a YAML query spec against the configured database and print the
matching instances, with their included associations, as JSON.`,
	Example: `  # Find authors with their books
  strata run --dsn postgres://localhost/library --entity Author query.yaml

  # Count matching rows on SQLite
  strata run --dialect sqlite --dsn file:library.db --entity Book --count query.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph()
		if err != nil {
			return err
		}
		spec, err := readSpec(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		loc, err := cfg.Compile.TimeLocation()
		if err != nil {
			return cli.ConfigError("selecting time zone", err)
		}
		drv, err := openDriver(cmd.Context())
		if err != nil {
			return err
		}
		client, err := model.New(g, drv, model.WithLogger(logger), model.WithLocation(loc))
		if err != nil {
			_ = drv.Close()
			return cli.ConfigError("creating client", err)
		}
		defer client.Close()

		err = runQuery(cmd.Context(), cmd.OutOrStdout(), client, runEntity, spec, runCount)
		if runStats {
			fmt.Fprintln(cmd.ErrOrStderr(), drv.Stats().Snapshot())
		}
		return err
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringVarP(&runEntity, "entity", "e", "", "entity the query selects from")
	flags.BoolVar(&runCount, "count", false, "print the number of matching rows")
	flags.BoolVar(&runStats, "stats", false, "print statement statistics to stderr")
	flags.String("location", "", "time zone of time values")
	flags.Duration("slow-threshold", 0, "report statements slower than this")
	_ = runCmd.MarkFlagRequired("entity")
}

// runQuery executes spec over the named entity and writes the instances,
// or their count, to w.
func runQuery(ctx context.Context, w io.Writer, client *model.Client, entity string, spec []byte, count bool) error {
	m, err := client.Model(load.EntityName(entity))
	if err != nil {
		return cli.CompileError("selecting entity", err)
	}
	q, err := sqlgen.ParseQuerySpec(spec)
	if err != nil {
		return cli.CompileError("parsing query spec", err)
	}
	if count {
		n, err := m.Count(ctx, q)
		if err != nil {
			return cli.GeneralError("counting", err)
		}
		_, err = fmt.Fprintln(w, n)
		return err
	}
	insts, err := m.FindAll(ctx, q)
	if err != nil {
		return cli.GeneralError("running query", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(insts)
}
