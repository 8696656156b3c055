package main

import (
	"context"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/internal/cli"
)

var (
	ddlDrop  bool
	ddlApply bool
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the CREATE TABLE statements of the models",
	Example: `  # Print the tables for SQLite
  strata ddl --dialect sqlite

  # Recreate the tables of a database
  strata ddl --drop --apply --dsn postgres://localhost/library`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph()
		if err != nil {
			return err
		}
		gen, err := newGenerator(g)
		if err != nil {
			return err
		}
		stmts, err := ddlStatements(gen, ddlDrop)
		if err != nil {
			return err
		}
		if !ddlApply {
			return writeStatements(cmd.OutOrStdout(), stmts)
		}
		drv, err := openDriver(cmd.Context())
		if err != nil {
			return err
		}
		defer drv.Close()
		if err := applyStatements(cmd.Context(), drv, stmts); err != nil {
			return err
		}
		logger.Info("schema applied", "statements", len(stmts), "duration", drv.Stats().Snapshot().Duration)
		return nil
	},
}

func init() {
	ddlCmd.Flags().BoolVar(&ddlDrop, "drop", false, "drop the tables before creating them")
	ddlCmd.Flags().BoolVar(&ddlApply, "apply", false, "execute the statements instead of printing them")
}

// ddlStatements returns the statements creating every entity of the
// graph, preceded by the drops in reverse order when drop is set.
func ddlStatements(gen *sqlgen.Generator, drop bool) ([]sqlgen.Statement, error) {
	entities := gen.Graph.Entities()
	var stmts []sqlgen.Statement
	if drop {
		for _, e := range slices.Backward(entities) {
			stmts = append(stmts, gen.DropTable(e)...)
		}
	}
	for _, e := range entities {
		created, err := gen.CreateTable(e)
		if err != nil {
			return nil, cli.CompileError("compiling table "+e.Name, err)
		}
		stmts = append(stmts, created...)
	}
	return stmts, nil
}

func writeStatements(w io.Writer, stmts []sqlgen.Statement) error {
	for _, st := range stmts {
		if err := writeStatement(w, st); err != nil {
			return err
		}
	}
	return nil
}

// applyStatements executes stmts in one transaction.
func applyStatements(ctx context.Context, drv dialect.Driver, stmts []sqlgen.Statement) (err error) {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return cli.DBConnectError("starting transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, st := range stmts {
		if err := tx.Exec(ctx, st.SQL, st.Args, nil); err != nil {
			return cli.GeneralError("executing "+st.SQL, err)
		}
	}
	return tx.Commit()
}
