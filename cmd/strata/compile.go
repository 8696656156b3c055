package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/internal/cli"
	"github.com/syssam/strata/schema/load"
)

var (
	compileEntity string
	compileCount  bool
	compileWatch  bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <query.yaml>",
	Short: "Compile a query spec to SQL",
	Long: `Compile a YAML query spec over the models into a complete SELECT
statement. Use "-" to read the spec from stdin.`,
	Example: `  # Compile against PostgreSQL
  strata compile --entity Author query.yaml

  # Compile for MySQL with bound arguments
  strata compile --dialect mysql --bind --entity Author query.yaml

  # Recompile whenever the query or the models change
  strata compile --entity Author --watch query.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run := func() error {
			g, err := loadGraph()
			if err != nil {
				return err
			}
			gen, err := newGenerator(g)
			if err != nil {
				return err
			}
			spec, err := readSpec(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return compileQuery(cmd.OutOrStdout(), gen, compileEntity, spec, compileCount)
		}
		if !compileWatch {
			return run()
		}
		if args[0] == "-" {
			return cli.GeneralError("--watch cannot read the query from stdin", nil)
		}
		return watch(cmd.Context(), []string{args[0], cfg.Models}, func() {
			if err := run(); err != nil {
				logger.Error("compile failed", "err", err)
			}
		})
	},
}

func init() {
	flags := compileCmd.Flags()
	flags.StringVarP(&compileEntity, "entity", "e", "", "entity the query selects from")
	flags.BoolVar(&compileCount, "count", false, "compile a COUNT statement")
	flags.BoolVarP(&compileWatch, "watch", "w", false, "recompile when the query or the models change")
	flags.Bool("bind", false, "bind values as placeholders")
	flags.Bool("minify-aliases", false, "shorten include column aliases")
	flags.String("location", "", "time zone of time literals")
	_ = compileCmd.MarkFlagRequired("entity")
}

// readSpec reads a query spec from path, or from stdin when path is "-".
func readSpec(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, cli.GeneralError("reading query spec", err)
	}
	return data, nil
}

// compileQuery compiles spec over the named entity and writes the result.
func compileQuery(w io.Writer, gen *sqlgen.Generator, entity string, spec []byte, count bool) error {
	e, ok := gen.Graph.Entity(load.EntityName(entity))
	if !ok {
		return cli.CompileError("compiling query", fmt.Errorf("unknown entity %q", entity))
	}
	q, err := sqlgen.ParseQuerySpec(spec)
	if err != nil {
		return cli.CompileError("parsing query spec", err)
	}
	var st sqlgen.Statement
	if count {
		st, err = gen.Count(e, q)
	} else {
		st, err = gen.Select(e, q)
	}
	if err != nil {
		return cli.CompileError("compiling query", err)
	}
	return writeStatement(w, st)
}
