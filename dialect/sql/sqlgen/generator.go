package sqlgen

import (
	"strconv"
	"time"

	"github.com/syssam/strata/schema"
)

// Statement is a compiled SQL statement.
type Statement struct {
	SQL  string
	Args []any
	// Aliases maps minified column aliases back to "alias.attr" paths.
	Aliases map[string]string
}

// Options configures compilation.
type Options struct {
	// Bind replaces values with placeholders and collects them in Args.
	Bind bool
	// Location is the time zone time literals are written in. Defaults to
	// UTC.
	Location *time.Location
	// MinifyAliases shortens include column aliases to _0, _1, ...
	MinifyAliases bool
}

// Option configures a Generator.
type Option func(*Options)

// WithBind enables bind mode.
func WithBind() Option {
	return func(o *Options) { o.Bind = true }
}

// WithLocation sets the time zone of time literals.
func WithLocation(loc *time.Location) Option {
	return func(o *Options) { o.Location = loc }
}

// WithMinifyAliases enables short include column aliases.
func WithMinifyAliases() Option {
	return func(o *Options) { o.MinifyAliases = true }
}

// Generator compiles queries and mutations over the entities of a graph.
// A Generator holds no mutable state and is safe for concurrent use.
type Generator struct {
	Dialect Dialect
	Graph   *schema.Graph
	Options Options
}

// New returns a Generator for d and g.
func New(d Dialect, g *schema.Graph, opts ...Option) *Generator {
	gen := &Generator{Dialect: d, Graph: g}
	for _, opt := range opts {
		opt(&gen.Options)
	}
	return gen
}

// state is the per-statement compilation state.
type state struct {
	*compiler
	binder *Binder
	minify bool
	// aliases maps shortened column aliases to their full names.
	aliases map[string]string
}

func (g *Generator) newState() *state {
	loc := g.Options.Location
	if loc == nil {
		loc = time.UTC
	}
	st := &state{
		compiler: &compiler{d: g.Dialect, graph: g.Graph},
		minify:   g.Options.MinifyAliases,
	}
	st.v = &valuer{d: g.Dialect, loc: loc}
	if g.Options.Bind {
		st.binder = NewBinder(g.Dialect)
		st.v.b = st.binder
	}
	return st
}

// finish terminates the statement and resolves bind markers.
func (st *state) finish(sql string) Statement {
	sql += ";"
	stmt := Statement{SQL: sql, Aliases: st.aliases}
	if st.binder != nil {
		stmt.SQL, stmt.Args = st.binder.Finish(sql)
	}
	return stmt
}

// columnAlias returns the alias of an include column, shortened when
// minifying or when name exceeds the identifier limit of the dialect.
func (st *state) columnAlias(name string) string {
	max := st.d.Capabilities().MaxIdentifier
	if !st.minify && (max == 0 || len(name) <= max) {
		return name
	}
	if st.aliases == nil {
		st.aliases = make(map[string]string)
	}
	short := "_" + strconv.Itoa(len(st.aliases))
	st.aliases[short] = name
	return short
}

// quote is shorthand for the dialect identifier quoting.
func (st *state) quote(name string) string {
	return st.d.QuoteIdentifier(name)
}

// tableAs renders "table" AS "alias", dropping AS where the dialect
// rejects it before table aliases.
func (st *state) tableAs(e *schema.Entity, alias string) string {
	if st.d.Capabilities().TableAliasAs {
		return quoteTable(st.d, e) + " AS " + st.quote(alias)
	}
	return quoteTable(st.d, e) + " " + st.quote(alias)
}

// WhereClause compiles a condition over e with unqualified columns, as
// used by UPDATE and DELETE. The SQL has no terminating semicolon.
func (g *Generator) WhereClause(e *schema.Entity, w Expr) (Statement, error) {
	st := g.newState()
	sql, err := st.where(scope{entity: e}, w)
	if err != nil {
		return Statement{}, err
	}
	if st.binder == nil {
		return Statement{SQL: sql}, nil
	}
	sql, args := st.binder.Finish(sql)
	return Statement{SQL: sql, Args: args}, nil
}
