package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/schema"
)

// config holds the configuration of the client.
type config struct {
	graph     *schema.Graph
	driver    dialect.Driver
	dialect   sqlgen.Dialect
	logger    *slog.Logger
	cache     strata.Cache
	ttl       time.Duration
	validator Validator
	hooks     map[string][]Hooks
	loc       *time.Location
	now       func() time.Time
}

// Option function to configure the client.
type Option func(*config)

// WithLogger sets the logger compiled statements are logged to, at debug
// level. Nothing is logged by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithCache caches the rows of find queries in c for ttl. Writes through
// the client clear the cached queries of the written table and of the
// tables associated with it.
func WithCache(c strata.Cache, ttl time.Duration) Option {
	return func(cfg *config) {
		cfg.cache = c
		cfg.ttl = ttl
	}
}

// WithValidator replaces the FieldValidator run before every write.
// A nil validator disables validation.
func WithValidator(v Validator) Option {
	return func(c *config) { c.validator = v }
}

// WithHooks registers hooks on the named entity.
func WithHooks(entity string, hooks ...Hooks) Option {
	return func(c *config) {
		if c.hooks == nil {
			c.hooks = make(map[string][]Hooks)
		}
		c.hooks[entity] = append(c.hooks[entity], hooks...)
	}
}

// WithLocation sets the time zone of timestamps read without one and of
// the timestamps the client maintains. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.loc = loc }
}

// WithDialect overrides the dialect resolved from the driver name.
func WithDialect(d sqlgen.Dialect) Option {
	return func(c *config) { c.dialect = d }
}

// WithClock sets the function maintained timestamps are read from.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// Client runs the statements compiled for the entities of a graph. It is
// safe for concurrent use.
type Client struct {
	config
	conn dialect.ExecQuerier
	gen  *sqlgen.Generator
	// inTx is set on transactional clients, which bypass the cache.
	inTx   bool
	flight *singleflight.Group
	mu     *sync.Mutex
	models map[string]*Model
}

// New creates a new client configured with the given options.
func New(g *schema.Graph, drv dialect.Driver, opts ...Option) (*Client, error) {
	if g == nil {
		return nil, errors.New("strata: missing graph")
	}
	if drv == nil {
		return nil, errors.New("strata: missing driver")
	}
	cfg := config{
		graph:     g,
		driver:    drv,
		logger:    slog.New(slog.DiscardHandler),
		validator: FieldValidator{},
		loc:       time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dialect == nil {
		d, err := sqlgen.ForName(drv.Dialect())
		if err != nil {
			return nil, err
		}
		cfg.dialect = d
	}
	return &Client{
		config: cfg,
		conn:   drv,
		gen:    sqlgen.New(cfg.dialect, g, sqlgen.WithBind(), sqlgen.WithLocation(cfg.loc)),
		flight: &singleflight.Group{},
		mu:     &sync.Mutex{},
		models: make(map[string]*Model),
	}, nil
}

// Open opens a database connection and returns the client.
func Open(g *schema.Graph, driverName, dataSourceName string, opts ...Option) (*Client, error) {
	drv, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	c, err := New(g, drv, opts...)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	return c, nil
}

// Model returns the model of the named entity. The entity is checked
// against the dialect on first use.
func (c *Client) Model(name string) (*Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.models[name]; ok {
		return m, nil
	}
	e, ok := c.graph.Entity(name)
	if !ok {
		return nil, strata.NewNotFoundError("entity " + name)
	}
	if err := sqlgen.ValidateEntity(c.dialect, e); err != nil {
		return nil, err
	}
	m := &Model{client: c, entity: e}
	c.models[name] = m
	return m, nil
}

// MustModel is like Model but panics on error.
func (c *Client) MustModel(name string) *Model {
	m, err := c.Model(name)
	if err != nil {
		panic(err)
	}
	return m
}

// model returns the model of an entity reached through an association.
func (c *Client) model(e *schema.Entity) *Model {
	return &Model{client: c, entity: e}
}

// Dialect returns the dialect statements are compiled for.
func (c *Client) Dialect() sqlgen.Dialect {
	return c.dialect
}

// Generator returns the statement generator of the client.
func (c *Client) Generator() *sqlgen.Generator {
	return c.gen
}

// Close closes the database connection and prevents new queries from starting.
func (c *Client) Close() error {
	return c.driver.Close()
}

// Tx is a transactional client.
type Tx struct {
	*Client
	tx dialect.Tx
}

// Tx returns a new transactional client.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	if c.inTx {
		return nil, errors.New("strata: cannot start a transaction within a transaction")
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("strata: starting a transaction: %w", err)
	}
	cc := *c
	cc.conn = tx
	cc.inTx = true
	cc.mu = &sync.Mutex{}
	cc.models = make(map[string]*Model)
	return &Tx{Client: &cc, tx: tx}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

// WithTx runs fn in a transaction. The transaction is rolled back when fn
// returns an error or panics, and committed otherwise.
func (c *Client) WithTx(ctx context.Context, fn func(*Client) error) (err error) {
	tx, err := c.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx.Client); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("strata: committing transaction: %w", err)
	}
	return nil
}

// record is one result row keyed by output column name.
type record = map[string]any

// rows runs a query and reads every row. Minified column aliases are
// resolved to their full names.
func (c *Client) rows(ctx context.Context, stmt sqlgen.Statement) ([]record, error) {
	c.logger.DebugContext(ctx, "query", "sql", stmt.SQL, "args", len(stmt.Args))
	rows := &sql.Rows{}
	if err := c.conn.Query(ctx, stmt.SQL, stmt.Args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col
		if full, ok := stmt.Aliases[col]; ok {
			names[i] = full
		}
	}
	var out []record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(record, len(cols))
		for i, n := range names {
			r[n] = vals[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// exec runs a statement that returns no rows.
func (c *Client) exec(ctx context.Context, stmt sqlgen.Statement) (sql.Result, error) {
	c.logger.DebugContext(ctx, "exec", "sql", stmt.SQL, "args", len(stmt.Args))
	var res sql.Result
	if err := c.conn.Exec(ctx, stmt.SQL, stmt.Args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// returning reports whether mutations can hand back the written rows.
func (c *Client) returning() bool {
	return c.dialect.Capabilities().Returning != dialect.ReturningNone
}

func (c *Client) hooksOf(e *schema.Entity) []Hooks {
	return c.hooks[e.Name]
}
