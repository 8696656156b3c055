package sql

import (
	"context"
	"log/slog"

	"github.com/syssam/strata/dialect"
)

// DebugDriver is a dialect.Driver logging every statement before it runs.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
	level  slog.Level
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger. Defaults to slog.Default.
func DebugWithLogger(l *slog.Logger) DebugOption {
	return func(d *DebugDriver) { d.logger = l }
}

// DebugWithLevel sets the level statements are logged at. Defaults to
// slog.LevelInfo.
func DebugWithLevel(level slog.Level) DebugOption {
	return func(d *DebugDriver) { d.level = level }
}

// NewDebugDriver wraps drv with statement logging.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{Driver: drv, logger: slog.Default(), level: slog.LevelInfo}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DebugDriver) log(ctx context.Context, msg string, attrs ...any) {
	d.logger.Log(ctx, d.level, msg, attrs...)
}

// Query implements the dialect.ExecQuerier interface.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log(ctx, "query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec implements the dialect.ExecQuerier interface.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log(ctx, "exec", "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction logging its statements.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.log(ctx, "begin")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, drv: d}, nil
}

// DebugTx is a dialect.Tx logging every statement before it runs.
type DebugTx struct {
	dialect.Tx
	drv *DebugDriver
}

// Query implements the dialect.ExecQuerier interface.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.drv.log(ctx, "query", "sql", query, "args", args, "tx", true)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec implements the dialect.ExecQuerier interface.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.drv.log(ctx, "exec", "sql", query, "args", args, "tx", true)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit implements the dialect.Tx interface.
func (tx *DebugTx) Commit() error {
	tx.drv.log(context.Background(), "commit")
	return tx.Tx.Commit()
}

// Rollback implements the dialect.Tx interface.
func (tx *DebugTx) Rollback() error {
	tx.drv.log(context.Background(), "rollback")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
