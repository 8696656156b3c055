package model

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/contrib/lru"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/internal/fixture"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authorColumns = []string{"id", "name", "email", "publisher_id"}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(nil, sql.OpenDB(dialect.Postgres, db))
	require.Error(t, err)
	_, err = New(fixture.Graph(), nil)
	require.Error(t, err)
	_, err = New(fixture.Graph(), sql.OpenDB("dbase", db))
	require.Error(t, err, "unknown dialect")

	c, err := New(fixture.Graph(), sql.OpenDB(dialect.MySQL, db))
	require.NoError(t, err)
	assert.Equal(t, dialect.MySQL, c.Dialect().Name())
	m, err := c.Model("Author")
	require.NoError(t, err)
	assert.Same(t, m, c.MustModel("Author"))
	_, err = c.Model("Review")
	assert.True(t, strata.IsNotFound(err))
}

func TestCreateLastInsertID(t *testing.T) {
	c, mock := newMockClient(t, dialect.MySQL)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `authors` (`name`) VALUES (?);")).
		WithArgs("ada").
		WillReturnResult(sqlmock.NewResult(7, 1))

	ada, err := c.MustModel("Author").Create(context.Background(), sqlgen.Values{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, ada.State())
	assert.Equal(t, int64(7), ada.Get("id"))
	assert.Empty(t, ada.ChangedKeys())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReturning(t *testing.T) {
	c, mock := newMockClient(t, dialect.Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "authors" ("name") VALUES ($1) RETURNING *;`)).
		WithArgs("ada").
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(1), "ada", nil, nil))

	ada, err := c.MustModel("Author").Create(context.Background(), sqlgen.Values{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ada.Get("id"))
	v, ok := ada.Lookup("email")
	assert.True(t, ok, "returned columns are merged")
	assert.Nil(t, v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild(t *testing.T) {
	c, _ := newMockClient(t, dialect.Postgres)
	books := c.MustModel("Book")

	b, err := books.Build(sqlgen.Values{"title": "go"})
	require.NoError(t, err)
	assert.Equal(t, StateNew, b.State())
	assert.Equal(t, "active", b.Get("status"), "defaults are applied")
	assert.True(t, b.Changed("title"))

	_, err = books.Build(sqlgen.Values{"isbn": "x"})
	assert.True(t, strata.IsCompilationError(err))
}

func TestValidation(t *testing.T) {
	c, mock := newMockClient(t, dialect.Postgres)
	b, err := c.MustModel("Book").Build(sqlgen.Values{"pages": 10})
	require.NoError(t, err)

	err = b.Save(context.Background())
	require.Error(t, err)
	var verr *strata.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Book", verr.Entity)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "author_id")
	assert.NotContains(t, verr.Fields, "status")
	assert.NotContains(t, verr.Fields, "id")
	assert.Equal(t, StateNew, b.State())
	require.NoError(t, mock.ExpectationsWereMet(), "nothing is written")

	c, _ = newMockClient(t, dialect.Postgres, WithValidator(ValidatorFunc(func(context.Context, *Instance) map[string][]string {
		return map[string][]string{"name": {"is reserved"}}
	})))
	_, err = c.MustModel("Publisher").Create(context.Background(), sqlgen.Values{"name": "root"})
	assert.True(t, strata.IsValidationError(err))
	assert.Contains(t, err.Error(), "name: is reserved")
}

func TestChangedNumbers(t *testing.T) {
	c, mock := newMockClient(t, dialect.Postgres)
	b := c.MustModel("Book").fromRow(map[string]any{
		"id": int64(1), "title": "go", "status": "active", "pages": int64(3), "author_id": int64(7),
	})
	tests := []struct {
		name    string
		v       any
		changed bool
	}{
		{name: "int", v: 3},
		{name: "int32", v: int32(3)},
		{name: "uint8", v: uint8(3)},
		{name: "integral float", v: 3.0},
		{name: "other int", v: 4, changed: true},
		{name: "fraction", v: 3.5, changed: true},
		{name: "string", v: "3", changed: true},
		{name: "nil", v: nil, changed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, b.Set("pages", tt.v))
			assert.Equal(t, tt.changed, b.Changed("pages"))
		})
	}

	require.NoError(t, b.Set("pages", 3))
	require.NoError(t, b.Save(context.Background()), "numerically equal values write nothing")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectedCreate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	tests := []struct {
		name   string
		values sqlgen.Values
		hooks  Hooks
	}{
		{name: "validation", values: sqlgen.Values{"meta": nil}},
		{name: "hook", values: sqlgen.Values{"title": "draft"}, hooks: &recorder{fail: "before create"}},
		{name: "explicit nil", values: sqlgen.Values{"title": "draft", "created_at": nil}, hooks: &recorder{fail: "before create"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithClock(func() time.Time { return now })}
			if tt.hooks != nil {
				opts = append(opts, WithHooks("Post", tt.hooks))
			}
			c, mock := newMockClient(t, dialect.Postgres, opts...)
			p, err := c.MustModel("Post").Build(tt.values)
			require.NoError(t, err)
			require.Error(t, p.Save(ctx))
			assert.Equal(t, StateNew, p.State())
			for _, ts := range []string{"created_at", "updated_at"} {
				_, set := tt.values[ts]
				v, ok := p.Lookup(ts)
				assert.Equal(t, set, ok, ts)
				assert.Nil(t, v, ts)
			}
			require.NoError(t, mock.ExpectationsWereMet(), "nothing is written")
		})
	}
}

func TestStateErrors(t *testing.T) {
	c, _ := newMockClient(t, dialect.Postgres)
	ctx := context.Background()
	p, err := c.MustModel("Post").Build(sqlgen.Values{"title": "draft"})
	require.NoError(t, err)

	for name, fn := range map[string]func() error{
		"destroy":   func() error { return p.Destroy(ctx, false) },
		"restore":   func() error { return p.Restore(ctx) },
		"reload":    func() error { return p.Reload(ctx) },
		"increment": func() error { return p.Increment(ctx, "title", 1) },
	} {
		t.Run(name, func(t *testing.T) {
			err := fn()
			require.Error(t, err)
			assert.True(t, strata.IsStateError(err))
			assert.Contains(t, err.Error(), "state new")
		})
	}

	_, err = c.MustModel("Author").Restore(ctx, nil)
	assert.True(t, strata.IsStateError(err), "restore of a non-paranoid entity")
}

type recorder struct {
	NopHooks
	calls []string
	fail  string
}

func (r *recorder) record(name string) error {
	r.calls = append(r.calls, name)
	if name == r.fail {
		return errors.New("rejected")
	}
	return nil
}

func (r *recorder) BeforeCreate(context.Context, *Instance) error  { return r.record("before create") }
func (r *recorder) AfterCreate(context.Context, *Instance) error   { return r.record("after create") }
func (r *recorder) BeforeUpdate(context.Context, *Instance) error  { return r.record("before update") }
func (r *recorder) AfterUpdate(context.Context, *Instance) error   { return r.record("after update") }
func (r *recorder) BeforeDestroy(context.Context, *Instance) error { return r.record("before destroy") }
func (r *recorder) AfterDestroy(context.Context, *Instance) error  { return r.record("after destroy") }

func TestHooks(t *testing.T) {
	ctx := context.Background()
	t.Run("Lifecycle", func(t *testing.T) {
		rec := &recorder{}
		c, mock := newMockClient(t, dialect.MySQL, WithHooks("Author", rec))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `authors`")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `authors` SET `name`=? WHERE `id` = ?;")).
			WithArgs("grace", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `authors` WHERE `id` = ?;")).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		a, err := c.MustModel("Author").Create(ctx, sqlgen.Values{"name": "ada"})
		require.NoError(t, err)
		require.NoError(t, a.Save(ctx), "saving an unchanged instance writes nothing")
		require.NoError(t, a.Set("name", "grace"))
		assert.Equal(t, "ada", a.Previous("name"))
		require.NoError(t, a.Save(ctx))
		assert.Equal(t, "grace", a.Previous("name"))
		require.NoError(t, a.Destroy(ctx, false))
		assert.Equal(t, StateDestroyed, a.State())

		assert.Equal(t, []string{
			"before create", "after create",
			"before update",
			"before update", "after update",
			"before destroy", "after destroy",
		}, rec.calls)
		require.NoError(t, mock.ExpectationsWereMet())

		err = a.Save(ctx)
		assert.True(t, strata.IsStateError(err))
	})
	t.Run("Abort", func(t *testing.T) {
		rec := &recorder{fail: "before create"}
		c, mock := newMockClient(t, dialect.MySQL, WithHooks("Author", rec))
		a, err := c.MustModel("Author").Build(sqlgen.Values{"name": "ada"})
		require.NoError(t, err)
		err = a.Save(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "before create hook of Author")
		assert.Equal(t, StateNew, a.State())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestParanoidInstance(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c, mock := newMockClient(t, dialect.Postgres, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	p := c.MustModel("Post").fromRow(map[string]any{
		"id": int64(3), "title": "hello", "meta": nil,
		"created_at": now, "updated_at": now, "deleted_at": nil,
	})

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "deleted_at"=$1 WHERE "id" = $2;`)).
		WithArgs(sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Destroy(ctx, false))
	assert.Equal(t, StateSoftDeleted, p.State())
	assert.Equal(t, now, p.Get("deleted_at"))

	err := p.Destroy(ctx, false)
	assert.True(t, strata.IsStateError(err), "soft-deleted instances need force")

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "deleted_at"=$1 WHERE "id" = $2;`)).
		WithArgs(nil, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Restore(ctx))
	assert.Equal(t, StatePersisted, p.State())
	assert.Nil(t, p.Get("deleted_at"))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts" WHERE "id" = $1;`)).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Destroy(ctx, true))
	assert.Equal(t, StateDestroyed, p.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkWrites(t *testing.T) {
	ctx := context.Background()
	c, mock := newMockClient(t, dialect.Postgres)
	posts := c.MustModel("Post")

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "title"=$1,"updated_at"=$2 WHERE`)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	n, err := posts.Update(ctx, sqlgen.Values{"title": "x"}, sqlgen.Where{"title": "y"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "deleted_at"=$1 WHERE`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = posts.Destroy(ctx, sqlgen.Where{"title": "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "deleted_at"=$1 WHERE`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = posts.Restore(ctx, sqlgen.Where{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts" WHERE "title" = $1;`)).
		WithArgs("x").
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = posts.Destroy(ctx, sqlgen.Where{"title": "x"}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkCreate(t *testing.T) {
	ctx := context.Background()
	c, mock := newMockClient(t, dialect.Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "publishers" ("name") VALUES ($1),($2) RETURNING *;`)).
		WithArgs("acme", "globex").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "acme").AddRow(int64(2), "globex"))

	pubs, err := c.MustModel("Publisher").BulkCreate(ctx, []sqlgen.Values{{"name": "acme"}, {"name": "globex"}})
	require.NoError(t, err)
	require.Len(t, pubs, 2)
	assert.Equal(t, int64(2), pubs[1].Get("id"))
	assert.Equal(t, StatePersisted, pubs[1].State())

	_, err = c.MustModel("Publisher").BulkCreate(ctx, []sqlgen.Values{{"name": "acme"}, {}})
	assert.True(t, strata.IsValidationError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	c, mock := newMockClient(t, dialect.Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) AS "count" FROM "authors"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := c.MustModel("Author").Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPK(t *testing.T) {
	c, mock := newMockClient(t, dialect.Postgres)
	ctx := context.Background()
	authors := c.MustModel("Author")

	mock.ExpectQuery(`SELECT .+ FROM "authors"`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(1), "ada", "ada@example.com", nil))
	a, err := authors.FindByPK(ctx, int64(1), nil)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", a.Get("email"))

	mock.ExpectQuery(`SELECT .+ FROM "authors"`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(authorColumns))
	_, err = authors.FindByPK(ctx, int64(42), nil)
	require.Error(t, err)
	var nf *strata.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(42), nf.ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertWithoutReturning(t *testing.T) {
	for _, name := range []string{dialect.MySQL, dialect.MariaDB} {
		t.Run(name, func(t *testing.T) {
			c, mock := newMockClient(t, name)
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `authors` (`name`,`email`) VALUES (?,?) ON DUPLICATE KEY UPDATE")).
				WithArgs("ada", "ada@example.com").
				WillReturnResult(sqlmock.NewResult(5, 1))
			mock.ExpectQuery("SELECT .+ FROM `authors`").
				WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(5), "ada", "ada@example.com", nil))

			a, err := c.MustModel("Author").Upsert(context.Background(),
				sqlgen.Values{"name": "ada", "email": "ada@example.com"},
				sqlgen.ConflictOn("email"),
			)
			require.NoError(t, err)
			assert.Equal(t, int64(5), a.Get("id"))
			assert.Equal(t, StatePersisted, a.State())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := sql.NewStatsDriver(sql.OpenDB(dialect.Postgres, db))
	cache, err := lru.New(16)
	require.NoError(t, err)
	c, err := New(fixture.Graph(), drv, WithCache(cache, time.Minute))
	require.NoError(t, err)
	ctx := context.Background()
	authors := c.MustModel("Author")

	mock.ExpectQuery(`SELECT .+ FROM "authors"`).
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(1), "ada", nil, nil))
	for range 2 {
		list, err := authors.FindAll(ctx, nil)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(1), list[0].Get("id"))
		assert.Equal(t, "ada", list[0].Get("name"))
	}
	assert.Equal(t, int64(1), drv.Stats().Snapshot().Queries, "second read is served from the cache")

	// Writing a book clears the cached author queries, which may include books.
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "books"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "book_title", "status", "pages", "author_id"}).
			AddRow(int64(9), "go", "active", nil, int64(1)))
	book, err := c.MustModel("Book").Create(ctx, sqlgen.Values{"title": "go", "author_id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "go", book.Get("title"), "returned columns map back to attributes")

	mock.ExpectQuery(`SELECT .+ FROM "authors"`).
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(1), "ada", nil, nil))
	_, err = authors.FindAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), drv.Stats().Snapshot().Queries)

	mock.ExpectQuery(`SELECT .+ FROM "authors" .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(1), "ada", nil, nil))
	_, err = authors.FindAll(ctx, &sqlgen.Query{Lock: sqlgen.LockUpdate})
	require.NoError(t, err, "locking reads bypass the cache")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	t.Run("Commit", func(t *testing.T) {
		c, mock := newMockClient(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `publishers`")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		err := c.WithTx(ctx, func(tx *Client) error {
			_, err := tx.MustModel("Publisher").Create(ctx, sqlgen.Values{"name": "acme"})
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Rollback", func(t *testing.T) {
		c, mock := newMockClient(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `publishers`")).WillReturnError(errors.New("duplicate"))
		mock.ExpectRollback()
		err := c.WithTx(ctx, func(tx *Client) error {
			_, err := tx.MustModel("Publisher").Create(ctx, sqlgen.Values{"name": "acme"})
			return err
		})
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Nested", func(t *testing.T) {
		c, mock := newMockClient(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectRollback()
		err := c.WithTx(ctx, func(tx *Client) error {
			_, err := tx.Tx(ctx)
			return err
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "within a transaction")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, mock := newMockClient(t, dialect.Postgres, WithLogger(logger))
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	_, err := c.MustModel("Publisher").Count(context.Background(), &sqlgen.Query{Where: sqlgen.Where{"name": "acme"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "msg=query")
	assert.Contains(t, buf.String(), "args=1")
}
