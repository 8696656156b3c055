package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/contrib/dataloader"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// Model runs the operations of one entity.
type Model struct {
	client *Client
	entity *schema.Entity
}

// Entity returns the entity of the model.
func (m *Model) Entity() *schema.Entity { return m.entity }

// Client returns the client of the model.
func (m *Model) Client() *Client { return m.client }

// Build returns a new, unsaved instance. Attributes missing from values
// take their declared defaults.
func (m *Model) Build(values sqlgen.Values) (*Instance, error) {
	inst := newInstance(m, make(map[string]any, len(m.entity.Attributes)), StateNew)
	for k, v := range values {
		if err := inst.Set(k, v); err != nil {
			return nil, err
		}
	}
	for _, a := range m.entity.Attributes {
		if _, ok := inst.values[a.Name]; !ok && a.HasDefault() {
			inst.values[a.Name] = a.DefaultValue()
		}
	}
	return inst, nil
}

// Create builds and saves an instance.
func (m *Model) Create(ctx context.Context, values sqlgen.Values) (*Instance, error) {
	inst, err := m.Build(values)
	if err != nil {
		return nil, err
	}
	if err := inst.Save(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// BulkCreate inserts several rows with one statement. Every row is
// validated and passed to the create hooks first. Generated keys are read
// back on dialects with RETURNING or OUTPUT only.
func (m *Model) BulkCreate(ctx context.Context, rows []sqlgen.Values, opts ...sqlgen.MutationOption) ([]*Instance, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	c := m.client
	hooks := c.hooksOf(m.entity)
	insts := make([]*Instance, len(rows))
	values := make([]sqlgen.Values, len(rows))
	for i, row := range rows {
		inst, err := m.Build(row)
		if err != nil {
			return nil, err
		}
		m.touch(inst.values, true)
		if err := m.validate(ctx, inst); err != nil {
			return nil, err
		}
		if err := runHooks(ctx, hooks, OpCreate, true, inst); err != nil {
			return nil, err
		}
		insts[i], values[i] = inst, inst.Values()
	}
	if c.returning() {
		opts = append(opts, sqlgen.Returning())
	}
	stmt, err := c.gen.BulkInsert(m.entity, values, opts...)
	if err != nil {
		return nil, err
	}
	if c.returning() {
		recs, err := c.rows(ctx, stmt)
		if err != nil {
			return nil, err
		}
		// Rows skipped as duplicates are not returned; only a full set can
		// be matched to the instances by position.
		if len(recs) == len(insts) {
			for i, rec := range recs {
				if err := m.merge(insts[i], rec); err != nil {
					return nil, err
				}
			}
		}
	} else if _, err := c.exec(ctx, stmt); err != nil {
		return nil, err
	}
	m.invalidate(ctx)
	for _, inst := range insts {
		inst.state = StatePersisted
		inst.snapshot()
		if err := runHooks(ctx, hooks, OpCreate, false, inst); err != nil {
			return nil, err
		}
	}
	return insts, nil
}

// FindAll returns the instances q matches, with their includes loaded.
func (m *Model) FindAll(ctx context.Context, q *sqlgen.Query) ([]*Instance, error) {
	if q == nil {
		q = &sqlgen.Query{}
	}
	p, err := m.plan(q)
	if err != nil {
		return nil, err
	}
	stmt, err := m.client.gen.Select(m.entity, q)
	if err != nil {
		return nil, err
	}
	recs, err := m.client.fetch(ctx, m.entity, stmt, q.Lock == sqlgen.LockNone)
	if err != nil {
		return nil, err
	}
	insts, err := p.fold(recs)
	if err != nil {
		return nil, err
	}
	if err := m.loadSeparate(ctx, p.separate, insts); err != nil {
		return nil, err
	}
	return insts, nil
}

// FindOne returns the first instance q matches, or a NotFoundError.
func (m *Model) FindOne(ctx context.Context, q *sqlgen.Query) (*Instance, error) {
	var one sqlgen.Query
	if q != nil {
		one = *q
	}
	if one.Limit == nil {
		one.Limit = sqlgen.IntPtr(1)
	}
	insts, err := m.FindAll(ctx, &one)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, strata.NewNotFoundError(m.entity.Name)
	}
	return insts[0], nil
}

// FindByPK returns the instance with the given primary key. Entities with
// a composite key take the key as sqlgen.Values. q may add includes and
// attributes; its Where is combined with the key.
func (m *Model) FindByPK(ctx context.Context, key any, q *sqlgen.Query) (*Instance, error) {
	where, err := m.keyWhere(key)
	if err != nil {
		return nil, err
	}
	var one sqlgen.Query
	if q != nil {
		one = *q
	}
	one.Where = and(where, one.Where)
	inst, err := m.FindOne(ctx, &one)
	if strata.IsNotFound(err) {
		return nil, strata.NewNotFoundErrorWithID(m.entity.Name, key)
	}
	return inst, err
}

// LoadByPK reads the instances of several primary keys with one query and
// returns them in key order, the shape batch loaders expect. A key with
// no row gets a NotFoundError at its position; a failing query fails
// every key.
func (m *Model) LoadByPK(ctx context.Context, keys []any, q *sqlgen.Query) ([]*Instance, []error) {
	e := m.entity
	if len(e.PrimaryKeys) != 1 {
		err := strata.NewCompilationError(e.Name, errors.New("batch loading needs a single primary key"))
		return make([]*Instance, len(keys)), []error{err}
	}
	pk := e.PrimaryKeys[0].Name
	strs := make([]string, len(keys))
	byStr := make(map[string]any, len(keys))
	for i, k := range keys {
		strs[i] = keyString(k)
		byStr[strs[i]] = k
	}
	insts, errs := dataloader.Batch(ctx, strs, func(ctx context.Context, batch []string) ([]*Instance, []error) {
		vals := make([]any, len(batch))
		for i, s := range batch {
			vals[i] = byStr[s]
		}
		var fq sqlgen.Query
		if q != nil {
			fq = *q
		}
		fq.Where = and(sqlgen.In(pk, vals...), fq.Where)
		found, err := m.FindAll(ctx, &fq)
		if err != nil {
			return nil, []error{err}
		}
		return dataloader.OrderByKeys(batch, found, func(i *Instance) string {
			return keyString(i.values[pk])
		})
	})
	for i, err := range errs {
		if errors.Is(err, dataloader.ErrNotFound) {
			errs[i] = strata.NewNotFoundErrorWithID(e.Name, keys[i])
		}
	}
	return insts, errs
}

func (m *Model) keyWhere(key any) (sqlgen.Where, error) {
	if vs, ok := key.(sqlgen.Values); ok {
		return sqlgen.PrimaryKeyWhere(m.entity, vs)
	}
	if len(m.entity.PrimaryKeys) != 1 {
		return nil, strata.NewCompilationError(m.entity.Name, errors.New("composite primary key needs sqlgen.Values"))
	}
	return sqlgen.PrimaryKeyWhere(m.entity, sqlgen.Values{m.entity.PrimaryKeys[0].Name: key})
}

// Count returns the number of rows q matches. Grouping, ordering and
// pagination are ignored.
func (m *Model) Count(ctx context.Context, q *sqlgen.Query) (int, error) {
	var cq sqlgen.Query
	if q != nil {
		cq = *q
	}
	cq.Group, cq.Having = nil, nil
	stmt, err := m.client.gen.Count(m.entity, &cq)
	if err != nil {
		return 0, err
	}
	recs, err := m.client.fetch(ctx, m.entity, stmt, true)
	if err != nil {
		return 0, err
	}
	if len(recs) != 1 {
		return 0, strata.NewNotSingularErrorWithCount(m.entity.Name, len(recs))
	}
	n, err := field.Deserialize(recs[0]["count"], &field.TypeInfo{Type: field.TypeInt64}, nil)
	if err != nil {
		return 0, err
	}
	count, _ := n.(int64)
	return int(count), nil
}

// Upsert inserts values or updates the row they conflict with, and
// returns the written instance. Dialects without an upsert form fall back
// to a lookup on the conflict target followed by an insert or an update.
func (m *Model) Upsert(ctx context.Context, values sqlgen.Values, opts ...sqlgen.MutationOption) (*Instance, error) {
	c := m.client
	inst, err := m.Build(values)
	if err != nil {
		return nil, err
	}
	m.touch(inst.values, true)
	if err := m.validate(ctx, inst); err != nil {
		return nil, err
	}
	style := c.dialect.Capabilities().Upsert
	if style == dialect.UpsertNone {
		return m.findOrCreate(ctx, inst)
	}
	// ON DUPLICATE KEY UPDATE takes no RETURNING clause, even on MariaDB.
	returning := c.returning() && style != dialect.UpsertOnDuplicateKey
	if returning {
		opts = append(opts, sqlgen.Returning())
	}
	stmt, err := c.gen.Upsert(m.entity, inst.Values(), opts...)
	if err != nil {
		return nil, err
	}
	if returning {
		recs, err := c.rows(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			if err := m.merge(inst, recs[0]); err != nil {
				return nil, err
			}
		}
		inst.state = StatePersisted
		inst.snapshot()
		m.invalidate(ctx)
		return inst, nil
	}
	if _, err := c.exec(ctx, stmt); err != nil {
		return nil, err
	}
	m.invalidate(ctx)
	if where := m.lookup(inst.values); where != nil {
		return m.FindOne(ctx, &sqlgen.Query{Where: where, Paranoid: sqlgen.BoolPtr(false)})
	}
	inst.state = StatePersisted
	inst.snapshot()
	return inst, nil
}

// findOrCreate is the upsert of dialects without one.
func (m *Model) findOrCreate(ctx context.Context, inst *Instance) (*Instance, error) {
	where := m.lookup(inst.values)
	if where == nil {
		return nil, strata.NewCompilationError(m.entity.Name, errors.New("upsert values cover no primary key or unique attributes"))
	}
	found, err := m.FindOne(ctx, &sqlgen.Query{Where: where, Paranoid: sqlgen.BoolPtr(false)})
	switch {
	case strata.IsNotFound(err):
		if err := inst.Save(ctx); err != nil {
			return nil, err
		}
		return inst, nil
	case err != nil:
		return nil, err
	}
	for k, v := range inst.values {
		if a, ok := m.entity.Attribute(k); !ok || a.PrimaryKey || k == m.entity.CreatedAt {
			continue
		}
		found.values[k] = v
	}
	if err := found.Save(ctx); err != nil {
		return nil, err
	}
	return found, nil
}

// lookup returns the condition identifying the row values would conflict
// with: the primary key, else the first unique attribute or unique group
// values fully cover.
func (m *Model) lookup(values map[string]any) sqlgen.Where {
	e := m.entity
	cover := func(names []string) sqlgen.Where {
		w := make(sqlgen.Where, len(names))
		for _, n := range names {
			v, ok := values[n]
			if !ok || isNil(v) {
				return nil
			}
			w[n] = v
		}
		return w
	}
	if w := cover(e.PrimaryKeyNames()); w != nil {
		return w
	}
	for _, a := range e.Attributes {
		if a.Unique {
			if w := cover([]string{a.Name}); w != nil {
				return w
			}
		}
	}
	for _, g := range e.UniqueGroups {
		if w := cover(g.Attributes); w != nil {
			return w
		}
	}
	return nil
}

// Update writes values to every row matching where and returns the
// number of rows affected. Soft-deleted rows of paranoid entities are
// left alone.
func (m *Model) Update(ctx context.Context, values sqlgen.Values, where sqlgen.Expr, opts ...sqlgen.MutationOption) (int64, error) {
	c := m.client
	set := make(sqlgen.Values, len(values)+1)
	for k, v := range values {
		set[k] = v
	}
	if ua := m.entity.UpdatedAt; ua != "" {
		if _, ok := set[ua]; !ok {
			set[ua] = c.now().In(c.loc)
		}
	}
	return m.bulkUpdate(ctx, set, and(where, m.alive()), opts...)
}

// Destroy deletes every row matching where and returns the number of rows
// affected. Rows of paranoid entities are soft deleted unless force is
// set.
func (m *Model) Destroy(ctx context.Context, where sqlgen.Expr, force bool, opts ...sqlgen.MutationOption) (int64, error) {
	c := m.client
	if m.entity.Paranoid() && !force {
		set := sqlgen.Values{m.entity.DeletedAt: c.now().In(c.loc)}
		return m.bulkUpdate(ctx, set, and(where, m.alive()), opts...)
	}
	stmt, err := c.gen.Delete(m.entity, where, opts...)
	if err != nil {
		return 0, err
	}
	res, err := c.exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	m.invalidate(ctx)
	return affected(res)
}

// Restore clears the deleted-at attribute of the soft-deleted rows
// matching where and returns the number of rows affected.
func (m *Model) Restore(ctx context.Context, where sqlgen.Expr) (int64, error) {
	e := m.entity
	if !e.Paranoid() {
		return 0, strata.NewStateError(e.Name, "not paranoid", "restore")
	}
	return m.bulkUpdate(ctx, sqlgen.Values{e.DeletedAt: nil}, and(where, sqlgen.IsNot(e.DeletedAt, nil)))
}

func (m *Model) bulkUpdate(ctx context.Context, set sqlgen.Values, where sqlgen.Expr, opts ...sqlgen.MutationOption) (int64, error) {
	c := m.client
	stmt, err := c.gen.Update(m.entity, set, where, opts...)
	if err != nil {
		return 0, err
	}
	res, err := c.exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	m.invalidate(ctx)
	return affected(res)
}

// alive returns the condition excluding soft-deleted rows, or nil.
func (m *Model) alive() sqlgen.Expr {
	if !m.entity.Paranoid() {
		return nil
	}
	return sqlgen.Is(m.entity.DeletedAt, nil)
}

func affected(res interface{ RowsAffected() (int64, error) }) (int64, error) {
	if res == nil {
		return 0, nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("strata: reading affected rows: %w", err)
	}
	return n, nil
}

// insert writes a new instance and reads back what the database
// generated.
func (m *Model) insert(ctx context.Context, inst *Instance) error {
	c := m.client
	e := m.entity
	if c.returning() {
		stmt, err := c.gen.Insert(e, inst.Values(), sqlgen.Returning())
		if err != nil {
			return err
		}
		recs, err := c.rows(ctx, stmt)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return m.merge(inst, recs[0])
	}
	stmt, err := c.gen.Insert(e, inst.Values())
	if err != nil {
		return err
	}
	res, err := c.exec(ctx, stmt)
	if err != nil {
		return err
	}
	if ai := e.AutoIncrement; ai != nil && isNil(inst.values[ai.Name]) {
		id, err := res.LastInsertId()
		if err != nil {
			c.logger.WarnContext(ctx, "generated key unavailable", "entity", e.Name, "error", err)
			return nil
		}
		inst.values[ai.Name] = id
	}
	return nil
}

// merge copies a row written by a mutation into inst. Rows are keyed by
// column name.
func (m *Model) merge(inst *Instance, rec record) error {
	for k, raw := range rec {
		a, ok := m.entity.AttributeByColumn(k)
		if !ok {
			if a, ok = m.entity.Attribute(k); !ok {
				continue
			}
		}
		v, err := deserialize(a, raw, m.client.loc)
		if err != nil {
			return err
		}
		inst.values[a.Name] = v
	}
	return nil
}

// touch sets the maintained timestamps missing from values. undo restores
// the values it replaced.
func (m *Model) touch(values map[string]any, create bool) (undo func()) {
	now := m.client.now().In(m.client.loc)
	names := []string{m.entity.UpdatedAt}
	if create {
		names = append(names, m.entity.CreatedAt)
	}
	var (
		stamped []string
		prev    = make(map[string]any)
	)
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := values[n]; !ok || isNil(v) {
			if ok {
				prev[n] = v
			}
			stamped = append(stamped, n)
			values[n] = now
		}
	}
	return func() {
		for _, n := range stamped {
			if v, ok := prev[n]; ok {
				values[n] = v
			} else {
				delete(values, n)
			}
		}
	}
}

func (m *Model) validate(ctx context.Context, inst *Instance) error {
	v := m.client.validator
	if v == nil {
		return nil
	}
	if errs := v.Validate(ctx, inst); len(errs) > 0 {
		return strata.NewValidationError(m.entity.Name, errs)
	}
	return nil
}

// and conjoins the non-nil expressions.
func and(exprs ...sqlgen.Expr) sqlgen.Expr {
	var out []sqlgen.Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if w, ok := e.(sqlgen.Where); ok && len(w) == 0 {
			continue
		}
		out = append(out, e)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return sqlgen.And(out...)
}
