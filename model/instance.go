package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/sqlgen"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// State is the lifecycle state of an instance.
type State uint8

// Instance states.
const (
	StateNew State = iota
	StatePersisted
	StateSoftDeleted
	StateDestroyed
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePersisted:
		return "persisted"
	case StateSoftDeleted:
		return "soft-deleted"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", s)
}

// Instance is one row of an entity with change tracking. An instance is
// not safe for concurrent mutation.
type Instance struct {
	model    *Model
	values   map[string]any
	previous map[string]any
	state    State
	// included holds the loaded associations by alias. To-one
	// associations hold at most one instance.
	included map[string][]*Instance
}

func newInstance(m *Model, values map[string]any, state State) *Instance {
	inst := &Instance{
		model:    m,
		values:   values,
		state:    state,
		included: make(map[string][]*Instance),
	}
	if state != StateNew {
		inst.snapshot()
	}
	return inst
}

// snapshot takes the current values as the unchanged state.
func (i *Instance) snapshot() {
	i.previous = make(map[string]any, len(i.values))
	for k, v := range i.values {
		i.previous[k] = v
	}
}

// Model returns the model of the instance.
func (i *Instance) Model() *Model { return i.model }

// Entity returns the entity of the instance.
func (i *Instance) Entity() *schema.Entity { return i.model.entity }

// State returns the lifecycle state of the instance.
func (i *Instance) State() State { return i.state }

// Get returns the value of key, an attribute or a projected alias.
func (i *Instance) Get(key string) any {
	return i.values[key]
}

// Lookup is like Get but reports whether the key holds a value.
func (i *Instance) Lookup(key string) (any, bool) {
	v, ok := i.values[key]
	return v, ok
}

// Set sets the value of an attribute.
func (i *Instance) Set(key string, v any) error {
	if _, ok := i.model.entity.Attribute(key); !ok {
		return strata.NewCompilationError(key, fmt.Errorf("%s has no attribute %q", i.model.entity.Name, key))
	}
	i.values[key] = v
	return nil
}

// Values returns a copy of the current values.
func (i *Instance) Values() sqlgen.Values {
	out := make(sqlgen.Values, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

// Previous returns the value of key as last read from or written to the
// database.
func (i *Instance) Previous(key string) any {
	return i.previous[key]
}

// Changed reports whether key differs from its previous value.
func (i *Instance) Changed(key string) bool {
	cur, ok := i.values[key]
	prev, had := i.previous[key]
	if ok != had {
		return true
	}
	return !equal(cur, prev)
}

// ChangedKeys returns the changed attributes in declaration order.
func (i *Instance) ChangedKeys() []string {
	var keys []string
	for _, a := range i.model.entity.Attributes {
		if i.Changed(a.Name) {
			keys = append(keys, a.Name)
		}
	}
	return keys
}

// PrimaryKey returns the primary key values of the instance.
func (i *Instance) PrimaryKey() sqlgen.Values {
	pk := make(sqlgen.Values, len(i.model.entity.PrimaryKeys))
	for _, a := range i.model.entity.PrimaryKeys {
		pk[a.Name] = i.values[a.Name]
	}
	return pk
}

// Included returns the instances loaded for the association alias.
func (i *Instance) Included(alias string) ([]*Instance, error) {
	insts, ok := i.included[alias]
	if !ok {
		return nil, strata.NewNotLoadedError(alias)
	}
	return insts, nil
}

// IncludedOne returns the instance loaded for a to-one association alias,
// or nil when no row matched.
func (i *Instance) IncludedOne(alias string) (*Instance, error) {
	insts, err := i.Included(alias)
	if err != nil || len(insts) == 0 {
		return nil, err
	}
	return insts[0], nil
}

// markLoaded records alias as loaded, possibly with no instances.
func (i *Instance) markLoaded(alias string) {
	if _, ok := i.included[alias]; !ok {
		i.included[alias] = []*Instance{}
	}
}

// String implements the fmt.Stringer interface.
func (i *Instance) String() string {
	return fmt.Sprintf("%s(%v)", i.model.entity.Name, i.values)
}

// MarshalJSON implements the json.Marshaler interface. Loaded
// associations are nested under their alias; to-one associations and
// junction rows render as an object or null.
func (i *Instance) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.values)+len(i.included))
	for k, v := range i.values {
		out[k] = v
	}
	for alias, insts := range i.included {
		if a, ok := i.model.client.graph.Resolve(i.model.entity, alias); ok && a.ToMany() {
			out[alias] = insts
			continue
		}
		if len(insts) == 0 {
			out[alias] = nil
		} else {
			out[alias] = insts[0]
		}
	}
	return json.Marshal(out)
}

func (i *Instance) stateError(op string) error {
	return strata.NewStateError(i.model.entity.Name, i.state.String(), op)
}

// Save inserts a new instance or writes the changed attributes of a
// persisted one.
func (i *Instance) Save(ctx context.Context) error {
	switch i.state {
	case StateNew:
		return i.create(ctx)
	case StatePersisted:
		return i.update(ctx)
	}
	return i.stateError("save")
}

func (i *Instance) create(ctx context.Context) error {
	m := i.model
	c := m.client
	// Rejected writes leave the instance as it was.
	undo := m.touch(i.values, true)
	if err := m.validate(ctx, i); err != nil {
		undo()
		return err
	}
	hooks := c.hooksOf(m.entity)
	if err := runHooks(ctx, hooks, OpCreate, true, i); err != nil {
		undo()
		return err
	}
	if err := m.insert(ctx, i); err != nil {
		undo()
		return err
	}
	i.state = StatePersisted
	i.snapshot()
	m.invalidate(ctx)
	return runHooks(ctx, hooks, OpCreate, false, i)
}

func (i *Instance) update(ctx context.Context) error {
	m := i.model
	c := m.client
	hooks := c.hooksOf(m.entity)
	if err := runHooks(ctx, hooks, OpUpdate, true, i); err != nil {
		return err
	}
	keys := i.writable(i.ChangedKeys())
	if len(keys) == 0 {
		return nil
	}
	if err := m.validate(ctx, i); err != nil {
		return err
	}
	if ua := m.entity.UpdatedAt; ua != "" && !slices.Contains(keys, ua) {
		i.values[ua] = c.now().In(c.loc)
		keys = append(keys, ua)
	}
	where, err := sqlgen.PrimaryKeyWhere(m.entity, i.previous)
	if err != nil {
		return err
	}
	set := make(sqlgen.Values, len(keys))
	for _, k := range keys {
		set[k] = i.values[k]
	}
	stmt, err := c.gen.Update(m.entity, set, where)
	if err != nil {
		return err
	}
	if _, err := c.exec(ctx, stmt); err != nil {
		return err
	}
	i.snapshot()
	m.invalidate(ctx)
	return runHooks(ctx, hooks, OpUpdate, false, i)
}

// writable drops immutable attributes from keys.
func (i *Instance) writable(keys []string) []string {
	out := keys[:0:0]
	for _, k := range keys {
		if a, ok := i.model.entity.Attribute(k); ok && !a.Immutable {
			out = append(out, k)
		}
	}
	return out
}

// Destroy deletes the instance. Instances of paranoid entities are soft
// deleted unless force is set.
func (i *Instance) Destroy(ctx context.Context, force bool) error {
	switch {
	case i.state == StatePersisted:
	case i.state == StateSoftDeleted && force:
	default:
		return i.stateError("destroy")
	}
	m := i.model
	c := m.client
	hooks := c.hooksOf(m.entity)
	if err := runHooks(ctx, hooks, OpDestroy, true, i); err != nil {
		return err
	}
	where, err := sqlgen.PrimaryKeyWhere(m.entity, i.previous)
	if err != nil {
		return err
	}
	if m.entity.Paranoid() && !force {
		now := c.now().In(c.loc)
		stmt, err := c.gen.Update(m.entity, sqlgen.Values{m.entity.DeletedAt: now}, where)
		if err != nil {
			return err
		}
		if _, err := c.exec(ctx, stmt); err != nil {
			return err
		}
		i.values[m.entity.DeletedAt] = now
		i.snapshot()
		i.state = StateSoftDeleted
	} else {
		stmt, err := c.gen.Delete(m.entity, where)
		if err != nil {
			return err
		}
		if _, err := c.exec(ctx, stmt); err != nil {
			return err
		}
		i.state = StateDestroyed
	}
	m.invalidate(ctx)
	return runHooks(ctx, hooks, OpDestroy, false, i)
}

// Restore clears the deleted-at attribute of a soft-deleted instance.
func (i *Instance) Restore(ctx context.Context) error {
	if i.state != StateSoftDeleted {
		return i.stateError("restore")
	}
	m := i.model
	c := m.client
	where, err := sqlgen.PrimaryKeyWhere(m.entity, i.previous)
	if err != nil {
		return err
	}
	stmt, err := c.gen.Update(m.entity, sqlgen.Values{m.entity.DeletedAt: nil}, where)
	if err != nil {
		return err
	}
	if _, err := c.exec(ctx, stmt); err != nil {
		return err
	}
	i.values[m.entity.DeletedAt] = nil
	i.snapshot()
	i.state = StatePersisted
	m.invalidate(ctx)
	return nil
}

// Reload reads the instance back from the database, dropping unsaved
// changes and loaded associations.
func (i *Instance) Reload(ctx context.Context) error {
	if i.state != StatePersisted && i.state != StateSoftDeleted {
		return i.stateError("reload")
	}
	m := i.model
	where, err := sqlgen.PrimaryKeyWhere(m.entity, i.previous)
	if err != nil {
		return err
	}
	fresh, err := m.FindOne(ctx, &sqlgen.Query{Where: where, Paranoid: sqlgen.BoolPtr(false)})
	if err != nil {
		return err
	}
	i.values = fresh.values
	i.previous = fresh.previous
	i.state = fresh.state
	i.included = make(map[string][]*Instance)
	return nil
}

// Increment adds by to a numeric attribute in the database and reads the
// result back.
func (i *Instance) Increment(ctx context.Context, attr string, by any) error {
	if i.state != StatePersisted {
		return i.stateError("increment")
	}
	m := i.model
	c := m.client
	where, err := sqlgen.PrimaryKeyWhere(m.entity, i.previous)
	if err != nil {
		return err
	}
	var extra sqlgen.Values
	if ua := m.entity.UpdatedAt; ua != "" {
		extra = sqlgen.Values{ua: c.now().In(c.loc)}
	}
	var opts []sqlgen.MutationOption
	if c.returning() {
		opts = append(opts, sqlgen.Returning())
	}
	stmt, err := c.gen.Increment(m.entity, sqlgen.Values{attr: by}, where, extra, opts...)
	if err != nil {
		return err
	}
	if !c.returning() {
		if _, err := c.exec(ctx, stmt); err != nil {
			return err
		}
		m.invalidate(ctx)
		return i.Reload(ctx)
	}
	recs, err := c.rows(ctx, stmt)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return strata.NewNotFoundErrorWithID(m.entity.Name, i.PrimaryKey())
	}
	if err := m.merge(i, recs[0]); err != nil {
		return err
	}
	i.snapshot()
	m.invalidate(ctx)
	return nil
}

// equal compares attribute values. Times compare by instant, byte slices
// by content, numbers by value whatever their Go kind, and everything else
// deeply.
func equal(a, b any) bool {
	switch a := a.(type) {
	case time.Time:
		b, ok := b.(time.Time)
		return ok && a.Equal(b)
	case []byte:
		b, ok := b.([]byte)
		return ok && bytes.Equal(a, b)
	case nil:
		return isNil(b)
	}
	if isNil(b) {
		return isNil(a)
	}
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

// number returns v as an int64 when it holds an integral value, as a
// float64 or uint64 otherwise. ok is false for non-numeric kinds.
func number(v any) (n any, ok bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u), true
		}
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f), true
		}
		return f, true
	}
	return nil, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// deserialize converts a raw column value of attribute a.
func deserialize(a *field.Descriptor, raw any, loc *time.Location) (any, error) {
	v, err := field.Deserialize(raw, a.Info, loc)
	if err != nil {
		return nil, fmt.Errorf("strata: reading attribute %q: %w", a.Name, err)
	}
	return v, nil
}
