package sqlgen

import (
	"errors"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// Upsert compiles an insert-or-update of one row. The conflict target is
// the ConflictOn attributes, else the primary key when values hold it,
// else the first unique group values cover.
func (g *Generator) Upsert(e *schema.Entity, values Values, opts ...MutationOption) (Statement, error) {
	st := g.newState()
	m := newMutation(opts)
	caps := st.d.Capabilities()
	if caps.Upsert == dialect.UpsertNone {
		return Statement{}, strata.NewDialectCapabilityError(st.d.Name(), "upsert")
	}
	if ai := e.AutoIncrement; ai != nil {
		if v, ok := values[ai.Name]; ok && isNil(v) {
			values = without(values, ai.Name)
		}
	}
	attrs, err := ordered(e, values)
	if err != nil {
		return Statement{}, err
	}
	if len(attrs) == 0 {
		return Statement{}, strata.NewCompilationError("values", errors.New("upsert without values"))
	}
	target, err := conflictTarget(e, values, m.conflict)
	if err != nil {
		return Statement{}, err
	}
	updates := updatable(e, attrs, target, m.updateOnly)
	var sql string
	switch caps.Upsert {
	case dialect.UpsertOnConflict:
		sql, err = st.onConflict(e, attrs, values, target, updates, m)
	case dialect.UpsertOnDuplicateKey:
		sql, err = st.onDuplicateKey(e, attrs, values, target, updates)
	case dialect.UpsertMerge:
		sql, err = st.merge(e, attrs, values, target, updates, m)
	}
	if err != nil {
		return Statement{}, err
	}
	return st.finish(st.identityInsert(e, values, sql)), nil
}

// conflictTarget picks the attributes identifying the conflicting row.
func conflictTarget(e *schema.Entity, values Values, explicit []string) ([]*field.Descriptor, error) {
	if len(explicit) > 0 {
		target := make([]*field.Descriptor, len(explicit))
		for i, name := range explicit {
			a, ok := e.Attribute(name)
			if !ok {
				return nil, strata.NewCompilationError(name, errors.New("unknown conflict attribute"))
			}
			target[i] = a
		}
		return target, nil
	}
	covers := func(names []string) bool {
		for _, n := range names {
			if v, ok := values[n]; !ok || isNil(v) {
				return false
			}
		}
		return len(names) > 0
	}
	if covers(e.PrimaryKeyNames()) {
		return e.PrimaryKeys, nil
	}
	for _, g := range e.UniqueGroups {
		if covers(g.Attributes) {
			target := make([]*field.Descriptor, len(g.Attributes))
			for i, n := range g.Attributes {
				target[i], _ = e.Attribute(n)
			}
			return target, nil
		}
	}
	return nil, strata.NewCompilationError(e.Name, errors.New("upsert values cover no primary key or unique group"))
}

// updatable returns the attributes updated on conflict: the written ones,
// minus the conflict target and the creation timestamp.
func updatable(e *schema.Entity, attrs, target []*field.Descriptor, only []string) []*field.Descriptor {
	skip := make(map[string]bool, len(target)+1)
	for _, t := range target {
		skip[t.Name] = true
	}
	if e.CreatedAt != "" {
		skip[e.CreatedAt] = true
	}
	var keep map[string]bool
	if len(only) > 0 {
		keep = make(map[string]bool, len(only))
		for _, n := range only {
			keep[n] = true
		}
	}
	out := make([]*field.Descriptor, 0, len(attrs))
	for _, a := range attrs {
		if skip[a.Name] || (keep != nil && !keep[a.Name]) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (st *state) onConflict(e *schema.Entity, attrs []*field.Descriptor, values Values, target, updates []*field.Descriptor, m *mutation) (string, error) {
	vals, err := st.valueList(attrs, values)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("INSERT INTO " + quoteTable(st.d, e) + " " + st.columnList(attrs))
	b.WriteString(" VALUES (" + strings.Join(vals, ",") + ")")
	b.WriteString(" ON CONFLICT " + st.columnList(target))
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		sets := make([]string, len(updates))
		for i, a := range updates {
			col := st.quote(a.Column())
			sets[i] = col + "=EXCLUDED." + col
		}
		b.WriteString(" DO UPDATE SET " + strings.Join(sets, ","))
	}
	b.WriteString(st.returning(e, m, dialect.ReturningClause, ""))
	return b.String(), nil
}

func (st *state) onDuplicateKey(e *schema.Entity, attrs []*field.Descriptor, values Values, target, updates []*field.Descriptor) (string, error) {
	vals, err := st.valueList(attrs, values)
	if err != nil {
		return "", err
	}
	var sets []string
	for _, a := range updates {
		col := st.quote(a.Column())
		sets = append(sets, col+"=VALUES("+col+")")
	}
	if len(sets) == 0 {
		// A no-op assignment keeps the existing row.
		col := st.quote(target[0].Column())
		sets = append(sets, col+"="+col)
	}
	return "INSERT INTO " + quoteTable(st.d, e) + " " + st.columnList(attrs) +
		" VALUES (" + strings.Join(vals, ",") + ")" +
		" ON DUPLICATE KEY UPDATE " + strings.Join(sets, ","), nil
}

func (st *state) merge(e *schema.Entity, attrs []*field.Descriptor, values Values, target, updates []*field.Descriptor, m *mutation) (string, error) {
	caps := st.d.Capabilities()
	table := quoteTable(st.d, e)
	src := st.quote("src")
	vals, err := st.valueList(attrs, values)
	if err != nil {
		return "", err
	}
	projected := make([]string, len(attrs))
	inserted := make([]string, len(attrs))
	for i, a := range attrs {
		col := st.quote(a.Column())
		projected[i] = vals[i] + " AS " + col
		inserted[i] = src + "." + col
	}
	using := "SELECT " + strings.Join(projected, ",")
	if caps.SelectFrom != "" {
		using += " FROM " + caps.SelectFrom
	}
	on := make([]string, len(target))
	for i, a := range target {
		col := st.quote(a.Column())
		on[i] = table + "." + col + " = " + src + "." + col
	}
	var b strings.Builder
	b.WriteString("MERGE INTO " + table + " USING (" + using + ")" + st.as("src"))
	b.WriteString(" ON (" + strings.Join(on, " AND ") + ")")
	if len(updates) > 0 {
		sets := make([]string, len(updates))
		for i, a := range updates {
			col := st.quote(a.Column())
			sets[i] = table + "." + col + " = " + src + "." + col
		}
		b.WriteString(" WHEN MATCHED THEN UPDATE SET " + strings.Join(sets, ", "))
	}
	b.WriteString(" WHEN NOT MATCHED THEN INSERT " + st.columnList(attrs) + " VALUES (" + strings.Join(inserted, ",") + ")")
	b.WriteString(st.returning(e, m, dialect.ReturningOutput, "INSERTED"))
	return b.String(), nil
}
