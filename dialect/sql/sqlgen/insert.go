package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// Values maps attribute names to the values written by a mutation.
type Values map[string]any

// mutation holds the options of INSERT, UPDATE, UPSERT and DELETE.
type mutation struct {
	returning  bool
	retAttrs   []string
	ignore     bool
	limit      *int
	truncate   bool
	conflict   []string
	updateOnly []string
}

// MutationOption configures a mutation statement.
type MutationOption func(*mutation)

// Returning asks for the written rows back, limited to attrs when given.
// Dialects without RETURNING or OUTPUT ignore it.
func Returning(attrs ...string) MutationOption {
	return func(m *mutation) {
		m.returning = true
		m.retAttrs = attrs
	}
}

// IgnoreDuplicates skips rows violating a unique constraint.
func IgnoreDuplicates() MutationOption {
	return func(m *mutation) { m.ignore = true }
}

// Limit bounds the rows touched by UPDATE and DELETE.
func Limit(n int) MutationOption {
	return func(m *mutation) { m.limit = &n }
}

// Truncate empties the table with TRUNCATE where the dialect has it.
func Truncate() MutationOption {
	return func(m *mutation) { m.truncate = true }
}

// ConflictOn sets the conflict target of an upsert.
func ConflictOn(attrs ...string) MutationOption {
	return func(m *mutation) { m.conflict = attrs }
}

// UpdateOnly limits the attributes an upsert updates on conflict.
func UpdateOnly(attrs ...string) MutationOption {
	return func(m *mutation) { m.updateOnly = attrs }
}

func newMutation(opts []MutationOption) *mutation {
	m := &mutation{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ordered returns the attributes of e set in values, in declaration order.
func ordered(e *schema.Entity, values Values) ([]*field.Descriptor, error) {
	for k := range values {
		if _, ok := e.Attribute(k); !ok {
			return nil, strata.NewCompilationError(k, fmt.Errorf("%s has no attribute %q", e.Name, k))
		}
	}
	attrs := make([]*field.Descriptor, 0, len(values))
	for _, a := range e.Attributes {
		if _, ok := values[a.Name]; ok {
			attrs = append(attrs, a)
		}
	}
	return attrs, nil
}

// returning renders the RETURNING clause, or the OUTPUT clause for the
// given pseudo table (INSERTED or DELETED).
func (st *state) returning(e *schema.Entity, m *mutation, style dialect.ReturningStyle, pseudo string) string {
	if !m.returning || st.d.Capabilities().Returning != style {
		return ""
	}
	cols := []string{"*"}
	if len(m.retAttrs) > 0 {
		cols = make([]string, len(m.retAttrs))
		for i, a := range m.retAttrs {
			cols[i] = st.quote(e.Column(a))
		}
	}
	if style == dialect.ReturningOutput {
		for i, c := range cols {
			cols[i] = pseudo + "." + c
		}
		return " OUTPUT " + strings.Join(cols, ",")
	}
	return " RETURNING " + strings.Join(cols, ",")
}

func (st *state) insertKeyword(m *mutation) (string, string, error) {
	if !m.ignore {
		return "INSERT INTO ", "", nil
	}
	switch st.d.Capabilities().IgnoreDuplicates {
	case dialect.IgnoreKeyword:
		return "INSERT IGNORE INTO ", "", nil
	case dialect.IgnoreOrIgnore:
		return "INSERT OR IGNORE INTO ", "", nil
	case dialect.IgnoreOnConflict:
		return "INSERT INTO ", " ON CONFLICT DO NOTHING", nil
	}
	return "", "", strata.NewDialectCapabilityError(st.d.Name(), "ignore duplicates")
}

func (st *state) columnList(attrs []*field.Descriptor) string {
	cols := make([]string, len(attrs))
	for i, a := range attrs {
		cols[i] = st.quote(a.Column())
	}
	return "(" + strings.Join(cols, ",") + ")"
}

func (st *state) valueList(attrs []*field.Descriptor, values Values) ([]string, error) {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		sql, err := st.v.value(values[a.Name], a.Info)
		if err != nil {
			return nil, err
		}
		out[i] = sql
	}
	return out, nil
}

// Insert compiles an INSERT of one row. A nil auto-increment value is
// omitted so the database assigns it.
func (g *Generator) Insert(e *schema.Entity, values Values, opts ...MutationOption) (Statement, error) {
	st := g.newState()
	m := newMutation(opts)
	sql, err := st.insert(e, values, m)
	if err != nil {
		return Statement{}, err
	}
	return st.finish(sql), nil
}

func (st *state) insert(e *schema.Entity, values Values, m *mutation) (string, error) {
	if ai := e.AutoIncrement; ai != nil {
		if v, ok := values[ai.Name]; ok && isNil(v) {
			values = without(values, ai.Name)
		}
	}
	attrs, err := ordered(e, values)
	if err != nil {
		return "", err
	}
	kw, suffix, err := st.insertKeyword(m)
	if err != nil {
		return "", err
	}
	caps := st.d.Capabilities()
	output := st.returning(e, m, dialect.ReturningOutput, "INSERTED")
	var b strings.Builder
	b.WriteString(kw + quoteTable(st.d, e))
	if len(attrs) == 0 {
		switch {
		case caps.DefaultValues:
			b.WriteString(output + " DEFAULT VALUES")
		case caps.EmptyValues:
			b.WriteString(" VALUES ()")
		case e.AutoIncrement != nil:
			b.WriteString(" (" + st.quote(e.AutoIncrement.Column()) + ")" + output + " VALUES (DEFAULT)")
		default:
			return "", strata.NewDialectCapabilityError(st.d.Name(), "insert without values")
		}
	} else {
		vals, err := st.valueList(attrs, values)
		if err != nil {
			return "", err
		}
		b.WriteString(" " + st.columnList(attrs) + output + " VALUES (" + strings.Join(vals, ",") + ")")
	}
	b.WriteString(suffix)
	b.WriteString(st.returning(e, m, dialect.ReturningClause, ""))
	return st.identityInsert(e, values, b.String()), nil
}

// identityInsert allows explicit auto-increment values on dialects that
// reject them by default.
func (st *state) identityInsert(e *schema.Entity, values Values, sql string) string {
	ai := e.AutoIncrement
	if ai == nil || st.d.Capabilities().IdentityInsert {
		return sql
	}
	if v, ok := values[ai.Name]; !ok || isNil(v) {
		return sql
	}
	table := quoteTable(st.d, e)
	return "SET IDENTITY_INSERT " + table + " ON; " + sql + "; SET IDENTITY_INSERT " + table + " OFF"
}

func without(values Values, key string) Values {
	out := make(Values, len(values))
	for k, v := range values {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// BulkInsert compiles an INSERT of several rows over the union of their
// keys. Missing values are written as NULL, except a missing
// auto-increment value, which is left to the database.
func (g *Generator) BulkInsert(e *schema.Entity, rows []Values, opts ...MutationOption) (Statement, error) {
	if len(rows) == 0 {
		return Statement{}, strata.NewCompilationError("rows", errors.New("bulk insert without rows"))
	}
	st := g.newState()
	m := newMutation(opts)
	if len(rows) == 1 {
		sql, err := st.insert(e, rows[0], m)
		if err != nil {
			return Statement{}, err
		}
		return st.finish(sql), nil
	}
	union := make(Values)
	explicit, implicit := false, false
	ai := e.AutoIncrement
	for _, row := range rows {
		for k, v := range row {
			if ai != nil && k == ai.Name && isNil(v) {
				continue
			}
			union[k] = nil
		}
		if ai != nil {
			if v, ok := row[ai.Name]; ok && !isNil(v) {
				explicit = true
			} else {
				implicit = true
			}
		}
	}
	attrs, err := ordered(e, union)
	if err != nil {
		return Statement{}, err
	}
	if len(attrs) == 0 {
		return Statement{}, strata.NewCompilationError("rows", errors.New("bulk insert of empty rows"))
	}
	caps := st.d.Capabilities()
	if explicit && implicit && (caps.AutoIncrementDefault == "" || !caps.IdentityInsert) {
		return Statement{}, strata.NewDialectCapabilityError(st.d.Name(), "mixing explicit and generated auto-increment values")
	}
	kw, suffix, err := st.insertKeyword(m)
	if err != nil {
		return Statement{}, err
	}
	tuples := make([]string, len(rows))
	for i, row := range rows {
		vals := make([]string, len(attrs))
		for j, a := range attrs {
			v, ok := row[a.Name]
			if a == ai && (!ok || isNil(v)) {
				vals[j] = caps.AutoIncrementDefault
				continue
			}
			sql, err := st.v.value(v, a.Info)
			if err != nil {
				return Statement{}, err
			}
			vals[j] = sql
		}
		tuples[i] = strings.Join(vals, ",")
	}
	var b strings.Builder
	b.WriteString(kw + quoteTable(st.d, e) + " " + st.columnList(attrs))
	b.WriteString(st.returning(e, m, dialect.ReturningOutput, "INSERTED"))
	if caps.MultiRowInsert {
		b.WriteString(" VALUES (" + strings.Join(tuples, "),(") + ")")
	} else {
		from := ""
		if caps.SelectFrom != "" {
			from = " FROM " + caps.SelectFrom
		}
		for i, t := range tuples {
			if i > 0 {
				b.WriteString(" UNION ALL")
			}
			b.WriteString(" SELECT " + t + from)
		}
	}
	b.WriteString(suffix)
	b.WriteString(st.returning(e, m, dialect.ReturningClause, ""))
	sql := b.String()
	if explicit {
		sql = st.identityInsert(e, Values{ai.Name: true}, sql)
	}
	return st.finish(sql), nil
}
