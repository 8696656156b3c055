package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// Update compiles an UPDATE of the rows matching where. A nil where
// updates every row.
func (g *Generator) Update(e *schema.Entity, values Values, where Expr, opts ...MutationOption) (Statement, error) {
	st := g.newState()
	sets, err := st.assignments(e, values)
	if err != nil {
		return Statement{}, err
	}
	if len(sets) == 0 {
		return Statement{}, strata.NewCompilationError("values", errors.New("update without values"))
	}
	sql, err := st.update(e, sets, where, newMutation(opts))
	if err != nil {
		return Statement{}, err
	}
	return st.finish(sql), nil
}

// Increment compiles an UPDATE adding the amounts of by to their
// attributes, "n"="n"+ 1, and setting extra alongside.
func (g *Generator) Increment(e *schema.Entity, by Values, where Expr, extra Values, opts ...MutationOption) (Statement, error) {
	st := g.newState()
	attrs, err := ordered(e, by)
	if err != nil {
		return Statement{}, err
	}
	if len(attrs) == 0 {
		return Statement{}, strata.NewCompilationError("by", errors.New("increment without attributes"))
	}
	sets := make([]string, 0, len(attrs)+len(extra))
	for _, a := range attrs {
		if !a.Info.Type.Numeric() {
			return Statement{}, strata.NewCompilationError(a.Name, fmt.Errorf("cannot increment %s attribute", a.Info.Type))
		}
		v, err := st.v.value(by[a.Name], a.Info)
		if err != nil {
			return Statement{}, err
		}
		col := st.quote(a.Column())
		sets = append(sets, col+"="+col+"+ "+v)
	}
	more, err := st.assignments(e, extra)
	if err != nil {
		return Statement{}, err
	}
	sql, err := st.update(e, append(sets, more...), where, newMutation(opts))
	if err != nil {
		return Statement{}, err
	}
	return st.finish(sql), nil
}

// assignments renders "col"=value pairs in attribute order.
func (st *state) assignments(e *schema.Entity, values Values) ([]string, error) {
	attrs, err := ordered(e, values)
	if err != nil {
		return nil, err
	}
	sets := make([]string, len(attrs))
	for i, a := range attrs {
		v, err := st.v.value(values[a.Name], a.Info)
		if err != nil {
			return nil, err
		}
		sets[i] = st.quote(a.Column()) + "=" + v
	}
	return sets, nil
}

func (st *state) update(e *schema.Entity, sets []string, where Expr, m *mutation) (string, error) {
	caps := st.d.Capabilities()
	table := quoteTable(st.d, e)
	cond, err := st.mutationWhere(e, where, m)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("UPDATE ")
	if m.limit != nil && caps.DeleteLimit == dialect.MutationLimitTop {
		b.WriteString(fmt.Sprintf("TOP(%d) ", *m.limit))
	}
	b.WriteString(table + " SET " + strings.Join(sets, ","))
	b.WriteString(st.returning(e, m, dialect.ReturningOutput, "INSERTED"))
	b.WriteString(cond)
	b.WriteString(st.returning(e, m, dialect.ReturningClause, ""))
	return b.String(), nil
}

// mutationWhere renders the WHERE clause of UPDATE and DELETE, bounded by
// the limit of m.
func (st *state) mutationWhere(e *schema.Entity, where Expr, m *mutation) (string, error) {
	var cond string
	if where != nil {
		sql, err := st.where(scope{entity: e}, where)
		if err != nil {
			return "", err
		}
		cond = sql
	}
	if m.limit == nil {
		if cond == "" {
			return "", nil
		}
		return " WHERE " + cond, nil
	}
	caps := st.d.Capabilities()
	switch caps.DeleteLimit {
	case dialect.MutationLimitClause:
		if cond == "" {
			return fmt.Sprintf(" LIMIT %d", *m.limit), nil
		}
		return fmt.Sprintf(" WHERE %s LIMIT %d", cond, *m.limit), nil
	case dialect.MutationLimitRowID:
		inner := "SELECT " + caps.RowID + " FROM " + quoteTable(st.d, e)
		if cond != "" {
			inner += " WHERE " + cond
		}
		if caps.Limit == dialect.LimitOffsetFetch {
			inner += fmt.Sprintf(" FETCH FIRST %d ROWS ONLY", *m.limit)
		} else {
			inner += st.d.LimitOffset(m.limit, 0)
		}
		return " WHERE " + caps.RowID + " IN (" + inner + ")", nil
	case dialect.MutationLimitTop:
		// TOP(n) is written after the verb.
		if cond == "" {
			return "", nil
		}
		return " WHERE " + cond, nil
	}
	return "", strata.NewDialectCapabilityError(st.d.Name(), "limited mutations")
}

// PrimaryKeyWhere returns the condition matching the row identified by the
// primary key values in values.
func PrimaryKeyWhere(e *schema.Entity, values Values) (Where, error) {
	if len(e.PrimaryKeys) == 0 {
		return nil, strata.NewCompilationError(e.Name, errors.New("entity has no primary key"))
	}
	w := make(Where, len(e.PrimaryKeys))
	for _, pk := range e.PrimaryKeys {
		v, ok := values[pk.Name]
		if !ok || isNil(v) {
			return nil, strata.NewCompilationError(pk.Name, errors.New("missing primary key value"))
		}
		w[pk.Name] = v
	}
	return w, nil
}
