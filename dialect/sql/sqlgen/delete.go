package sqlgen

import (
	"fmt"
	"strings"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// Delete compiles a DELETE of the rows matching where. With the Truncate
// option and no where, the table is truncated on dialects that can.
func (g *Generator) Delete(e *schema.Entity, where Expr, opts ...MutationOption) (Statement, error) {
	st := g.newState()
	m := newMutation(opts)
	caps := st.d.Capabilities()
	table := quoteTable(st.d, e)
	if m.truncate && where == nil && caps.Truncate {
		return st.finish("TRUNCATE TABLE " + table), nil
	}
	cond, err := st.mutationWhere(e, where, m)
	if err != nil {
		return Statement{}, err
	}
	var b strings.Builder
	b.WriteString("DELETE ")
	if m.limit != nil && caps.DeleteLimit == dialect.MutationLimitTop {
		b.WriteString(fmt.Sprintf("TOP(%d) ", *m.limit))
	}
	b.WriteString("FROM " + table)
	b.WriteString(st.returning(e, m, dialect.ReturningOutput, "DELETED"))
	b.WriteString(cond)
	b.WriteString(st.returning(e, m, dialect.ReturningClause, ""))
	return st.finish(b.String()), nil
}
