package sqlgen

import (
	"testing"

	"github.com/syssam/strata"
	"github.com/syssam/strata/internal/fixture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereClause(t *testing.T) {
	g := fixture.Graph()
	book := fixture.Entity(g, "Book")
	post := fixture.Entity(g, "Post")
	tests := []struct {
		name string
		d    Dialect
		w    Expr
		want string
	}{
		{name: "nil", d: Postgres(), w: nil, want: "1=1"},
		{name: "empty", d: Postgres(), w: Where{}, want: "1=1"},
		{name: "eq", d: Postgres(), w: Where{"a": 1}, want: `"a" = 1`},
		{name: "list", d: Postgres(), w: Where{"a": []int{1, 2, 3}}, want: `"a" IN (1, 2, 3)`},
		{name: "empty list", d: Postgres(), w: Where{"a": []any{}}, want: `"a" IN (NULL)`},
		{name: "empty not in", d: Postgres(), w: Where{"a": Ops{OpNotIn: []any{}}}, want: "1=1"},
		{name: "not in", d: Postgres(), w: NotIn("a", 1, 2), want: `"a" NOT IN (1, 2)`},
		{name: "column name", d: Postgres(), w: Where{"title": "x"}, want: `"book_title" = 'x'`},
		{name: "null", d: Postgres(), w: Where{"pages": nil}, want: `"pages" IS NULL`},
		{name: "not null", d: Postgres(), w: Ne("pages", nil), want: `"pages" IS NOT NULL`},
		{name: "ops", d: Postgres(), w: Where{"pages": Ops{OpGt: 1, OpLte: 5}}, want: `"pages" > 1 AND "pages" <= 5`},
		{name: "string ops", d: Postgres(), w: Where{"pages": map[string]any{"gte": 10}}, want: `"pages" >= 10`},
		{name: "sorted keys", d: Postgres(), w: Where{"b": 2, "a": 1}, want: `"a" = 1 AND "b" = 2`},
		{
			name: "or map",
			d:    Postgres(),
			w:    Where{KeyOr: []Where{{"a": 1}, {"b": 2}}},
			want: `("a" = 1 OR "b" = 2)`,
		},
		{
			name: "or beside key",
			d:    Postgres(),
			w:    Where{"c": 3, KeyOr: []Where{{"a": 1}, {"b": 2}}},
			want: `("a" = 1 OR "b" = 2) AND "c" = 3`,
		},
		{name: "or expr", d: Postgres(), w: Or(Eq("a", 1), Eq("b", 2)), want: `"a" = 1 OR "b" = 2`},
		{name: "empty or", d: Postgres(), w: Or(), want: "0=1"},
		{
			name: "nested and in or",
			d:    Postgres(),
			w:    Or(And(Eq("a", 1), Eq("b", 2)), Eq("c", 3)),
			want: `("a" = 1 AND "b" = 2) OR "c" = 3`,
		},
		{name: "not", d: Postgres(), w: Not(Eq("a", 1)), want: `NOT ("a" = 1)`},
		{name: "not map", d: Postgres(), w: Where{KeyNot: Where{"a": 1}}, want: `NOT ("a" = 1)`},
		{name: "between", d: Postgres(), w: Between("a", 1, 5), want: `("a" BETWEEN 1 AND 5)`},
		{name: "not between", d: Postgres(), w: NotBetween("a", 1, 5), want: `("a" NOT BETWEEN 1 AND 5)`},
		{name: "like", d: MySQL(), w: Like("a", "x%"), want: "`a` LIKE 'x%'"},
		{name: "ilike native", d: Postgres(), w: ILike("a", "x%"), want: `"a" ILIKE 'x%'`},
		{name: "ilike lowered", d: MySQL(), w: ILike("a", "x%"), want: "LOWER(`a`) LIKE LOWER('x%')"},
		{name: "not ilike lowered", d: SQLite(), w: NotILike("a", "x%"), want: `LOWER("a") NOT LIKE LOWER('x%')`},
		{name: "starts with", d: Postgres(), w: StartsWith("title", "ab"), want: `"book_title" LIKE 'ab%'`},
		{name: "ends with", d: Postgres(), w: EndsWith("title", "ab"), want: `"book_title" LIKE '%ab'`},
		{name: "substring", d: Postgres(), w: Substring("title", "ab"), want: `"book_title" LIKE '%ab%'`},
		{name: "escaped wildcard", d: Postgres(), w: StartsWith("title", "50%"), want: `"book_title" LIKE '50\%%' ESCAPE '\'`},
		{name: "is true keyword", d: Postgres(), w: Is("a", true), want: `"a" IS true`},
		{name: "is true integer", d: SQLite(), w: Is("a", true), want: `"a" = 1`},
		{name: "is not false integer", d: MSSQL(), w: IsNot("a", false), want: `[a] != 0`},
		{name: "is null", d: Oracle(), w: Is("a", nil), want: `"a" IS NULL`},
		{name: "contains", d: Postgres(), w: Contains("tags", []string{"x"}), want: `"tags" @> ARRAY['x']`},
		{name: "overlap", d: Postgres(), w: Overlap("tags", []int{1}), want: `"tags" && ARRAY[1]`},
		{name: "association path", d: Postgres(), w: Where{"author.name": "x"}, want: `"author"."name" = 'x'`},
		{name: "function", d: Postgres(), w: Cmp{Left: Fn("lower", C("title")), Op: OpEq, Value: "x"}, want: `lower("book_title") = 'x'`},
		{name: "cast", d: Postgres(), w: Cmp{Left: Cast{Expr: C("pages"), Type: "TEXT"}, Op: OpEq, Value: "1"}, want: `CAST("pages" AS TEXT) = '1'`},
		{name: "qualified column", d: Postgres(), w: Cmp{Left: C("b.pages"), Op: OpGt, Value: Col{Name: "pages"}}, want: `"b"."pages" > "pages"`},
		{name: "in subquery", d: Postgres(), w: In("a", Raw("SELECT 1")), want: `"a" IN (SELECT 1)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := New(tt.d, g).WhereClause(book, tt.w)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
		})
	}

	t.Run("json path", func(t *testing.T) {
		stmt, err := New(Postgres(), g).WhereClause(post, Where{"meta.a": 1})
		require.NoError(t, err)
		assert.Equal(t, `("meta"->>'a') = 1`, stmt.SQL)
		stmt, err = New(Postgres(), g).WhereClause(post, Where{"meta": map[string]any{"a": 1, "b": map[string]any{"c": 2}}})
		require.NoError(t, err)
		assert.Equal(t, `("meta"->>'a') = 1 AND ("meta"#>>'{b,c}') = 2`, stmt.SQL)
		stmt, err = New(SQLite(), g).WhereClause(post, Where{"meta.tags.0": "x"})
		require.NoError(t, err)
		assert.Equal(t, `json_extract("meta", '$.tags[0]') = 'x'`, stmt.SQL)
	})
}

func TestWhereClauseBind(t *testing.T) {
	g := fixture.Graph()
	book := fixture.Entity(g, "Book")
	tests := []struct {
		d        Dialect
		w        Expr
		wantSQL  string
		wantArgs []any
	}{
		{Postgres(), Where{"a": 1, "b": "x"}, `"a" = $1 AND "b" = $2`, []any{1, "x"}},
		{MySQL(), Where{"a": []int{1, 2}}, "`a` IN (?, ?)", []any{1, 2}},
		{MSSQL(), Between("a", 1, 2), "([a] BETWEEN @p1 AND @p2)", []any{1, 2}},
		{Oracle(), Where{"pages": nil}, `"pages" IS NULL`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			stmt, err := New(tt.d, g, WithBind()).WhereClause(book, tt.w)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, stmt.SQL)
			assert.Equal(t, tt.wantArgs, stmt.Args)
		})
	}
}

func TestWhereClauseErrors(t *testing.T) {
	g := fixture.Graph()
	book := fixture.Entity(g, "Book")
	tests := []struct {
		name  string
		d     Dialect
		w     Expr
		check func(error) bool
	}{
		{"unknown operator", Postgres(), Where{"a": map[string]any{"bogus": 1}}, strata.IsCompilationError},
		{"unknown op constant", Postgres(), Cmp{Left: C("a"), Op: "bogus", Value: 1}, strata.IsCompilationError},
		{"between arity", Postgres(), Where{"a": Ops{OpBetween: []int{1}}}, strata.IsCompilationError},
		{"in scalar", Postgres(), Where{"a": Ops{OpIn: 1}}, strata.IsCompilationError},
		{"is value", Postgres(), Is("a", 3), strata.IsCompilationError},
		{"starts with number", Postgres(), Where{"a": Ops{OpStartsWith: 1}}, strata.IsCompilationError},
		{"contains without arrays", MySQL(), Contains("a", []int{1}), strata.IsDialectCapabilityError},
		{"missing association", Postgres(), Where{"author.bogus": 1}, strata.IsCompilationError},
		{"not arity", Postgres(), Bool{Op: NotOp}, strata.IsCompilationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.d, g).WhereClause(book, tt.w)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}
