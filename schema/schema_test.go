package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

func library(t *testing.T) *schema.Graph {
	t.Helper()
	author := schema.MustDefine("Author",
		schema.Fields(field.String("name")),
		schema.Edges(
			edge.HasMany("Book").As("books"),
			edge.BelongsTo("Publisher").As("publisher"),
		),
	)
	book := schema.MustDefine("Book",
		schema.Fields(field.String("title").StorageKey("book_title")),
		schema.Edges(edge.BelongsTo("Author").As("author").Required()),
	)
	publisher := schema.MustDefine("Publisher", schema.Fields(field.String("name")))
	g, err := schema.NewGraph(author, book, publisher)
	require.NoError(t, err)
	return g
}

func TestDefine(t *testing.T) {
	t.Parallel()

	t.Run("implicit_id", func(t *testing.T) {
		e, err := schema.Define("BookReview", schema.Fields(field.Text("body")))
		require.NoError(t, err)
		assert.Equal(t, "book_reviews", e.Table)
		require.Len(t, e.PrimaryKeys, 1)
		assert.Equal(t, "id", e.PrimaryKey().Name)
		assert.Same(t, e.PrimaryKey(), e.AutoIncrement)
		assert.Equal(t, []string{"id", "body"}, e.AttributeNames())
	})

	t.Run("explicit_pk", func(t *testing.T) {
		e, err := schema.Define("Country",
			schema.Table("countries_iso"),
			schema.Fields(field.Char("code", 2).PrimaryKey(), field.String("name").Unique()),
		)
		require.NoError(t, err)
		assert.Equal(t, "countries_iso", e.Table)
		assert.Equal(t, []string{"code"}, e.PrimaryKeyNames())
		assert.Nil(t, e.AutoIncrement)
		require.Len(t, e.UniqueGroups, 1)
		assert.Equal(t, []string{"name"}, e.UniqueGroups[0].Attributes)
	})

	t.Run("unique_group", func(t *testing.T) {
		e, err := schema.Define("Membership", schema.Fields(
			field.Int("tenant_id").UniqueGroup("tenant_email"),
			field.String("email").UniqueGroup("tenant_email"),
		))
		require.NoError(t, err)
		require.Len(t, e.UniqueGroups, 1)
		assert.Equal(t, schema.UniqueGroup{Name: "tenant_email", Attributes: []string{"tenant_id", "email"}}, e.UniqueGroups[0])
	})

	t.Run("columns", func(t *testing.T) {
		e := schema.MustDefine("Book", schema.Fields(field.String("title").StorageKey("book_title")))
		assert.Equal(t, "book_title", e.Column("title"))
		assert.Equal(t, "unknown", e.Column("unknown"))
		d, ok := e.AttributeByColumn("book_title")
		require.True(t, ok)
		assert.Equal(t, "title", d.Name)
	})

	t.Run("timestamps_and_paranoid", func(t *testing.T) {
		e, err := schema.Define("Post",
			schema.Fields(
				field.Time("created_at"),
				field.Time("updated_at"),
				field.Time("deleted_at").Nillable(),
			),
			schema.Timestamps("created_at", "updated_at"),
			schema.Paranoid("deleted_at"),
		)
		require.NoError(t, err)
		assert.True(t, e.Paranoid())
		assert.Equal(t, "created_at", e.CreatedAt)
	})

	errs := []struct {
		name string
		opts []schema.Option
	}{
		{"two_auto_increments", []schema.Option{schema.Fields(field.Int("a").AutoIncrement().PrimaryKey(), field.Int("b").AutoIncrement())}},
		{"duplicate_attribute", []schema.Option{schema.Fields(field.Int("a"), field.String("a"))}},
		{"duplicate_column", []schema.Option{schema.Fields(field.Int("a"), field.String("b").StorageKey("a"))}},
		{"enum_without_values", []schema.Option{schema.Fields(field.Enum("status"))}},
		{"missing_timestamp", []schema.Option{schema.Timestamps("created_at", "")}},
		{"paranoid_not_nillable", []schema.Option{schema.Fields(field.Time("deleted_at")), schema.Paranoid("deleted_at")}},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Define("Bad", tt.opts...)
			require.Error(t, err)
			assert.True(t, strata.IsDefinitionError(err))
		})
	}
}

func TestNewGraph(t *testing.T) {
	t.Parallel()
	g := library(t)

	author, ok := g.Entity("Author")
	require.True(t, ok)
	book, _ := g.Entity("Book")

	t.Run("foreign_keys_added", func(t *testing.T) {
		fk, ok := book.Attribute("author_id")
		require.True(t, ok)
		assert.False(t, fk.Nillable)
		assert.Equal(t, field.TypeInt, fk.Info.Type)
		assert.False(t, fk.AutoIncrement)
		pfk, ok := author.Attribute("publisher_id")
		require.True(t, ok)
		assert.True(t, pfk.Nillable)
	})

	t.Run("associations", func(t *testing.T) {
		books, err := g.Association(author, "books")
		require.NoError(t, err)
		assert.Equal(t, edge.KindHasMany, books.Kind)
		assert.True(t, books.ToMany())
		assert.Equal(t, "author_id", books.ForeignKey)
		assert.Equal(t, "id", books.SourceKey)
		assert.Same(t, book, books.Target)

		byTarget, err := g.Association(author, "Book")
		require.NoError(t, err)
		assert.Same(t, books, byTarget)

		owner, err := g.Association(book, "author")
		require.NoError(t, err)
		assert.Equal(t, "id", owner.TargetKey)
		assert.Equal(t, edge.Cascade, owner.OnDelete)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := g.Association(author, "Comment")
		require.Error(t, err)
		var ae *strata.AssociationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "Author", ae.Entity)
		assert.Equal(t, "Comment", ae.Alias)
		assert.Equal(t, strata.ReasonMissing, ae.Reason)
		_, ok := g.Resolve(author, "Comment")
		assert.False(t, ok)
	})

	t.Run("paths", func(t *testing.T) {
		assert.True(t, g.IsAssociatedPath(book, "author.publisher.name"))
		assert.True(t, g.IsAssociatedPath(book, "author.name"))
		assert.False(t, g.IsAssociatedPath(book, "author.nope"))
		assert.False(t, g.IsAssociatedPath(book, "title"))
		quote := func(s string) string { return `"` + s + `"` }
		col, err := g.ColumnForPath(book, "author.publisher.name", quote)
		require.NoError(t, err)
		assert.Equal(t, `"author->publisher"."name"`, col)
		col, err = g.ColumnForPath(author, "books.title", quote)
		require.NoError(t, err)
		assert.Equal(t, `"books"."book_title"`, col)
		_, err = g.ColumnForPath(author, "books.nope", quote)
		assert.True(t, strata.IsCompilationError(err))
	})

	t.Run("inputs_untouched", func(t *testing.T) {
		plain := schema.MustDefine("Book", schema.Edges(edge.BelongsTo("Author")))
		a := schema.MustDefine("Author")
		_, err := schema.NewGraph(plain, a)
		require.NoError(t, err)
		_, ok := plain.Attribute("author_id")
		assert.False(t, ok)
		assert.Empty(t, plain.Associations)
	})
}

func TestBelongsToMany(t *testing.T) {
	t.Parallel()

	t.Run("declared_junction", func(t *testing.T) {
		student := schema.MustDefine("Student", schema.Edges(edge.BelongsToMany("Course").As("courses").Through("Enrollment")))
		course := schema.MustDefine("Course", schema.Edges(edge.BelongsToMany("Student").As("students").Through("Enrollment")))
		enrollment := schema.MustDefine("Enrollment", schema.Fields(field.String("grade").Nillable()))
		g, err := schema.NewGraph(student, course, enrollment)
		require.NoError(t, err)
		s, _ := g.Entity("Student")
		a, err := g.Association(s, "courses")
		require.NoError(t, err)
		assert.Equal(t, "Enrollment", a.Through.Name)
		assert.Equal(t, "student_id", a.ForeignKey)
		assert.Equal(t, "course_id", a.OtherKey)
		_, ok := a.Through.Attribute("student_id")
		assert.True(t, ok)
		assert.Equal(t, []string{"id", "grade", "student_id", "course_id"}, a.Through.AttributeNames())
		assert.Len(t, g.Entities(), 3)
	})

	t.Run("synthesized_junction", func(t *testing.T) {
		student := schema.MustDefine("Student", schema.Edges(edge.BelongsToMany("Course").As("courses")))
		course := schema.MustDefine("Course", schema.Edges(edge.BelongsToMany("Student").As("students")))
		g, err := schema.NewGraph(student, course)
		require.NoError(t, err)
		j, ok := g.Entity("CourseStudent")
		require.True(t, ok)
		assert.True(t, j.Junction())
		assert.Equal(t, "course_students", j.Table)
		assert.Equal(t, []string{"student_id", "course_id"}, j.PrimaryKeyNames())
		assert.Len(t, g.Entities(), 3)
	})

	t.Run("self_reference_needs_keys", func(t *testing.T) {
		p := schema.MustDefine("Person", schema.Edges(edge.BelongsToMany("Person").As("friends")))
		_, err := schema.NewGraph(p)
		assert.True(t, strata.IsDefinitionError(err))
	})
}

func TestGraphErrors(t *testing.T) {
	t.Parallel()

	t.Run("alias_collision", func(t *testing.T) {
		a := schema.MustDefine("Author", schema.Edges(edge.HasMany("Book").As("items"), edge.HasMany("Magazine").As("items")))
		_, err := schema.NewGraph(a, schema.MustDefine("Book"), schema.MustDefine("Magazine"))
		var ae *strata.AssociationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, strata.ReasonCollision, ae.Reason)
	})

	t.Run("ambiguous_target", func(t *testing.T) {
		a := schema.MustDefine("Author", schema.Edges(
			edge.HasMany("Book").As("written").ForeignKey("writer_id"),
			edge.HasMany("Book").As("edited").ForeignKey("editor_id"),
		))
		g, err := schema.NewGraph(a, schema.MustDefine("Book"))
		require.NoError(t, err)
		author, _ := g.Entity("Author")
		_, err = g.Association(author, "Book")
		var ae *strata.AssociationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, strata.ReasonAmbiguous, ae.Reason)
	})

	t.Run("unknown_target", func(t *testing.T) {
		_, err := schema.NewGraph(schema.MustDefine("Author", schema.Edges(edge.HasMany("Book"))))
		assert.True(t, strata.IsDefinitionError(err))
	})

	t.Run("default_aliases", func(t *testing.T) {
		g, err := schema.NewGraph(
			schema.MustDefine("Author", schema.Edges(edge.HasMany("Book"))),
			schema.MustDefine("Book", schema.Edges(edge.BelongsTo("Author"))),
		)
		require.NoError(t, err)
		author, _ := g.Entity("Author")
		book, _ := g.Entity("Book")
		assert.Equal(t, "Books", author.Associations[0].As)
		assert.Equal(t, "Author", book.Associations[0].As)
		assert.Equal(t, "author_id", book.Associations[0].ForeignKey)
	})
}
