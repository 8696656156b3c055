package edge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/strata/schema/edge"
)

func TestBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func() *edge.Descriptor
		validate func(t *testing.T, desc *edge.Descriptor)
	}{
		{
			name:  "belongs_to",
			build: func() *edge.Descriptor { return edge.BelongsTo("Author").As("author").Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, edge.KindBelongsTo, desc.Kind)
				assert.Equal(t, "Author", desc.Target)
				assert.Equal(t, "author", desc.As)
				assert.False(t, desc.Kind.ToMany())
				assert.NoError(t, desc.Err)
			},
		},
		{
			name: "has_many_keys",
			build: func() *edge.Descriptor {
				return edge.HasMany("Book").As("books").ForeignKey("writer_id").SourceKey("uuid").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.True(t, desc.Kind.ToMany())
				assert.Equal(t, "writer_id", desc.ForeignKey)
				assert.Equal(t, "uuid", desc.SourceKey)
			},
		},
		{
			name: "belongs_to_many",
			build: func() *edge.Descriptor {
				return edge.BelongsToMany("Course").Through("Enrollment").ForeignKey("student_id").OtherKey("course_id").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "BelongsToMany", desc.Kind.String())
				assert.Equal(t, "Enrollment", desc.Through)
				assert.Equal(t, "course_id", desc.OtherKey)
				assert.NoError(t, desc.Err)
			},
		},
		{
			name: "required_actions",
			build: func() *edge.Descriptor {
				return edge.BelongsTo("Author").Required().OnDelete(edge.Cascade).OnUpdate(edge.Restrict).Comment("owner").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.True(t, desc.Required)
				assert.Equal(t, "CASCADE", desc.OnDelete)
				assert.Equal(t, "RESTRICT", desc.OnUpdate)
				assert.Equal(t, "owner", desc.Comment)
			},
		},
		{
			name:  "missing_target",
			build: func() *edge.Descriptor { return edge.HasOne("").Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Error(t, desc.Err)
			},
		},
		{
			name:  "through_on_has_many",
			build: func() *edge.Descriptor { return edge.HasMany("Book").Through("X").Descriptor() },
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Error(t, desc.Err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, tt.build())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "HasOne", edge.KindHasOne.String())
	assert.Equal(t, "HasMany", edge.KindHasMany.String())
	assert.Equal(t, "Invalid", edge.Kind(0).String())
}
