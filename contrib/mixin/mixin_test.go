package mixin_test

import (
	"testing"

	"github.com/syssam/strata/contrib/mixin"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateTimeMixin tests the CreateTime mixin.
func TestCreateTimeMixin(t *testing.T) {
	m := mixin.CreateTime{}

	t.Run("has_one_field", func(t *testing.T) {
		fields := m.Fields()
		require.Len(t, fields, 1)
	})

	t.Run("field_name", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.Equal(t, "created_at", desc.Name)
		assert.Equal(t, field.TypeTime, desc.Info.Type)
	})

	t.Run("field_is_immutable", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.True(t, desc.Immutable)
	})

	t.Run("maintained_on_create_only", func(t *testing.T) {
		e, err := schema.Define("Event", schema.Mixins(m))
		require.NoError(t, err)
		assert.Equal(t, "created_at", e.CreatedAt)
		assert.Empty(t, e.UpdatedAt)
	})
}

// TestUpdateTimeMixin tests the UpdateTime mixin.
func TestUpdateTimeMixin(t *testing.T) {
	m := mixin.UpdateTime{}

	t.Run("has_one_field", func(t *testing.T) {
		fields := m.Fields()
		require.Len(t, fields, 1)
	})

	t.Run("field_name", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.Equal(t, "updated_at", desc.Name)
	})

	t.Run("not_immutable", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.False(t, desc.Immutable)
	})

	t.Run("maintained_on_update", func(t *testing.T) {
		e, err := schema.Define("Event", schema.Mixins(m))
		require.NoError(t, err)
		assert.Empty(t, e.CreatedAt)
		assert.Equal(t, "updated_at", e.UpdatedAt)
	})
}

// TestTimeMixin tests the composed Time mixin.
func TestTimeMixin(t *testing.T) {
	tests := []struct {
		name     string
		validate func(t *testing.T, fields []field.Field)
	}{
		{
			name: "has_two_fields",
			validate: func(t *testing.T, fields []field.Field) {
				require.Len(t, fields, 2)
			},
		},
		{
			name: "first_field_is_created_at",
			validate: func(t *testing.T, fields []field.Field) {
				assert.Equal(t, "created_at", fields[0].Descriptor().Name)
			},
		},
		{
			name: "second_field_is_updated_at",
			validate: func(t *testing.T, fields []field.Field) {
				assert.Equal(t, "updated_at", fields[1].Descriptor().Name)
			},
		},
		{
			name: "create_time_is_immutable",
			validate: func(t *testing.T, fields []field.Field) {
				assert.True(t, fields[0].Descriptor().Immutable)
			},
		},
		{
			name: "update_time_is_not_immutable",
			validate: func(t *testing.T, fields []field.Field) {
				assert.False(t, fields[1].Descriptor().Immutable)
			},
		},
		{
			name: "no_literal_defaults",
			validate: func(t *testing.T, fields []field.Field) {
				assert.False(t, fields[0].Descriptor().HasDefault())
				assert.False(t, fields[1].Descriptor().HasDefault())
			},
		},
	}

	m := mixin.Time{}
	fields := m.Fields()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, fields)
		})
	}

	e, err := schema.Define("Event", schema.Mixins(m))
	require.NoError(t, err)
	assert.Equal(t, "created_at", e.CreatedAt)
	assert.Equal(t, "updated_at", e.UpdatedAt)
}

// TestIDMixin tests the ID mixin.
func TestIDMixin(t *testing.T) {
	m := mixin.ID{}

	t.Run("has_one_field", func(t *testing.T) {
		fields := m.Fields()
		require.Len(t, fields, 1)
	})

	t.Run("field_name", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.Equal(t, "id", desc.Name)
		assert.Equal(t, field.TypeUUID, desc.Info.Type)
	})

	t.Run("field_is_immutable", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.True(t, desc.Immutable)
	})

	t.Run("generates_uuids", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		require.True(t, desc.IsDefaultFunc())
		a, ok := desc.DefaultValue().(uuid.UUID)
		require.True(t, ok)
		b := desc.DefaultValue().(uuid.UUID)
		assert.NotEqual(t, uuid.Nil, a)
		assert.NotEqual(t, a, b)
	})

	t.Run("replaces_implicit_key", func(t *testing.T) {
		e, err := schema.Define("Event", schema.Mixins(m), schema.Fields(field.String("name")))
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, e.AttributeNames())
		assert.Equal(t, []string{"id"}, e.PrimaryKeyNames())
		assert.Nil(t, e.AutoIncrement)
	})
}

// TestSoftDeleteMixin tests the SoftDelete mixin.
func TestSoftDeleteMixin(t *testing.T) {
	m := mixin.SoftDelete{}

	t.Run("has_one_field", func(t *testing.T) {
		fields := m.Fields()
		require.Len(t, fields, 1)
	})

	t.Run("field_name", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.Equal(t, "deleted_at", desc.Name)
	})

	t.Run("field_is_nillable", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.True(t, desc.Nillable)
	})

	t.Run("entity_is_paranoid", func(t *testing.T) {
		e, err := schema.Define("Event", schema.Mixins(m))
		require.NoError(t, err)
		assert.True(t, e.Paranoid())
		assert.Equal(t, "deleted_at", e.DeletedAt)
	})
}

// TestTenantIDMixin tests the TenantID mixin.
func TestTenantIDMixin(t *testing.T) {
	m := mixin.TenantID{}

	t.Run("has_one_field", func(t *testing.T) {
		fields := m.Fields()
		require.Len(t, fields, 1)
	})

	t.Run("field_name", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.Equal(t, "tenant_id", desc.Name)
	})

	t.Run("field_is_immutable", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		assert.True(t, desc.Immutable)
	})

	t.Run("has_validator", func(t *testing.T) {
		desc := m.Fields()[0].Descriptor()
		require.NotEmpty(t, desc.Validators, "tenant_id should have NotEmpty validator")
		assert.Error(t, desc.Validators[0](""))
		assert.NoError(t, desc.Validators[0]("acme"))
	})
}

// TestTimeSoftDeleteMixin tests the TimeSoftDelete mixin.
func TestTimeSoftDeleteMixin(t *testing.T) {
	m := mixin.TimeSoftDelete{}

	t.Run("has_three_fields", func(t *testing.T) {
		fields := m.Fields()
		require.Len(t, fields, 3)
	})

	t.Run("field_names", func(t *testing.T) {
		fields := m.Fields()
		assert.Equal(t, "created_at", fields[0].Descriptor().Name)
		assert.Equal(t, "updated_at", fields[1].Descriptor().Name)
		assert.Equal(t, "deleted_at", fields[2].Descriptor().Name)
	})

	t.Run("entity_options", func(t *testing.T) {
		e, err := schema.Define("Event", schema.Mixins(m))
		require.NoError(t, err)
		assert.Equal(t, "created_at", e.CreatedAt)
		assert.Equal(t, "updated_at", e.UpdatedAt)
		assert.Equal(t, "deleted_at", e.DeletedAt)
	})
}

// TestMixinComposition tests composing custom mixins with contrib mixins.
func TestMixinComposition(t *testing.T) {
	t.Run("custom_mixin_with_time", func(t *testing.T) {
		// Custom mixin that embeds Time
		type CustomMixin struct {
			mixin.Time
		}

		m := CustomMixin{}
		fields := m.Fields()
		require.Len(t, fields, 2)
		assert.Equal(t, "created_at", fields[0].Descriptor().Name)
		assert.Equal(t, "updated_at", fields[1].Descriptor().Name)
	})

	t.Run("create_and_update_time", func(t *testing.T) {
		e, err := schema.Define("Event", schema.Mixins(mixin.CreateTime{}, mixin.UpdateTime{}))
		require.NoError(t, err)
		assert.Equal(t, "created_at", e.CreatedAt)
		assert.Equal(t, "updated_at", e.UpdatedAt)
	})

	t.Run("direct_options_win", func(t *testing.T) {
		e, err := schema.Define("Event",
			schema.Mixins(mixin.Time{}),
			schema.Fields(field.Time("modified_at")),
			schema.UpdatedAt("modified_at"),
		)
		require.NoError(t, err)
		assert.Equal(t, "modified_at", e.UpdatedAt)
	})
}

// TestMixinImplementsInterface tests that all mixins implement schema.Mixin.
func TestMixinImplementsInterface(t *testing.T) {
	t.Run("CreateTime", func(_ *testing.T) {
		var _ schema.Mixin = mixin.CreateTime{}
		var _ schema.Mixin = &mixin.CreateTime{}
	})

	t.Run("UpdateTime", func(_ *testing.T) {
		var _ schema.Mixin = mixin.UpdateTime{}
		var _ schema.Mixin = &mixin.UpdateTime{}
	})

	t.Run("Time", func(_ *testing.T) {
		var _ schema.Mixin = mixin.Time{}
		var _ schema.Mixin = &mixin.Time{}
	})

	t.Run("ID", func(_ *testing.T) {
		var _ schema.Mixin = mixin.ID{}
		var _ schema.Mixin = &mixin.ID{}
	})

	t.Run("SoftDelete", func(_ *testing.T) {
		var _ schema.Mixin = mixin.SoftDelete{}
		var _ schema.Mixin = &mixin.SoftDelete{}
	})

	t.Run("TenantID", func(_ *testing.T) {
		var _ schema.Mixin = mixin.TenantID{}
		var _ schema.Mixin = &mixin.TenantID{}
	})

	t.Run("TimeSoftDelete", func(_ *testing.T) {
		var _ schema.Mixin = mixin.TimeSoftDelete{}
		var _ schema.Mixin = &mixin.TimeSoftDelete{}
	})
}

// BenchmarkMixin benchmarks mixin operations.
func BenchmarkMixin(b *testing.B) {
	b.Run("Time.Fields", func(b *testing.B) {
		m := mixin.Time{}
		for i := 0; i < b.N; i++ {
			_ = m.Fields()
		}
	})

	b.Run("TimeSoftDelete.Define", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = schema.Define("Event", schema.Mixins(mixin.ID{}, mixin.TimeSoftDelete{}))
		}
	})
}
