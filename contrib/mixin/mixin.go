// Package mixin provides common mixin implementations for strata entities.
//
// These mixins are OPTIONAL and provided as convenient starting points.
// Users are encouraged to create their own mixins tailored to their needs.
//
// Available mixins:
//   - CreateTime: Adds a created_at timestamp maintained on create
//   - UpdateTime: Adds an updated_at timestamp maintained on every write
//   - Time: Combines CreateTime and UpdateTime
//   - ID: Adds a UUID primary key generated on build
//   - SoftDelete: Adds deleted_at and makes the entity paranoid
//   - TenantID: Adds tenant_id field for multi-tenancy
//   - TimeSoftDelete: Combines Time and SoftDelete
//
// Usage:
//
//	import "github.com/syssam/strata/contrib/mixin"
//
//	post := schema.MustDefine("Post",
//	    schema.Mixins(mixin.ID{}, mixin.TimeSoftDelete{}),
//	    schema.Fields(field.String("title")),
//	)
//
// Custom mixins:
//
// For project-specific needs, define your own mixins:
//
//	type AuditMixin struct {
//	    mixin.Schema
//	}
//
//	func (AuditMixin) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("created_by").Immutable(),
//	        field.String("updated_by"),
//	    }
//	}
package mixin

import (
	"github.com/google/uuid"

	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/mixin"
)

// Schema is the base mixin to embed in custom mixins.
type Schema = mixin.Schema

// CreateTime adds created_at time field.
// The field is immutable and set by the runtime when a row is created.
//
// Generated column:
//
//	created_at TIMESTAMP NOT NULL
type CreateTime struct{ mixin.Schema }

// Fields of the create time mixin.
func (CreateTime) Fields() []field.Field {
	return []field.Field{
		field.Time("created_at").
			Immutable(),
	}
}

// Options of the create time mixin.
func (CreateTime) Options() []schema.Option {
	return []schema.Option{schema.CreatedAt("created_at")}
}

// create time mixin must implement `Mixin` interface.
var _ schema.Mixin = (*CreateTime)(nil)

// UpdateTime adds updated_at time field.
// The field is set by the runtime on every write of an instance.
//
// Generated column:
//
//	updated_at TIMESTAMP NOT NULL
type UpdateTime struct{ mixin.Schema }

// Fields of the update time mixin.
func (UpdateTime) Fields() []field.Field {
	return []field.Field{
		field.Time("updated_at"),
	}
}

// Options of the update time mixin.
func (UpdateTime) Options() []schema.Option {
	return []schema.Option{schema.UpdatedAt("updated_at")}
}

// update time mixin must implement `Mixin` interface.
var _ schema.Mixin = (*UpdateTime)(nil)

// Time composes CreateTime and UpdateTime mixins.
// Provides both created_at and updated_at fields.
//
// This is the most common mixin for tracking entity timestamps.
type Time struct{ mixin.Schema }

// Fields of the time mixin.
func (Time) Fields() []field.Field {
	return append(
		CreateTime{}.Fields(),
		UpdateTime{}.Fields()...,
	)
}

// Options of the time mixin.
func (Time) Options() []schema.Option {
	return append(
		CreateTime{}.Options(),
		UpdateTime{}.Options()...,
	)
}

// time mixin must implement `Mixin` interface.
var _ schema.Mixin = (*Time)(nil)

// ID adds a UUID primary key field generated when an instance is built.
// Uses github.com/google/uuid for UUID generation.
//
// Generated column:
//
//	id UUID NOT NULL PRIMARY KEY
//
// For custom ID types (e.g., Snowflake IDs), create your own mixin:
//
//	type SnowflakeID struct{ mixin.Schema }
//
//	func (SnowflakeID) Fields() []field.Field {
//	    return []field.Field{
//	        field.Int64("id").PrimaryKey().Default(snowflake.Generate).Immutable(),
//	    }
//	}
type ID struct{ mixin.Schema }

// Fields of the ID mixin.
func (ID) Fields() []field.Field {
	return []field.Field{
		field.UUID("id").
			PrimaryKey().
			Default(uuid.New).
			Immutable(),
	}
}

// id mixin must implement `Mixin` interface.
var _ schema.Mixin = (*ID)(nil)

// SoftDelete adds a deleted_at field and makes the entity paranoid:
// destroying an instance sets deleted_at, and finds skip rows where it is
// set unless the query disables it.
//
//	posts.FindAll(ctx, &sqlgen.Query{Paranoid: sqlgen.BoolPtr(false)})
//
// Generated column:
//
//	deleted_at TIMESTAMP NULL
type SoftDelete struct{ mixin.Schema }

// Fields of the SoftDelete mixin.
func (SoftDelete) Fields() []field.Field {
	return []field.Field{
		field.Time("deleted_at").
			Nillable(),
	}
}

// Options of the SoftDelete mixin.
func (SoftDelete) Options() []schema.Option {
	return []schema.Option{schema.Paranoid("deleted_at")}
}

// soft delete mixin must implement `Mixin` interface.
var _ schema.Mixin = (*SoftDelete)(nil)

// TenantID adds a tenant_id field for multi-tenancy support.
// The field is immutable to prevent accidental tenant data leakage.
//
// For different naming conventions, create your own mixin:
//
//	type WorkspaceID struct{ mixin.Schema }
//
//	func (WorkspaceID) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("workspace_id").Immutable().NotEmpty(),
//	    }
//	}
type TenantID struct{ mixin.Schema }

// Fields of the TenantID mixin.
func (TenantID) Fields() []field.Field {
	return []field.Field{
		field.String("tenant_id").
			Immutable().
			NotEmpty(),
	}
}

// tenant id mixin must implement `Mixin` interface.
var _ schema.Mixin = (*TenantID)(nil)

// TimeSoftDelete composes Time and SoftDelete mixins.
// Provides created_at, updated_at, and deleted_at fields.
//
// This is useful for entities that need full audit trail with soft deletion.
type TimeSoftDelete struct{ mixin.Schema }

// Fields of the TimeSoftDelete mixin.
func (TimeSoftDelete) Fields() []field.Field {
	return append(
		Time{}.Fields(),
		SoftDelete{}.Fields()...,
	)
}

// Options of the TimeSoftDelete mixin.
func (TimeSoftDelete) Options() []schema.Option {
	return append(
		Time{}.Options(),
		SoftDelete{}.Options()...,
	)
}

// time soft delete mixin must implement `Mixin` interface.
var _ schema.Mixin = (*TimeSoftDelete)(nil)
