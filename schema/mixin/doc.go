// Package mixin provides the base mixin implementation for strata entities.
//
// A mixin is a reusable set of attributes, associations and entity options
// that can be shared by several definitions:
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("created_by").Nillable(),
//	        field.String("updated_by").Nillable(),
//	    }
//	}
//
//	schema.Define("Invoice", schema.Mixins(Audit{}))
//
// For common patterns (timestamps, soft delete, UUID keys, tenant ID) see
// contrib/mixin.
package mixin
