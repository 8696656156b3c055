package mixin

import (
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Schema is the default implementation for the schema.Mixin interface.
// It should be embedded in all custom mixin definitions.
//
// Example:
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("created_by").Nillable(),
//	    }
//	}
type Schema struct{}

// Fields returns the attributes of the mixin.
func (Schema) Fields() []field.Field { return nil }

// Edges returns the associations of the mixin.
func (Schema) Edges() []edge.Edge { return nil }

// Options returns the entity options of the mixin.
func (Schema) Options() []schema.Option { return nil }

var _ schema.Mixin = (*Schema)(nil)

// Fields returns a mixin contributing only the given attributes.
func Fields(fields ...field.Field) schema.Mixin {
	return fieldsMixin(fields)
}

type fieldsMixin []field.Field

func (m fieldsMixin) Fields() []field.Field { return m }
func (fieldsMixin) Edges() []edge.Edge { return nil }
func (fieldsMixin) Options() []schema.Option { return nil }
