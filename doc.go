// Package strata is an object-relational mapping layer. Entities, their
// attributes and associations are declared once (see the schema packages)
// and compiled into dialect specific SQL by dialect/sql/sqlgen. The model
// package maps result rows back into instances with change tracking.
//
// The root package holds the error kinds shared by every layer and the
// Cache interface used by the model runtime.
package strata
