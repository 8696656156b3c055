package strata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested instance does not exist.
	ErrNotFound = errors.New("strata: instance not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns zero or multiple results.
	ErrNotSingular = errors.New("strata: instance not singular")
)

// NotFoundError represents an error when an instance is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the primary key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("strata: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("strata: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the primary key that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives zero or multiple results.
type NotSingularError struct {
	label string
	count int // Number of results returned (-1 if unknown)
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("strata: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("strata: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Count returns the number of results, or -1 if unknown.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError for the given entity.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// NotLoadedError is returned when reading an association that was not
// eager-loaded on an instance.
type NotLoadedError struct {
	alias string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("strata: association %q was not loaded", e.alias)
}

// NewNotLoadedError returns a new NotLoadedError for the given alias.
func NewNotLoadedError(alias string) *NotLoadedError {
	return &NotLoadedError{alias: alias}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// Association error reasons.
const (
	ReasonMissing   = "missing"
	ReasonAmbiguous = "ambiguous"
	ReasonCollision = "collision"
)

// AssociationError is returned when an include or an associated path does
// not resolve to exactly one association of an entity.
type AssociationError struct {
	Entity string // Source entity name
	Alias  string // Requested alias or target name
	Reason string // ReasonMissing, ReasonAmbiguous or ReasonCollision
}

// Error returns the error string.
func (e *AssociationError) Error() string {
	switch e.Reason {
	case ReasonAmbiguous:
		return fmt.Sprintf("strata: %s is associated to %s more than once; use an alias to select one", e.Alias, e.Entity)
	case ReasonCollision:
		return fmt.Sprintf("strata: alias %q is used more than once on %s", e.Alias, e.Entity)
	default:
		return fmt.Sprintf("strata: %s is not associated to %s", e.Alias, e.Entity)
	}
}

// NewAssociationError returns a new AssociationError.
func NewAssociationError(entity, alias, reason string) *AssociationError {
	return &AssociationError{Entity: entity, Alias: alias, Reason: reason}
}

// IsAssociationError returns true if the error is an AssociationError.
func IsAssociationError(err error) bool {
	if err == nil {
		return false
	}
	var e *AssociationError
	return errors.As(err, &e)
}

// CompilationError is returned when a query description cannot be compiled
// into SQL. Key names the offending where key, attribute or option.
type CompilationError struct {
	Key string
	Err error
}

// Error returns the error string.
func (e *CompilationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("strata: compile: %v", e.Err)
	}
	return fmt.Sprintf("strata: compile %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompilationError) Unwrap() error {
	return e.Err
}

// NewCompilationError returns a new CompilationError.
func NewCompilationError(key string, err error) *CompilationError {
	return &CompilationError{Key: key, Err: err}
}

// IsCompilationError returns true if the error is a CompilationError.
func IsCompilationError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompilationError
	return errors.As(err, &e)
}

// SerializationError is returned when a value cannot be rendered as a SQL
// literal or converted to or from its driver representation.
type SerializationError struct {
	Type    string // Go type or semantic type of the value
	Dialect string // Empty for dialect-independent conversions
	Reason  string
}

// Error returns the error string.
func (e *SerializationError) Error() string {
	if e.Dialect != "" {
		return fmt.Sprintf("strata: cannot serialize %s for %s: %s", e.Type, e.Dialect, e.Reason)
	}
	return fmt.Sprintf("strata: cannot serialize %s: %s", e.Type, e.Reason)
}

// NewSerializationError returns a new SerializationError.
func NewSerializationError(typ, dialect, reason string) *SerializationError {
	return &SerializationError{Type: typ, Dialect: dialect, Reason: reason}
}

// IsSerializationError returns true if the error is a SerializationError.
func IsSerializationError(err error) bool {
	if err == nil {
		return false
	}
	var e *SerializationError
	return errors.As(err, &e)
}

// DialectCapabilityError is returned when a statement needs a feature the
// target dialect does not offer and no fallback exists.
type DialectCapabilityError struct {
	Dialect string
	Feature string
}

// Error returns the error string.
func (e *DialectCapabilityError) Error() string {
	return fmt.Sprintf("strata: %s does not support %s", e.Dialect, e.Feature)
}

// NewDialectCapabilityError returns a new DialectCapabilityError.
func NewDialectCapabilityError(dialect, feature string) *DialectCapabilityError {
	return &DialectCapabilityError{Dialect: dialect, Feature: feature}
}

// IsDialectCapabilityError returns true if the error is a DialectCapabilityError.
func IsDialectCapabilityError(err error) bool {
	if err == nil {
		return false
	}
	var e *DialectCapabilityError
	return errors.As(err, &e)
}

// DefinitionError reports an invalid entity or attribute definition.
type DefinitionError struct {
	Entity    string
	Attribute string // Empty for entity-level errors
	Err       error
}

// Error returns the error string.
func (e *DefinitionError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("strata: invalid definition of %s.%s: %v", e.Entity, e.Attribute, e.Err)
	}
	return fmt.Sprintf("strata: invalid definition of %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// NewDefinitionError returns a new DefinitionError.
func NewDefinitionError(entity, attribute string, err error) *DefinitionError {
	return &DefinitionError{Entity: entity, Attribute: attribute, Err: err}
}

// IsDefinitionError returns true if the error is a DefinitionError.
func IsDefinitionError(err error) bool {
	if err == nil {
		return false
	}
	var e *DefinitionError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strata: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// ValidationError carries the messages reported by the validation
// collaborator, keyed by attribute name.
type ValidationError struct {
	Entity string
	Fields map[string][]string
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return fmt.Sprintf("strata: validation failed for %s: %s", e.Entity, strings.Join(parts, "; "))
}

// NewValidationError returns a new ValidationError.
func NewValidationError(entity string, fields map[string][]string) *ValidationError {
	return &ValidationError{Entity: entity, Fields: fields}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// StateError is returned when an instance operation is not legal in the
// instance's current lifecycle state.
type StateError struct {
	Entity string
	State  string // Current state
	Op     string // Attempted operation
}

// Error returns the error string.
func (e *StateError) Error() string {
	return fmt.Sprintf("strata: cannot %s %s instance in state %s", e.Op, e.Entity, e.State)
}

// NewStateError returns a new StateError.
func NewStateError(entity, state, op string) *StateError {
	return &StateError{Entity: entity, State: state, Op: op}
}

// IsStateError returns true if the error is a StateError.
func IsStateError(err error) bool {
	if err == nil {
		return false
	}
	var e *StateError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "strata: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("strata: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
