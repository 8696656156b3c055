package model

import (
	"context"
	"fmt"
)

// Validator checks an instance before it is written. It returns the
// messages of every failing attribute, or nothing when the instance is
// valid.
type Validator interface {
	Validate(ctx context.Context, inst *Instance) map[string][]string
}

// The ValidatorFunc type is an adapter to allow the use of ordinary
// functions as Validator.
type ValidatorFunc func(context.Context, *Instance) map[string][]string

// Validate calls f(ctx, inst).
func (f ValidatorFunc) Validate(ctx context.Context, inst *Instance) map[string][]string {
	return f(ctx, inst)
}

// FieldValidator runs the validators declared on attributes and rejects
// NULL in attributes that are not nillable. New instances are checked in
// full, persisted ones on their changed attributes only.
type FieldValidator struct{}

// Validate implements the Validator interface.
func (FieldValidator) Validate(_ context.Context, inst *Instance) map[string][]string {
	var (
		e    = inst.model.entity
		errs = make(map[string][]string)
	)
	for _, a := range e.Attributes {
		if inst.state != StateNew && !inst.Changed(a.Name) {
			continue
		}
		v, ok := inst.values[a.Name]
		if !ok || isNil(v) {
			if !a.Nillable && !a.AutoIncrement && !a.HasDefault() {
				errs[a.Name] = append(errs[a.Name], "cannot be null")
			}
			continue
		}
		for _, fn := range a.Validators {
			if err := fn(v); err != nil {
				errs[a.Name] = append(errs[a.Name], err.Error())
			}
		}
	}
	return errs
}

// Validators runs several validators and merges their messages.
type Validators []Validator

// Validate implements the Validator interface.
func (vs Validators) Validate(ctx context.Context, inst *Instance) map[string][]string {
	errs := make(map[string][]string)
	for _, v := range vs {
		for k, msgs := range v.Validate(ctx, inst) {
			errs[k] = append(errs[k], msgs...)
		}
	}
	return errs
}

// Op is the kind of write a hook runs around.
type Op uint8

// Write operations.
const (
	OpCreate Op = iota + 1
	OpUpdate
	OpDestroy
)

// String returns the name of the operation.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDestroy:
		return "destroy"
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Hooks run around the writes of single instances. A Before hook
// returning an error aborts the write; an After hook error is returned
// after the write happened. BulkCreate runs the create hooks of every
// instance; the bulk Update and Destroy of a Model run none.
//
// Embed NopHooks to implement only some of them:
//
//	type audit struct{ model.NopHooks }
//
//	func (audit) AfterDestroy(ctx context.Context, inst *model.Instance) error {
//		slog.InfoContext(ctx, "destroyed", "entity", inst.Entity().Name)
//		return nil
//	}
type Hooks interface {
	BeforeCreate(context.Context, *Instance) error
	AfterCreate(context.Context, *Instance) error
	BeforeUpdate(context.Context, *Instance) error
	AfterUpdate(context.Context, *Instance) error
	BeforeDestroy(context.Context, *Instance) error
	AfterDestroy(context.Context, *Instance) error
}

// NopHooks implements Hooks with no-ops.
type NopHooks struct{}

func (NopHooks) BeforeCreate(context.Context, *Instance) error  { return nil }
func (NopHooks) AfterCreate(context.Context, *Instance) error   { return nil }
func (NopHooks) BeforeUpdate(context.Context, *Instance) error  { return nil }
func (NopHooks) AfterUpdate(context.Context, *Instance) error   { return nil }
func (NopHooks) BeforeDestroy(context.Context, *Instance) error { return nil }
func (NopHooks) AfterDestroy(context.Context, *Instance) error  { return nil }

// runHooks calls the before or after hook of op on every registered hook
// set, stopping at the first error.
func runHooks(ctx context.Context, hooks []Hooks, op Op, before bool, inst *Instance) error {
	for _, h := range hooks {
		var err error
		switch {
		case op == OpCreate && before:
			err = h.BeforeCreate(ctx, inst)
		case op == OpCreate:
			err = h.AfterCreate(ctx, inst)
		case op == OpUpdate && before:
			err = h.BeforeUpdate(ctx, inst)
		case op == OpUpdate:
			err = h.AfterUpdate(ctx, inst)
		case op == OpDestroy && before:
			err = h.BeforeDestroy(ctx, inst)
		default:
			err = h.AfterDestroy(ctx, inst)
		}
		if err != nil {
			when := "after"
			if before {
				when = "before"
			}
			return fmt.Errorf("strata: %s %s hook of %s: %w", when, op, inst.model.entity.Name, err)
		}
	}
	return nil
}
