package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/strata/model"
)

// Policy decision sentinel errors. Rules wrap them, so check decisions
// with errors.Is:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow ends the evaluation of a policy and permits the write.
	Allow = errors.New("strata/privacy: allow rule")

	// Deny ends the evaluation of a policy and rejects the write.
	Deny = errors.New("strata/privacy: deny rule")

	// Skip passes the decision to the next rule of the policy.
	Skip = errors.New("strata/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides whether the op write of inst is permitted. It returns
// Allow, Deny or Skip, possibly wrapped; nil is read as Skip and any other
// error rejects the write.
type Rule interface {
	Eval(ctx context.Context, op model.Op, inst *model.Instance) error
}

// The RuleFunc type is an adapter to allow the use of ordinary functions
// as rules.
type RuleFunc func(context.Context, model.Op, *model.Instance) error

// Eval returns f(ctx, op, inst).
func (f RuleFunc) Eval(ctx context.Context, op model.Op, inst *model.Instance) error {
	return f(ctx, op, inst)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return RuleFunc(func(context.Context, model.Op, *model.Instance) error { return Allow })
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return RuleFunc(func(context.Context, model.Op, *model.Instance) error { return Deny })
}

// ContextRule creates a rule from a function of the context only.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ model.Op, _ *model.Instance) error {
		return eval(ctx)
	})
}

// OnOperation evaluates rule on the given operations only, and skips the
// others.
func OnOperation(rule Rule, ops ...model.Op) Rule {
	return RuleFunc(func(ctx context.Context, op model.Op, inst *model.Instance) error {
		if slices.Contains(ops, op) {
			return rule.Eval(ctx, op, inst)
		}
		return Skip
	})
}

// DenyOperationRule returns a rule denying the given operations.
func DenyOperationRule(ops ...model.Op) Rule {
	return OnOperation(RuleFunc(func(_ context.Context, op model.Op, inst *model.Instance) error {
		return Denyf("strata/privacy: %s of %s is not allowed", op, inst.Entity().Name)
	}), ops...)
}

// AllowOperationRule returns a rule allowing the given operations.
func AllowOperationRule(ops ...model.Op) Rule {
	return OnOperation(AlwaysAllowRule(), ops...)
}

// Policy is an ordered list of rules. The first rule returning a decision
// other than Skip settles it; a policy where every rule skips permits the
// write, so end it with AlwaysDenyRule to deny by default.
//
// Policy implements model.Hooks and is registered per entity:
//
//	client, err := model.New(graph, drv, model.WithHooks("Book", privacy.Policy{
//		privacy.DenyIfNoViewer(),
//		privacy.HasRole("admin"),
//		privacy.IsOwner("author_id"),
//		privacy.AlwaysDenyRule(),
//	}))
type Policy []Rule

// Eval evaluates the policy for the op write of inst. It returns nil when
// the write is permitted, and the deciding error otherwise.
func (p Policy) Eval(ctx context.Context, op model.Op, inst *model.Instance) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, op, inst); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// BeforeCreate implements the model.Hooks interface.
func (p Policy) BeforeCreate(ctx context.Context, inst *model.Instance) error {
	return p.Eval(ctx, model.OpCreate, inst)
}

// BeforeUpdate implements the model.Hooks interface.
func (p Policy) BeforeUpdate(ctx context.Context, inst *model.Instance) error {
	return p.Eval(ctx, model.OpUpdate, inst)
}

// BeforeDestroy implements the model.Hooks interface.
func (p Policy) BeforeDestroy(ctx context.Context, inst *model.Instance) error {
	return p.Eval(ctx, model.OpDestroy, inst)
}

func (Policy) AfterCreate(context.Context, *model.Instance) error  { return nil }
func (Policy) AfterUpdate(context.Context, *model.Instance) error  { return nil }
func (Policy) AfterDestroy(context.Context, *model.Instance) error { return nil }

var _ model.Hooks = Policy(nil)

type decisionCtxKey struct{}

// DecisionContext returns a copy of parent carrying a decision that
// every policy returns without evaluating its rules. A nil or Skip
// decision returns parent unchanged.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
// An Allow decision is reported as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}
