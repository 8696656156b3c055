package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/strata/model"
)

// Viewer represents the authenticated user making a request.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, or the empty
	// string when tenants are not used.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string       { return v.UserID }
func (v *SimpleViewer) GetRoles() []string  { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies writes without a viewer in
// the context.
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("strata/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows writes of viewers with the role,
// and skips otherwise.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows writes of viewers with any of the
// roles, and skips otherwise.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range viewer.GetRoles() {
			if slices.Contains(roles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a rule that allows writes of instances whose attribute
// holds the viewer's ID.
//
//	privacy.Policy{
//		privacy.DenyIfNoViewer(),
//		privacy.IsOwner("author_id"),
//		privacy.AlwaysDenyRule(),
//	}
func IsOwner(attr string) Rule {
	return RuleFunc(func(ctx context.Context, _ model.Op, inst *model.Instance) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if v, ok := inst.Lookup(attr); ok && v != nil && idString(v) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule returns a rule that denies writes of instances whose tenant
// attribute differs from the viewer's tenant. Viewers without a tenant,
// and instances with no tenant value, are skipped.
func TenantRule(attr string) Rule {
	return RuleFunc(func(ctx context.Context, _ model.Op, inst *model.Instance) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		v, ok := inst.Lookup(attr)
		if !ok || v == nil {
			return Skip
		}
		if idString(v) != viewer.GetTenantID() {
			return Denyf("strata/privacy: tenant mismatch on %s", inst.Entity().Name)
		}
		return Skip
	})
}

func idString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
