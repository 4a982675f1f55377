package domain

import "context"

type contextKey string

const (
	tenantKey contextKey = "tenant_code"
	actorKey  contextKey = "actor"
)

// Actor identifies who is requesting a transition, as supplied by the
// authentication layer outside this core.
type Actor struct {
	Name  string
	Roles []string
}

// HasRole reports whether the actor carries the given role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Operator returns the name to record in history, falling back to "system".
func (a Actor) Operator() string {
	if a.Name == "" {
		return OperatorSystem
	}
	return a.Name
}

// WithTenant returns a context scoped to the given tenant code. An empty
// code means system scope.
func WithTenant(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, tenantKey, code)
}

// TenantCode returns the tenant code carried by the context, or "" for
// system scope.
func TenantCode(ctx context.Context) string {
	if code, ok := ctx.Value(tenantKey).(string); ok {
		return code
	}
	return ""
}

// WithActor returns a context carrying the acting user.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the acting user carried by the context, or the zero
// Actor (operator "system") when none is set.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey).(Actor); ok {
		return a
	}
	return Actor{}
}
