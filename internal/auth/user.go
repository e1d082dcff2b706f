package auth

import "context"

type ctxKey string

const contextActorKey ctxKey = "actor"

// Actor identifies the authenticated employee performing an operation. It
// is threaded explicitly from the HTTP layer into every service call;
// there is no ambient process-wide current user.
type Actor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (a *Actor) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func ActorFromContext(ctx context.Context) (*Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	actor, ok := ctx.Value(contextActorKey).(*Actor)
	return actor, ok
}

func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, contextActorKey, actor)
}
