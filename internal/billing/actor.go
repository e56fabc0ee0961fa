package billing

import (
	"context"
	"fmt"
)

// Actor is the authenticated principal performing a mutation.
type Actor struct {
	ID   string
	Role string
}

// Action is a mutation that requires authorization.
type Action string

const (
	ActionAllocateNumber Action = "allocate_number"
	ActionCreateDocument Action = "create_document"
	ActionRecordPayment  Action = "record_payment"
	ActionDeleteInvoice  Action = "delete_invoice"
	ActionDeleteReceipt  Action = "delete_receipt"
)

type actorKey struct{}

// ContextWithActor returns a copy of ctx carrying actor.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored in ctx, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.ID != ""
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, actor Actor, action Action) error

func (f AuthorizerFunc) Authorize(ctx context.Context, actor Actor, action Action) error {
	return f(ctx, actor, action)
}

// authorize resolves the actor from ctx and asks the authorizer whether it may
// perform action. There is no path around the check.
func (s *Service) authorize(ctx context.Context, action Action) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, fmt.Errorf("%w: no actor for %s", ErrUnauthorized, action)
	}

	if err := s.authz.Authorize(ctx, actor, action); err != nil {
		return Actor{}, fmt.Errorf("%w: %s may not %s: %w", ErrForbidden, actor.ID, action, err)
	}

	return actor, nil
}
