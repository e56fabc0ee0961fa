package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

// DefaultMutatorRoles may perform every billing mutation.
var DefaultMutatorRoles = []string{"admin", "accountant"}

// RoleAuthorizer allows an action when the actor's role is one of the
// configured mutator roles.
type RoleAuthorizer struct {
	roles map[string]struct{}
}

func NewRoleAuthorizer(roles ...string) *RoleAuthorizer {
	if len(roles) == 0 {
		roles = DefaultMutatorRoles
	}

	a := &RoleAuthorizer{roles: make(map[string]struct{}, len(roles))}

	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			a.roles[r] = struct{}{}
		}
	}

	return a
}

func (a *RoleAuthorizer) Authorize(_ context.Context, actor billing.Actor, action billing.Action) error {
	if _, ok := a.roles[strings.ToLower(actor.Role)]; !ok {
		return fmt.Errorf("role %q cannot %s", actor.Role, action)
	}

	return nil
}
