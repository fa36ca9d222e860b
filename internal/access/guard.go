package access

import (
	"errors"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

// Guard authorizes a caller against diamond state.
type Guard interface {
	Authorize(caller util.Uint160, st state.Store) error
}

// OwnerGuard admits only the recorded owner.
type OwnerGuard struct{}

// Authorize implements Guard.
func (OwnerGuard) Authorize(caller util.Uint160, st state.Store) error {
	if !OpenOwner(st).IsOwner(caller) {
		return ErrUnauthorizedAccount
	}
	return nil
}

// RoleGuard admits holders of Role.
type RoleGuard struct {
	Role Role
}

// Authorize implements Guard.
func (g RoleGuard) Authorize(caller util.Uint160, st state.Store) error {
	if !OpenRoles(st).HasRole(g.Role, caller) {
		return RoleError{Account: caller, Role: g.Role}
	}
	return nil
}

// AnyGuard admits a caller that any member admits.
type AnyGuard []Guard

// Authorize implements Guard.
func (g AnyGuard) Authorize(caller util.Uint160, st state.Store) error {
	errs := make([]error, 0, len(g))
	for _, guard := range g {
		err := guard.Authorize(caller, st)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrUnauthorizedAccount
	}
	return errors.Join(errs...)
}

// PolicyGuard evaluates a boolean expr-lang expression. The expression sees
// caller and owner as 0x-prefixed little-endian hex strings, isOwner, and
// hasRole(name) which accepts a role name or hex role.
type PolicyGuard struct {
	expression string
	program    *exprvm.Program
}

type policyEnv struct {
	Caller  string            `expr:"caller"`
	Owner   string            `expr:"owner"`
	IsOwner bool              `expr:"isOwner"`
	HasRole func(string) bool `expr:"hasRole"`
}

// NewPolicyGuard compiles expression.
func NewPolicyGuard(expression string) (*PolicyGuard, error) {
	if expression == "" {
		return nil, fmt.Errorf("access: policy expression must not be empty")
	}
	program, err := exprlang.Compile(expression, exprlang.Env(policyEnv{}), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("access: compile policy %q: %w", expression, err)
	}
	return &PolicyGuard{expression: expression, program: program}, nil
}

// Expression returns the policy source.
func (g *PolicyGuard) Expression() string {
	return g.expression
}

// Authorize implements Guard.
func (g *PolicyGuard) Authorize(caller util.Uint160, st state.Store) error {
	owner := OpenOwner(st)
	roles := OpenRoles(st)
	env := policyEnv{
		Caller:  "0x" + caller.StringLE(),
		Owner:   "0x" + owner.Owner().StringLE(),
		IsOwner: owner.IsOwner(caller),
		HasRole: func(name string) bool {
			return roles.HasRole(ParseRole(name), caller)
		},
	}
	out, err := exprlang.Run(g.program, env)
	if err != nil {
		return fmt.Errorf("access: evaluate policy: %w", err)
	}
	if ok, _ := out.(bool); !ok {
		return ErrUnauthorizedAccount
	}
	return nil
}
