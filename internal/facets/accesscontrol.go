package facets

import (
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/access"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
)

// RoleRequest is the payload of the role functions taking an account.
type RoleRequest struct {
	Role    access.Role `json:"role"`
	Account string      `json:"account"`
}

// RoleAdminRequest is the payload of setRoleAdmin.
type RoleAdminRequest struct {
	Role  access.Role `json:"role"`
	Admin access.Role `json:"admin"`
}

// NewAccessControl returns the role-based access control facet.
func NewAccessControl() *Table {
	withAccount := func(typ events.EventType, op func(r access.Roles, caller util.Uint160, role access.Role, account util.Uint160) error) Handler {
		return func(env *diamond.Env, input []byte) ([]byte, error) {
			var req RoleRequest
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			account, err := parseAddress(req.Account)
			if err != nil {
				return nil, err
			}
			if err := op(access.OpenRoles(env.State), env.Caller, req.Role, account); err != nil {
				return nil, err
			}
			env.Emit(events.NewEvent(typ).
				Metadata("role", req.Role.String()).
				Metadata("account", diamond.FormatAddress(account)).
				Build())
			return nil, nil
		}
	}

	return NewTable("AccessControlFacet").
		Handle("hasRole(bytes32,address)", func(env *diamond.Env, input []byte) ([]byte, error) {
			var req RoleRequest
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			account, err := parseAddress(req.Account)
			if err != nil {
				return nil, err
			}
			return encode(access.OpenRoles(env.State).HasRole(req.Role, account))
		}).
		Handle("getRoleAdmin(bytes32)", func(env *diamond.Env, input []byte) ([]byte, error) {
			var role access.Role
			if err := decode(input, &role); err != nil {
				return nil, err
			}
			return encode(access.OpenRoles(env.State).RoleAdmin(role))
		}).
		Handle("grantRole(bytes32,address)", withAccount(events.EventRoleGranted, access.Roles.GrantRole)).
		Handle("revokeRole(bytes32,address)", withAccount(events.EventRoleRevoked, access.Roles.RevokeRole)).
		Handle("renounceRole(bytes32,address)", withAccount(events.EventRoleRevoked, access.Roles.RenounceRole)).
		Handle("setRoleAdmin(bytes32,bytes32)", func(env *diamond.Env, input []byte) ([]byte, error) {
			var req RoleAdminRequest
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			if err := access.OpenRoles(env.State).SetRoleAdmin(env.Caller, req.Role, req.Admin); err != nil {
				return nil, err
			}
			env.Emit(events.NewEvent(events.EventRoleAdminChanged).
				Metadata("role", req.Role.String()).
				Metadata("admin", req.Admin.String()).
				Build())
			return nil, nil
		})
}
