package access

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"golang.org/x/crypto/sha3"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

// Role identifies a permission set.
type Role util.Uint256

// DefaultAdminRole administers every role without an explicit admin.
var DefaultAdminRole Role

// RoleFromName derives a role as keccak256(name).
func RoleFromName(name string) Role {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	var r Role
	copy(r[:], h.Sum(nil))
	return r
}

// ParseRole parses 64 hex digits (optional 0x) or, failing that, derives
// the role from the name. "DEFAULT_ADMIN_ROLE" maps to the zero role.
func ParseRole(s string) Role {
	s = strings.TrimSpace(s)
	if s == "" || s == "DEFAULT_ADMIN_ROLE" {
		return DefaultAdminRole
	}
	if u, err := util.Uint256DecodeStringBE(strings.TrimPrefix(s, "0x")); err == nil {
		return Role(u)
	}
	return RoleFromName(s)
}

// String renders the role as 0x-prefixed big-endian hex.
func (r Role) String() string {
	return "0x" + util.Uint256(r).StringBE()
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// RoleError reports a missing role.
type RoleError struct {
	Account util.Uint160
	Role    Role
}

// Error implements error.
func (e RoleError) Error() string {
	return fmt.Sprintf("access: account 0x%s is missing role %s", e.Account.StringLE(), e.Role)
}

// Unwrap lets errors.Is match ErrUnauthorizedAccount.
func (e RoleError) Unwrap() error {
	return ErrUnauthorizedAccount
}

// Roles is the role membership block.
type Roles struct {
	b *state.Block
}

// OpenRoles returns the role block over st.
func OpenRoles(st state.Store) Roles {
	return Roles{b: state.Open(st, RolesNamespace)}
}

func memberField(role Role, account util.Uint160) []byte {
	return state.Field("member", role[:], account.BytesBE())
}

func adminField(role Role) []byte {
	return state.Field("admin", role[:])
}

// HasRole reports whether account holds role.
func (r Roles) HasRole(role Role, account util.Uint160) bool {
	return r.b.Bool(memberField(role, account))
}

// RoleAdmin returns the role that administers role.
func (r Roles) RoleAdmin(role Role) Role {
	v, ok := r.b.Get(adminField(role))
	if !ok || len(v) != len(Role{}) {
		return DefaultAdminRole
	}
	var admin Role
	copy(admin[:], v)
	return admin
}

// Grant adds account to role without checks.
func (r Roles) Grant(role Role, account util.Uint160) {
	r.b.PutBool(memberField(role, account), true)
}

// Revoke removes account from role without checks.
func (r Roles) Revoke(role Role, account util.Uint160) {
	r.b.PutBool(memberField(role, account), false)
}

func (r Roles) checkAdmin(caller util.Uint160, role Role) error {
	admin := r.RoleAdmin(role)
	if !r.HasRole(admin, caller) {
		return RoleError{Account: caller, Role: admin}
	}
	return nil
}

// GrantRole adds account to role; caller must hold the role's admin.
func (r Roles) GrantRole(caller util.Uint160, role Role, account util.Uint160) error {
	if err := r.checkAdmin(caller, role); err != nil {
		return err
	}
	r.Grant(role, account)
	return nil
}

// RevokeRole removes account from role; caller must hold the role's admin.
func (r Roles) RevokeRole(caller util.Uint160, role Role, account util.Uint160) error {
	if err := r.checkAdmin(caller, role); err != nil {
		return err
	}
	r.Revoke(role, account)
	return nil
}

// RenounceRole drops role from the caller's own account.
func (r Roles) RenounceRole(caller util.Uint160, role Role, account util.Uint160) error {
	if !caller.Equals(account) {
		return ErrUnauthorizedAccount
	}
	r.Revoke(role, account)
	return nil
}

// SetRoleAdmin changes the admin of role; caller must hold the current admin.
func (r Roles) SetRoleAdmin(caller util.Uint160, role, admin Role) error {
	if err := r.checkAdmin(caller, role); err != nil {
		return err
	}
	if admin == DefaultAdminRole {
		r.b.Delete(adminField(role))
		return nil
	}
	r.b.Put(adminField(role), admin[:])
	return nil
}
