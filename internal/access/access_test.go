package access

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

var (
	alice = util.Uint160{1}
	bob   = util.Uint160{2}
	carol = util.Uint160{3}
)

func newStore() state.Store {
	return state.Begin(state.NewRoot())
}

func TestOwner_Transfer(t *testing.T) {
	o := OpenOwner(newStore())
	assert.False(t, o.IsOwner(util.Uint160{}), "zero account is never owner")

	o.SetOwner(alice)
	assert.Equal(t, alice, o.Owner())

	require.ErrorIs(t, o.TransferOwnership(bob, carol), ErrUnauthorizedAccount)
	require.NoError(t, o.TransferOwnership(alice, bob))
	assert.Equal(t, bob, o.Owner())

	require.NoError(t, o.RenounceOwnership(bob))
	assert.Equal(t, util.Uint160{}, o.Owner())
	require.ErrorIs(t, o.RenounceOwnership(bob), ErrUnauthorizedAccount)
}

func TestOwner_TwoSteps(t *testing.T) {
	o := OpenOwner(newStore())
	o.SetOwner(alice)

	require.ErrorIs(t, o.AcceptOwnership(bob), ErrNoPendingOwner)
	require.ErrorIs(t, o.BeginTransfer(bob, bob), ErrUnauthorizedAccount)

	require.NoError(t, o.BeginTransfer(alice, bob))
	assert.Equal(t, bob, o.PendingOwner())
	assert.Equal(t, alice, o.Owner(), "ownership moves only on accept")

	require.ErrorIs(t, o.AcceptOwnership(carol), ErrUnauthorizedAccount)
	require.NoError(t, o.AcceptOwnership(bob))
	assert.Equal(t, bob, o.Owner())
	assert.Equal(t, util.Uint160{}, o.PendingOwner())
}

func TestRoles(t *testing.T) {
	st := newStore()
	r := OpenRoles(st)
	minter := RoleFromName("MINTER")
	r.Grant(DefaultAdminRole, alice)

	require.NoError(t, r.GrantRole(alice, minter, bob))
	assert.True(t, r.HasRole(minter, bob))

	err := r.GrantRole(bob, minter, carol)
	var re RoleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, DefaultAdminRole, re.Role)
	assert.ErrorIs(t, err, ErrUnauthorizedAccount)

	// minters administer minters once the admin role is changed
	require.NoError(t, r.SetRoleAdmin(alice, minter, minter))
	assert.Equal(t, minter, r.RoleAdmin(minter))
	require.NoError(t, r.GrantRole(bob, minter, carol))
	require.ErrorIs(t, r.GrantRole(alice, minter, alice), ErrUnauthorizedAccount)

	require.ErrorIs(t, r.RenounceRole(bob, minter, carol), ErrUnauthorizedAccount)
	require.NoError(t, r.RenounceRole(carol, minter, carol))
	assert.False(t, r.HasRole(minter, carol))

	require.NoError(t, r.RevokeRole(bob, minter, bob))
	assert.False(t, r.HasRole(minter, bob))

	// roles and ownership never share fields
	assert.Equal(t, util.Uint160{}, OpenOwner(st).Owner())
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, DefaultAdminRole, ParseRole("DEFAULT_ADMIN_ROLE"))
	assert.Equal(t, DefaultAdminRole, ParseRole(""))
	minter := RoleFromName("MINTER")
	assert.Equal(t, minter, ParseRole("MINTER"))
	assert.Equal(t, minter, ParseRole(minter.String()))

	var decoded Role
	require.NoError(t, decoded.UnmarshalText([]byte(minter.String())))
	assert.Equal(t, minter, decoded)
}

func TestGuards(t *testing.T) {
	st := newStore()
	OpenOwner(st).SetOwner(alice)
	ops := RoleFromName("OPERATOR")
	OpenRoles(st).Grant(ops, bob)

	tests := []struct {
		name   string
		guard  Guard
		caller util.Uint160
		ok     bool
	}{
		{"owner admits owner", OwnerGuard{}, alice, true},
		{"owner rejects other", OwnerGuard{}, bob, false},
		{"role admits member", RoleGuard{Role: ops}, bob, true},
		{"role rejects owner", RoleGuard{Role: ops}, alice, false},
		{"any admits either", AnyGuard{OwnerGuard{}, RoleGuard{Role: ops}}, bob, true},
		{"any rejects stranger", AnyGuard{OwnerGuard{}, RoleGuard{Role: ops}}, carol, false},
		{"empty any rejects", AnyGuard{}, alice, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.guard.Authorize(tt.caller, st)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnauthorizedAccount)
			}
		})
	}
}

func TestPolicyGuard(t *testing.T) {
	st := newStore()
	OpenOwner(st).SetOwner(alice)
	OpenRoles(st).Grant(RoleFromName("UPGRADER"), bob)

	g, err := NewPolicyGuard(`isOwner || hasRole("UPGRADER")`)
	require.NoError(t, err)
	assert.Equal(t, `isOwner || hasRole("UPGRADER")`, g.Expression())

	assert.NoError(t, g.Authorize(alice, st))
	assert.NoError(t, g.Authorize(bob, st))
	assert.ErrorIs(t, g.Authorize(carol, st), ErrUnauthorizedAccount)

	pinned, err := NewPolicyGuard(`caller == "0x` + carol.StringLE() + `"`)
	require.NoError(t, err)
	assert.NoError(t, pinned.Authorize(carol, st))

	_, err = NewPolicyGuard(`caller +`)
	assert.Error(t, err)
	_, err = NewPolicyGuard(`"not a bool"`)
	assert.Error(t, err)
	_, err = NewPolicyGuard("")
	assert.Error(t, err)
}
