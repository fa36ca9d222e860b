// Package access holds the ownership and role state of a diamond and the
// guards that authorize registry mutations against it.
package access

import (
	"errors"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

const (
	// OwnerNamespace is the namespace of the ownership block.
	OwnerNamespace = "compose.owner"
	// RolesNamespace is the namespace of the role block.
	RolesNamespace = "compose.accesscontrol"
)

var (
	// ErrUnauthorizedAccount is returned when the caller lacks permission.
	ErrUnauthorizedAccount = errors.New("access: unauthorized account")
	// ErrNoPendingOwner is returned by AcceptOwnership with no transfer in flight.
	ErrNoPendingOwner = errors.New("access: no pending owner")
)

var (
	ownerField   = []byte("owner")
	pendingField = []byte("pending")
)

// Owner is the single-owner block.
type Owner struct {
	b *state.Block
}

// OpenOwner returns the ownership block over st.
func OpenOwner(st state.Store) Owner {
	return Owner{b: state.Open(st, OwnerNamespace)}
}

// Owner returns the current owner; zero means none.
func (o Owner) Owner() util.Uint160 {
	return o.b.Uint160(ownerField)
}

// PendingOwner returns the account a two-step transfer is waiting on.
func (o Owner) PendingOwner() util.Uint160 {
	return o.b.Uint160(pendingField)
}

// SetOwner assigns the owner without any check.
func (o Owner) SetOwner(owner util.Uint160) {
	o.b.PutUint160(ownerField, owner)
	o.b.PutUint160(pendingField, util.Uint160{})
}

// IsOwner reports whether account is the owner. The zero account never is.
func (o Owner) IsOwner(account util.Uint160) bool {
	owner := o.Owner()
	return !owner.Equals(util.Uint160{}) && owner.Equals(account)
}

// TransferOwnership hands ownership to newOwner at once. A zero newOwner
// renounces.
func (o Owner) TransferOwnership(caller, newOwner util.Uint160) error {
	if !o.IsOwner(caller) {
		return ErrUnauthorizedAccount
	}
	o.SetOwner(newOwner)
	return nil
}

// BeginTransfer starts a two-step transfer to newOwner.
func (o Owner) BeginTransfer(caller, newOwner util.Uint160) error {
	if !o.IsOwner(caller) {
		return ErrUnauthorizedAccount
	}
	o.b.PutUint160(pendingField, newOwner)
	return nil
}

// AcceptOwnership completes a two-step transfer; the caller must be the
// pending owner.
func (o Owner) AcceptOwnership(caller util.Uint160) error {
	pending := o.PendingOwner()
	if pending.Equals(util.Uint160{}) {
		return ErrNoPendingOwner
	}
	if !pending.Equals(caller) {
		return ErrUnauthorizedAccount
	}
	o.SetOwner(caller)
	return nil
}

// RenounceOwnership clears the owner and any pending transfer.
func (o Owner) RenounceOwnership(caller util.Uint160) error {
	if !o.IsOwner(caller) {
		return ErrUnauthorizedAccount
	}
	o.SetOwner(util.Uint160{})
	return nil
}
