package facets

import (
	"errors"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/access"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
)

func ownerOf(env *diamond.Env, _ []byte) ([]byte, error) {
	return encode(access.OpenOwner(env.State).Owner())
}

func renounce(env *diamond.Env, _ []byte) ([]byte, error) {
	o := access.OpenOwner(env.State)
	prev := o.Owner()
	if err := o.RenounceOwnership(env.Caller); err != nil {
		return nil, err
	}
	emitTransfer(env, events.EventOwnershipTransferred, prev, util.Uint160{})
	return nil, nil
}

func emitTransfer(env *diamond.Env, typ events.EventType, from, to util.Uint160) {
	env.Emit(events.NewEvent(typ).
		Metadata("previous_owner", diamond.FormatAddress(from)).
		Metadata("new_owner", diamond.FormatAddress(to)).
		Build())
}

// NewOwner returns the single-step ownership facet.
func NewOwner() *Table {
	return NewTable("OwnerFacet").
		Handle("owner()", ownerOf).
		Handle("transferOwnership(address)", func(env *diamond.Env, input []byte) ([]byte, error) {
			to, err := decodeAddress(input)
			if err != nil {
				return nil, err
			}
			o := access.OpenOwner(env.State)
			prev := o.Owner()
			if err := o.TransferOwnership(env.Caller, to); err != nil {
				return nil, err
			}
			emitTransfer(env, events.EventOwnershipTransferred, prev, to)
			return nil, nil
		}).
		Handle("renounceOwnership()", renounce)
}

// NewOwnerTwoSteps returns the two-step ownership facet. Its
// transferOwnership only nominates; the nominee must call acceptOwnership.
// It shares selectors with the single-step facet, so a diamond routes one
// or the other.
func NewOwnerTwoSteps() *Table {
	return NewTable("OwnerTwoStepsFacet").
		Handle("owner()", ownerOf).
		Handle("pendingOwner()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			return encode(access.OpenOwner(env.State).PendingOwner())
		}).
		Handle("transferOwnership(address)", func(env *diamond.Env, input []byte) ([]byte, error) {
			to, err := decodeAddress(input)
			if err != nil {
				return nil, err
			}
			o := access.OpenOwner(env.State)
			if err := o.BeginTransfer(env.Caller, to); err != nil {
				return nil, err
			}
			emitTransfer(env, events.EventOwnershipTransferStarted, o.Owner(), to)
			return nil, nil
		}).
		Handle("acceptOwnership()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			o := access.OpenOwner(env.State)
			prev := o.Owner()
			if err := o.AcceptOwnership(env.Caller); err != nil {
				if errors.Is(err, access.ErrNoPendingOwner) {
					return nil, diamond.Revertf("%v", err)
				}
				return nil, err
			}
			emitTransfer(env, events.EventOwnershipTransferred, prev, env.Caller)
			return nil, nil
		}).
		Handle("renounceOwnership()", renounce)
}
