package diamond

import (
	"context"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

// Env is the execution frame a facet function runs in. Caller is the
// original caller of the diamond, Self is the diamond's own address and
// State is the diamond's shared storage as seen by this frame.
type Env struct {
	ctx    context.Context
	Caller util.Uint160
	Self   util.Uint160
	State  state.Store
	Depth  int

	d       *Diamond
	tx      *state.Tx
	pending []events.Event
}

func (d *Diamond) frame(ctx context.Context, caller util.Uint160, tx *state.Tx, depth int) *Env {
	return &Env{
		ctx:    ctx,
		Caller: caller,
		Self:   d.addr,
		State:  tx,
		Depth:  depth,
		d:      d,
		tx:     tx,
	}
}

// Context returns the context of the top-level operation.
func (e *Env) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// Block opens the namespaced block for name over the frame's state.
func (e *Env) Block(namespace string) *state.Block {
	return state.Open(e.State, namespace)
}

// Loupe returns a view of the registry as seen by this frame.
func (e *Env) Loupe() Loupe {
	return NewLoupe(e.State)
}

// Emit queues an event. Queued events are published only if every frame up
// to the top-level operation succeeds.
func (e *Env) Emit(ev events.Event) {
	if ev.Diamond == "" {
		ev.Diamond = FormatAddress(e.Self)
	}
	if ev.Caller == "" {
		ev.Caller = FormatAddress(e.Caller)
	}
	e.pending = append(e.pending, ev)
}

// Call routes a nested call through the registry with the diamond as the
// caller. The nested frame gets its own overlay: on failure its writes are
// dropped and the error is returned for the facet to handle.
func (e *Env) Call(sel selector.Selector, input []byte) ([]byte, error) {
	child := e.d.frame(e.ctx, e.Self, e.tx.Begin(), e.Depth+1)
	out, err := e.d.route(child, sel, input)
	if err != nil {
		child.tx.Discard()
		e.pending = append(e.pending, e.d.callFailed(child, sel, err))
		return out, err
	}
	return out, e.merge(child)
}

// Cut applies a guarded cut batch from inside a facet. The guard sees the
// frame's caller.
func (e *Env) Cut(cuts []Cut, init *Init) error {
	child := e.d.frame(e.ctx, e.Caller, e.tx.Begin(), e.Depth)
	if err := e.d.cut(child, cuts, init, true); err != nil {
		child.tx.Discard()
		e.pending = append(e.pending, e.d.cutFailed(child, err))
		return err
	}
	return e.merge(child)
}

func (e *Env) merge(child *Env) error {
	if err := child.tx.Commit(); err != nil {
		return err
	}
	e.pending = append(e.pending, child.pending...)
	return nil
}
