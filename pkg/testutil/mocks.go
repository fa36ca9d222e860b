// Package testutil provides diamond fixtures and mock facets for tests.
package testutil

import (
	"context"
	"strconv"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/facets"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

// CounterNamespace is the storage namespace of the counter facet.
const CounterNamespace = "test.counter"

var countField = []byte("count")

// Account returns a deterministic non-zero test address.
func Account(n byte) util.Uint160 {
	var u util.Uint160
	u[0] = n
	u[19] = 0xaa
	return u
}

// NewCounter returns a facet keeping a counter in its own block:
// increment() and count() return the new/current value in decimal;
// incrementAndRevert() increments and then reverts.
func NewCounter() *facets.Table {
	read := func(env *diamond.Env) uint32 {
		return env.Block(CounterNamespace).Uint32(countField)
	}
	inc := func(env *diamond.Env) uint32 {
		n := read(env) + 1
		env.Block(CounterNamespace).PutUint32(countField, n)
		return n
	}
	return facets.NewTable("CounterFacet").
		Handle("increment()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			return []byte(strconv.Itoa(int(inc(env)))), nil
		}).
		Handle("count()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			return []byte(strconv.Itoa(int(read(env)))), nil
		}).
		Handle("incrementAndRevert()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			inc(env)
			return nil, diamond.Reverted([]byte("counter: reverted"))
		})
}

// NewEcho returns a facet whose echo(bytes) returns its input and whose
// whoami() returns the caller it observed.
func NewEcho(name string) *facets.Table {
	return facets.NewTable(name).
		Handle("echo(bytes)", func(_ *diamond.Env, input []byte) ([]byte, error) {
			return input, nil
		}).
		Handle("whoami()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			return []byte(diamond.FormatAddress(env.Caller)), nil
		})
}

// NewReverter returns a facet whose fail() always reverts with data.
func NewReverter(data []byte) *facets.Table {
	return facets.NewTable("ReverterFacet").
		Handle("fail()", func(_ *diamond.Env, _ []byte) ([]byte, error) {
			return []byte("partial"), diamond.Reverted(data)
		})
}

// NewReentrant returns a facet that calls back into the diamond.
// reenter(bytes) routes input[4:] to selector input[:4] and returns the
// result; tryReenter(bytes) does the same but swallows a failure and
// returns "recovered".
func NewReentrant() *facets.Table {
	split := func(input []byte) (selector.Selector, []byte, error) {
		sel, err := selector.FromBytes(input[:min(len(input), selector.Size)])
		if err != nil {
			return sel, nil, diamond.Revertf("reentrant: %v", err)
		}
		return sel, input[selector.Size:], nil
	}
	return facets.NewTable("ReentrantFacet").
		Handle("reenter(bytes)", func(env *diamond.Env, input []byte) ([]byte, error) {
			sel, rest, err := split(input)
			if err != nil {
				return nil, err
			}
			return env.Call(sel, rest)
		}).
		Handle("tryReenter(bytes)", func(env *diamond.Env, input []byte) ([]byte, error) {
			sel, rest, err := split(input)
			if err != nil {
				return nil, err
			}
			if _, err := env.Call(sel, rest); err != nil {
				return []byte("recovered"), nil
			}
			return []byte("ok"), nil
		})
}

// InitNamespace is where the init facet records that it ran.
const InitNamespace = "test.init"

// NewInit returns an initializer facet. init() sets a flag; initFail()
// sets it and reverts.
func NewInit() *facets.Table {
	return facets.NewTable("InitFacet").
		Handle("init()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			env.Block(InitNamespace).PutBool([]byte("done"), true)
			return nil, nil
		}).
		Handle("initFail()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			env.Block(InitNamespace).PutBool([]byte("done"), true)
			return nil, diamond.Reverted([]byte("init: refused"))
		})
}

// Fixture is a bootstrapped diamond with an owner and an event log.
type Fixture struct {
	Diamond *diamond.Diamond
	Code    *diamond.CodeStore
	Owner   util.Uint160
	Events  *events.RingBuffer
	Journal *state.MemoryJournal
}

// NewFixture creates a diamond owned by Account(1) with an empty registry.
func NewFixture(t testing.TB, opts ...diamond.Option) *Fixture {
	t.Helper()
	f := &Fixture{
		Code:    diamond.NewCodeStore(),
		Owner:   Account(1),
		Events:  events.NewRingBuffer(256),
		Journal: state.NewMemoryJournal(),
	}
	opts = append([]diamond.Option{
		diamond.WithLogger(logger.Discard()),
		diamond.WithEvents(f.Events),
		diamond.WithJournal(f.Journal),
	}, opts...)
	d, err := diamond.New(state.NewRoot(), f.Code, opts...)
	require.NoError(t, err)
	require.NoError(t, d.Bootstrap(context.Background(), f.Owner, nil, nil))
	f.Diamond = d
	return f
}

// Deploy deploys facet from the owner and returns its address.
func (f *Fixture) Deploy(t testing.TB, facet diamond.Facet) util.Uint160 {
	t.Helper()
	addr, err := f.Code.Deploy(f.Owner, facet)
	require.NoError(t, err)
	return addr
}

// AddFacet deploys facet and cuts in every function it describes.
func (f *Fixture) AddFacet(t testing.TB, facet diamond.Facet) util.Uint160 {
	t.Helper()
	addr := f.Deploy(t, facet)
	err := f.Diamond.Cut(context.Background(), f.Owner, []diamond.Cut{{
		Facet:     addr,
		Action:    diamond.Add,
		Selectors: diamond.Selectors(facet),
	}}, nil)
	require.NoError(t, err)
	return addr
}

// Call routes signature as the owner.
func (f *Fixture) Call(t testing.TB, signature string, input []byte) ([]byte, error) {
	t.Helper()
	return f.Diamond.Call(context.Background(), f.Owner, selector.FromSignature(signature), input)
}
