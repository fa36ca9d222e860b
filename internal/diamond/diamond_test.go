package diamond_test

import (
	"context"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/access"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/facets"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/testutil"
)

var (
	sel01 = selector.MustParse("0x00000001")
	sel02 = selector.MustParse("0x00000002")
	sel03 = selector.MustParse("0x00000003")
	sel04 = selector.MustParse("0x00000004")
	sel05 = selector.MustParse("0x00000005")
)

func cut(t *testing.T, f *testutil.Fixture, cuts ...diamond.Cut) error {
	t.Helper()
	return f.Diamond.Cut(context.Background(), f.Owner, cuts, nil)
}

func add(facet util.Uint160, sels ...selector.Selector) diamond.Cut {
	return diamond.Cut{Facet: facet, Action: diamond.Add, Selectors: sels}
}

func replace(facet util.Uint160, sels ...selector.Selector) diamond.Cut {
	return diamond.Cut{Facet: facet, Action: diamond.Replace, Selectors: sels}
}

func remove(sels ...selector.Selector) diamond.Cut {
	return diamond.Cut{Action: diamond.Remove, Selectors: sels}
}

// requireConsistent checks that every listed selector records its own
// list position and that the list has no duplicates.
func requireConsistent(t *testing.T, d *diamond.Diamond) {
	t.Helper()
	d.View(func(l diamond.Loupe) {
		sels := l.Selectors()
		require.NoError(t, selector.Unique(sels))
		for i, sel := range sels {
			entry, ok := l.Lookup(sel)
			require.True(t, ok, "listed selector %s must be registered", sel)
			require.Equal(t, uint32(i), entry.Position, "position of %s", sel)
			require.False(t, entry.Facet.Equals(util.Uint160{}))
		}
	})
}

func TestExampleScenario(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))
	b := f.Deploy(t, testutil.NewEcho("B"))

	require.NoError(t, cut(t, f, add(a, sel01, sel02), add(b, sel03)))
	assert.Equal(t, []selector.Selector{sel01, sel02, sel03}, f.Diamond.Selectors())

	require.NoError(t, cut(t, f, remove(sel01)))

	assert.Equal(t, []selector.Selector{sel03, sel02}, f.Diamond.Selectors())
	assert.Equal(t, util.Uint160{}, f.Diamond.FacetAddress(sel01))
	f.Diamond.View(func(l diamond.Loupe) {
		e, ok := l.Lookup(sel02)
		require.True(t, ok)
		assert.Equal(t, diamond.Entry{Facet: a, Position: 1}, e)
		e, ok = l.Lookup(sel03)
		require.True(t, ok)
		assert.Equal(t, diamond.Entry{Facet: b, Position: 0}, e)
	})
	requireConsistent(t, f.Diamond)
}

func TestAdd_Errors(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))
	b := f.Deploy(t, testutil.NewEcho("B"))
	require.NoError(t, cut(t, f, add(a, sel01)))

	tests := []struct {
		name string
		cuts []diamond.Cut
		want error
	}{
		{"duplicate of registered", []diamond.Cut{add(b, sel02, sel01)}, diamond.ErrDuplicateRegistration},
		{"duplicate inside batch", []diamond.Cut{add(a, sel02), add(b, sel02)}, diamond.ErrDuplicateRegistration},
		{"duplicate inside group", []diamond.Cut{add(a, sel03, sel03)}, diamond.ErrDuplicateRegistration},
		{"no selectors", []diamond.Cut{add(a)}, diamond.ErrNoSelectors},
		{"undeployed facet", []diamond.Cut{add(util.Uint160{0x42}, sel02)}, diamond.ErrInvalidModule},
		{"zero facet", []diamond.Cut{add(util.Uint160{}, sel02)}, diamond.ErrInvalidModule},
		{"unknown action", []diamond.Cut{{Facet: a, Action: diamond.Action(7), Selectors: []selector.Selector{sel02}}}, diamond.ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cut(t, f, tt.cuts...)
			require.ErrorIs(t, err, tt.want)
			// nothing from the failed batch survives
			assert.Equal(t, []selector.Selector{sel01}, f.Diamond.Selectors())
			requireConsistent(t, f.Diamond)
		})
	}
}

func TestDuplicateError_NamesSelector(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))
	require.NoError(t, cut(t, f, add(a, sel01)))

	err := cut(t, f, add(a, sel01))
	var de *diamond.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, diamond.KindDuplicateRegistration, de.Kind)
	assert.Equal(t, sel01, de.Selector)
	assert.Equal(t, a, de.Facet)
}

func TestReplace(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))
	b := f.Deploy(t, testutil.NewEcho("B"))
	require.NoError(t, cut(t, f, add(a, sel01, sel02, sel03)))

	require.NoError(t, cut(t, f, replace(b, sel02)))
	assert.Equal(t, []selector.Selector{sel01, sel02, sel03}, f.Diamond.Selectors(), "replace must not reorder")
	assert.Equal(t, b, f.Diamond.FacetAddress(sel02))
	assert.Equal(t, a, f.Diamond.FacetAddress(sel01))

	require.ErrorIs(t, cut(t, f, replace(b, sel02)), diamond.ErrSameFacet)
	require.ErrorIs(t, cut(t, f, replace(b, sel04)), diamond.ErrMustExist)
	require.ErrorIs(t, cut(t, f, replace(util.Uint160{0x42}, sel01)), diamond.ErrInvalidModule)
	require.ErrorIs(t, cut(t, f, replace(b)), diamond.ErrNoSelectors)
	requireConsistent(t, f.Diamond)
}

func TestRemove_Positions(t *testing.T) {
	tests := []struct {
		name   string
		remove []selector.Selector
		want   []selector.Selector
	}{
		{"first", []selector.Selector{sel01}, []selector.Selector{sel05, sel02, sel03, sel04}},
		{"last", []selector.Selector{sel05}, []selector.Selector{sel01, sel02, sel03, sel04}},
		{"middle", []selector.Selector{sel03}, []selector.Selector{sel01, sel02, sel05, sel04}},
		{"several", []selector.Selector{sel02, sel05, sel01}, []selector.Selector{sel03, sel04}},
		{"all", []selector.Selector{sel01, sel02, sel03, sel04, sel05}, []selector.Selector{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFixture(t)
			a := f.Deploy(t, testutil.NewEcho("A"))
			require.NoError(t, cut(t, f, add(a, sel01, sel02, sel03, sel04, sel05)))

			require.NoError(t, cut(t, f, remove(tt.remove...)))
			assert.Equal(t, tt.want, f.Diamond.Selectors())
			for _, sel := range tt.remove {
				assert.Equal(t, util.Uint160{}, f.Diamond.FacetAddress(sel))
			}
			requireConsistent(t, f.Diamond)
		})
	}
}

func TestRemove_Errors(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))
	require.NoError(t, cut(t, f, add(a, sel01, sel02)))

	err := cut(t, f, diamond.Cut{Facet: a, Action: diamond.Remove, Selectors: []selector.Selector{sel01}})
	require.ErrorIs(t, err, diamond.ErrNonZeroRemoveTarget)

	require.ErrorIs(t, cut(t, f, remove(sel03)), diamond.ErrMustExist)
	// the second removal of the same selector in one group fails, undoing the first
	require.ErrorIs(t, cut(t, f, remove(sel01, sel01)), diamond.ErrMustExist)
	assert.Equal(t, []selector.Selector{sel01, sel02}, f.Diamond.Selectors())
}

func TestBatchAtomicity(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))
	b := f.Deploy(t, testutil.NewEcho("B"))
	require.NoError(t, cut(t, f, add(a, sel01, sel02)))
	before := f.Diamond.Facets()

	err := cut(t, f,
		add(b, sel03),
		replace(b, sel01),
		remove(sel02),
		remove(sel04), // fails
	)
	require.ErrorIs(t, err, diamond.ErrMustExist)
	assert.Equal(t, before, f.Diamond.Facets())
	requireConsistent(t, f.Diamond)
}

func TestCut_Unauthorized(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))

	stranger := testutil.Account(9)
	err := f.Diamond.Cut(context.Background(), stranger, []diamond.Cut{add(a, sel01)}, nil)
	require.ErrorIs(t, err, diamond.ErrUnauthorized)
	require.ErrorIs(t, err, access.ErrUnauthorizedAccount)

	var de *diamond.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, stranger, de.Caller)
	assert.Empty(t, f.Diamond.Selectors())

	failed := f.Events.RecentByType(events.EventDiamondCutFailed, 1)
	require.Len(t, failed, 1)
	assert.Equal(t, "Unauthorized", failed[0].Metadata["kind"])
}

func TestCut_Init(t *testing.T) {
	f := testutil.NewFixture(t)
	initAddr := f.Deploy(t, testutil.NewInit())
	a := f.Deploy(t, testutil.NewEcho("A"))

	t.Run("failure rolls back", func(t *testing.T) {
		err := f.Diamond.Cut(context.Background(), f.Owner, []diamond.Cut{add(a, sel01)}, &diamond.Init{
			Facet:    initAddr,
			Selector: selector.FromSignature("initFail()"),
		})
		require.ErrorIs(t, err, diamond.ErrInitializationFailed)
		var rev *diamond.Revert
		require.ErrorAs(t, err, &rev)
		assert.Equal(t, []byte("init: refused"), rev.Data)
		assert.Empty(t, f.Diamond.Selectors())
	})

	t.Run("panicking initializer", func(t *testing.T) {
		broken := f.Deploy(t, facets.NewTable("BrokenInit").
			Handle("init()", func(env *diamond.Env, _ []byte) ([]byte, error) {
				var seen map[string]bool
				seen["x"] = true
				return nil, nil
			}))
		err := f.Diamond.Cut(context.Background(), f.Owner, []diamond.Cut{add(a, sel01)}, &diamond.Init{
			Facet:    broken,
			Selector: selector.FromSignature("init()"),
		})
		require.ErrorIs(t, err, diamond.ErrInitializationFailed)
		assert.ErrorIs(t, err, diamond.ErrFacetPanicked)
		assert.Empty(t, f.Diamond.Selectors())

		fresh, err := diamond.New(nil, f.Code, diamond.WithLogger(logger.Discard()))
		require.NoError(t, err)
		err = fresh.Bootstrap(context.Background(), f.Owner, []diamond.Cut{add(a, sel01)}, &diamond.Init{
			Facet:    broken,
			Selector: selector.FromSignature("init()"),
		})
		require.ErrorIs(t, err, diamond.ErrInitializationFailed)
		assert.Empty(t, fresh.Selectors())
		// the failed bootstrap left the diamond uninitialized
		require.NoError(t, fresh.Bootstrap(context.Background(), f.Owner, nil, nil))
	})

	t.Run("undeployed initializer", func(t *testing.T) {
		err := f.Diamond.Cut(context.Background(), f.Owner, []diamond.Cut{add(a, sel01)}, &diamond.Init{
			Facet: util.Uint160{0x42},
		})
		require.ErrorIs(t, err, diamond.ErrInvalidModule)
		assert.Empty(t, f.Diamond.Selectors())
	})

	t.Run("success", func(t *testing.T) {
		err := f.Diamond.Cut(context.Background(), f.Owner, []diamond.Cut{add(a, sel01)}, &diamond.Init{
			Facet:    initAddr,
			Selector: selector.FromSignature("init()"),
		})
		require.NoError(t, err)
		assert.Equal(t, []selector.Selector{sel01}, f.Diamond.Selectors())

		ev := f.Events.RecentByType(events.EventDiamondCut, 1)
		require.Len(t, ev, 1)
		require.NotNil(t, ev[0].Init)
		assert.Equal(t, diamond.FormatAddress(initAddr), ev[0].Init.Facet)
	})
}

func TestCut_Event(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Deploy(t, testutil.NewEcho("A"))
	require.NoError(t, cut(t, f, add(a, sel01, sel02)))

	ev := f.Events.RecentByType(events.EventDiamondCut, 10)
	require.Len(t, ev, 1)
	assert.Equal(t, diamond.FormatAddress(f.Owner), ev[0].Caller)
	assert.Equal(t, []events.CutRecord{{
		Facet:     diamond.FormatAddress(a),
		Action:    "add",
		Selectors: []string{"0x00000001", "0x00000002"},
	}}, ev[0].Cuts)
}

func TestImmutableFunctions(t *testing.T) {
	f := testutil.NewFixture(t, diamond.WithImmutable(testutil.NewEcho("Core")))
	self := f.Diamond.Address()
	b := f.Deploy(t, testutil.NewEcho("B"))

	require.NoError(t, cut(t, f, add(self, sel01)))
	require.ErrorIs(t, cut(t, f, replace(b, sel01)), diamond.ErrImmutableFunction)
	require.ErrorIs(t, cut(t, f, remove(sel01)), diamond.ErrImmutableFunction)
	assert.Equal(t, self, f.Diamond.FacetAddress(sel01))
}

func TestBootstrap(t *testing.T) {
	f := testutil.NewFixture(t)
	assert.Equal(t, f.Owner, f.Diamond.Owner())

	err := f.Diamond.Bootstrap(context.Background(), testutil.Account(7), nil, nil)
	require.ErrorIs(t, err, diamond.ErrAlreadyBootstrapped)
	assert.Equal(t, f.Owner, f.Diamond.Owner())

	code := diamond.NewCodeStore()
	d, err := diamond.New(nil, code, diamond.WithLogger(logger.Discard()))
	require.NoError(t, err)
	a, err := code.Deploy(testutil.Account(1), testutil.NewEcho("A"))
	require.NoError(t, err)

	// the guard is bypassed: no owner exists yet
	require.NoError(t, d.Bootstrap(context.Background(), testutil.Account(2), []diamond.Cut{add(a, sel01)}, nil))
	assert.Equal(t, testutil.Account(2), d.Owner())
	assert.Equal(t, a, d.FacetAddress(sel01))
}

func TestNew_TwoImmutableFacets(t *testing.T) {
	_, err := diamond.New(nil, nil,
		diamond.WithImmutable(testutil.NewEcho("X")),
		diamond.WithImmutable(testutil.NewEcho("Y")))
	assert.Error(t, err)
}

func TestJournal_Restore(t *testing.T) {
	f := testutil.NewFixture(t)
	f.AddFacet(t, testutil.NewCounter())
	_, err := f.Call(t, "increment()", nil)
	require.NoError(t, err)

	root := state.NewRoot()
	n, err := state.Restore(context.Background(), root, f.Journal)
	require.NoError(t, err)
	assert.Positive(t, n)

	restored, err := diamond.New(root, f.Code, diamond.WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, f.Diamond.Facets(), restored.Facets())
	assert.Equal(t, f.Owner, restored.Owner())

	out, err := restored.Call(context.Background(), f.Owner, selector.FromSignature("count()"), nil)
	require.NoError(t, err)
	assert.Equal(t, "1", string(out))
}

func TestWithGuard_AcceptsAccessGuards(t *testing.T) {
	var g access.Guard = access.AnyGuard{access.OwnerGuard{}, access.RoleGuard{Role: access.ParseRole("UPGRADER")}}
	f := testutil.NewFixture(t, diamond.WithGuard(g))
	a := f.Deploy(t, testutil.NewEcho("A"))

	require.NoError(t, f.Diamond.Cut(context.Background(), f.Owner, []diamond.Cut{add(a, sel01)}, nil))
	err := f.Diamond.Cut(context.Background(), testutil.Account(9), []diamond.Cut{add(a, sel02)}, nil)
	require.ErrorIs(t, err, diamond.ErrUnauthorized)
}
