// Package diamond implements a single-address dispatch root. A diamond keeps
// a registry from function selectors to facets, routes every call through
// it, and lets authorized callers add, replace and remove routes at runtime
// with atomic cut batches.
package diamond

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	corestate "github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/sirupsen/logrus"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/access"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/metrics"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

// DefaultMaxDepth bounds the frames of one top-level call, the top-level
// frame included.
const DefaultMaxDepth = 64

// Guard authorizes registry mutations. It reads whatever state it needs
// from st, which is the state the cut would run against.
type Guard = access.Guard

// Diamond is the dispatch root. Top-level operations are serialized: one
// call or cut runs to completion before the next starts.
type Diamond struct {
	mu sync.Mutex

	addr     util.Uint160
	root     storage.Store
	code     *CodeStore
	guard    Guard
	log      *logger.Logger
	events   events.EventLogger
	metrics  metrics.MetricsCollector
	journal  state.Journal
	maxDepth int

	immutable []Facet
}

// Option configures a Diamond.
type Option func(*Diamond)

// WithAddress sets the diamond's own address.
func WithAddress(addr util.Uint160) Option {
	return func(d *Diamond) { d.addr = addr }
}

// WithGuard replaces the default owner guard.
func WithGuard(g Guard) Option {
	return func(d *Diamond) {
		if g != nil {
			d.guard = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Diamond) {
		if l != nil {
			d.log = l
		}
	}
}

// WithEvents sets the audit event log.
func WithEvents(l events.EventLogger) Option {
	return func(d *Diamond) {
		if l != nil {
			d.events = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(d *Diamond) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithJournal persists every committed top-level changeset to j.
func WithJournal(j state.Journal) Option {
	return func(d *Diamond) { d.journal = j }
}

// WithMaxDepth sets the frame limit of one top-level call.
func WithMaxDepth(n int) Option {
	return func(d *Diamond) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// WithImmutable deploys f at the diamond's own address. Selectors routed to
// it can never be replaced or removed.
func WithImmutable(f Facet) Option {
	return func(d *Diamond) { d.immutable = append(d.immutable, f) }
}

// New creates a diamond over root with facets resolved from code.
func New(root storage.Store, code *CodeStore, opts ...Option) (*Diamond, error) {
	if root == nil {
		root = state.NewRoot()
	}
	if code == nil {
		code = NewCodeStore()
	}
	d := &Diamond{
		root:     root,
		code:     code,
		guard:    access.OwnerGuard{},
		log:      logger.NewDefault("diamond"),
		events:   events.NoOpLogger{},
		metrics:  metrics.NewNoOpCollector(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.addr.Equals(util.Uint160{}) {
		d.addr = corestate.CreateContractHash(util.Uint160{}, 0, RegistryNamespace)
	}
	if len(d.immutable) > 1 {
		return nil, fmt.Errorf("diamond: only one immutable facet can live at the diamond address")
	}
	for _, f := range d.immutable {
		if err := d.code.DeployAt(d.addr, f); err != nil {
			return nil, fmt.Errorf("deploy immutable facet: %w", err)
		}
	}
	return d, nil
}

// Address returns the diamond's own address.
func (d *Diamond) Address() util.Uint160 {
	return d.addr
}

// Code returns the code store facets are resolved from.
func (d *Diamond) Code() *CodeStore {
	return d.code
}

// Call routes one top-level call. State written by a failing call is
// discarded; facet output and errors are returned unchanged.
func (d *Diamond) Call(ctx context.Context, caller util.Uint160, sel selector.Selector, input []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	tx := state.Begin(d.root)
	env := d.frame(ctx, caller, tx, 0)

	out, err := d.route(env, sel, input)
	if err == nil {
		err = d.commit(env)
		if err != nil {
			out = nil
		}
	}
	if err != nil {
		d.events.LogWithContext(env.Context(), d.callFailed(env, sel, err))
		d.discard(env, "call", time.Since(start))
	}
	d.metrics.RecordCall(sel.String(), time.Since(start), err)
	return out, err
}

// Update runs fn in a top-level frame as caller and commits its writes and
// queued events like a successful call. fn must not route through d.
func (d *Diamond) Update(ctx context.Context, caller util.Uint160, fn func(env *Env) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	env := d.frame(ctx, caller, state.Begin(d.root), 0)
	err := fn(env)
	if err == nil {
		err = d.commit(env)
	}
	if err != nil {
		d.discard(env, "update", time.Since(start))
	}
	return err
}

// Read runs fn over committed state.
func (d *Diamond) Read(fn func(st state.Store)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.snapshot())
}

// Cut applies a guarded cut batch as caller.
func (d *Diamond) Cut(ctx context.Context, caller util.Uint160, cuts []Cut, init *Init) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.topLevelCut(ctx, caller, cuts, init, true)
}

// Bootstrap assigns owner, grants it the default admin role and applies the
// initial cut batch without consulting the guard. It succeeds once per
// diamond state.
func (d *Diamond) Bootstrap(ctx context.Context, owner util.Uint160, cuts []Cut, init *Init) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if openRegistry(d.snapshot()).initialized() {
		return ErrAlreadyBootstrapped
	}
	return d.topLevelCut(ctx, owner, cuts, init, false, func(env *Env) {
		openRegistry(env.State).markInitialized()
		if !owner.Equals(util.Uint160{}) {
			access.OpenOwner(env.State).SetOwner(owner)
			access.OpenRoles(env.State).Grant(access.DefaultAdminRole, owner)
		}
		env.Emit(events.NewEvent(events.EventBootstrap).
			Caller(FormatAddress(owner)).
			Message("diamond bootstrapped").
			Build())
	})
}

func (d *Diamond) topLevelCut(ctx context.Context, caller util.Uint160, cuts []Cut, init *Init, guarded bool, prepare ...func(*Env)) error {
	start := time.Now()
	tx := state.Begin(d.root)
	env := d.frame(ctx, caller, tx, 0)
	for _, p := range prepare {
		p(env)
	}

	err := d.cut(env, cuts, init, guarded)
	if err == nil {
		err = d.commit(env)
	}
	if err != nil {
		d.events.LogWithContext(env.Context(), d.cutFailed(env, err))
		d.discard(env, "cut", time.Since(start))
	}
	d.metrics.RecordCut(selectorCounts(cuts), time.Since(start), err)
	if err == nil {
		d.recordSize()
	}
	return err
}

// cut runs the guard, applies cuts and runs the initializer inside env.
func (d *Diamond) cut(env *Env, cuts []Cut, init *Init, guarded bool) error {
	if guarded {
		if err := d.guard.Authorize(env.Caller, env.State); err != nil {
			return &Error{Kind: KindUnauthorized, Caller: env.Caller, Err: err}
		}
	}
	records, err := d.applyCuts(env, cuts)
	if err == nil {
		err = d.runInit(env, init)
	}
	if err != nil {
		return err
	}

	hasInit := init != nil && !init.Facet.Equals(util.Uint160{})
	if len(cuts) == 0 && !hasInit {
		return nil
	}

	b := events.NewEvent(events.EventDiamondCut).
		Diamond(FormatAddress(d.addr)).
		Caller(FormatAddress(env.Caller)).
		Cuts(records)
	if hasInit {
		b.Init(&events.InitRecord{Facet: FormatAddress(init.Facet), Selector: init.Selector.String()})
	}
	env.Emit(b.Build())

	d.log.WithFields(logrus.Fields{
		"caller": FormatAddress(env.Caller),
		"cuts":   len(cuts),
		"depth":  env.Depth,
	}).Info("diamond cut applied")
	return nil
}

// commit persists a top-level frame: journal first, then the in-memory
// root, then queued events.
func (d *Diamond) commit(env *Env) error {
	if d.journal != nil {
		if changes := env.tx.Changes(); len(changes) > 0 {
			start := time.Now()
			err := d.journal.Commit(env.Context(), changes)
			d.metrics.RecordJournalCommit(time.Since(start), err)
			if err != nil {
				d.events.LogWithContext(env.Context(), events.NewEvent(events.EventJournalFailed).
					Diamond(FormatAddress(d.addr)).
					ErrorFrom(err).
					Build())
				return fmt.Errorf("diamond: journal commit: %w", err)
			}
		}
	}
	if err := env.tx.Commit(); err != nil {
		return fmt.Errorf("diamond: commit state: %w", err)
	}
	for _, ev := range env.pending {
		d.events.LogWithContext(env.Context(), ev)
	}
	return nil
}

// callFailed records a failed routed call and returns its event. Top-level
// failures are published directly; nested ones are queued on the parent
// frame.
func (d *Diamond) callFailed(env *Env, sel selector.Selector, err error) events.Event {
	kind := "Revert"
	if k := KindOf(err); k != KindUnknown {
		kind = k.String()
	}
	d.metrics.RecordRollback(kind)

	entry := d.log.WithFields(logrus.Fields{
		"selector": sel.String(),
		"caller":   FormatAddress(env.Caller),
		"depth":    env.Depth,
	}).WithError(err)
	if env.Depth == 0 {
		entry.Warn("call rolled back")
	} else {
		entry.Debug("nested call rolled back")
	}

	return events.NewEvent(events.EventCallFailed).
		Diamond(FormatAddress(d.addr)).
		Caller(FormatAddress(env.Caller)).
		Selector(sel.String()).
		Metadata("kind", kind).
		ErrorFrom(err).
		Build()
}

// discard drops a top-level frame: its writes and its queued events.
func (d *Diamond) discard(env *Env, op string, elapsed time.Duration) {
	writes := len(env.tx.Changes())
	env.tx.Discard()
	env.pending = nil

	events.NewEvent(events.EventRollback).
		Diamond(FormatAddress(d.addr)).
		Caller(FormatAddress(env.Caller)).
		Severity(events.SeverityWarning).
		Duration(elapsed).
		Metadata("op", op).
		Metadata("writes", strconv.Itoa(writes)).
		LogToWithContext(env.Context(), d.events)
}

// cutFailed records a failed cut batch and returns its event.
func (d *Diamond) cutFailed(env *Env, err error) events.Event {
	d.metrics.RecordRollback(KindOf(err).String())
	d.log.WithFields(logrus.Fields{
		"caller": FormatAddress(env.Caller),
		"depth":  env.Depth,
	}).WithError(err).Warn("diamond cut rolled back")

	return events.NewEvent(events.EventDiamondCutFailed).
		Diamond(FormatAddress(d.addr)).
		Caller(FormatAddress(env.Caller)).
		Metadata("kind", KindOf(err).String()).
		ErrorFrom(err).
		Build()
}

// snapshot returns a read view of committed state. Writes to it are never
// committed.
func (d *Diamond) snapshot() state.Store {
	return state.Begin(d.root)
}

func (d *Diamond) recordSize() {
	l := NewLoupe(d.snapshot())
	d.metrics.RecordRegistrySize(l.Len(), len(l.FacetAddresses()))
}

// View runs fn with a loupe over committed state.
func (d *Diamond) View(fn func(Loupe)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(NewLoupe(d.snapshot()))
}

// Facets returns every facet with its selectors.
func (d *Diamond) Facets() (out []FacetInfo) {
	d.View(func(l Loupe) { out = l.Facets() })
	return out
}

// FacetFunctionSelectors returns the selectors routed to facet.
func (d *Diamond) FacetFunctionSelectors(facet util.Uint160) (out []selector.Selector) {
	d.View(func(l Loupe) { out = l.FacetFunctionSelectors(facet) })
	return out
}

// FacetAddresses returns every facet address once.
func (d *Diamond) FacetAddresses() (out []util.Uint160) {
	d.View(func(l Loupe) { out = l.FacetAddresses() })
	return out
}

// FacetAddress returns the facet routed for sel, or the zero address.
func (d *Diamond) FacetAddress(sel selector.Selector) (out util.Uint160) {
	d.View(func(l Loupe) { out = l.FacetAddress(sel) })
	return out
}

// Selectors returns the ordered selector list.
func (d *Diamond) Selectors() (out []selector.Selector) {
	d.View(func(l Loupe) { out = l.Selectors() })
	return out
}

// Owner returns the current owner recorded in committed state.
func (d *Diamond) Owner() util.Uint160 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return access.OpenOwner(d.snapshot()).Owner()
}
