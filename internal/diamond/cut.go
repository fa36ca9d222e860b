package diamond

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// Action is the mutation a Cut applies to its selectors.
type Action uint8

const (
	// Add registers new selectors.
	Add Action = iota
	// Replace re-routes existing selectors to another facet.
	Replace
	// Remove deletes selectors.
	Remove
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case Add:
		return "add"
	case Replace:
		return "replace"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	switch a {
	case Add, Replace, Remove:
		return []byte(a.String()), nil
	default:
		return nil, &Error{Kind: KindUnknownAction, Action: a}
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction parses an action name or its numeric value.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return Add, nil
	case "replace":
		return Replace, nil
	case "remove":
		return Remove, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("parse action %q: %w", s, ErrUnknownAction)
	}
	return Action(n), nil
}

// Cut is one element of a cut batch.
type Cut struct {
	Facet     util.Uint160        `json:"facet"`
	Action    Action              `json:"action"`
	Selectors []selector.Selector `json:"selectors"`
}

// Init is the optional initializer of a cut batch. Its facet is invoked
// directly, outside the registry, with the batch's state and caller.
type Init struct {
	Facet    util.Uint160      `json:"facet"`
	Selector selector.Selector `json:"selector"`
	Input    []byte            `json:"input,omitempty"`
}

// applyCuts mutates the registry visible through env. It stops at the first
// failure and leaves partial writes in env.State; the caller discards them.
func (d *Diamond) applyCuts(env *Env, cuts []Cut) ([]events.CutRecord, error) {
	reg := openRegistry(env.State)
	records := make([]events.CutRecord, 0, len(cuts))

	for _, c := range cuts {
		var err error
		switch c.Action {
		case Add:
			err = d.addFunctions(reg, c)
		case Replace:
			err = d.replaceFunctions(reg, c)
		case Remove:
			err = d.removeFunctions(reg, c)
		default:
			err = &Error{Kind: KindUnknownAction, Action: c.Action, Facet: c.Facet}
		}
		if err != nil {
			return nil, err
		}
		records = append(records, cutRecord(c))
	}
	return records, nil
}

func (d *Diamond) requireCode(facet util.Uint160) error {
	if facet.Equals(util.Uint160{}) || len(d.code.Code(facet)) == 0 {
		return &Error{Kind: KindInvalidModule, Facet: facet}
	}
	return nil
}

func (d *Diamond) addFunctions(reg registry, c Cut) error {
	if len(c.Selectors) == 0 {
		return &Error{Kind: KindNoSelectors, Facet: c.Facet}
	}
	if err := d.requireCode(c.Facet); err != nil {
		return err
	}
	for _, sel := range c.Selectors {
		if cur, ok := reg.lookup(sel); ok {
			return &Error{Kind: KindDuplicateRegistration, Selector: sel, Facet: cur.Facet}
		}
		pos := reg.push(sel)
		reg.record(sel, c.Facet, pos)
	}
	return nil
}

func (d *Diamond) replaceFunctions(reg registry, c Cut) error {
	if len(c.Selectors) == 0 {
		return &Error{Kind: KindNoSelectors, Facet: c.Facet}
	}
	if err := d.requireCode(c.Facet); err != nil {
		return err
	}
	for _, sel := range c.Selectors {
		cur, ok := reg.lookup(sel)
		if !ok {
			return &Error{Kind: KindMustExist, Selector: sel}
		}
		if cur.Facet.Equals(d.addr) {
			return &Error{Kind: KindImmutableFunction, Selector: sel, Facet: cur.Facet}
		}
		if cur.Facet.Equals(c.Facet) {
			return &Error{Kind: KindSameFacet, Selector: sel, Facet: cur.Facet}
		}
		reg.record(sel, c.Facet, cur.Position)
	}
	return nil
}

func (d *Diamond) removeFunctions(reg registry, c Cut) error {
	if len(c.Selectors) == 0 {
		return &Error{Kind: KindNoSelectors, Facet: c.Facet}
	}
	if !c.Facet.Equals(util.Uint160{}) {
		return &Error{Kind: KindNonZeroRemoveTarget, Facet: c.Facet}
	}
	for _, sel := range c.Selectors {
		cur, ok := reg.lookup(sel)
		if !ok {
			return &Error{Kind: KindMustExist, Selector: sel}
		}
		if cur.Facet.Equals(d.addr) {
			return &Error{Kind: KindImmutableFunction, Selector: sel, Facet: cur.Facet}
		}
		last := reg.len() - 1
		if cur.Position != last {
			moved := reg.at(last)
			movedEntry, _ := reg.lookup(moved)
			reg.setAt(cur.Position, moved)
			reg.record(moved, movedEntry.Facet, cur.Position)
		}
		reg.pop()
		reg.erase(sel)
	}
	return nil
}

// runInit invokes the initializer facet with env unchanged. A panicking
// initializer fails the batch like any other initializer error.
func (d *Diamond) runInit(env *Env, init *Init) (err error) {
	if init == nil || init.Facet.Equals(util.Uint160{}) {
		return nil
	}
	if err := d.requireCode(init.Facet); err != nil {
		return err
	}
	f, _ := d.code.Resolve(init.Facet)

	defer func() {
		if r := recover(); r != nil {
			panicked := &Error{Kind: KindFacetPanicked, Selector: init.Selector, Facet: init.Facet, Err: fmt.Errorf("%v", r)}
			err = &Error{Kind: KindInitializationFailed, Facet: init.Facet, Selector: init.Selector, Err: panicked}
		}
	}()
	if _, err := f.Invoke(env, init.Selector, init.Input); err != nil {
		return &Error{Kind: KindInitializationFailed, Facet: init.Facet, Selector: init.Selector, Err: err}
	}
	return nil
}

func cutRecord(c Cut) events.CutRecord {
	sels := make([]string, len(c.Selectors))
	for i, s := range c.Selectors {
		sels[i] = s.String()
	}
	return events.CutRecord{
		Facet:     FormatAddress(c.Facet),
		Action:    c.Action.String(),
		Selectors: sels,
	}
}

func selectorCounts(cuts []Cut) map[string]int {
	out := make(map[string]int, 3)
	for _, c := range cuts {
		out[c.Action.String()] += len(c.Selectors)
	}
	return out
}
