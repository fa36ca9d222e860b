// Package facets provides the builtin facets of a diamond. Administration
// of the diamond itself (cuts, introspection, ownership, roles) is exposed
// as ordinary routed functions, so it goes through the same registry as any
// other module. Payloads are JSON.
package facets

import (
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// Handler implements one facet function.
type Handler func(env *diamond.Env, input []byte) ([]byte, error)

// Table is a facet whose functions are looked up by selector.
type Table struct {
	name     string
	sigs     []string
	handlers map[selector.Selector]Handler
}

// NewTable creates an empty facet called name.
func NewTable(name string) *Table {
	return &Table{name: name, handlers: make(map[selector.Selector]Handler)}
}

// Handle registers h for signature. It panics on a selector collision
// inside the table, which is a programming error.
func (t *Table) Handle(signature string, h Handler) *Table {
	sel := selector.FromSignature(signature)
	if _, dup := t.handlers[sel]; dup {
		panic(fmt.Sprintf("facets: %s registers %s twice", t.name, sel))
	}
	t.handlers[sel] = h
	t.sigs = append(t.sigs, signature)
	return t
}

// Name implements diamond.Facet.
func (t *Table) Name() string {
	return t.name
}

// Functions implements diamond.Describer.
func (t *Table) Functions() []string {
	return append([]string(nil), t.sigs...)
}

// Invoke implements diamond.Facet.
func (t *Table) Invoke(env *diamond.Env, sel selector.Selector, input []byte) ([]byte, error) {
	h, ok := t.handlers[sel]
	if !ok {
		return nil, diamond.Revertf("%s: no function %s", t.name, sel)
	}
	return h(env, input)
}

// decode unmarshals a JSON payload, reporting malformed input as a revert.
func decode(input []byte, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return diamond.Revertf("malformed input: %v", err)
	}
	return nil
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeAddress(input []byte) (util.Uint160, error) {
	var s string
	if err := decode(input, &s); err != nil {
		return util.Uint160{}, err
	}
	addr, err := diamond.ParseAddress(s)
	if err != nil {
		return util.Uint160{}, diamond.Revertf("%v", err)
	}
	return addr, nil
}

func parseAddress(s string) (util.Uint160, error) {
	addr, err := diamond.ParseAddress(s)
	if err != nil {
		return util.Uint160{}, diamond.Revertf("%v", err)
	}
	return addr, nil
}
