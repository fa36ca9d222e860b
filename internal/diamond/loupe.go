package diamond

import (
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

// FacetInfo is a facet together with the selectors routed to it.
type FacetInfo struct {
	Facet     util.Uint160        `json:"facet"`
	Selectors []selector.Selector `json:"selectors"`
}

// Loupe reads the registry. It never writes.
type Loupe struct {
	reg registry
}

// NewLoupe returns a loupe over st.
func NewLoupe(st state.Store) Loupe {
	return Loupe{reg: openRegistry(st)}
}

// Len returns the number of registered selectors.
func (l Loupe) Len() int {
	return int(l.reg.len())
}

// Selectors returns every registered selector in list order.
func (l Loupe) Selectors() []selector.Selector {
	n := l.reg.len()
	out := make([]selector.Selector, n)
	for i := uint32(0); i < n; i++ {
		out[i] = l.reg.at(i)
	}
	return out
}

// Facets groups the selector list by facet, in first-seen order.
func (l Loupe) Facets() []FacetInfo {
	out := make([]FacetInfo, 0)
	index := make(map[util.Uint160]int)
	for _, sel := range l.Selectors() {
		entry, ok := l.reg.lookup(sel)
		if !ok {
			continue
		}
		i, seen := index[entry.Facet]
		if !seen {
			i = len(out)
			index[entry.Facet] = i
			out = append(out, FacetInfo{Facet: entry.Facet})
		}
		out[i].Selectors = append(out[i].Selectors, sel)
	}
	return out
}

// FacetFunctionSelectors returns the selectors routed to facet in list order.
func (l Loupe) FacetFunctionSelectors(facet util.Uint160) []selector.Selector {
	out := make([]selector.Selector, 0)
	for _, sel := range l.Selectors() {
		if entry, ok := l.reg.lookup(sel); ok && entry.Facet.Equals(facet) {
			out = append(out, sel)
		}
	}
	return out
}

// FacetAddresses returns each facet once, in first-seen order.
func (l Loupe) FacetAddresses() []util.Uint160 {
	out := make([]util.Uint160, 0)
	seen := make(map[util.Uint160]struct{})
	for _, sel := range l.Selectors() {
		entry, ok := l.reg.lookup(sel)
		if !ok {
			continue
		}
		if _, dup := seen[entry.Facet]; dup {
			continue
		}
		seen[entry.Facet] = struct{}{}
		out = append(out, entry.Facet)
	}
	return out
}

// FacetAddress returns the facet for sel, or the zero address.
func (l Loupe) FacetAddress(sel selector.Selector) util.Uint160 {
	entry, _ := l.reg.lookup(sel)
	return entry.Facet
}

// Lookup returns the registry entry for sel.
func (l Loupe) Lookup(sel selector.Selector) (Entry, bool) {
	return l.reg.lookup(sel)
}
