package facets

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
)

// Factory creates a fresh builtin facet instance.
type Factory func() diamond.Facet

var (
	builtins = make(map[string]Factory)
	mu       sync.RWMutex
)

func init() {
	Register("DiamondCutFacet", func() diamond.Facet { return NewDiamondCut() })
	Register("DiamondLoupeFacet", func() diamond.Facet { return NewDiamondLoupe() })
	Register("OwnerFacet", func() diamond.Facet { return NewOwner() })
	Register("OwnerTwoStepsFacet", func() diamond.Facet { return NewOwnerTwoSteps() })
	Register("AccessControlFacet", func() diamond.Facet { return NewAccessControl() })
}

// Register adds a builtin facet factory under name.
// Panics if the name is already registered.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := builtins[name]; exists {
		panic(fmt.Sprintf("facets: builtin %q already registered", name))
	}
	builtins[name] = factory
}

// Builtin returns a new instance of the named builtin facet.
func Builtin(name string) (diamond.Facet, bool) {
	mu.RLock()
	factory, ok := builtins[name]
	mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// List returns all builtin names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
