package diamond

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	corestate "github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// Facet is a deployed module implementation. Invoke runs the function
// identified by sel against the caller's state, exactly as if the function
// belonged to the diamond itself.
type Facet interface {
	Name() string
	Invoke(env *Env, sel selector.Selector, input []byte) ([]byte, error)
}

// Describer is implemented by facets that list their function signatures.
type Describer interface {
	Functions() []string
}

// Coder is implemented by facets that report explicit code bytes. Facets
// without it report their name.
type Coder interface {
	Code() []byte
}

// Selectors returns the selectors of a Describer facet.
func Selectors(f Facet) []selector.Selector {
	d, ok := f.(Describer)
	if !ok {
		return nil
	}
	return selector.FromSignatures(d.Functions()...)
}

var (
	// ErrNilFacet is returned when deploying a nil implementation.
	ErrNilFacet = errors.New("diamond: nil facet")
	// ErrAddressInUse is returned when deploying over an existing module.
	ErrAddressInUse = errors.New("diamond: address already in use")
)

// CodeStore holds deployed facet implementations by address.
type CodeStore struct {
	mu     sync.RWMutex
	facets map[util.Uint160]Facet
	nonces map[util.Uint160]uint32
}

// NewCodeStore creates an empty code store.
func NewCodeStore() *CodeStore {
	return &CodeStore{
		facets: make(map[util.Uint160]Facet),
		nonces: make(map[util.Uint160]uint32),
	}
}

// Deploy stores f at an address derived from deployer, the deployer's
// deployment count and the facet name.
func (s *CodeStore) Deploy(deployer util.Uint160, f Facet) (util.Uint160, error) {
	if f == nil {
		return util.Uint160{}, ErrNilFacet
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		nonce := s.nonces[deployer]
		s.nonces[deployer] = nonce + 1
		addr := corestate.CreateContractHash(deployer, nonce, f.Name())
		if _, taken := s.facets[addr]; taken {
			continue
		}
		s.facets[addr] = f
		return addr, nil
	}
}

// DeployAt stores f at a fixed address.
func (s *CodeStore) DeployAt(addr util.Uint160, f Facet) error {
	if f == nil {
		return ErrNilFacet
	}
	if addr.Equals(util.Uint160{}) {
		return fmt.Errorf("diamond: deploy at zero address: %w", ErrAddressInUse)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.facets[addr]; taken {
		return fmt.Errorf("%w: %s", ErrAddressInUse, FormatAddress(addr))
	}
	s.facets[addr] = f
	return nil
}

// Undeploy removes the implementation at addr. Registry entries still
// pointing at it resolve to InvalidModule.
func (s *CodeStore) Undeploy(addr util.Uint160) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.facets, addr)
}

// Resolve returns the implementation at addr.
func (s *CodeStore) Resolve(addr util.Uint160) (Facet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facets[addr]
	return f, ok
}

// Code returns the code bytes at addr; empty means no module lives there.
func (s *CodeStore) Code(addr util.Uint160) []byte {
	f, ok := s.Resolve(addr)
	if !ok {
		return nil
	}
	if c, ok := f.(Coder); ok {
		return bytes.Clone(c.Code())
	}
	return []byte(f.Name())
}

// Addresses returns every deployed address in ascending order.
func (s *CodeStore) Addresses() []util.Uint160 {
	s.mu.RLock()
	out := make([]util.Uint160, 0, len(s.facets))
	for addr := range s.facets {
		out = append(out, addr)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
