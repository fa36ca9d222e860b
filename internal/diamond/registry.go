package diamond

import (
	"encoding/binary"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

// RegistryNamespace is the namespace of the selector registry block.
const RegistryNamespace = "compose.diamond"

// Entry is the registry record of one selector.
type Entry struct {
	Facet    util.Uint160
	Position uint32
}

var (
	lenField  = []byte("len")
	initField = []byte("initialized")
)

func selField(sel selector.Selector) []byte {
	return state.Field("sel", sel[:])
}

func idxField(i uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], i)
	return state.Field("idx", buf[:])
}

// registry is the raw storage layout of the selector table:
//
//	sel/<selector> -> facet (20 bytes, BE) || position (uint32, BE)
//	idx/<n>        -> selector
//	len            -> uint32
//	initialized    -> bool, set by Bootstrap
//
// It performs no validation.
type registry struct {
	b *state.Block
}

func openRegistry(st state.Store) registry {
	return registry{b: state.Open(st, RegistryNamespace)}
}

func (r registry) lookup(sel selector.Selector) (Entry, bool) {
	v, ok := r.b.Get(selField(sel))
	if !ok || len(v) != util.Uint160Size+4 {
		return Entry{}, false
	}
	facet, err := util.Uint160DecodeBytesBE(v[:util.Uint160Size])
	if err != nil {
		return Entry{}, false
	}
	return Entry{Facet: facet, Position: binary.BigEndian.Uint32(v[util.Uint160Size:])}, true
}

func (r registry) record(sel selector.Selector, facet util.Uint160, position uint32) {
	v := make([]byte, util.Uint160Size+4)
	copy(v, facet.BytesBE())
	binary.BigEndian.PutUint32(v[util.Uint160Size:], position)
	r.b.Put(selField(sel), v)
}

func (r registry) erase(sel selector.Selector) {
	r.b.Delete(selField(sel))
}

func (r registry) len() uint32 {
	return r.b.Uint32(lenField)
}

func (r registry) at(i uint32) selector.Selector {
	var sel selector.Selector
	v, ok := r.b.Get(idxField(i))
	if ok {
		copy(sel[:], v)
	}
	return sel
}

func (r registry) setAt(i uint32, sel selector.Selector) {
	r.b.Put(idxField(i), sel.Bytes())
}

func (r registry) push(sel selector.Selector) uint32 {
	n := r.len()
	r.setAt(n, sel)
	r.b.PutUint32(lenField, n+1)
	return n
}

func (r registry) pop() {
	n := r.len()
	if n == 0 {
		return
	}
	r.b.Delete(idxField(n - 1))
	r.b.PutUint32(lenField, n-1)
}

func (r registry) initialized() bool {
	return r.b.Bool(initField)
}

func (r registry) markInitialized() {
	r.b.PutBool(initField, true)
}
