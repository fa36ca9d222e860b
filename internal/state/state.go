// Package state implements the shared persistent address space of a diamond
// and the namespaced addressing discipline every stateful facet follows.
//
// A facet never allocates storage positionally. It opens a Block at a Slot
// derived from a stable namespace string (keccak256 of the string), and every
// field it writes lives under that slot. Independently authored facets
// therefore never alias each other's fields, and the registry itself is just
// another block at its own namespace.
//
// Writes are staged in a Tx (a neo-go MemCachedStore overlay). Committing a Tx
// flushes it into its parent; dropping it discards every write, which is how
// cuts and routed calls get all-or-nothing semantics.
package state

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"golang.org/x/crypto/sha3"
)

// ErrNotFound is returned by Store.Get for absent keys.
var ErrNotFound = storage.ErrKeyNotFound

// Store is the key/value address space shared by all facets of one diamond.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte)
	Delete(key []byte)
}

// Slot is the storage root of one namespace.
type Slot util.Uint256

// Namespace derives the slot for a namespace string. The result depends only
// on name.
func Namespace(name string) Slot {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	var s Slot
	copy(s[:], h.Sum(nil))
	return s
}

// String renders the slot as big-endian hex.
func (s Slot) String() string {
	return util.Uint256(s).StringBE()
}

// Block is a namespaced view over a Store. Every key written through a Block
// is prefixed with its slot.
type Block struct {
	store Store
	slot  Slot
}

// Open returns the block for namespace over store.
func Open(store Store, namespace string) *Block {
	return At(store, Namespace(namespace))
}

// At returns the block rooted at slot over store.
func At(store Store, slot Slot) *Block {
	return &Block{store: store, slot: slot}
}

// Slot returns the block's storage root.
func (b *Block) Slot() Slot {
	return b.slot
}

// Key returns the absolute store key for field.
func (b *Block) Key(field []byte) []byte {
	k := make([]byte, 0, len(b.slot)+len(field))
	k = append(k, b.slot[:]...)
	return append(k, field...)
}

// Get reads field. Backing stores are in-memory overlays, so any read error
// is treated as an absent key.
func (b *Block) Get(field []byte) ([]byte, bool) {
	v, err := b.store.Get(b.Key(field))
	if err != nil {
		return nil, false
	}
	return v, true
}

// Put writes field.
func (b *Block) Put(field, value []byte) {
	b.store.Put(b.Key(field), bytes.Clone(value))
}

// Delete removes field.
func (b *Block) Delete(field []byte) {
	b.store.Delete(b.Key(field))
}

// Uint32 reads a big-endian uint32 field; absent fields read as zero.
func (b *Block) Uint32(field []byte) uint32 {
	v, ok := b.Get(field)
	if !ok || len(v) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(v)
}

// PutUint32 writes a big-endian uint32 field.
func (b *Block) PutUint32(field []byte, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.Put(field, buf[:])
}

// Uint160 reads an address field; absent fields read as the zero address.
func (b *Block) Uint160(field []byte) util.Uint160 {
	v, ok := b.Get(field)
	if !ok {
		return util.Uint160{}
	}
	u, err := util.Uint160DecodeBytesBE(v)
	if err != nil {
		return util.Uint160{}
	}
	return u
}

// PutUint160 writes an address field. Writing the zero address deletes it.
func (b *Block) PutUint160(field []byte, v util.Uint160) {
	if v.Equals(util.Uint160{}) {
		b.Delete(field)
		return
	}
	b.Put(field, v.BytesBE())
}

// Bool reads a flag field.
func (b *Block) Bool(field []byte) bool {
	v, ok := b.Get(field)
	return ok && len(v) == 1 && v[0] == 1
}

// PutBool writes a flag field. Writing false deletes it.
func (b *Block) PutBool(field []byte, v bool) {
	if !v {
		b.Delete(field)
		return
	}
	b.Put(field, []byte{1})
}

// Field joins a field name and optional binary components into one key.
func Field(name string, parts ...[]byte) []byte {
	n := len(name)
	for _, p := range parts {
		n += 1 + len(p)
	}
	out := make([]byte, 0, n)
	out = append(out, name...)
	for _, p := range parts {
		out = append(out, '/')
		out = append(out, p...)
	}
	return out
}

// Tx stages writes over a lower store.
type Tx struct {
	cache *storage.MemCachedStore
	done  bool
}

// ErrTxDone is returned when committing a Tx twice.
var ErrTxDone = errors.New("state: transaction already finished")

// NewRoot returns an empty in-memory address space.
func NewRoot() storage.Store {
	return storage.NewMemoryStore()
}

// Begin opens a Tx over lower.
func Begin(lower storage.Store) *Tx {
	return &Tx{cache: storage.NewMemCachedStore(lower)}
}

// Begin opens a child Tx whose writes land in t when committed.
func (t *Tx) Begin() *Tx {
	return Begin(t.cache)
}

// Get implements Store.
func (t *Tx) Get(key []byte) ([]byte, error) {
	return t.cache.Get(key)
}

// Put implements Store.
func (t *Tx) Put(key, value []byte) {
	t.cache.Put(key, value)
}

// Delete implements Store.
func (t *Tx) Delete(key []byte) {
	t.cache.Delete(key)
}

// Change is one staged write.
type Change struct {
	Key     []byte
	Value   []byte
	Deleted bool
}

// Changes returns the writes staged in t and not yet committed.
func (t *Tx) Changes() []Change {
	batch := t.cache.GetBatch()
	out := make([]Change, 0, len(batch.Put)+len(batch.Deleted))
	for _, kv := range batch.Put {
		out = append(out, Change{Key: bytes.Clone(kv.Key), Value: bytes.Clone(kv.Value)})
	}
	for _, kv := range batch.Deleted {
		out = append(out, Change{Key: bytes.Clone(kv.Key), Deleted: true})
	}
	return out
}

// Commit flushes staged writes into the lower store.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	_, err := t.cache.PersistSync()
	return err
}

// Discard drops staged writes. Discarding a committed Tx is a no-op.
func (t *Tx) Discard() {
	t.done = true
}
