package state

import (
	"bytes"
	"context"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace_Deterministic(t *testing.T) {
	a := Namespace("compose.diamond")
	b := Namespace("compose.diamond")
	c := Namespace("compose.owner")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.String(), 64)
}

func TestBlock_NamespacesDoNotAlias(t *testing.T) {
	tx := Begin(NewRoot())
	erc20 := Open(tx, "compose.erc20")
	owner := Open(tx, "compose.owner")

	erc20.Put([]byte("owner"), []byte("token-owner"))
	owner.Put([]byte("owner"), []byte("diamond-owner"))

	v, ok := erc20.Get([]byte("owner"))
	require.True(t, ok)
	assert.Equal(t, "token-owner", string(v))

	v, ok = owner.Get([]byte("owner"))
	require.True(t, ok)
	assert.Equal(t, "diamond-owner", string(v))

	assert.False(t, bytes.Equal(erc20.Key([]byte("owner")), owner.Key([]byte("owner"))))
}

func TestBlock_TypedFields(t *testing.T) {
	b := Open(Begin(NewRoot()), "compose.test")

	assert.Equal(t, uint32(0), b.Uint32([]byte("n")))
	b.PutUint32([]byte("n"), 42)
	assert.Equal(t, uint32(42), b.Uint32([]byte("n")))

	addr := util.Uint160{1, 2, 3}
	assert.True(t, b.Uint160([]byte("a")).Equals(util.Uint160{}))
	b.PutUint160([]byte("a"), addr)
	assert.True(t, b.Uint160([]byte("a")).Equals(addr))
	b.PutUint160([]byte("a"), util.Uint160{})
	_, ok := b.Get([]byte("a"))
	assert.False(t, ok, "zero address write should delete the field")

	assert.False(t, b.Bool([]byte("f")))
	b.PutBool([]byte("f"), true)
	assert.True(t, b.Bool([]byte("f")))
	b.PutBool([]byte("f"), false)
	assert.False(t, b.Bool([]byte("f")))
}

func TestBlock_PutCopiesValue(t *testing.T) {
	b := Open(Begin(NewRoot()), "compose.test")
	v := []byte("abc")
	b.Put([]byte("k"), v)
	v[0] = 'x'

	got, _ := b.Get([]byte("k"))
	assert.Equal(t, "abc", string(got))
}

func TestField(t *testing.T) {
	assert.Equal(t, []byte("sel/\x01\x02"), Field("sel", []byte{1, 2}))
	assert.Equal(t, []byte("len"), Field("len"))
	assert.Equal(t, []byte("role/a/b"), Field("role", []byte("a"), []byte("b")))
}

func TestTx_CommitAndDiscard(t *testing.T) {
	root := NewRoot()
	key := []byte("k")

	discarded := Begin(root)
	discarded.Put(key, []byte("v1"))
	discarded.Discard()
	_, err := root.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)

	committed := Begin(root)
	committed.Put(key, []byte("v2"))
	require.NoError(t, committed.Commit())
	v, err := root.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))

	assert.ErrorIs(t, committed.Commit(), ErrTxDone)
}

func TestTx_NestedRollback(t *testing.T) {
	root := NewRoot()
	outer := Begin(root)
	outer.Put([]byte("a"), []byte("outer"))

	inner := outer.Begin()
	inner.Put([]byte("b"), []byte("inner"))
	v, err := inner.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "outer", string(v), "child should read parent writes")
	inner.Discard()

	_, err = outer.Get([]byte("b"))
	assert.ErrorIs(t, err, ErrNotFound)

	inner = outer.Begin()
	inner.Delete([]byte("a"))
	require.NoError(t, inner.Commit())
	_, err = outer.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTx_Changes(t *testing.T) {
	root := NewRoot()
	seed := Begin(root)
	seed.Put([]byte("old"), []byte("1"))
	require.NoError(t, seed.Commit())

	tx := Begin(root)
	tx.Put([]byte("new"), []byte("2"))
	tx.Delete([]byte("old"))

	var puts, dels int
	for _, c := range tx.Changes() {
		if c.Deleted {
			dels++
			assert.Equal(t, "old", string(c.Key))
		} else {
			puts++
			assert.Equal(t, "new", string(c.Key))
			assert.Equal(t, "2", string(c.Value))
		}
	}
	assert.Equal(t, 1, puts)
	assert.Equal(t, 1, dels)
}

func TestRestore(t *testing.T) {
	j := NewMemoryJournal()
	require.NoError(t, j.Commit(context.Background(), []Change{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("a"), Deleted: true},
	}))
	assert.Equal(t, 1, j.Len())
	assert.Equal(t, 1, j.Commits())

	root := NewRoot()
	n, err := Restore(context.Background(), root, j)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := root.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))
}
