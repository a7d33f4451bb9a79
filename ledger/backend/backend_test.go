package backend

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tplgcmm "github.com/TopiaNetwork/aggregation/ledger/backend/common"
	tplog "github.com/TopiaNetwork/aggregation/log"
)

var allBackends = []BackendType{BackendType_Memdb, BackendType_Leveldb, BackendType_Badger}

func openBackends(t *testing.T, onDisk bool) map[BackendType]Backend {
	out := make(map[BackendType]Backend)
	for _, bt := range allBackends {
		path := ""
		if onDisk && bt != BackendType_Memdb {
			path = t.TempDir()
		}
		b, err := NewBackend(bt, tplog.NewNopLogger(), path, "test")
		require.NoError(t, err, bt.String())
		t.Cleanup(func() { b.Close() })
		out[bt] = b
	}
	return out
}

func drain(t *testing.T, it tplgcmm.Iterator) []string {
	defer it.Close()

	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	return keys
}

func TestGetSetDelete(t *testing.T) {
	for bt, b := range openBackends(t, false) {
		t.Run(bt.String(), func(t *testing.T) {
			v, err := b.Get([]byte("missing"))
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, b.Set([]byte("k"), []byte("v1")))
			require.NoError(t, b.SetSync([]byte("k"), []byte("v2")))

			v, err = b.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), v)

			ok, err := b.Has([]byte("k"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, b.Delete([]byte("k")))
			ok, err = b.Has([]byte("k"))
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, b.Set(nil, []byte("v")), tplgcmm.ErrKeyEmpty)
			assert.ErrorIs(t, b.Set([]byte("k"), nil), tplgcmm.ErrValueNil)
			assert.Equal(t, bt.String(), b.Stats()["database.type"])
		})
	}
}

func TestIterators(t *testing.T) {
	for bt, b := range openBackends(t, false) {
		t.Run(bt.String(), func(t *testing.T) {
			for i := 0; i < 6; i++ {
				require.NoError(t, b.Set([]byte(fmt.Sprintf("k%d", i)), []byte{byte(i)}))
			}

			it, err := b.Iterator([]byte("k1"), []byte("k4"))
			require.NoError(t, err)
			assert.Equal(t, []string{"k1", "k2", "k3"}, drain(t, it))

			it, err = b.ReverseIterator([]byte("k1"), []byte("k4"))
			require.NoError(t, err)
			assert.Equal(t, []string{"k3", "k2", "k1"}, drain(t, it))

			it, err = b.Iterator(nil, nil)
			require.NoError(t, err)
			assert.Len(t, drain(t, it), 6)

			it, err = b.ReverseIterator(nil, []byte("k2"))
			require.NoError(t, err)
			assert.Equal(t, []string{"k1", "k0"}, drain(t, it))

			it, err = b.Iterator([]byte("k9"), nil)
			require.NoError(t, err)
			assert.Empty(t, drain(t, it))
		})
	}
}

func TestOnDiskReopen(t *testing.T) {
	for _, bt := range []BackendType{BackendType_Leveldb, BackendType_Badger} {
		t.Run(bt.String(), func(t *testing.T) {
			path := t.TempDir()

			b, err := NewBackend(bt, tplog.NewNopLogger(), path, "reopen")
			require.NoError(t, err)
			require.NoError(t, b.SetSync([]byte("k"), []byte("v")))
			require.NoError(t, b.Close())

			b, err = NewBackend(bt, tplog.NewNopLogger(), path, "reopen")
			require.NoError(t, err)
			defer b.Close()

			v, err := b.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
		})
	}
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("cert0"), tplgcmm.PrefixEnd([]byte("cert/")))
	assert.Equal(t, []byte{0x02}, tplgcmm.PrefixEnd([]byte{0x01, 0xFF}))
	assert.Nil(t, tplgcmm.PrefixEnd([]byte{0xFF, 0xFF}))
	assert.Nil(t, tplgcmm.PrefixEnd(nil))
}

func TestParseBackendType(t *testing.T) {
	for _, bt := range allBackends {
		parsed, err := ParseBackendType(bt.String())
		require.NoError(t, err)
		assert.Equal(t, bt, parsed)
	}
	_, err := ParseBackendType("rocksdb")
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	for bt, b := range openBackends(t, false) {
		t.Run(bt.String(), func(t *testing.T) {
			require.NoError(t, b.Set([]byte("old"), []byte("x")))

			batch := b.NewBatch()
			require.NoError(t, batch.Set([]byte("a"), []byte("1")))
			require.NoError(t, batch.Set([]byte("b"), []byte("2")))
			require.NoError(t, batch.Delete([]byte("old")))
			assert.ErrorIs(t, batch.Set(nil, []byte("v")), tplgcmm.ErrKeyEmpty)

			ok, err := b.Has([]byte("a"))
			require.NoError(t, err)
			assert.False(t, ok, "nothing is visible before Write")

			require.NoError(t, batch.WriteSync())
			assert.ErrorIs(t, batch.Write(), tplgcmm.ErrBatchClosed)
			assert.ErrorIs(t, batch.Set([]byte("c"), []byte("3")), tplgcmm.ErrBatchClosed)
			require.NoError(t, batch.Close())
			require.NoError(t, batch.Close())

			it, err := b.Iterator(nil, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, drain(t, it))

			discarded := b.NewBatch()
			require.NoError(t, discarded.Set([]byte("z"), []byte("9")))
			require.NoError(t, discarded.Close())
			ok, err = b.Has([]byte("z"))
			require.NoError(t, err)
			assert.False(t, ok, "a closed batch writes nothing")
		})
	}
}
