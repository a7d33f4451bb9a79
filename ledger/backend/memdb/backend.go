package memdb

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/google/btree"

	tpcmm "github.com/TopiaNetwork/aggregation/common"
	tplgcmm "github.com/TopiaNetwork/aggregation/ledger/backend/common"
	tplog "github.com/TopiaNetwork/aggregation/log"
)

const (
	// The approximate number of items and children per B-tree node. Tuned with benchmarks.
	bTreeDegree = 32
)

type item struct {
	key   []byte
	value []byte
}

func (i *item) Less(other btree.Item) bool {
	return bytes.Compare(i.key, other.(*item).key) < 0
}

func newKey(key []byte) *item {
	return &item{key: key}
}

type MemBackend struct {
	log    tplog.Logger
	name   string
	mtx    sync.RWMutex
	btree  *btree.BTree
	closed bool
}

func NewMemDBBackend(log tplog.Logger, name string) *MemBackend {
	return &MemBackend{
		log:   log,
		name:  name,
		btree: btree.New(bTreeDegree),
	}
}

func (b *MemBackend) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, tplgcmm.ErrKeyEmpty
	}

	b.mtx.RLock()
	defer b.mtx.RUnlock()

	if b.closed {
		return nil, tplgcmm.ErrClosed
	}
	if i := b.btree.Get(newKey(key)); i != nil {
		return tpcmm.BytesCopy(i.(*item).value), nil
	}
	return nil, nil
}

func (b *MemBackend) Has(key []byte) (bool, error) {
	v, err := b.Get(key)
	return v != nil, err
}

func (b *MemBackend) Set(key []byte, value []byte) error {
	if err := tplgcmm.ValidateKv(key, value); err != nil {
		return err
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.closed {
		return tplgcmm.ErrClosed
	}
	b.btree.ReplaceOrInsert(&item{key: tpcmm.BytesCopy(key), value: tpcmm.BytesCopy(value)})
	return nil
}

func (b *MemBackend) SetSync(key []byte, value []byte) error {
	return b.Set(key, value)
}

func (b *MemBackend) Delete(key []byte) error {
	if len(key) == 0 {
		return tplgcmm.ErrKeyEmpty
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.closed {
		return tplgcmm.ErrClosed
	}
	b.btree.Delete(newKey(key))
	return nil
}

type memBatch struct {
	tplgcmm.OpBatch
	backend *MemBackend
}

func (b *MemBackend) NewBatch() tplgcmm.Batch {
	return &memBatch{backend: b}
}

// Write applies every operation under one write lock, so readers see all of them or none.
func (mb *memBatch) Write() error {
	ops, err := mb.Take()
	if err != nil {
		return err
	}

	b := mb.backend
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.closed {
		return tplgcmm.ErrClosed
	}
	for _, op := range ops {
		if op.Delete {
			b.btree.Delete(newKey(op.Key))
		} else {
			b.btree.ReplaceOrInsert(&item{key: tpcmm.BytesCopy(op.Key), value: tpcmm.BytesCopy(op.Value)})
		}
	}
	return nil
}

func (mb *memBatch) WriteSync() error {
	return mb.Write()
}

func (b *MemBackend) collect(start, end []byte, reverse bool) (*tplgcmm.SliceIterator, error) {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	if b.closed {
		return nil, tplgcmm.ErrClosed
	}

	var keys, values [][]byte
	visit := func(i btree.Item) bool {
		it := i.(*item)
		if tplgcmm.InDomain(it.key, start, end) {
			keys = append(keys, it.key)
			values = append(values, it.value)
			return true
		}
		// descending from end visits end itself first; anything else out of range ends the walk
		return reverse && end != nil && bytes.Equal(it.key, end)
	}

	if reverse {
		if end != nil {
			b.btree.DescendLessOrEqual(newKey(end), visit)
		} else {
			b.btree.Descend(visit)
		}
	} else {
		if start != nil {
			b.btree.AscendGreaterOrEqual(newKey(start), visit)
		} else {
			b.btree.Ascend(visit)
		}
	}

	return tplgcmm.NewSliceIterator(start, end, keys, values), nil
}

func (b *MemBackend) Iterator(start, end []byte) (tplgcmm.Iterator, error) {
	return b.collect(start, end, false)
}

func (b *MemBackend) ReverseIterator(start, end []byte) (tplgcmm.Iterator, error) {
	return b.collect(start, end, true)
}

func (b *MemBackend) Stats() map[string]string {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	return map[string]string{
		"database.type": "memdb",
		"database.size": strconv.Itoa(b.btree.Len()),
	}
}

func (b *MemBackend) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.closed = true
	return nil
}
