package badger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dgraph-io/badger/v3"

	tplgcmm "github.com/TopiaNetwork/aggregation/ledger/backend/common"
	tplog "github.com/TopiaNetwork/aggregation/log"
)

type BadgerBackend struct {
	log  tplog.Logger
	name string
	db   *badger.DB
}

// NewBadgerBackend opens <path>/<name>.db; an empty path keeps the database in memory.
func NewBadgerBackend(log tplog.Logger, name string, path string, cacheSize int) (*BadgerBackend, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		pathWithName := filepath.Join(path, name+".db")
		if err := os.MkdirAll(pathWithName, 0755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(pathWithName)
	}
	opts = opts.WithLogger(nil).WithSyncWrites(false).WithBlockCacheSize(int64(cacheSize) << 20)

	db, err := badger.Open(opts)
	if err != nil {
		log.Errorf("Can't open badger: name=%s, path=%s, err=%v", name, path, err)
		return nil, err
	}

	return &BadgerBackend{
		log:  log,
		name: name,
		db:   db,
	}, nil
}

func (b *BadgerBackend) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, tplgcmm.ErrKeyEmpty
	}

	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		if err == nil && val == nil {
			val = []byte{}
		}
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	return val, err
}

func (b *BadgerBackend) Has(key []byte) (bool, error) {
	val, err := b.Get(key)
	return val != nil, err
}

func (b *BadgerBackend) Set(key, value []byte) error {
	if err := tplgcmm.ValidateKv(key, value); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func withSync(db *badger.DB, err error) error {
	if err != nil {
		return err
	}
	return db.Sync()
}

func (b *BadgerBackend) SetSync(key, value []byte) error {
	return withSync(b.db, b.Set(key, value))
}

func (b *BadgerBackend) Delete(key []byte) error {
	if len(key) == 0 {
		return tplgcmm.ErrKeyEmpty
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

type badgerBatch struct {
	tplgcmm.OpBatch
	db *badger.DB
}

func (b *BadgerBackend) NewBatch() tplgcmm.Batch {
	return &badgerBatch{db: b.db}
}

// Write replays the batch in a single transaction. badger's WriteBatch may split large batches
// across transactions, which would break all-or-nothing.
func (bb *badgerBatch) Write() error {
	ops, err := bb.Take()
	if err != nil {
		return err
	}

	return bb.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			if op.Delete {
				err = txn.Delete(op.Key)
			} else {
				err = txn.Set(op.Key, op.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (bb *badgerBatch) WriteSync() error {
	return withSync(bb.db, bb.Write())
}

func (b *BadgerBackend) collect(start, end []byte, reverse bool) (*tplgcmm.SliceIterator, error) {
	var keys, values [][]byte

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		switch {
		case reverse && end != nil:
			it.Seek(end)
		case !reverse && start != nil:
			it.Seek(start)
		default:
			it.Rewind()
		}

		for ; it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if !tplgcmm.InDomain(key, start, end) {
				if reverse && end != nil && bytes.Equal(key, end) {
					continue
				}
				break
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			values = append(values, val)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tplgcmm.NewSliceIterator(start, end, keys, values), nil
}

func (b *BadgerBackend) Iterator(start, end []byte) (tplgcmm.Iterator, error) {
	return b.collect(start, end, false)
}

func (b *BadgerBackend) ReverseIterator(start, end []byte) (tplgcmm.Iterator, error) {
	return b.collect(start, end, true)
}

func (b *BadgerBackend) Stats() map[string]string {
	lsm, vlog := b.db.Size()
	return map[string]string{
		"database.type":      "badger",
		"database.lsm_size":  strconv.FormatInt(lsm, 10),
		"database.vlog_size": strconv.FormatInt(vlog, 10),
	}
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
