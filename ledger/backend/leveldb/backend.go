package leveldb

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	tpcmm "github.com/TopiaNetwork/aggregation/common"
	tplgcmm "github.com/TopiaNetwork/aggregation/ledger/backend/common"
	tplog "github.com/TopiaNetwork/aggregation/log"
)

type LeveldbBackend struct {
	log  tplog.Logger
	name string
	db   *leveldb.DB
}

// NewLeveldbBackend opens <path>/<name>.db; an empty path keeps the database in memory.
func NewLeveldbBackend(log tplog.Logger, name string, path string, cacheSize int) (*LeveldbBackend, error) {
	o := &opt.Options{
		BlockCacheCapacity: cacheSize * opt.MiB,
	}

	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		pathWithName := filepath.Join(path, name+".db")
		if err = os.MkdirAll(pathWithName, 0755); err != nil {
			return nil, err
		}
		db, err = leveldb.OpenFile(pathWithName, o)
	}
	if err != nil {
		log.Errorf("Create leveldb %s error %v, dbPath=%s", name, err, path)
		return nil, err
	}

	return &LeveldbBackend{
		log:  log,
		name: name,
		db:   db,
	}, nil
}

func (b *LeveldbBackend) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, tplgcmm.ErrKeyEmpty
	}

	val, err := b.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return val, err
}

func (b *LeveldbBackend) Has(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, tplgcmm.ErrKeyEmpty
	}
	return b.db.Has(key, nil)
}

func (b *LeveldbBackend) Set(key []byte, value []byte) error {
	if err := tplgcmm.ValidateKv(key, value); err != nil {
		return err
	}
	return b.db.Put(key, value, nil)
}

func (b *LeveldbBackend) SetSync(key []byte, value []byte) error {
	if err := tplgcmm.ValidateKv(key, value); err != nil {
		return err
	}
	return b.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

func (b *LeveldbBackend) Delete(key []byte) error {
	if len(key) == 0 {
		return tplgcmm.ErrKeyEmpty
	}
	return b.db.Delete(key, nil)
}

func (b *LeveldbBackend) NewBatch() tplgcmm.Batch {
	return &leveldbBatch{db: b.db, batch: new(leveldb.Batch)}
}

type leveldbBatch struct {
	db     *leveldb.DB
	batch  *leveldb.Batch
	closed bool
}

func (lb *leveldbBatch) Set(key, value []byte) error {
	if lb.closed {
		return tplgcmm.ErrBatchClosed
	}
	if err := tplgcmm.ValidateKv(key, value); err != nil {
		return err
	}
	lb.batch.Put(key, value)
	return nil
}

func (lb *leveldbBatch) Delete(key []byte) error {
	if lb.closed {
		return tplgcmm.ErrBatchClosed
	}
	if len(key) == 0 {
		return tplgcmm.ErrKeyEmpty
	}
	lb.batch.Delete(key)
	return nil
}

func (lb *leveldbBatch) write(sync bool) error {
	if lb.closed {
		return tplgcmm.ErrBatchClosed
	}
	lb.closed = true
	return lb.db.Write(lb.batch, &opt.WriteOptions{Sync: sync})
}

func (lb *leveldbBatch) Write() error {
	return lb.write(false)
}

func (lb *leveldbBatch) WriteSync() error {
	return lb.write(true)
}

func (lb *leveldbBatch) Close() error {
	lb.closed = true
	lb.batch.Reset()
	return nil
}

func (b *LeveldbBackend) Iterator(start, end []byte) (tplgcmm.Iterator, error) {
	source := b.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return newLeveldbIterator(source, start, end, false), nil
}

func (b *LeveldbBackend) ReverseIterator(start, end []byte) (tplgcmm.Iterator, error) {
	source := b.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return newLeveldbIterator(source, start, end, true), nil
}

func (b *LeveldbBackend) Stats() map[string]string {
	stats := map[string]string{"database.type": "leveldb"}

	var dbStats leveldb.DBStats
	if err := b.db.Stats(&dbStats); err == nil {
		stats["database.alive_iterators"] = strconv.Itoa(int(dbStats.AliveIterators))
		stats["database.alive_snapshots"] = strconv.Itoa(int(dbStats.AliveSnapshots))
	}
	return stats
}

func (b *LeveldbBackend) Close() error {
	return b.db.Close()
}

type leveldbIterator struct {
	source  iterator.Iterator
	start   []byte
	end     []byte
	reverse bool
	valid   bool
}

func newLeveldbIterator(source iterator.Iterator, start, end []byte, reverse bool) *leveldbIterator {
	var valid bool
	if reverse {
		valid = source.Last()
	} else {
		valid = source.First()
	}

	return &leveldbIterator{
		source:  source,
		start:   start,
		end:     end,
		reverse: reverse,
		valid:   valid,
	}
}

func (it *leveldbIterator) Domain() ([]byte, []byte) {
	return it.start, it.end
}

func (it *leveldbIterator) Valid() bool {
	return it.valid && it.source.Error() == nil
}

func (it *leveldbIterator) assertValid() {
	if !it.Valid() {
		panic("iterator is invalid")
	}
}

func (it *leveldbIterator) Next() {
	it.assertValid()
	if it.reverse {
		it.valid = it.source.Prev()
	} else {
		it.valid = it.source.Next()
	}
}

// Key and Value copy because leveldb reuses the buffers on the next move.
func (it *leveldbIterator) Key() []byte {
	it.assertValid()
	return tpcmm.BytesCopy(it.source.Key())
}

func (it *leveldbIterator) Value() []byte {
	it.assertValid()
	return tpcmm.BytesCopy(it.source.Value())
}

func (it *leveldbIterator) Error() error {
	return it.source.Error()
}

func (it *leveldbIterator) Close() error {
	it.source.Release()
	it.valid = false
	return nil
}
