package backend

import (
	"fmt"

	"github.com/TopiaNetwork/aggregation/ledger/backend/badger"
	tplgcmm "github.com/TopiaNetwork/aggregation/ledger/backend/common"
	"github.com/TopiaNetwork/aggregation/ledger/backend/leveldb"
	"github.com/TopiaNetwork/aggregation/ledger/backend/memdb"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
)

type BackendType int

const (
	BackendType_Unknown BackendType = iota
	BackendType_Leveldb
	BackendType_Badger
	BackendType_Memdb
)

const (
	DefaultCacheSize = 16
)

func (t BackendType) String() string {
	switch t {
	case BackendType_Leveldb:
		return "leveldb"
	case BackendType_Badger:
		return "badger"
	case BackendType_Memdb:
		return "memdb"
	}
	return "unknown"
}

func ParseBackendType(s string) (BackendType, error) {
	switch s {
	case "leveldb":
		return BackendType_Leveldb, nil
	case "badger":
		return BackendType_Badger, nil
	case "memdb":
		return BackendType_Memdb, nil
	}
	return BackendType_Unknown, fmt.Errorf("invalid backend type %q", s)
}

type Backend interface {
	tplgcmm.KVStore
}

// NewBackend opens a named store under path. For leveldb and badger an empty path means an
// in-memory instance.
func NewBackend(backendType BackendType, log tplog.Logger, path string, name string) (Backend, error) {
	bLog := tplog.CreateModuleLogger(tplogcmm.InfoLevel, "LedgerBackend", log)

	switch backendType {
	case BackendType_Leveldb:
		b, err := leveldb.NewLeveldbBackend(bLog, name, path, DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendType_Badger:
		b, err := badger.NewBadgerBackend(bLog, name, path, DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendType_Memdb:
		return memdb.NewMemDBBackend(bLog, name), nil
	}

	return nil, fmt.Errorf("invalid backend type %d", backendType)
}
