package configuration

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

const (
	LedgerBackend_None    = "none"
	LedgerBackend_MemDB   = "memdb"
	LedgerBackend_Badger  = "badger"
	LedgerBackend_LevelDB = "leveldb"
)

type LedgerConfiguration struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"` //relative paths are resolved against node.root_path
	CacheSize int    `mapstructure:"cache_size"`
}

func DefLedgerConfiguration() *LedgerConfiguration {
	return &LedgerConfiguration{
		Backend:   LedgerBackend_MemDB,
		Path:      "certificates",
		CacheSize: 128,
	}
}

func (c *LedgerConfiguration) Validate() error {
	var errs *multierror.Error

	switch c.Backend {
	case LedgerBackend_None, LedgerBackend_MemDB:
	case LedgerBackend_Badger, LedgerBackend_LevelDB:
		if c.Path == "" {
			errs = multierror.Append(errs, fmt.Errorf("ledger: backend %s needs a path", c.Backend))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("ledger: unknown backend %q", c.Backend))
	}
	if c.CacheSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("ledger: cache_size must be positive, got %d", c.CacheSize))
	}

	return errs.ErrorOrNil()
}
