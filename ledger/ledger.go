// Package ledger keeps finalized certificates. It is a consumer of the aggregation output: the
// orchestrator never reads from it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	tpaggtypes "github.com/TopiaNetwork/aggregation/aggregation/types"
	"github.com/TopiaNetwork/aggregation/codec"
	tpcmm "github.com/TopiaNetwork/aggregation/common"
	"github.com/TopiaNetwork/aggregation/eventhub"
	"github.com/TopiaNetwork/aggregation/ledger/backend"
	tplgcmm "github.com/TopiaNetwork/aggregation/ledger/backend/common"
	tplog "github.com/TopiaNetwork/aggregation/log"
	tplogcmm "github.com/TopiaNetwork/aggregation/log/common"
)

var (
	ErrCertificateNotFound = errors.New("ledger: certificate not found")
	ErrCertificateExists   = errors.New("ledger: certificate for round already stored")
	ErrInvalidRange        = errors.New("ledger: range start after end")
)

var (
	certPrefix = []byte("cert/")
	latestKey  = []byte("meta/latest")
)

type Ledger interface {
	// Put verifies and stores cert. Rounds are written once.
	Put(cert *tpaggtypes.Certificate) error

	Get(round uint64) (*tpaggtypes.Certificate, error)

	Latest() (*tpaggtypes.Certificate, error)

	// Range returns the stored certificates with from <= round <= to in ascending round order.
	Range(from, to uint64) ([]*tpaggtypes.Certificate, error)

	// Attach stores every certificate finalized on observer until ctx is done.
	Attach(ctx context.Context, observer eventhub.EventObserver) error

	Close() error
}

type ledger struct {
	log       tplog.Logger
	backend   backend.Backend
	marshaler codec.Marshaler
	cache     *lru.ARCCache //round -> *Certificate
	sync      sync.Mutex    //serializes Put so latest stays monotone
}

func NewLedger(level tplogcmm.LogLevel, log tplog.Logger, b backend.Backend, codecType codec.CodecType, cacheSize int) (Ledger, error) {
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, err
	}

	return &ledger{
		log:       tplog.CreateModuleLogger(level, "Ledger", log),
		backend:   b,
		marshaler: codec.CreateMarshaler(codecType),
		cache:     cache,
	}, nil
}

func certKey(round uint64) []byte {
	key := make([]byte, 0, len(certPrefix)+8)
	key = append(key, certPrefix...)
	return append(key, tpcmm.Uint64ToBytes(round)...)
}

func (l *ledger) Put(cert *tpaggtypes.Certificate) error {
	if err := cert.Verify(); err != nil {
		return fmt.Errorf("round %d: %w", cert.Round, err)
	}

	data, err := l.marshaler.Marshal(cert)
	if err != nil {
		return err
	}

	l.sync.Lock()
	defer l.sync.Unlock()

	key := certKey(cert.Round)
	exists, err := l.backend.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrCertificateExists, cert.Round)
	}

	latest, err := l.latestRound()
	if err != nil {
		return err
	}

	// certificate and latest pointer land together or not at all
	batch := l.backend.NewBatch()
	defer batch.Close()

	if err = batch.Set(key, data); err != nil {
		return err
	}
	if latest == nil || cert.Round > *latest {
		if err = batch.Set(latestKey, tpcmm.Uint64ToBytes(cert.Round)); err != nil {
			return err
		}
	}
	if err = batch.WriteSync(); err != nil {
		return err
	}

	l.cache.Add(cert.Round, cert)
	l.log.Debugf("Stored certificate: round=%d, signature=%s", cert.Round, cert.Digest())

	return nil
}

func (l *ledger) decode(data []byte) (*tpaggtypes.Certificate, error) {
	var cert tpaggtypes.Certificate
	if err := l.marshaler.Unmarshal(data, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (l *ledger) Get(round uint64) (*tpaggtypes.Certificate, error) {
	if cached, ok := l.cache.Get(round); ok {
		return cached.(*tpaggtypes.Certificate), nil
	}

	data, err := l.backend.Get(certKey(round))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %d", ErrCertificateNotFound, round)
	}

	cert, err := l.decode(data)
	if err != nil {
		return nil, err
	}
	l.cache.Add(round, cert)

	return cert, nil
}

func (l *ledger) latestRound() (*uint64, error) {
	data, err := l.backend.Get(latestKey)
	if err != nil || data == nil {
		return nil, err
	}
	round := tpcmm.BytesToUint64(data)
	return &round, nil
}

func (l *ledger) Latest() (*tpaggtypes.Certificate, error) {
	round, err := l.latestRound()
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrCertificateNotFound
	}

	return l.Get(*round)
}

func (l *ledger) Range(from, to uint64) ([]*tpaggtypes.Certificate, error) {
	if from > to {
		return nil, ErrInvalidRange
	}

	end := tplgcmm.PrefixEnd(certPrefix)
	if to < ^uint64(0) {
		end = certKey(to + 1)
	}

	it, err := l.backend.Iterator(certKey(from), end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var certs []*tpaggtypes.Certificate
	for ; it.Valid(); it.Next() {
		cert, err := l.decode(it.Value())
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	return certs, it.Error()
}

func (l *ledger) Attach(ctx context.Context, observer eventhub.EventObserver) error {
	obsID, err := observer.Observe(ctx, eventhub.EventName_CertificateFinalized, func(ctx context.Context, data interface{}) error {
		cert, ok := data.(*tpaggtypes.Certificate)
		if !ok {
			return fmt.Errorf("unexpected event data %T", data)
		}
		if err := l.Put(cert); err != nil {
			l.log.Errorf("Store certificate of round %d err: %v", cert.Round, err)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		observer.UnObserve(context.Background(), obsID, eventhub.EventName_CertificateFinalized)
	}()

	return nil
}

func (l *ledger) Close() error {
	return l.backend.Close()
}
