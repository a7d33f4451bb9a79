package registry

import (
	"sync"

	tplog "github.com/TopiaNetwork/aggregation/log"
)

// Provider hands the roles the validator set in force. Advance is called only at a round
// boundary, so a round never observes two different snapshots. Next reports what Advance would
// apply without applying it.
type Provider interface {
	Snapshot() *Snapshot

	Next() *Snapshot

	Advance() *Snapshot
}

type StaticProvider struct {
	snap *Snapshot
}

func NewStaticProvider(snap *Snapshot) *StaticProvider {
	return &StaticProvider{snap: snap}
}

func (p *StaticProvider) Snapshot() *Snapshot {
	return p.snap
}

func (p *StaticProvider) Next() *Snapshot {
	return p.snap
}

func (p *StaticProvider) Advance() *Snapshot {
	return p.snap
}

// Refresher stages snapshot updates from outside the round loop and applies them on Advance.
type Refresher struct {
	log     tplog.Logger
	sync    sync.Mutex
	current *Snapshot
	staged  *Snapshot
}

func NewRefresher(log tplog.Logger, initial *Snapshot) *Refresher {
	return &Refresher{
		log:     log,
		current: initial,
	}
}

// Update stages snap; a later Update before the next round boundary replaces it.
func (r *Refresher) Update(snap *Snapshot) {
	r.sync.Lock()
	defer r.sync.Unlock()

	r.staged = snap
}

func (r *Refresher) Snapshot() *Snapshot {
	r.sync.Lock()
	defer r.sync.Unlock()

	return r.current
}

func (r *Refresher) Next() *Snapshot {
	r.sync.Lock()
	defer r.sync.Unlock()

	if r.staged != nil {
		return r.staged
	}
	return r.current
}

func (r *Refresher) Advance() *Snapshot {
	r.sync.Lock()
	defer r.sync.Unlock()

	if r.staged != nil {
		r.log.Infof("Apply staged registry: contributors %d -> %d, threshold %d -> %d",
			r.current.ContributorCount(), r.staged.ContributorCount(), r.current.Threshold(), r.staged.Threshold())
		r.current = r.staged
		r.staged = nil
	}

	return r.current
}
