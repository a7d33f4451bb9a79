package registry

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	"github.com/TopiaNetwork/aggregation/quorum"
)

var (
	ErrNoContributors        = errors.New("registry: contributor set is empty")
	ErrDuplicateParticipant  = errors.New("registry: duplicate participant")
	ErrDuplicateContributor  = errors.New("registry: duplicate contributor")
	ErrUnknownContributor    = errors.New("registry: contributor is not a participant")
	ErrUnknownOrchestrator   = errors.New("registry: orchestrator is not a participant")
	ErrMissingPublicKey      = errors.New("registry: participant without public key")
	ErrContributorOutOfRange = errors.New("registry: contributor index out of range")
)

// Snapshot is an immutable view of the validator set. Participants are admitted by the transport;
// contributors are the signing-eligible subset and are addressed by their position.
type Snapshot struct {
	participants []*Participant
	contributors []*Participant
	orchestrator string
	threshold    uint32

	byID             map[string]*Participant
	contributorIndex map[string]uint32
}

// NewSnapshot validates the declared sets and reports every problem found, not just the first.
func NewSnapshot(participants []*Participant, contributorIDs []string, orchestrator string) (*Snapshot, error) {
	var errs *multierror.Error

	snap := &Snapshot{
		orchestrator:     orchestrator,
		byID:             make(map[string]*Participant, len(participants)),
		contributorIndex: make(map[string]uint32, len(contributorIDs)),
	}

	for i, p := range participants {
		if p == nil || p.PublicKey == nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: position %d", ErrMissingPublicKey, i))
			continue
		}
		if _, ok := snap.byID[p.ID]; ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrDuplicateParticipant, short(p.ID)))
			continue
		}
		snap.byID[p.ID] = p
		snap.participants = append(snap.participants, p)
	}

	if len(contributorIDs) == 0 {
		errs = multierror.Append(errs, ErrNoContributors)
	}
	for _, id := range contributorIDs {
		p, ok := snap.byID[id]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrUnknownContributor, short(id)))
			continue
		}
		if _, ok := snap.contributorIndex[id]; ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrDuplicateContributor, short(id)))
			continue
		}
		snap.contributorIndex[id] = uint32(len(snap.contributors))
		snap.contributors = append(snap.contributors, p)
	}

	if _, ok := snap.byID[orchestrator]; !ok {
		errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrUnknownOrchestrator, short(orchestrator)))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	t, err := quorum.Quorum(uint32(len(snap.contributors)))
	if err != nil {
		return nil, err
	}
	snap.threshold = t

	return snap, nil
}

func (s *Snapshot) Participants() []*Participant {
	return append([]*Participant(nil), s.participants...)
}

func (s *Snapshot) Contributors() []*Participant {
	return append([]*Participant(nil), s.contributors...)
}

func (s *Snapshot) ContributorIDs() []string {
	ids := make([]string, len(s.contributors))
	for i, c := range s.contributors {
		ids[i] = c.ID
	}
	return ids
}

func (s *Snapshot) Orchestrator() string {
	return s.orchestrator
}

func (s *Snapshot) Threshold() uint32 {
	return s.threshold
}

func (s *Snapshot) ContributorCount() uint32 {
	return uint32(len(s.contributors))
}

func (s *Snapshot) IsParticipant(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *Snapshot) Participant(id string) (*Participant, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Snapshot) Contributor(index uint32) (*Participant, bool) {
	if int(index) >= len(s.contributors) {
		return nil, false
	}
	return s.contributors[index], true
}

func (s *Snapshot) ContributorIndex(id string) (uint32, bool) {
	idx, ok := s.contributorIndex[id]
	return idx, ok
}

// ContributorKeys resolves contributor indices to their public keys, preserving order.
func (s *Snapshot) ContributorKeys(indices []uint32) ([]*bn254.PublicKey, error) {
	keys := make([]*bn254.PublicKey, len(indices))
	for i, idx := range indices {
		c, ok := s.Contributor(idx)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrContributorOutOfRange, idx)
		}
		keys[i] = c.PublicKey
	}

	return keys, nil
}

func short(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
