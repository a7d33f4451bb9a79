package configuration

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/TopiaNetwork/aggregation/registry"
)

var ErrNoParticipants = errors.New("registry: no participants declared")

// ParticipantDeclaration names an identity either by derivation seed or by public key hex.
type ParticipantDeclaration struct {
	Seed      *uint64 `mapstructure:"seed"`
	PublicKey string  `mapstructure:"public_key"`
	Address   string  `mapstructure:"address"`
}

// RegistryConfiguration declares participants and contributors independently. Contributors and
// Orchestrator refer to participants by seed ("3") or public key hex. An empty Orchestrator means
// this node orchestrates.
type RegistryConfiguration struct {
	Participants []*ParticipantDeclaration `mapstructure:"participants"`
	Contributors []string                  `mapstructure:"contributors"`
	Orchestrator string                    `mapstructure:"orchestrator"`
}

func DefRegistryConfiguration() *RegistryConfiguration {
	return &RegistryConfiguration{}
}

func (d *ParticipantDeclaration) Participant() (*registry.Participant, error) {
	switch {
	case d.Seed != nil && d.PublicKey != "":
		return nil, errors.New("participant declares both seed and public_key")
	case d.Seed != nil:
		return registry.ParticipantFromSeed(*d.Seed, d.Address)
	case d.PublicKey != "":
		return registry.ParticipantFromHex(d.PublicKey, d.Address)
	}

	return nil, errors.New("participant declares neither seed nor public_key")
}

// IsOrchestrator reports whether the node itself takes the orchestrator role.
func (c *RegistryConfiguration) IsOrchestrator() bool {
	return c.Orchestrator == ""
}

func (c *RegistryConfiguration) Validate() error {
	var errs *multierror.Error

	if len(c.Participants) == 0 {
		errs = multierror.Append(errs, ErrNoParticipants)
	}
	for i, d := range c.Participants {
		if _, err := d.Participant(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("registry.participants[%d]: %w", i, err))
		}
	}

	return errs.ErrorOrNil()
}

// Snapshot resolves the declarations into a validated registry snapshot. selfID is used as the
// orchestrator when none is configured.
func (c *RegistryConfiguration) Snapshot(selfID string) (*registry.Snapshot, error) {
	var errs *multierror.Error

	participants := make([]*registry.Participant, 0, len(c.Participants))
	for i, d := range c.Participants {
		p, err := d.Participant()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("registry.participants[%d]: %w", i, err))
			continue
		}
		participants = append(participants, p)
	}

	contributors := make([]string, 0, len(c.Contributors))
	for _, ref := range c.Contributors {
		id, err := ResolveRef(ref)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		contributors = append(contributors, id)
	}

	orchestrator := selfID
	if !c.IsOrchestrator() {
		id, err := ResolveRef(c.Orchestrator)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		orchestrator = id
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return registry.NewSnapshot(participants, contributors, orchestrator)
}

// ResolveRef maps a seed or public key hex reference to the participant ID.
func ResolveRef(ref string) (string, error) {
	if seed, err := strconv.ParseUint(ref, 10, 64); err == nil {
		p, err := registry.ParticipantFromSeed(seed, "")
		if err != nil {
			return "", err
		}
		return p.ID, nil
	}

	p, err := registry.ParticipantFromHex(ref, "")
	if err != nil {
		return "", fmt.Errorf("unresolvable participant reference %q: %w", ref, err)
	}

	return p.ID, nil
}
