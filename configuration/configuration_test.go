package configuration

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
)

const testConfig = `
node:
  seed: 0
  log_level: debug
aggregation:
  frequency: 5s
  round_timeout: 4s
  codec: json
network:
  type: local
  rate_limit: 50
registry:
  participants:
    - seed: 0
    - seed: 1
      address: /ip4/127.0.0.1/tcp/3001
    - seed: 2
    - seed: 3
    - seed: 4
  contributors: ["1", "2", "3", "4"]
ledger:
  backend: none
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "aggregation.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefConfigurationIsValidOnceIdentified(t *testing.T) {
	config := DefConfiguration()

	err := config.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.ErrorIs(t, err, ErrNoParticipants)

	seed := uint64(0)
	config.NodeConfig.Seed = &seed
	config.RegConfig.Participants = []*ParticipantDeclaration{{Seed: &seed}}
	config.RegConfig.Contributors = []string{"0"}
	assert.NoError(t, config.Validate())
}

func TestLoad(t *testing.T) {
	config, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	require.NotNil(t, config.NodeConfig.Seed)
	assert.Equal(t, uint64(0), *config.NodeConfig.Seed)
	assert.Equal(t, "debug", config.NodeConfig.LogLevel)

	assert.Equal(t, 5*time.Second, config.AggConfig.Frequency)
	assert.Equal(t, 4*time.Second, config.AggConfig.RoundTimeout)
	assert.Equal(t, DefNamespace, config.AggConfig.Namespace, "default kept when absent from file")
	assert.Equal(t, "json", config.AggConfig.Codec)

	assert.Equal(t, NetworkType_Local, config.NetConfig.Type)
	assert.Equal(t, float64(50), config.NetConfig.RateLimit)
	assert.Equal(t, 1<<20, config.NetConfig.MaxMessageSize)

	require.Len(t, config.RegConfig.Participants, 5)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/3001", config.RegConfig.Participants[1].Address)
	assert.True(t, config.RegConfig.IsOrchestrator())
	assert.Equal(t, LedgerBackend_None, config.LedgerConfig.Backend)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AGGREGATION_NODE_LOG_LEVEL", "warn")

	config, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, "warn", config.NodeConfig.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestAggregationValidate(t *testing.T) {
	c := DefAggregationConfiguration()
	require.NoError(t, c.Validate())

	c.RoundTimeout = c.Frequency + time.Second
	c.Namespace = ""
	c.Codec = "proto"
	err := c.Validate()
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRoundTimeout)
	assert.ErrorIs(t, err, ErrEmptyNamespace)
	assert.Len(t, err.(*multierror.Error).Errors, 3)
}

func TestIdentity(t *testing.T) {
	seed := uint64(7)
	_, want, err := bn254.DeriveKey(seed)
	require.NoError(t, err)

	c := &NodeConfiguration{Seed: &seed}
	_, pub, err := c.Identity(false)
	require.NoError(t, err)
	assert.True(t, want.Equal(pub))

	priv, _, err := bn254.DeriveKey(seed)
	require.NoError(t, err)
	c = &NodeConfiguration{PrivateKey: "0x" + hex.EncodeToString(priv.Bytes())}
	_, pub, err = c.Identity(false)
	require.NoError(t, err)
	assert.True(t, want.Equal(pub))

	c.Seed = &seed
	_, _, err = c.Identity(false)
	assert.ErrorIs(t, err, ErrAmbiguousIdentity)

	_, _, err = (&NodeConfiguration{}).Identity(false)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestRegistrySnapshot(t *testing.T) {
	config, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	selfID, err := ResolveRef("0")
	require.NoError(t, err)

	snap, err := config.RegConfig.Snapshot(selfID)
	require.NoError(t, err)
	assert.Equal(t, selfID, snap.Orchestrator())
	assert.Equal(t, uint32(4), snap.ContributorCount())
	assert.Equal(t, uint32(3), snap.Threshold())

	id2, err := ResolveRef("2")
	require.NoError(t, err)
	idx, ok := snap.ContributorIndex(id2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	byKey, err := ResolveRef(id2)
	require.NoError(t, err)
	assert.Equal(t, id2, byKey)
}

func TestRegistrySnapshotContributorOutsideParticipants(t *testing.T) {
	config, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	config.RegConfig.Contributors = append(config.RegConfig.Contributors, "9")
	config.RegConfig.Orchestrator = "not-a-key"

	_, err = config.RegConfig.Snapshot("")
	require.Error(t, err)
}
