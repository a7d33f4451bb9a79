package configuration

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const EnvPrefix = "AGGREGATION"

// envKeys may be set without a configuration file, e.g. AGGREGATION_NODE_SEED.
var envKeys = []string{
	"node.seed",
	"node.private_key",
	"node.log_level",
	"node.metrics_addr",
	"network.listen_addr",
	"registry.orchestrator",
}

type Configuration struct {
	fsPath       string
	NodeConfig   *NodeConfiguration        `mapstructure:"node"`
	AggConfig    *AggregationConfiguration `mapstructure:"aggregation"`
	NetConfig    *NetworkConfiguration     `mapstructure:"network"`
	RegConfig    *RegistryConfiguration    `mapstructure:"registry"`
	LedgerConfig *LedgerConfiguration      `mapstructure:"ledger"`
}

func DefConfiguration() *Configuration {
	return &Configuration{
		NodeConfig:   DefNodeConfiguration(),
		AggConfig:    DefAggregationConfiguration(),
		NetConfig:    DefNetworkConfiguration(),
		RegConfig:    DefRegistryConfiguration(),
		LedgerConfig: DefLedgerConfiguration(),
	}
}

// Load overlays the file at fsPath (yaml, json or toml, by extension) and AGGREGATION_* environment
// variables onto the defaults. An empty path yields the defaults plus environment.
func Load(fsPath string) (*Configuration, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if fsPath != "" {
		v.SetConfigFile(fsPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read configuration %s: %w", fsPath, err)
		}
	}

	return LoadFromViper(v, fsPath)
}

func LoadFromViper(v *viper.Viper, fsPath string) (*Configuration, error) {
	config := DefConfiguration()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	config.fsPath = fsPath

	return config, nil
}

func (c *Configuration) FsPath() string {
	return c.fsPath
}

// Validate reports every invalid setting at once.
func (c *Configuration) Validate() error {
	var errs *multierror.Error

	errs = multierror.Append(errs, c.NodeConfig.Validate())
	errs = multierror.Append(errs, c.AggConfig.Validate())
	errs = multierror.Append(errs, c.NetConfig.Validate())
	errs = multierror.Append(errs, c.RegConfig.Validate())
	errs = multierror.Append(errs, c.LedgerConfig.Validate())

	return errs.ErrorOrNil()
}
