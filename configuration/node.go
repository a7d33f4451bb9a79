package configuration

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	tplog "github.com/TopiaNetwork/aggregation/log"
	logcomm "github.com/TopiaNetwork/aggregation/log/common"
)

var (
	ErrNoIdentity        = errors.New("node: one of seed or private_key is required")
	ErrAmbiguousIdentity = errors.New("node: seed and private_key are mutually exclusive")
)

type NodeConfiguration struct {
	RootPath    string  `mapstructure:"root_path"`
	Seed        *uint64 `mapstructure:"seed"`
	PrivateKey  string  `mapstructure:"private_key"`
	LogLevel    string  `mapstructure:"log_level"`
	LogFormat   string  `mapstructure:"log_format"`
	LogFile     string  `mapstructure:"log_file"`
	MetricsAddr string  `mapstructure:"metrics_addr"`
}

func DefNodeConfiguration() *NodeConfiguration {
	homeDir, _ := os.UserHomeDir()
	return &NodeConfiguration{
		RootPath:  filepath.Join(homeDir, ".aggregation"),
		LogLevel:  logcomm.InfoLevel.String(),
		LogFormat: tplog.TextFormat.String(),
	}
}

// Identity loads the node's signing key. reduce is passed through to PrivateKeyFromHex.
func (c *NodeConfiguration) Identity(reduce bool) (*bn254.PrivateKey, *bn254.PublicKey, error) {
	switch {
	case c.Seed != nil && c.PrivateKey != "":
		return nil, nil, ErrAmbiguousIdentity
	case c.Seed != nil:
		return bn254.DeriveKey(*c.Seed)
	case c.PrivateKey != "":
		priv, err := bn254.PrivateKeyFromHex(c.PrivateKey, reduce)
		if err != nil {
			return nil, nil, err
		}
		return priv, priv.PublicKey(), nil
	}

	return nil, nil, ErrNoIdentity
}

func (c *NodeConfiguration) Validate() error {
	var errs *multierror.Error

	if c.Seed == nil && c.PrivateKey == "" {
		errs = multierror.Append(errs, ErrNoIdentity)
	}
	if c.Seed != nil && c.PrivateKey != "" {
		errs = multierror.Append(errs, ErrAmbiguousIdentity)
	}
	if _, err := logcomm.ParseLogLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := tplog.ParseLogFormat(c.LogFormat); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}
