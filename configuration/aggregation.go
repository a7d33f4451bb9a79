package configuration

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/TopiaNetwork/aggregation/codec"
)

const DefNamespace = "_COMMONWARE_AGGREGATION_"

var (
	ErrEmptyNamespace  = errors.New("aggregation: namespace must not be empty")
	ErrFrequency       = errors.New("aggregation: frequency must be positive")
	ErrRoundTimeout    = errors.New("aggregation: round_timeout must be positive and not exceed frequency")
	ErrReplyCacheSize  = errors.New("aggregation: reply_cache_size must be positive")
	ErrTimerResolution = errors.New("aggregation: timer_resolution must be positive and below round_timeout")
)

type AggregationConfiguration struct {
	Namespace         string        `mapstructure:"namespace"`
	Frequency         time.Duration `mapstructure:"frequency"`     //interval between two rounds
	RoundTimeout      time.Duration `mapstructure:"round_timeout"` //must not exceed Frequency
	TimerResolution   time.Duration `mapstructure:"timer_resolution"`
	Codec             string        `mapstructure:"codec"`
	AllowKeyReduction bool          `mapstructure:"allow_key_reduction"`
	ReplyCacheSize    int           `mapstructure:"reply_cache_size"`
}

func DefAggregationConfiguration() *AggregationConfiguration {
	return &AggregationConfiguration{
		Namespace:       DefNamespace,
		Frequency:       10 * time.Second,
		RoundTimeout:    8 * time.Second,
		TimerResolution: 100 * time.Millisecond,
		Codec:           codec.CodecType_RLP.String(),
		ReplyCacheSize:  64,
	}
}

func (c *AggregationConfiguration) CodecType() (codec.CodecType, error) {
	return codec.ParseCodecType(c.Codec)
}

func (c *AggregationConfiguration) Validate() error {
	var errs *multierror.Error

	if c.Namespace == "" {
		errs = multierror.Append(errs, ErrEmptyNamespace)
	}
	if c.Frequency <= 0 {
		errs = multierror.Append(errs, ErrFrequency)
	}
	if c.RoundTimeout <= 0 || c.RoundTimeout > c.Frequency {
		errs = multierror.Append(errs, fmt.Errorf("%w: %s > %s", ErrRoundTimeout, c.RoundTimeout, c.Frequency))
	}
	if c.TimerResolution <= 0 || c.TimerResolution >= c.RoundTimeout {
		errs = multierror.Append(errs, ErrTimerResolution)
	}
	if c.ReplyCacheSize <= 0 {
		errs = multierror.Append(errs, ErrReplyCacheSize)
	}
	if _, err := c.CodecType(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}
