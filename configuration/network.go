package configuration

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

const (
	NetworkType_P2P   = "p2p"
	NetworkType_Local = "local"

	DeliverStrategy_Direct = "direct"
	DeliverStrategy_PubSub = "pubsub"
)

var (
	ErrRateLimit      = errors.New("network: rate_limit and rate_burst must be positive")
	ErrMaxMessageSize = errors.New("network: max_message_size must be positive")
)

type PubSubConfiguration struct {
	Topic       string   `mapstructure:"topic"`
	DirectPeers []string `mapstructure:"direct_peers"`
}

type NetworkConfiguration struct {
	Type            string               `mapstructure:"type"`
	ListenAddr      string               `mapstructure:"listen_addr"`
	DeliverStrategy string               `mapstructure:"deliver_strategy"`
	RateLimit       float64              `mapstructure:"rate_limit"` //inbound messages per second per peer
	RateBurst       int                  `mapstructure:"rate_burst"`
	MaxMessageSize  int                  `mapstructure:"max_message_size"` //unit: byte
	PubSub          *PubSubConfiguration `mapstructure:"pubsub"`
}

func DefPubSubConfiguration() *PubSubConfiguration {
	return &PubSubConfiguration{
		Topic: "/aggregation/requests/0.0.1",
	}
}

func DefNetworkConfiguration() *NetworkConfiguration {
	return &NetworkConfiguration{
		Type:            NetworkType_P2P,
		ListenAddr:      "/ip4/0.0.0.0/tcp/3000",
		DeliverStrategy: DeliverStrategy_Direct,
		RateLimit:       10,
		RateBurst:       20,
		MaxMessageSize:  1 << 20, //1MB
		PubSub:          DefPubSubConfiguration(),
	}
}

func (c *NetworkConfiguration) Validate() error {
	var errs *multierror.Error

	switch c.Type {
	case NetworkType_P2P, NetworkType_Local:
	default:
		errs = multierror.Append(errs, fmt.Errorf("network: unknown type %q", c.Type))
	}
	switch c.DeliverStrategy {
	case DeliverStrategy_Direct, DeliverStrategy_PubSub:
	default:
		errs = multierror.Append(errs, fmt.Errorf("network: unknown deliver_strategy %q", c.DeliverStrategy))
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = multierror.Append(errs, ErrRateLimit)
	}
	if c.MaxMessageSize <= 0 {
		errs = multierror.Append(errs, ErrMaxMessageSize)
	}

	return errs.ErrorOrNil()
}
