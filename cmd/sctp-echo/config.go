package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/datawire/sctp-proto/pkg/sctp/association"
)

// EndpointConfig is the YAML shape of the demonstration binary's config
// file: read, unmarshal, validate, default.
type EndpointConfig struct {
	Listen struct {
		Address string `yaml:"address"`
	} `yaml:"listen"`

	CookieSecret string `yaml:"cookie_secret"`

	MTU                  uint32        `yaml:"mtu"`
	MaxReceiveBufferSize uint32        `yaml:"max_receive_buffer_size"`
	MaxMessageSize       uint32        `yaml:"max_message_size"`
	CookieLifetime       time.Duration `yaml:"cookie_lifetime"`

	Metrics struct {
		Address string `yaml:"address"`
	} `yaml:"metrics"`
}

// LoadEndpointConfig reads and validates the YAML file at path, filling
// in association.DefaultConfig()'s values for anything left zero.
func LoadEndpointConfig(path string) (*EndpointConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint config: %w", err)
	}
	var cfg EndpointConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing endpoint config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating endpoint config: %w", err)
	}
	return &cfg, nil
}

func (c *EndpointConfig) validate() error {
	if c.Listen.Address == "" {
		return fmt.Errorf("listen.address is required")
	}
	defaults := association.DefaultConfig()
	if c.MTU == 0 {
		c.MTU = defaults.MTU
	}
	if c.MaxReceiveBufferSize == 0 {
		c.MaxReceiveBufferSize = defaults.MaxReceiveBufferSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.CookieLifetime == 0 {
		c.CookieLifetime = defaults.CookieLifetime
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9099"
	}
	return nil
}

// AssociationConfig renders the association.Config this endpoint hands to
// every association it creates.
func (c *EndpointConfig) AssociationConfig() association.Config {
	return association.Config{
		MTU:                  c.MTU,
		MaxReceiveBufferSize: c.MaxReceiveBufferSize,
		MaxMessageSize:       c.MaxMessageSize,
		RTOInitial:           association.DefaultConfig().RTOInitial,
		CookieLifetime:       c.CookieLifetime,
	}
}
