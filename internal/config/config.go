// Package config holds the configuration of the catalog service.
package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type StoreConfig struct {
	Driver string `koanf:"driver"`
}

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Store      StoreConfig             `koanf:"store"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Auth       config.AuthConfig       `koanf:"auth"`
	NATS       config.NATSConfig       `koanf:"nats"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
}

// String renders the configuration for the startup log. Secrets and credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(fmt.Sprintf("\n--- Store ---\n  driver: %s\n", c.Store.Driver))
	if c.Store.Driver == StoreDriverPostgres {
		b.WriteString(c.Database.String())
	}
	b.WriteString(c.GRPC.String())
	b.WriteString(c.Auth.String())
	b.WriteString(c.NATS.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid. The database section is only required for the postgres store.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "":
		c.Store.Driver = StoreDriverPostgres
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	validators := []configloader.Validator{
		&c.HTTPServer, &c.Log, &c.PProf, &c.Shutdown, &c.GRPC,
		&c.Auth, &c.NATS, &c.Resilience, &c.Telemetry,
	}
	if c.Store.Driver == StoreDriverPostgres {
		validators = append(validators, &c.Database)
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
