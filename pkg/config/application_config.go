package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/somnia-names/somns/pkg/core/storage/dbconfig"
)

// ApplicationConfiguration config specific to the registry node.
type ApplicationConfiguration struct {
	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`

	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`

	Pprof      BasicService `yaml:"Pprof"`
	Prometheus BasicService `yaml:"Prometheus"`

	// Notifications is the websocket service streaming registry events.
	Notifications BasicService `yaml:"Notifications"`
	// CacheSize is the number of name records kept in the in-memory LRU cache.
	CacheSize int `yaml:"CacheSize"`
	// MonitorInterval is the interval between registry statistics updates
	// performed by the serving node.
	MonitorInterval time.Duration `yaml:"MonitorInterval"`
}

// Validate checks ApplicationConfiguration for internal consistency and returns
// an error if any invalid settings are found. This ensures that the application
// configuration is valid and safe to use for further operations.
func (a *ApplicationConfiguration) Validate() error {
	if a.CacheSize <= 0 {
		return fmt.Errorf("invalid CacheSize: %d", a.CacheSize)
	}
	if a.MonitorInterval <= 0 {
		return errors.New("MonitorInterval must be positive")
	}
	switch a.DBConfiguration.Type {
	case "leveldb", "boltdb", "inmemory":
	default:
		return fmt.Errorf("unknown DB type: %s", a.DBConfiguration.Type)
	}
	return nil
}
