package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/somnia-names/somns/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the name of the configuration file looked up in
	// the configuration directory.
	DefaultConfigFile = "somns.yml"
	// DefaultRegistrationPeriod is the period added to the expiration time
	// on every registration and renewal.
	DefaultRegistrationPeriod = 365 * 24 * time.Hour
	// DefaultPrice is the default registration fee in whole native units.
	DefaultPrice = "1"
	// DefaultCacheSize is the default number of name records kept in memory.
	DefaultCacheSize = 1024
	// DefaultMonitorInterval is the default interval between registry
	// statistics updates of the serving node.
	DefaultMonitorInterval = 15 * time.Second
	// DefaultDBType is the storage backend used if none is configured.
	DefaultDBType = "leveldb"
	// DefaultDataDirectoryPath is the LevelDB path used if none is configured.
	DefaultDataDirectoryPath = "./chains/somns"
)

// Version is the version of the registry, set at build time.
var Version string

// Config top level struct representing the config
// for the registry.
type Config struct {
	Registry                 RegistryConfiguration    `yaml:"Registry"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Load attempts to load the config from the given
// path. relativePath is an optional prefix for all relative paths
// specified in the configuration file.
func Load(path string, relativePath ...string) (Config, error) {
	configPath := filepath.Join(path, DefaultConfigFile)
	return LoadFile(configPath, relativePath...)
}

// LoadFile loads config from the provided path. It also applies backwards
// compatible defaults. relativePath is an optional prefix for all relative
// paths specified in the configuration file.
func LoadFile(configPath string, relativePath ...string) (Config, error) {
	var (
		configData []byte
		err        error
	)
	if _, err = os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}
	configData, err = os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	config, err := LoadBytes(configData)
	if err != nil {
		return Config{}, err
	}
	if len(relativePath) == 1 && relativePath[0] != "" {
		updateRelativePaths(relativePath[0], &config)
	}
	return config, nil
}

// LoadBytes decodes and validates the configuration from YAML bytes.
func LoadBytes(configData []byte) (Config, error) {
	config := Config{
		Registry: RegistryConfiguration{
			RegistrationPeriod: DefaultRegistrationPeriod,
			Price:              DefaultPrice,
		},
		ApplicationConfiguration: ApplicationConfiguration{
			DBConfiguration: dbconfig.DBConfiguration{
				Type: DefaultDBType,
				LevelDBOptions: dbconfig.LevelDBOptions{
					DataDirectoryPath: DefaultDataDirectoryPath,
				},
			},
			CacheSize:       DefaultCacheSize,
			MonitorInterval: DefaultMonitorInterval,
		},
	}
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Registry.Validate()
	if err != nil {
		return Config{}, err
	}
	err = config.ApplicationConfiguration.Validate()
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// updateRelativePaths updates relative paths in the config structure based on the provided relative path.
func updateRelativePaths(relativePath string, config *Config) {
	updatePath := func(path *string) {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(relativePath, *path)
		}
	}

	updatePath(&config.ApplicationConfiguration.DBConfiguration.LevelDBOptions.DataDirectoryPath)
	updatePath(&config.ApplicationConfiguration.DBConfiguration.BoltDBOptions.FilePath)
	updatePath(&config.ApplicationConfiguration.LogPath)
}
