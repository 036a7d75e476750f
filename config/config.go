// Package config loads the server's YAML configuration file and translates
// it into the options the server and client packages consume.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caretech-io/dicomgate/types"
)

// Config mirrors the core-relevant configuration surface. Zero values are
// replaced by the documented defaults on Load; a handwritten Config should
// go through ApplyDefaults before use.
type Config struct {
	// DicomAet is the called AE title this server answers to.
	DicomAet string `yaml:"DicomAet"`

	// DicomPort is the DICOM listening port.
	DicomPort int `yaml:"DicomPort"`

	// DicomCheckCalledAet enforces the called-AE-title check on incoming
	// associations.
	DicomCheckCalledAet *bool `yaml:"DicomCheckCalledAet"`

	// DicomAssociationCloseDelay is how long (seconds) the SCU side keeps
	// its last association open to coalesce further stores.
	DicomAssociationCloseDelay *int `yaml:"DicomAssociationCloseDelay"`

	// DicomScuTimeout is the SCU default timeout in seconds; 0 disables.
	DicomScuTimeout *int `yaml:"DicomScuTimeout"`

	// DicomScpTimeout is the SCP association-idle timeout in seconds; 0
	// disables.
	DicomScpTimeout *int `yaml:"DicomScpTimeout"`

	// MaximumStorageSopClasses caps the SCU presentation-context budget.
	MaximumStorageSopClasses *int `yaml:"MaximumStorageSopClasses"`

	// DicomModalities names the known peers, each either a compact
	// [aet, host, port, manufacturer?] tuple or an explicit record with
	// Allow* flags.
	DicomModalities map[string]types.RemoteModality `yaml:"DicomModalities"`
}

// Defaults for the configuration surface.
const (
	DefaultAet                   = "ANY-SCP"
	DefaultPort                  = 104
	DefaultAssociationCloseDelay = 5
	DefaultScuTimeout            = 10
	DefaultScpTimeout            = 30
	DefaultMaxStorageSopClasses  = 64
)

// Load reads and parses path, applying defaults to every absent key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration bytes, applying defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills absent keys with the documented default values.
func (c *Config) ApplyDefaults() {
	if c.DicomAet == "" {
		c.DicomAet = DefaultAet
	}
	if c.DicomPort == 0 {
		c.DicomPort = DefaultPort
	}
	if c.DicomCheckCalledAet == nil {
		v := true
		c.DicomCheckCalledAet = &v
	}
	if c.DicomAssociationCloseDelay == nil {
		v := DefaultAssociationCloseDelay
		c.DicomAssociationCloseDelay = &v
	}
	if c.DicomScuTimeout == nil {
		v := DefaultScuTimeout
		c.DicomScuTimeout = &v
	}
	if c.DicomScpTimeout == nil {
		v := DefaultScpTimeout
		c.DicomScpTimeout = &v
	}
	if c.MaximumStorageSopClasses == nil {
		v := DefaultMaxStorageSopClasses
		c.MaximumStorageSopClasses = &v
	}
}

// Validate checks the structural constraints the core depends on.
func (c *Config) Validate() error {
	if err := types.ValidateAETitle(c.DicomAet); err != nil {
		return err
	}
	if c.DicomPort < 1 || c.DicomPort > 65534 {
		return fmt.Errorf("DicomPort %d outside [1,65534]", c.DicomPort)
	}
	for name, modality := range c.DicomModalities {
		if err := modality.Validate(); err != nil {
			return fmt.Errorf("modality %q: %w", name, err)
		}
	}
	return nil
}

// ScuTimeout returns the SCU default timeout as a duration.
func (c *Config) ScuTimeout() time.Duration {
	return time.Duration(*c.DicomScuTimeout) * time.Second
}

// ScpTimeout returns the SCP association-idle timeout as a duration.
func (c *Config) ScpTimeout() time.Duration {
	return time.Duration(*c.DicomScpTimeout) * time.Second
}

// AssociationCloseDelay returns the SCU keep-open delay as a duration.
func (c *Config) AssociationCloseDelay() time.Duration {
	return time.Duration(*c.DicomAssociationCloseDelay) * time.Second
}

// ListenAddress returns the host:port string the server binds.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf(":%d", c.DicomPort)
}
