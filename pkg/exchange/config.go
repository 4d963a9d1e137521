package exchange

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config captures configuration for one or more trading venues.
type Config struct {
	Default string                  `yaml:"default"`
	Venues  map[string]*VenueConfig `yaml:"venues"`
}

// VenueConfig describes how to construct a specific venue instance.
type VenueConfig struct {
	Type         string             `yaml:"type"`
	InitialFunds map[string]float64 `yaml:"initial_funds"`
	// FeeRate left unset falls back to the venue type's default; an explicit
	// zero means free trading.
	FeeRate    *float64 `yaml:"fee_rate"`
	Leverage   int      `yaml:"leverage"`
	Persist    bool     `yaml:"persist"`
	StorageDir string   `yaml:"storage_dir"`
	EntryMode  string   `yaml:"entry_mode"`

	// Live-venue credentials; unused by the simulator type.
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// VenueBuilder constructs a Venue from configuration.
type VenueBuilder func(name string, cfg *VenueConfig) (Venue, error)

var (
	venueRegistry   = make(map[string]VenueBuilder)
	venueRegistryMu sync.RWMutex
)

// RegisterVenue associates a builder with a venue type.
func RegisterVenue(typeName string, builder VenueBuilder) {
	venueRegistryMu.Lock()
	defer venueRegistryMu.Unlock()
	venueRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupVenueBuilder(typeName string) (VenueBuilder, bool) {
	venueRegistryMu.RLock()
	defer venueRegistryMu.RUnlock()
	builder, ok := venueRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads venue configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open venues config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read venues config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal venues config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() {
	if c.Venues == nil {
		c.Venues = make(map[string]*VenueConfig)
	}
	for name, venue := range c.Venues {
		if venue == nil {
			venue = &VenueConfig{}
			c.Venues[name] = venue
		}
		venue.expandEnv()
	}
}

func (v *VenueConfig) expandEnv() {
	v.Type = strings.TrimSpace(os.ExpandEnv(v.Type))
	v.StorageDir = strings.TrimSpace(os.ExpandEnv(v.StorageDir))
	v.EntryMode = strings.TrimSpace(os.ExpandEnv(v.EntryMode))
	v.APIKey = strings.TrimSpace(os.ExpandEnv(v.APIKey))
	v.APISecret = strings.TrimSpace(os.ExpandEnv(v.APISecret))
	v.BaseURL = strings.TrimSpace(os.ExpandEnv(v.BaseURL))
}

// Validate ensures all venues have sane configuration.
func (c *Config) Validate() error {
	if len(c.Venues) == 0 {
		return fmt.Errorf("venues config: venues cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Venues[c.Default]; !ok {
			return fmt.Errorf("venues config: default venue %q not defined", c.Default)
		}
	}

	for name, venue := range c.Venues {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("venues config: venue name cannot be empty")
		}
		if err := venue.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (v *VenueConfig) validate(name string) error {
	if v == nil {
		return fmt.Errorf("venues config: venue %s is nil", name)
	}
	if strings.TrimSpace(v.Type) == "" {
		return fmt.Errorf("venues config: venue %s must specify type", name)
	}
	if _, ok := lookupVenueBuilder(v.Type); !ok {
		return fmt.Errorf("venues config: venue %s has unsupported type %q", name, v.Type)
	}
	if v.FeeRate != nil && *v.FeeRate < 0 {
		return fmt.Errorf("venues config: venue %s fee_rate must not be negative", name)
	}
	if v.Leverage < 0 {
		return fmt.Errorf("venues config: venue %s leverage must not be negative", name)
	}
	return nil
}

// BuildVenues instantiates venues according to the configuration.
func (c *Config) BuildVenues() (map[string]Venue, error) {
	result := make(map[string]Venue, len(c.Venues))
	for name, venueCfg := range c.Venues {
		builder, ok := lookupVenueBuilder(venueCfg.Type)
		if !ok {
			return nil, fmt.Errorf("venue %s: unsupported type %q", name, venueCfg.Type)
		}
		venue, err := builder(name, venueCfg)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", name, err)
		}
		result[name] = venue
	}
	return result, nil
}
