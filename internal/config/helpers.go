package config

import (
	"fmt"
	"path/filepath"

	"trademaker/pkg/confkit"
	"trademaker/pkg/exchange"
)

// MustLoadVenues loads etc/venues.yaml from the project root and panics on
// error. It isolates venue config so tests that only need simulators do not
// require the full application config.
func MustLoadVenues() *exchange.Config {
	root := confkit.MustProjectRoot()
	path := filepath.Join(root, "etc", "venues.yaml")
	cfg, err := exchange.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load venues config %s: %w", path, err))
	}
	return cfg
}

// MustBuildVenues loads venue config from the default path and builds venue
// instances; returns the map and default venue name.
func MustBuildVenues() (map[string]exchange.Venue, string) {
	cfg := MustLoadVenues()
	venues, err := cfg.BuildVenues()
	if err != nil {
		panic(err)
	}
	return venues, cfg.Default
}
