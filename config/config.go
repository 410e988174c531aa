// Package config loads the agency configuration file. Everything the
// pipeline needs to know about an agency that isn't in its GTFS feed
// lives here: where the feed is, how its ids map to public ids, and
// any hand-maintained direction definitions.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	ProviderDefault = "default"
	ProviderNextbus = "nextbus"
)

type Config struct {
	// Directory for the local document cache and feed downloads.
	DataDir string `yaml:"data_dir"`
	// Bucket for published documents. Empty disables uploads.
	S3Bucket string `yaml:"s3_bucket"`

	Agencies []Agency `yaml:"agencies" validate:"required,min=1,dive"`
}

// Agency describes one transit agency's feed and how to interpret it.
type Agency struct {
	ID           string `yaml:"id" validate:"required"`
	GtfsURL      string `yaml:"gtfs_url" validate:"required,url"`
	GtfsAgencyID string `yaml:"gtfs_agency_id"`
	TimezoneID   string `yaml:"timezone_id" validate:"required"`

	// Provider selects where route titles and ordering come from.
	// "default" trusts the feed, "nextbus" consults the legacy
	// NextBus API.
	Provider  string `yaml:"provider" validate:"omitempty,oneof=default nextbus"`
	NextbusID string `yaml:"nextbus_id"`

	// Which GTFS columns serve as the public route and stop ids.
	RouteIDGtfsField string `yaml:"route_id_gtfs_field" validate:"omitempty,oneof=route_id route_short_name"`
	StopIDGtfsField  string `yaml:"stop_id_gtfs_field" validate:"omitempty,oneof=stop_id stop_code"`

	// Direction title prefixes keyed by GTFS direction id ("0"/"1").
	DefaultDirections map[string]DirectionDefaults `yaml:"default_directions"`

	// Hand-maintained direction definitions keyed by public route
	// id. When present for a route, they replace the GTFS direction
	// ids entirely.
	CustomDirections map[string][]CustomDirection `yaml:"custom_directions" validate:"omitempty,dive,dive"`
}

type DirectionDefaults struct {
	TitlePrefix string `yaml:"title_prefix"`
}

// CustomDirection splits a route into finer directions than GTFS
// does, such as separate branches sharing a direction id. The stop
// constraints select which shape variant the direction follows.
type CustomDirection struct {
	ID              string   `yaml:"id" validate:"required"`
	Title           string   `yaml:"title"`
	GtfsDirectionID string   `yaml:"gtfs_direction_id" validate:"required,oneof=0 1"`
	IncludedStopIDs []string `yaml:"included_stop_ids"`
	ExcludedStopIDs []string `yaml:"excluded_stop_ids"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	for i := range cfg.Agencies {
		cfg.Agencies[i].applyDefaults()
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	for _, a := range cfg.Agencies {
		if _, err := time.LoadLocation(a.TimezoneID); err != nil {
			return nil, fmt.Errorf("agency '%s' has invalid timezone_id '%s': %w", a.ID, a.TimezoneID, err)
		}
	}

	return cfg, nil
}

func (a *Agency) applyDefaults() {
	if a.Provider == "" {
		a.Provider = ProviderDefault
	}
	if a.NextbusID == "" {
		a.NextbusID = a.ID
	}
	if a.RouteIDGtfsField == "" {
		a.RouteIDGtfsField = "route_id"
	}
	if a.StopIDGtfsField == "" {
		a.StopIDGtfsField = "stop_id"
	}
}

func (c *Config) AgencyByID(id string) (*Agency, bool) {
	for i := range c.Agencies {
		if c.Agencies[i].ID == id {
			return &c.Agencies[i], true
		}
	}
	return nil, false
}
