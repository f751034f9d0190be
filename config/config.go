// Package config loads and validates the platform configuration from a JSON
// file with environment variable overrides for deployment-specific values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/AaronLay10/snere-rewrite/errors"
)

// Config represents the complete application configuration
type Config struct {
	Version     string         `json:"version"`
	Platform    PlatformConfig `json:"platform"`
	HardwareBus BusConfig      `json:"hardware_bus"`
	EventBus    BusConfig      `json:"event_bus"`
	Registry    RegistryConfig `json:"registry"`
	Rooms       []RoomConfig   `json:"rooms"`
	Feed        FeedConfig     `json:"feed,omitempty"`
	Metrics     MetricsConfig  `json:"metrics,omitempty"`
}

// PlatformConfig defines platform identity
type PlatformConfig struct {
	ID          string `json:"id"`
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// BusConfig defines NATS connection settings for one bus
type BusConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	TLS           TLSConfig     `json:"tls,omitempty"`
}

// TLSConfig for secure NATS connections
type TLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// RegistryConfig defines the external controller/device registry endpoint
type RegistryConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// RoomConfig defines a physical room and its puzzle definitions
type RoomConfig struct {
	RoomID  string         `json:"room_id"`
	Name    string         `json:"name,omitempty"`
	Puzzles []PuzzleConfig `json:"puzzles"`
}

// PuzzleConfig defines one puzzle. Condition holds the declarative solve
// condition tree, parsed by the puzzle package at session start.
type PuzzleConfig struct {
	PuzzleID  string          `json:"puzzle_id"`
	Name      string          `json:"name,omitempty"`
	Condition json.RawMessage `json:"condition"`
}

// FeedConfig defines the operator WebSocket feed listener
type FeedConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// MetricsConfig defines the Prometheus scrape listener
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// Environment variable overrides applied after the file is parsed
const (
	EnvHardwareNATSURL = "SNERE_HARDWARE_NATS_URL"
	EnvEventsNATSURL   = "SNERE_EVENTS_NATS_URL"
	EnvRegistryURL     = "SNERE_REGISTRY_URL"
	EnvRegistryToken   = "SNERE_REGISTRY_TOKEN"
)

// Load reads, parses and validates a config file. Environment overrides are
// applied between parsing and validation so a config file may omit secrets
// entirely.
func Load(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "validate config structure")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvHardwareNATSURL, &c.HardwareBus.URL},
		{EnvEventsNATSURL, &c.EventBus.URL},
		{EnvRegistryURL, &c.Registry.URL},
		{EnvRegistryToken, &c.Registry.Token},
	}

	for _, o := range overrides {
		value := os.Getenv(o.key)
		if value == "" {
			continue
		}
		if err := validateEnvVar(o.key, value); err != nil {
			return errors.WrapInvalid(err, "Config", "applyEnvOverrides", "validate "+o.key)
		}
		*o.target = value
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HardwareBus.ReconnectWait == 0 {
		c.HardwareBus.ReconnectWait = 2 * time.Second
	}
	if c.EventBus.ReconnectWait == 0 {
		c.EventBus.ReconnectWait = 2 * time.Second
	}
	if c.Registry.Timeout == 0 {
		c.Registry.Timeout = 5 * time.Second
	}
	if c.Feed.Enabled && c.Feed.Addr == "" {
		c.Feed.Addr = ":8081"
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// Validate checks if the config is valid. A missing registry token is fatal:
// starting without it would silently drop every registration.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "platform.id is required")
	}

	if c.HardwareBus.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "hardware_bus.url is required")
	}
	if c.EventBus.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "event_bus.url is required")
	}

	if c.Registry.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "registry.url is required")
	}
	if c.Registry.Token == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
			"registry.token is required (set "+EnvRegistryToken+")")
	}

	seen := make(map[string]bool)
	for i, room := range c.Rooms {
		if room.RoomID == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("rooms[%d].room_id is required", i))
		}
		if !isValidSubjectPart(room.RoomID) {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("rooms[%d].room_id %q is not subject-safe", i, room.RoomID))
		}
		if seen[room.RoomID] {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("duplicate room_id %q", room.RoomID))
		}
		seen[room.RoomID] = true

		puzzleIDs := make(map[string]bool)
		for j, p := range room.Puzzles {
			if p.PuzzleID == "" {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
					fmt.Sprintf("rooms[%d].puzzles[%d].puzzle_id is required", i, j))
			}
			if puzzleIDs[p.PuzzleID] {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
					fmt.Sprintf("room %q has duplicate puzzle_id %q", room.RoomID, p.PuzzleID))
			}
			puzzleIDs[p.PuzzleID] = true
			if len(p.Condition) == 0 {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
					fmt.Sprintf("puzzle %q has no condition", p.PuzzleID))
			}
		}
	}

	return nil
}

// Room returns the room config for an id
func (c *Config) Room(roomID string) (RoomConfig, bool) {
	for _, r := range c.Rooms {
		if r.RoomID == roomID {
			return r, true
		}
	}
	return RoomConfig{}, false
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// isValidSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	if strings.ContainsAny(s, ".*> \t") {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
