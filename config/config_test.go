package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/snere-rewrite/errors"
)

const validConfigJSON = `{
	"version": "1.0",
	"platform": {"id": "snere-test", "environment": "test"},
	"hardware_bus": {"url": "nats://localhost:4222"},
	"event_bus": {"url": "nats://localhost:4223"},
	"registry": {"url": "http://localhost:8080", "token": "secret"},
	"rooms": [
		{
			"room_id": "room_demo",
			"name": "Demo Room",
			"puzzles": [
				{
					"puzzle_id": "door_open",
					"name": "Open the door",
					"condition": {
						"controller_id": "ctrl_1",
						"device_id": "door_sensor",
						"field": "open",
						"equals": true
					}
				}
			]
		}
	]
}`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfigJSON))
	require.NoError(t, err)

	assert.Equal(t, "snere-test", cfg.Platform.ID)
	assert.Equal(t, "nats://localhost:4222", cfg.HardwareBus.URL)
	assert.Equal(t, "nats://localhost:4223", cfg.EventBus.URL)
	assert.Equal(t, "secret", cfg.Registry.Token)

	// Defaults
	assert.Equal(t, 5*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, 2*time.Second, cfg.HardwareBus.ReconnectWait)

	room, ok := cfg.Room("room_demo")
	require.True(t, ok)
	require.Len(t, room.Puzzles, 1)
	assert.Equal(t, "door_open", room.Puzzles[0].PuzzleID)
	assert.NotEmpty(t, room.Puzzles[0].Condition)

	_, ok = cfg.Room("missing")
	assert.False(t, ok)
}

func TestLoad_MissingRegistryTokenIsFatal(t *testing.T) {
	content := strings.Replace(validConfigJSON, `"token": "secret"`, `"token": ""`, 1)
	_, err := Load(writeConfigFile(t, content))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvHardwareNATSURL, "nats://hw-override:4222")
	t.Setenv(EnvRegistryToken, "env-token")

	content := strings.Replace(validConfigJSON, `"token": "secret"`, `"token": ""`, 1)
	cfg, err := Load(writeConfigFile(t, content))
	require.NoError(t, err)

	assert.Equal(t, "nats://hw-override:4222", cfg.HardwareBus.URL)
	assert.Equal(t, "env-token", cfg.Registry.Token)
	assert.Equal(t, "nats://localhost:4223", cfg.EventBus.URL)
}

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := Load(writeConfigFile(t, `{"version": `))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad_RejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		return &Config{
			Platform:    PlatformConfig{ID: "p"},
			HardwareBus: BusConfig{URL: "nats://a"},
			EventBus:    BusConfig{URL: "nats://b"},
			Registry:    RegistryConfig{URL: "http://r", Token: "t"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing platform id", func(c *Config) { c.Platform.ID = "" }},
		{"missing hardware bus url", func(c *Config) { c.HardwareBus.URL = "" }},
		{"missing event bus url", func(c *Config) { c.EventBus.URL = "" }},
		{"missing registry url", func(c *Config) { c.Registry.URL = "" }},
		{"room without id", func(c *Config) {
			c.Rooms = []RoomConfig{{}}
		}},
		{"room id with dot", func(c *Config) {
			c.Rooms = []RoomConfig{{RoomID: "bad.room"}}
		}},
		{"duplicate room id", func(c *Config) {
			c.Rooms = []RoomConfig{{RoomID: "r1"}, {RoomID: "r1"}}
		}},
		{"puzzle without id", func(c *Config) {
			c.Rooms = []RoomConfig{{RoomID: "r1", Puzzles: []PuzzleConfig{{}}}}
		}},
		{"duplicate puzzle id", func(c *Config) {
			c.Rooms = []RoomConfig{{RoomID: "r1", Puzzles: []PuzzleConfig{
				{PuzzleID: "p1", Condition: []byte(`{}`)},
				{PuzzleID: "p1", Condition: []byte(`{}`)},
			}}}
		}},
		{"puzzle without condition", func(c *Config) {
			c.Rooms = []RoomConfig{{RoomID: "r1", Puzzles: []PuzzleConfig{{PuzzleID: "p1"}}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}

func TestClone_Independent(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfigJSON))
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.Rooms[0].RoomID = "mutated"
	clone.Registry.Token = "changed"

	assert.Equal(t, "room_demo", cfg.Rooms[0].RoomID)
	assert.Equal(t, "secret", cfg.Registry.Token)

	var nilCfg *Config
	assert.NotNil(t, nilCfg.Clone())
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": [1, {"b": "}{]["}]}`)))

	deep := strings.Repeat("[", maxJSONDepth+1) + strings.Repeat("]", maxJSONDepth+1)
	assert.Error(t, validateJSONDepth([]byte(deep)))
}

func TestValidateEnvVar(t *testing.T) {
	assert.NoError(t, validateEnvVar("K", "ok"))
	assert.Error(t, validateEnvVar("K", strings.Repeat("x", maxEnvVarLen+1)))
	assert.Error(t, validateEnvVar("K", "bad\x00value"))
}

func TestIsValidSubjectPart(t *testing.T) {
	assert.True(t, isValidSubjectPart("room_demo"))
	assert.True(t, isValidSubjectPart("ctrl-1"))
	assert.False(t, isValidSubjectPart(""))
	assert.False(t, isValidSubjectPart("a.b"))
	assert.False(t, isValidSubjectPart("a b"))
	assert.False(t, isValidSubjectPart("a*"))
	assert.False(t, isValidSubjectPart("a>"))
}
