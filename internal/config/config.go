// Package config manages the couplingd daemon's configuration using
// koanf/v2.
//
// Supports YAML files, environment variables, and in-process defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete couplingd configuration.
type Config struct {
	Participant ParticipantConfig `koanf:"participant"`
	Mesh        MeshConfig        `koanf:"mesh"`
	Transport   TransportConfig   `koanf:"transport"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Log         LogConfig         `koanf:"log"`
}

// ParticipantConfig describes this rank's position in its participant's
// rank group.
type ParticipantConfig struct {
	// Name labels this participant in logs and metrics.
	Name string `koanf:"name"`
	// Role is "master" or "slave".
	Role string `koanf:"role"`
	// LocalRank is this rank's identifier within the participant. Must be
	// 0 for a master, > 0 for a slave.
	LocalRank int `koanf:"local_rank"`
	// LocalSize is the total rank count of this participant. Required for
	// a master.
	LocalSize int `koanf:"local_size"`
	// SafetyFactor dilates the local bounding box.
	SafetyFactor float64 `koanf:"safety_factor"`
}

// MeshConfig names the coupled mesh this instance computes connectivity for.
type MeshConfig struct {
	Name string `koanf:"name"`
	// Dim is the mesh spatial dimension: 2 or 3.
	Dim int `koanf:"dim"`
}

// TransportConfig addresses the TCP endpoints the partition protocol
// exchanges its two channel kinds over.
type TransportConfig struct {
	// M2NListenAddr, if non-empty, makes this master listen for the
	// remote master's connection. Exactly one of M2NListenAddr and
	// M2NDialAddr must be set, and only on a master.
	M2NListenAddr string `koanf:"m2n_listen_addr"`
	// M2NDialAddr, if non-empty, makes this master dial the remote
	// master at this address.
	M2NDialAddr string `koanf:"m2n_dial_addr"`

	// IntraListenAddr is where a master listens for its local slaves to
	// connect. Required for a master.
	IntraListenAddr string `koanf:"intra_listen_addr"`
	// IntraMasterAddr is where a slave dials to reach its local master.
	// Required for a slave.
	IntraMasterAddr string `koanf:"intra_master_addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. Every
// participant/transport field is left to the operator: there is no
// meaningful default role, rank, or address.
func DefaultConfig() *Config {
	return &Config{
		Mesh: MeshConfig{
			Dim: 3,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for couplingd configuration.
// Variables are named COUPLINGD_<section>_<key>, e.g. COUPLINGD_MESH_DIM.
const envPrefix = "COUPLINGD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (COUPLINGD_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms COUPLINGD_MESH_DIM -> mesh.dim: strips the
// COUPLINGD_ prefix, lowercases, and replaces every _ with . — so a key
// whose own name contains an underscore (e.g. participant.safety_factor)
// cannot be set from the environment.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"mesh.dim":                  defaults.Mesh.Dim,
		"metrics.addr":              defaults.Metrics.Addr,
		"metrics.path":              defaults.Metrics.Path,
		"log.level":                 defaults.Log.Level,
		"log.format":                defaults.Log.Format,
		"participant.safety_factor": defaults.Participant.SafetyFactor,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidRole indicates participant.role is neither "master" nor "slave".
	ErrInvalidRole = errors.New("participant.role must be master or slave")

	// ErrInvalidLocalRank indicates local_rank is inconsistent with role.
	ErrInvalidLocalRank = errors.New("participant.local_rank is inconsistent with participant.role")

	// ErrInvalidLocalSize indicates a master has local_size <= 1.
	ErrInvalidLocalSize = errors.New("participant.local_size must be > 1 for a master")

	// ErrNegativeSafetyFactor indicates a negative safety factor.
	ErrNegativeSafetyFactor = errors.New("participant.safety_factor must be >= 0")

	// ErrInvalidMeshDim indicates mesh.dim is neither 2 nor 3.
	ErrInvalidMeshDim = errors.New("mesh.dim must be 2 or 3")

	// ErrEmptyMeshName indicates mesh.name is empty.
	ErrEmptyMeshName = errors.New("mesh.name must not be empty")

	// ErrM2NAddrAmbiguous indicates both or neither of the m2n addresses are set on a master.
	ErrM2NAddrAmbiguous = errors.New("transport: exactly one of m2n_listen_addr, m2n_dial_addr must be set on a master")

	// ErrEmptyIntraListenAddr indicates a master has no intra_listen_addr.
	ErrEmptyIntraListenAddr = errors.New("transport.intra_listen_addr must be set for a master")

	// ErrEmptyIntraMasterAddr indicates a slave has no intra_master_addr.
	ErrEmptyIntraMasterAddr = errors.New("transport.intra_master_addr must be set for a slave")
)

// Validate checks the configuration for logical errors. Returns the first
// validation error encountered.
func Validate(cfg *Config) error {
	switch cfg.Participant.Role {
	case "master":
		if cfg.Participant.LocalRank != 0 {
			return ErrInvalidLocalRank
		}
		if cfg.Participant.LocalSize <= 1 {
			return ErrInvalidLocalSize
		}
		if (cfg.Transport.M2NListenAddr == "") == (cfg.Transport.M2NDialAddr == "") {
			return ErrM2NAddrAmbiguous
		}
		if cfg.Transport.IntraListenAddr == "" {
			return ErrEmptyIntraListenAddr
		}
	case "slave":
		if cfg.Participant.LocalRank <= 0 {
			return ErrInvalidLocalRank
		}
		if cfg.Transport.IntraMasterAddr == "" {
			return ErrEmptyIntraMasterAddr
		}
	default:
		return ErrInvalidRole
	}

	if cfg.Participant.SafetyFactor < 0 {
		return ErrNegativeSafetyFactor
	}

	if cfg.Mesh.Dim != 2 && cfg.Mesh.Dim != 3 {
		return ErrInvalidMeshDim
	}
	if cfg.Mesh.Name == "" {
		return ErrEmptyMeshName
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
