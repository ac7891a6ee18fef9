package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cxd309/vehicle-emulator/internal/kinematics"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. VEMU_LOGGER_LEVEL.
const EnvPrefix = "VEMU"

// Interface defines the contract for accessing application configuration.
type Interface interface {
	Logger() LoggerConfig
	Simulation() SimulationConfig
	Storage() StorageConfig
	Influx() InfluxConfig
	Server() ServerConfig
}

// Config holds the application configuration. Access goes through the
// Interface getters.
type Config struct {
	logger     LoggerConfig
	simulation SimulationConfig
	storage    StorageConfig
	influx     InfluxConfig
	server     ServerConfig
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig         { return c.logger }
func (c *Config) Simulation() SimulationConfig { return c.simulation }
func (c *Config) Storage() StorageConfig       { return c.storage }
func (c *Config) Influx() InfluxConfig         { return c.influx }
func (c *Config) Server() ServerConfig         { return c.server }

// fileConfig mirrors Config with exported fields for decoding.
type fileConfig struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Influx     InfluxConfig     `mapstructure:"influx"`
	Server     ServerConfig     `mapstructure:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // console | json
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // MB
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SimulationConfig holds defaults applied to scenarios that leave them out.
type SimulationConfig struct {
	TimeStep   float64 `mapstructure:"time_step" yaml:"time_step"` // s
	RunTime    float64 `mapstructure:"run_time" yaml:"run_time"`   // s
	MaxStep    float64 `mapstructure:"max_step" yaml:"max_step"`   // s
	Integrator string  `mapstructure:"integrator" yaml:"integrator"`
}

// Storage backends.
const (
	StorageNone     = "none"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageConfig selects where runs are persisted.
type StorageConfig struct {
	Type      string `mapstructure:"type" yaml:"type"`
	Path      string `mapstructure:"path" yaml:"path"` // sqlite file; empty for in-memory
	DSN       string `mapstructure:"dsn" yaml:"dsn"`   // postgres
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// InfluxConfig configures the time-series telemetry sink.
type InfluxConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	URL         string `mapstructure:"url" yaml:"url"`
	Token       string `mapstructure:"token" yaml:"token"`
	Org         string `mapstructure:"org" yaml:"org"`
	Bucket      string `mapstructure:"bucket" yaml:"bucket"`
	Measurement string `mapstructure:"measurement" yaml:"measurement"`
	BackupPath  string `mapstructure:"backup_path" yaml:"backup_path"` // gzip line protocol when the server is unreachable
}

// ServerConfig configures the live websocket session.
type ServerConfig struct {
	Addr          string  `mapstructure:"addr" yaml:"addr"`
	TickRate      float64 `mapstructure:"tick_rate" yaml:"tick_rate"`           // Hz
	BroadcastRate float64 `mapstructure:"broadcast_rate" yaml:"broadcast_rate"` // Hz
	Vehicle       string  `mapstructure:"vehicle" yaml:"vehicle"`               // optional vehicle params JSON file
}

// SetDefaults registers every key with its default so environment overrides
// are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vemu")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Simulation --
	v.SetDefault("simulation.time_step", 0.05)
	v.SetDefault("simulation.run_time", 30.0)
	v.SetDefault("simulation.max_step", 0.25)
	v.SetDefault("simulation.integrator", kinematics.LinearModelName)

	// -- Storage --
	v.SetDefault("storage.type", StorageNone)
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.batch_size", 500)

	// -- Influx --
	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "vemu")
	v.SetDefault("influx.bucket", "telemetry")
	v.SetDefault("influx.measurement", "vehicle")
	v.SetDefault("influx.backup_path", "")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tick_rate", 60.0)
	v.SetDefault("server.broadcast_rate", 30.0)
	v.SetDefault("server.vehicle", "")
}

// NewDefaultConfig returns the configuration with every default applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads configuration into v from path, or from vemu.yaml in the
// working directory when path is empty. A missing default file is not an
// error; a missing explicit file is.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vemu")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper decodes and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := &Config{
		logger:     fc.Logger,
		simulation: fc.Simulation,
		storage:    fc.Storage,
		influx:     fc.Influx,
		server:     fc.Server,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	var errs []error
	if c.simulation.TimeStep <= 0 {
		errs = append(errs, errors.New("simulation.time_step must be positive"))
	}
	if c.simulation.MaxStep <= 0 {
		errs = append(errs, errors.New("simulation.max_step must be positive"))
	}
	if c.simulation.RunTime < 0 {
		errs = append(errs, errors.New("simulation.run_time must not be negative"))
	}
	if _, err := kinematics.ByName(c.simulation.Integrator); err != nil {
		errs = append(errs, fmt.Errorf("simulation.integrator: %w", err))
	}
	switch c.storage.Type {
	case "", StorageNone, StorageSQLite:
	case StoragePostgres:
		if c.storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of none, sqlite, postgres", c.storage.Type))
	}
	if c.storage.BatchSize <= 0 {
		errs = append(errs, errors.New("storage.batch_size must be positive"))
	}
	if c.server.TickRate <= 0 || c.server.BroadcastRate <= 0 {
		errs = append(errs, errors.New("server.tick_rate and server.broadcast_rate must be positive"))
	}
	return errors.Join(errs...)
}
