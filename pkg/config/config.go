package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kacperjurak/gopolcore"
)

// CellConfig describes the measurement cell and the applied field. The
// defaults match a typical 3 um planar cell driven through a 1 kOhm
// reference resistor.
type CellConfig struct {
	ReferenceResistance float64 `yaml:"reference_resistance_ohms" default:"1000" validate:"gt=0"`
	Area                float64 `yaml:"area_m2" default:"1e-4" validate:"gt=0"`
	Thickness           float64 `yaml:"thickness_m" default:"3e-6" validate:"gt=0"`
	FieldPeriod         float64 `yaml:"field_period_s" default:"0.01" validate:"gt=0"`
	// FieldAmplitude in volts; 0 means unknown and disables the viscosity
	// output.
	FieldAmplitude float64 `yaml:"field_amplitude_v" default:"0" validate:"gte=0"`
}

// LogConfig selects the service log stream.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stderr"`
}

// Config holds all application settings: the analysis knobs, the cell
// description and the run mode.
type Config struct {
	Analysis gopolcore.AnalysisConfig `yaml:"analysis"`
	Cell     CellConfig               `yaml:"cell"`
	Log      LogConfig                `yaml:"log"`

	// File is the CSV waveform to analyze in one-shot mode.
	File string `yaml:"file"`
	// SkipRows drops oscilloscope header lines at the top of the CSV.
	SkipRows int `yaml:"skip_rows" default:"100" validate:"gte=0"`
	// SampleInterval in seconds, used when the CSV lacks a time column.
	SampleInterval float64 `yaml:"sample_interval_s" default:"1e-6" validate:"gt=0"`

	Demo            bool `yaml:"demo"`
	Quiet           bool `yaml:"quiet"`
	HTTPServer      bool `yaml:"http_server"`
	EnableProfiling bool `yaml:"enable_profiling"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port            string `yaml:"port" default:"8080"`
	WorkerCount     int    `yaml:"worker_count" default:"5" validate:"gte=1"`
	WebhookURL      string `yaml:"webhook_url" default:"http://webplot:3001/webhook"`
	EnableMetrics   bool   `yaml:"enable_metrics" default:"true"`
	EnableProfiling bool   `yaml:"enable_profiling"`
	ProfilingPort   string `yaml:"profiling_port" default:"6060"`
}

var validate = validator.New()

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	c := &Config{}
	defaults.MustSet(c)
	return c
}

// DefaultServerConfig returns server configuration with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	c := &ServerConfig{}
	defaults.MustSet(c)
	return c
}

// Load reads a YAML config file over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadServer reads server settings from the same YAML file (under the
// "server" key) with environment overrides.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var wrapper struct {
			Server *ServerConfig `yaml:"server"`
		}
		wrapper.Server = cfg
		if err := yaml.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("GOPOL_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("GOPOL_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("GOPOL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerCount = n
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate server config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOPOL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GOPOL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GOPOL_CELL_AREA_M2"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cell.Area = f
		}
	}
	if v := os.Getenv("GOPOL_FIELD_PERIOD_S"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cell.FieldPeriod = f
		}
	}
}

// Metadata converts the cell description into engine metadata for a capture
// with the given sample interval.
func (c *Config) Metadata(sampleInterval float64) gopolcore.Metadata {
	return gopolcore.Metadata{
		SampleInterval:      sampleInterval,
		ReferenceResistance: c.Cell.ReferenceResistance,
		CellArea:            c.Cell.Area,
		CellThickness:       c.Cell.Thickness,
		FieldPeriod:         c.Cell.FieldPeriod,
		FieldAmplitude:      c.Cell.FieldAmplitude,
	}
}
