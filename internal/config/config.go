// Package config loads engine and server settings from an optional
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Thresholds are the quality gates for reaching human review.
type Thresholds struct {
	MinSafety   float64 `yaml:"min_safety"`
	MinClinical float64 `yaml:"min_clinical"`
	MinEmpathy  float64 `yaml:"min_empathy"`
}

// HTTP holds server settings.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Model points the capability adapters at an OpenAI-compatible chat
// completions backend. An empty BaseURL selects the built-in
// deterministic capabilities instead.
type Model struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
}

// Config is the full service configuration.
type Config struct {
	MaxIterations    int        `yaml:"max_iterations"`
	SafetyMargin     int        `yaml:"safety_margin"`
	EvaluatorTimeout Duration   `yaml:"evaluator_timeout"`
	Thresholds       Thresholds `yaml:"thresholds"`
	HTTP             HTTP       `yaml:"http"`
	Model            Model      `yaml:"model"`

	// DBPath is the SQLite database file. ":memory:" keeps everything
	// in process.
	DBPath string `yaml:"db_path"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		MaxIterations:    5,
		SafetyMargin:     2,
		EvaluatorTimeout: Duration(120 * time.Second),
		Thresholds: Thresholds{
			MinSafety:   7.0,
			MinClinical: 6.0,
			MinEmpathy:  6.0,
		},
		HTTP: HTTP{Addr: ":8080"},
		Model: Model{
			Name:        "gemini-2.0-flash",
			Temperature: 0.4,
		},
		DBPath: "foundry.db",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fine, env and defaults apply
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Settings converts the engine-relevant portion of the configuration.
func (c Config) Settings(obs api.Observer) api.Settings {
	return api.Settings{
		MaxIterations:    c.MaxIterations,
		SafetyMargin:     c.SafetyMargin,
		EvaluatorTimeout: time.Duration(c.EvaluatorTimeout),
		MinSafetyScore:   c.Thresholds.MinSafety,
		MinClinicalScore: c.Thresholds.MinClinical,
		MinEmpathyScore:  c.Thresholds.MinEmpathy,
		Observer:         obs,
	}
}

func (c *Config) applyEnv() {
	c.MaxIterations = getEnvInt("FOUNDRY_MAX_ITERATIONS", c.MaxIterations)
	c.SafetyMargin = getEnvInt("FOUNDRY_SAFETY_MARGIN", c.SafetyMargin)
	c.EvaluatorTimeout = Duration(getEnvDuration("FOUNDRY_EVALUATOR_TIMEOUT", time.Duration(c.EvaluatorTimeout)))
	c.Thresholds.MinSafety = getEnvFloat("FOUNDRY_MIN_SAFETY", c.Thresholds.MinSafety)
	c.Thresholds.MinClinical = getEnvFloat("FOUNDRY_MIN_CLINICAL", c.Thresholds.MinClinical)
	c.Thresholds.MinEmpathy = getEnvFloat("FOUNDRY_MIN_EMPATHY", c.Thresholds.MinEmpathy)
	c.HTTP.Addr = getEnv("FOUNDRY_HTTP_ADDR", c.HTTP.Addr)
	c.Model.BaseURL = getEnv("FOUNDRY_MODEL_BASE_URL", c.Model.BaseURL)
	c.Model.APIKey = getEnv("FOUNDRY_MODEL_API_KEY", c.Model.APIKey)
	c.Model.Name = getEnv("FOUNDRY_MODEL_NAME", c.Model.Name)
	c.Model.Temperature = getEnvFloat("FOUNDRY_MODEL_TEMPERATURE", c.Model.Temperature)
	c.DBPath = getEnv("FOUNDRY_DB_PATH", c.DBPath)
}

func (c *Config) validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.SafetyMargin < 0 {
		return fmt.Errorf("safety_margin must not be negative, got %d", c.SafetyMargin)
	}
	if c.EvaluatorTimeout <= 0 {
		return fmt.Errorf("evaluator_timeout must be positive, got %s", time.Duration(c.EvaluatorTimeout))
	}
	for name, v := range map[string]float64{
		"min_safety":   c.Thresholds.MinSafety,
		"min_clinical": c.Thresholds.MinClinical,
		"min_empathy":  c.Thresholds.MinEmpathy,
	} {
		if v < 0 || v > 10 {
			return fmt.Errorf("%s must be within [0, 10], got %g", name, v)
		}
	}
	if c.Model.BaseURL != "" && c.Model.Name == "" {
		return fmt.Errorf("model.name is required when model.base_url is set")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be within [0, 2], got %g", c.Model.Temperature)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
