package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rackwatch/rackwatch/pkg/compute"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval        = 30 * time.Second
	DefaultBufferSize      = 16
	DefaultSource          = SourceSynthetic
	DefaultCabinets        = 6
	DefaultMinUnits        = 4
	DefaultMaxUnits        = 8
	DefaultSensorsPerUnit  = 2
	DefaultLeakProbability = 0.05
)

// Snapshot source kinds.
const (
	SourceSynthetic  = "synthetic"
	SourcePrometheus = "prometheus"
)

// DefaultWeights are the relative odds of drawing Normal, Caution, Warning
// and Critical readings in the synthetic generator.
func DefaultWeights() []float64 {
	return []float64{0.70, 0.15, 0.10, 0.05}
}

// Config is the top-level agent configuration.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of rackwatch-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// Interval is how often a fresh fleet snapshot is produced and shipped.
	Interval time.Duration `yaml:"interval"`

	// BufferSize is the maximum number of snapshots held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Source selects the snapshot producer: synthetic | prometheus.
	Source string `yaml:"source"`

	// Synthetic configures the demo generator (source: synthetic).
	Synthetic SyntheticConfig `yaml:"synthetic"`

	// Cabinets lists the exporter endpoints scraped when source is prometheus.
	Cabinets []Cabinet `yaml:"cabinets"`

	// Thresholds overrides entries of compute.DefaultTable. The synthetic
	// generator uses them to place values inside the intended band.
	Thresholds compute.Table `yaml:"thresholds"`
}

// SyntheticConfig shapes the randomly generated fleet.
type SyntheticConfig struct {
	Cabinets        int       `yaml:"cabinets"`
	MinUnits        int       `yaml:"min_units"`
	MaxUnits        int       `yaml:"max_units"`
	SensorsPerUnit  int       `yaml:"sensors_per_unit"`
	LeakProbability float64   `yaml:"leak_probability"`
	Weights         []float64 `yaml:"weights"`

	// Seed makes runs reproducible. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// Cabinet is one liquid-cooling exporter scraped by the prometheus source.
type Cabinet struct {
	// ID is the cabinet identifier reported to the server, e.g. "C01".
	ID string `yaml:"id"`

	// Name is the display name. Defaults to ID.
	Name string `yaml:"name"`

	// Endpoint is the full URL of the exporter's metrics endpoint.
	Endpoint string `yaml:"endpoint"`

	// Auth configures how the agent authenticates to the exporter.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for an exporter endpoint.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header carrying the API key (Mode == "apikey").
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-cabinet TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults; threshold overrides are
// merged onto compute.DefaultTable.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if len(cfg.Agent.Synthetic.Weights) == 0 {
		cfg.Agent.Synthetic.Weights = DefaultWeights()
	}
	for i := range cfg.Agent.Cabinets {
		if cfg.Agent.Cabinets[i].Name == "" {
			cfg.Agent.Cabinets[i].Name = cfg.Agent.Cabinets[i].ID
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Interval:   DefaultInterval,
			BufferSize: DefaultBufferSize,
			Source:     DefaultSource,
			Synthetic: SyntheticConfig{
				Cabinets:        DefaultCabinets,
				MinUnits:        DefaultMinUnits,
				MaxUnits:        DefaultMaxUnits,
				SensorsPerUnit:  DefaultSensorsPerUnit,
				LeakProbability: DefaultLeakProbability,
			},
			Thresholds: compute.DefaultTable(),
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.Interval <= 0 {
		return fmt.Errorf("agent.interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if err := a.Thresholds.Validate(); err != nil {
		return fmt.Errorf("agent.%w", err)
	}

	switch a.Source {
	case SourceSynthetic:
		return validateSynthetic(a.Synthetic)
	case SourcePrometheus:
		return validateCabinets(a.Cabinets)
	default:
		return fmt.Errorf("agent.source: unknown source %q", a.Source)
	}
}

func validateSynthetic(s SyntheticConfig) error {
	if s.Cabinets <= 0 {
		return fmt.Errorf("agent.synthetic.cabinets must be positive")
	}
	if s.MinUnits <= 0 || s.MaxUnits < s.MinUnits {
		return fmt.Errorf("agent.synthetic: need 0 < min_units <= max_units, got %d..%d", s.MinUnits, s.MaxUnits)
	}
	if s.SensorsPerUnit <= 0 {
		return fmt.Errorf("agent.synthetic.sensors_per_unit must be positive")
	}
	if s.LeakProbability < 0 || s.LeakProbability > 1 {
		return fmt.Errorf("agent.synthetic.leak_probability must be within [0, 1]")
	}
	if len(s.Weights) != 4 {
		return fmt.Errorf("agent.synthetic.weights: want 4 entries (normal, caution, warning, critical), got %d", len(s.Weights))
	}
	var sum float64
	for _, w := range s.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("agent.synthetic.weights: %v is not a valid weight", w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("agent.synthetic.weights must not all be zero")
	}
	return nil
}

func validateCabinets(cabs []Cabinet) error {
	if len(cabs) == 0 {
		return fmt.Errorf("agent.cabinets: at least one cabinet is required for the prometheus source")
	}
	seen := make(map[string]bool, len(cabs))
	for i, c := range cabs {
		if c.ID == "" {
			return fmt.Errorf("cabinets[%d]: id is required", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("cabinets[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		if c.Endpoint == "" {
			return fmt.Errorf("cabinets[%d] %q: endpoint is required", i, c.ID)
		}
		switch c.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("cabinets[%d] %q: unknown auth mode %q", i, c.ID, c.Auth.Mode)
		}
	}
	return nil
}
