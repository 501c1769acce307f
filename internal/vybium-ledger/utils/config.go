package utils

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the services, the client and the
// prover.
type Config struct {
	// Network id used in node URLs.
	Network string `yaml:"network"`

	// HTTP edge
	AuthorizeAddr    string        `yaml:"authorize_addr"`
	ExecuteAddr      string        `yaml:"execute_addr"`
	AuthorizeMaxBody int64         `yaml:"authorize_max_body"`
	ExecuteMaxBody   int64         `yaml:"execute_max_body"`
	RateLimit        float64       `yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst        int           `yaml:"rate_burst"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`

	// Prover pool
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`

	// Transcript hash used by proofs.
	HashFunction string `yaml:"hash_function"`

	// STARK parameters of transition proofs.
	Proof ProofConfig `yaml:"proof"`

	// Fees, keyed by "program/function".
	BaseFees map[string]uint64 `yaml:"base_fees"`

	// Node and client endpoints
	NodeURL      string `yaml:"node_url"`
	AuthorizeURL string `yaml:"authorize_url"`
	ExecuteURL   string `yaml:"execute_url"`

	Metrics bool `yaml:"metrics"`
}

// ProofConfig sizes the FRI commitment of every transition proof.
type ProofConfig struct {
	ExpansionFactor    int `yaml:"expansion_factor"`
	CollinearityChecks int `yaml:"collinearity_checks"`
	TraceRandomizers   int `yaml:"trace_randomizers"`
	FinalDegree        int `yaml:"final_degree"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Network:          "testnet",
		AuthorizeAddr:    ":8081",
		ExecuteAddr:      ":8082",
		AuthorizeMaxBody: 1 << 10,
		ExecuteMaxBody:   32 << 10,
		RateLimit:        10,
		RateBurst:        20,
		ShutdownTimeout:  10 * time.Second,
		Workers:          4,
		QueueDepth:       64,
		HashFunction:     HashSHA3,
		Proof: ProofConfig{
			ExpansionFactor:    4,
			CollinearityChecks: 40,
			TraceRandomizers:   82,
			FinalDegree:        8,
		},
		BaseFees: map[string]uint64{
			"credits.vy/transfer_public":            51060,
			"credits.vy/transfer_private_to_public": 300000,
		},
		NodeURL:      "http://127.0.0.1:3030",
		AuthorizeURL: "http://127.0.0.1:8081",
		ExecuteURL:   "http://127.0.0.1:8082",
		Metrics:      true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Network) == "" {
		return fmt.Errorf("network must be set")
	}
	if c.AuthorizeMaxBody <= 0 || c.ExecuteMaxBody <= 0 {
		return fmt.Errorf("body limits must be positive")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		return fmt.Errorf("rate burst must be positive when rate limiting is enabled")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.QueueDepth < 0 {
		return fmt.Errorf("queue depth must not be negative")
	}
	switch c.HashFunction {
	case HashSHA3, HashSHA256, HashBlake2b:
	default:
		return fmt.Errorf("hash function must be '%s', '%s', or '%s', got '%s'",
			HashSHA3, HashSHA256, HashBlake2b, c.HashFunction)
	}
	pc := c.Proof
	if pc.ExpansionFactor <= 0 || pc.CollinearityChecks <= 0 || pc.FinalDegree <= 0 {
		return fmt.Errorf("proof parameters must be positive")
	}
	if pc.TraceRandomizers < 2*pc.CollinearityChecks+2 {
		return fmt.Errorf("proof needs at least %d trace randomizers, got %d",
			2*pc.CollinearityChecks+2, pc.TraceRandomizers)
	}
	return nil
}

// WithNetwork sets the network id.
func (c *Config) WithNetwork(network string) *Config {
	c.Network = network
	return c
}

// WithWorkers sets the prover pool size.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// WithQueueDepth sets the number of jobs that may wait for a worker.
func (c *Config) WithQueueDepth(n int) *Config {
	c.QueueDepth = n
	return c
}

// WithHashFunction sets the transcript hash.
func (c *Config) WithHashFunction(hashFunc string) *Config {
	c.HashFunction = hashFunc
	return c
}

// WithRateLimit sets the per-client rate limit.
func (c *Config) WithRateLimit(rps float64, burst int) *Config {
	c.RateLimit = rps
	c.RateBurst = burst
	return c
}

// WithNodeURL sets the node base URL.
func (c *Config) WithNodeURL(url string) *Config {
	c.NodeURL = url
	return c
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.BaseFees = maps.Clone(c.BaseFees)
	return &out
}

// LoadConfig reads a YAML file over the defaults and applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
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
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies VYBIUM_* environment variables to cfg.
func ApplyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("VYBIUM_NETWORK", &cfg.Network)
	str("VYBIUM_AUTHORIZE_ADDR", &cfg.AuthorizeAddr)
	str("VYBIUM_EXECUTE_ADDR", &cfg.ExecuteAddr)
	str("VYBIUM_HASH_FUNCTION", &cfg.HashFunction)
	str("VYBIUM_NODE_URL", &cfg.NodeURL)
	str("VYBIUM_AUTHORIZE_URL", &cfg.AuthorizeURL)
	str("VYBIUM_EXECUTE_URL", &cfg.ExecuteURL)

	ints := []struct {
		key string
		dst *int
	}{
		{"VYBIUM_WORKERS", &cfg.Workers},
		{"VYBIUM_QUEUE_DEPTH", &cfg.QueueDepth},
		{"VYBIUM_RATE_BURST", &cfg.RateBurst},
		{"VYBIUM_PROOF_CHECKS", &cfg.Proof.CollinearityChecks},
		{"VYBIUM_PROOF_RANDOMIZERS", &cfg.Proof.TraceRandomizers},
	}
	for _, e := range ints {
		raw := strings.TrimSpace(os.Getenv(e.key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = v
	}

	if raw := strings.TrimSpace(os.Getenv("VYBIUM_RATE_LIMIT")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("VYBIUM_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = v
	}
	if raw := strings.TrimSpace(os.Getenv("VYBIUM_METRICS")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("VYBIUM_METRICS: %w", err)
		}
		cfg.Metrics = v
	}
	return nil
}
