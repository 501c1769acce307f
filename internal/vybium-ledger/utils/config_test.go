package utils

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if config.AuthorizeMaxBody != 1024 {
		t.Errorf("AuthorizeMaxBody = %d, want 1024", config.AuthorizeMaxBody)
	}
	if config.ExecuteMaxBody != 32*1024 {
		t.Errorf("ExecuteMaxBody = %d, want 32768", config.ExecuteMaxBody)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig() should be valid: %v", err)
	}
}

func withProof(edit func(*ProofConfig)) *Config {
	cfg := DefaultConfig()
	edit(&cfg.Proof)
	return cfg
}

// TestConfigValidate tests the Validate method
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		expectErr bool
	}{
		{"valid default config", DefaultConfig(), false},
		{"no network", DefaultConfig().WithNetwork(" "), true},
		{"zero workers", DefaultConfig().WithWorkers(0), true},
		{"negative queue", DefaultConfig().WithQueueDepth(-1), true},
		{"unknown hash", DefaultConfig().WithHashFunction("md5"), true},
		{"blake2b hash", DefaultConfig().WithHashFunction(HashBlake2b), false},
		{"rate limit without burst", DefaultConfig().WithRateLimit(5, 0), true},
		{"rate limit disabled", DefaultConfig().WithRateLimit(0, 0), false},
		{"too few randomizers", withProof(func(p *ProofConfig) { p.TraceRandomizers = 2 * p.CollinearityChecks }), true},
		{"zero checks", withProof(func(p *ProofConfig) { p.CollinearityChecks = 0 }), true},
		{"small proof", withProof(func(p *ProofConfig) { p.CollinearityChecks, p.TraceRandomizers = 4, 10 }), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

// TestConfigClone tests that Clone does not share the fee table
func TestConfigClone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()
	clone.BaseFees["credits.vy/transfer_public"] = 1
	clone.Workers = 99

	if original.BaseFees["credits.vy/transfer_public"] == 1 {
		t.Error("Clone shares the fee table with the original")
	}
	if original.Workers == 99 {
		t.Error("Clone shares fields with the original")
	}
}

// TestLoadConfig tests file loading and environment overrides
func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("network: devnet\nworkers: 2\nproof:\n  collinearity_checks: 8\n  trace_randomizers: 18\nbase_fees:\n  credits.vy/transfer_public: 7\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("VYBIUM_WORKERS", "3")
	t.Setenv("VYBIUM_METRICS", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "devnet" {
		t.Errorf("Network = %q, want devnet", cfg.Network)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want env override 3", cfg.Workers)
	}
	if cfg.Metrics {
		t.Error("Metrics should be disabled by the environment")
	}
	if cfg.BaseFees["credits.vy/transfer_public"] != 7 {
		t.Errorf("fee table not loaded: %v", cfg.BaseFees)
	}
	if cfg.Proof.CollinearityChecks != 8 || cfg.Proof.TraceRandomizers != 18 || cfg.Proof.FinalDegree != 8 {
		t.Errorf("proof section not merged over defaults: %+v", cfg.Proof)
	}
	if cfg.ExecuteMaxBody != 32*1024 {
		t.Errorf("unset fields should keep defaults, ExecuteMaxBody = %d", cfg.ExecuteMaxBody)
	}

	t.Setenv("VYBIUM_WORKERS", "many")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed VYBIUM_WORKERS")
	}
}
