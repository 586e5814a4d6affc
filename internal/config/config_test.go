package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParsePolicy_OverlaysDefaults(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
partial_threshold: 0.75
min_payout: "250.00"
clearance_hold: 48h
urgency_slots: 2
company_rates:
  company2:
    platform_rate: 5
    agent_rate: 15
  company3:
    platform_rate: 8
`))
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	if !policy.PartialThreshold.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("Expected partial threshold 0.75, got %s", policy.PartialThreshold)
	}
	if !policy.MinPayout.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected min payout 250, got %s", policy.MinPayout)
	}
	if policy.ClearanceHold != 48*time.Hour || policy.UrgencySlots != 2 {
		t.Errorf("Expected 48h hold and 2 urgency slots, got %s and %d", policy.ClearanceHold, policy.UrgencySlots)
	}
	if !policy.EarlyCloseThreshold.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("Expected default early close threshold, got %s", policy.EarlyCloseThreshold)
	}

	r2 := policy.RatesFor("company2")
	if !r2.PlatformRate.Equal(decimal.NewFromInt(5)) || !r2.AgentRate.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Unexpected company2 rates: %+v", r2)
	}
	r3 := policy.RatesFor("company3")
	if !r3.PlatformRate.Equal(decimal.NewFromInt(8)) || !r3.AgentRate.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected company3 to keep the default agent rate, got %+v", r3)
	}
	if r := policy.RatesFor("other"); !r.PlatformRate.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected default platform rate for unknown company, got %s", r.PlatformRate)
	}
}

func TestParsePolicy_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"threshold above one", "partial_threshold: 1.5"},
		{"zero early close", "early_close_threshold: 0"},
		{"rates above 100", "platform_rate: 60\nagent_rate: 50"},
		{"negative company rate", "company_rates:\n  c1:\n    agent_rate: -1"},
		{"bad decimal", "min_payout: lots"},
		{"inverted capacity", "min_members: 10\nmax_members: 5"},
		{"unknown key", "partial_treshold: 0.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePolicy([]byte(tt.yaml)); err == nil {
				t.Errorf("Expected error for %q", tt.yaml)
			}
		})
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "policy.yaml")

	policy, err := LoadPolicy(missing, false)
	if err != nil {
		t.Fatalf("Expected defaults for missing optional file, got %v", err)
	}
	if policy.UrgencySlots != 3 {
		t.Errorf("Expected default urgency slots, got %d", policy.UrgencySlots)
	}

	if _, err := LoadPolicy(missing, true); err == nil {
		t.Error("Expected error for missing required file")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte("min_payout: 50\n"), 0o600); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	t.Setenv("POLICY_FILE", policyPath)
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "test.db"))
	t.Setenv("SWEEP_URGENCY_INTERVAL", "5m")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sweeps.UrgencyInterval != 5*time.Minute || cfg.Sweeps.DeadlineInterval != 2*time.Minute {
		t.Errorf("Unexpected sweep intervals: %+v", cfg.Sweeps)
	}
	if !cfg.Redis.Enabled {
		t.Error("Expected redis enabled when REDIS_ADDR is set")
	}
	if !cfg.Policy.MinPayout.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected policy min payout 50, got %s", cfg.Policy.MinPayout)
	}

	t.Setenv("SWEEP_DEADLINE_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid duration")
	}
}
