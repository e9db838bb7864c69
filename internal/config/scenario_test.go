package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScenarioRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfigFile = "grid.sumocfg"
	cfg.Port = 9999
	cfg.StepLength = 0.5
	cfg.Seed = 42
	cfg.TrafficLightIDs = []string{"tl0", "tl1"}
	cfg.SettleDelay = 2 * time.Second

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := SaveScenario(path, cfg); err != nil {
		t.Fatalf("SaveScenario: %v", err)
	}

	loaded := DefaultConfig()
	if err := LoadScenario(path, loaded); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if loaded.Port != 9999 {
		t.Errorf("port = %d, want 9999", loaded.Port)
	}
	if loaded.StepLength != 0.5 {
		t.Errorf("step length = %v, want 0.5", loaded.StepLength)
	}
	if loaded.Seed != 42 {
		t.Errorf("seed = %d, want 42", loaded.Seed)
	}
	if len(loaded.TrafficLightIDs) != 2 || loaded.TrafficLightIDs[0] != "tl0" {
		t.Errorf("traffic light ids = %v, want [tl0 tl1]", loaded.TrafficLightIDs)
	}
	if loaded.SettleDelay != 2*time.Second {
		t.Errorf("settle delay = %v, want 2s", loaded.SettleDelay)
	}
}

func TestScenarioPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("port: 8900\nname: partial\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadScenario(path, cfg); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if cfg.Port != 8900 {
		t.Errorf("port = %d, want 8900", cfg.Port)
	}
	if cfg.Name != "partial" {
		t.Errorf("name = %q, want partial", cfg.Name)
	}
	// Untouched fields keep defaults.
	if cfg.StartRetries != 10 {
		t.Errorf("start retries = %d, want default 10", cfg.StartRetries)
	}
	if cfg.Binary != "sumo" {
		t.Errorf("binary = %q, want default sumo", cfg.Binary)
	}
}

func TestScenarioUnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("prot: 8900\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadScenario(path, DefaultConfig()); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestScenarioMissingFile(t *testing.T) {
	if err := LoadScenario("/nonexistent/scenario.yaml", DefaultConfig()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
