package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateRejectsBadCascade(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cascade.Stages[0].Size = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for window size 0")
	}

	cfg = DefaultConfig()
	cfg.Cascade.Stages[0].Advance = "hopping"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for invalid advance policy")
	}

	cfg = DefaultConfig()
	cfg.Cascade.Stages[0].Smoothing = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for smoothing outside [0,1]")
	}

	cfg = DefaultConfig()
	cfg.Cascade.IntervalMax.Interval = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for zero interval on enabled top stage")
	}
}

func TestValidateRejectsZeroScale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decoder.Scale = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for zero decoder scale")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emgstream.yaml")
	doc := strings.Join([]string{
		"log_level: debug",
		"cascade:",
		"  stages:",
		"    - size: 16",
		"      centering: true",
	}, "\n")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
	if len(cfg.Cascade.Stages) != 1 {
		t.Fatalf("stages: %+v", cfg.Cascade.Stages)
	}
	stage := cfg.Cascade.Stages[0]
	if stage.Size != 16 || stage.Advance != "tumbling" || stage.Name != "Stage1" {
		t.Fatalf("stage defaults: %+v", stage)
	}
	if cfg.History.Capacity != 512 {
		t.Fatalf("history capacity default: %d", cfg.History.Capacity)
	}
	if cfg.Decoder.Offset != 2048 || cfg.Decoder.Scale != 2048 {
		t.Fatalf("decoder defaults: %+v", cfg.Decoder)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emgstream.yaml")
	cfg := DefaultConfig()
	cfg.Cascade.IntervalMax.Interval = 2 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Cascade.IntervalMax.Interval != 2*time.Second {
		t.Fatalf("interval round trip: %s", loaded.Cascade.IntervalMax.Interval)
	}
}
