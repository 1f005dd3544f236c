package dsp

import (
	"math"
	"testing"
	"time"

	"emgstream/internal/config"
)

func TestCascadeStageChaining(t *testing.T) {
	c, err := NewCascade(config.CascadeConfig{
		Stages: []config.StageConfig{
			{Name: "ShortRMS", Size: 2, Advance: "tumbling"},
			{Name: "LongRMS", Size: 2, Advance: "tumbling"},
		},
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	now := time.Now()

	if ems := c.Push(1, now); len(ems) != 0 {
		t.Fatalf("unexpected emissions on first input: %v", ems)
	}
	ems := c.Push(1, now)
	if len(ems) != 1 || ems[0].Stage != 0 {
		t.Fatalf("expected stage 1 emission only, got %v", ems)
	}
	c.Push(1, now)
	ems = c.Push(1, now)
	if len(ems) != 2 {
		t.Fatalf("expected stage 1 and stage 2 emissions, got %v", ems)
	}
	if ems[1].Name != "LongRMS" || math.Abs(ems[1].Value-1.0) > 1e-12 {
		t.Fatalf("stage 2 emission: %+v", ems[1])
	}

	latest := c.Latest()
	if len(latest) != 2 || math.Abs(latest[1]-1.0) > 1e-12 {
		t.Fatalf("latest: %v", latest)
	}
}

func TestCascadeIntervalMaxTop(t *testing.T) {
	c, err := NewCascade(config.CascadeConfig{
		Stages: []config.StageConfig{
			{Name: "ShortRMS", Size: 1, Advance: "tumbling"},
		},
		IntervalMax: config.IntervalMaxConfig{Enabled: true, Name: "MaxRMS", Interval: 1 * time.Second},
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if got := c.Stages(); len(got) != 2 || got[1] != "MaxRMS" {
		t.Fatalf("stages: %v", got)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.Push(0.5, base)
	c.Push(0.8, base.Add(300*time.Millisecond))
	ems := c.Push(0.2, base.Add(1200*time.Millisecond))
	var topValue float64
	var found bool
	for _, em := range ems {
		if em.Name == "MaxRMS" {
			topValue = em.Value
			found = true
		}
	}
	if !found {
		t.Fatalf("expected top stage emission, got %v", ems)
	}
	if math.Abs(topValue-0.8) > 1e-12 {
		t.Fatalf("top stage max: got %v, want 0.8", topValue)
	}
}

func TestCascadeReset(t *testing.T) {
	c, err := NewCascade(config.CascadeConfig{
		Stages: []config.StageConfig{{Name: "S", Size: 2, Advance: "tumbling"}},
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	now := time.Now()
	c.Push(1, now)
	c.Push(1, now)
	c.Reset()
	if latest := c.Latest(); latest[0] != 0 {
		t.Fatalf("latest after reset: %v", latest)
	}
	if ems := c.Push(1, now); len(ems) != 0 {
		t.Fatalf("buffer must be empty after reset, got emissions %v", ems)
	}
}

func TestCascadeRejectsBadStage(t *testing.T) {
	_, err := NewCascade(config.CascadeConfig{
		Stages: []config.StageConfig{{Name: "S", Size: 0, Advance: "tumbling"}},
	})
	if err == nil {
		t.Fatalf("expected construction error for size 0")
	}
}
