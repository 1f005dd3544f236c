package dsp

import (
	"time"

	"emgstream/internal/config"
)

// Emission is one value produced by a cascade stage during a Push.
type Emission struct {
	Stage int
	Name  string
	Value float64
}

// Cascade chains count-triggered RMS windows so that stage k+1 consumes
// exactly the emissions of stage k, with raw samples feeding stage 1. An
// optional time-triggered IntervalMax stage sits on top, consuming the
// last count stage's emissions.
type Cascade struct {
	windows []*Window
	names   []string
	top     *IntervalMax
	latest  []float64
}

func NewCascade(cfg config.CascadeConfig) (*Cascade, error) {
	c := &Cascade{}
	for _, stage := range cfg.Stages {
		w, err := NewWindow(stage.Size, stage.Centering, Advance(stage.Advance), stage.Smoothing)
		if err != nil {
			return nil, err
		}
		c.windows = append(c.windows, w)
		c.names = append(c.names, stage.Name)
	}
	if cfg.IntervalMax.Enabled {
		top, err := NewIntervalMax(cfg.IntervalMax.Interval)
		if err != nil {
			return nil, err
		}
		c.top = top
		c.names = append(c.names, cfg.IntervalMax.Name)
	}
	c.latest = make([]float64, len(c.names))
	return c, nil
}

// Push feeds one raw sample through the cascade and returns the emissions
// it produced, in stage order. A stage only sees input when every stage
// below it emitted for this sample.
func (c *Cascade) Push(sample float64, now time.Time) []Emission {
	var out []Emission
	v := sample
	for i, w := range c.windows {
		emittedValue, ok := w.Push(v)
		if !ok {
			return out
		}
		c.latest[i] = emittedValue
		out = append(out, Emission{Stage: i, Name: c.names[i], Value: emittedValue})
		v = emittedValue
	}
	if c.top != nil {
		if maxValue, ok := c.top.Push(v, now); ok {
			i := len(c.windows)
			c.latest[i] = maxValue
			out = append(out, Emission{Stage: i, Name: c.names[i], Value: maxValue})
		}
	}
	return out
}

// Stages reports the ordered stage names, top stage included.
func (c *Cascade) Stages() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Latest returns the most recent emission per stage; 0 before a stage's
// first emission.
func (c *Cascade) Latest() []float64 {
	out := make([]float64, len(c.latest))
	copy(out, c.latest)
	return out
}

func (c *Cascade) Reset() {
	for _, w := range c.windows {
		w.Reset()
	}
	if c.top != nil {
		c.top.Reset()
	}
	for i := range c.latest {
		c.latest[i] = 0
	}
}
