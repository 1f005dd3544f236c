package dsp

import (
	"fmt"
	"math"
	"time"
)

// Advance selects how a full window consumes its buffer on emission.
type Advance string

const (
	// AdvanceTumbling empties the whole buffer on emission; windows never
	// overlap.
	AdvanceTumbling Advance = "tumbling"
	// AdvanceSliding drops only the oldest element per new input once the
	// buffer is full; one emission per input from then on.
	AdvanceSliding Advance = "sliding"
)

// Window is one count-triggered RMS stage. It owns a buffer of at most
// size elements and emits exactly one value each time its advance
// condition is satisfied.
type Window struct {
	size      int
	centering bool
	advance   Advance
	alpha     float64
	buf       []float64
	prev      float64
	emitted   bool
}

func NewWindow(size int, centering bool, advance Advance, alpha float64) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be >= 1, got %d", size)
	}
	if advance != AdvanceTumbling && advance != AdvanceSliding {
		return nil, fmt.Errorf("invalid advance policy %q", advance)
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("smoothing factor must be within [0, 1], got %v", alpha)
	}
	return &Window{
		size:      size,
		centering: centering,
		advance:   advance,
		alpha:     alpha,
		buf:       make([]float64, 0, size),
	}, nil
}

// Push adds one input and reports the emitted RMS value, if any. With
// smoothing enabled the raw RMS is blended with the previous emission:
// out = alpha*raw + (1-alpha)*prev.
func (w *Window) Push(v float64) (float64, bool) {
	w.buf = append(w.buf, v)
	if len(w.buf) < w.size {
		return 0, false
	}
	out := rms(w.buf, w.centering)
	if w.advance == AdvanceTumbling {
		w.buf = w.buf[:0]
	} else {
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:w.size-1]
	}
	if w.alpha > 0 && w.emitted {
		out = w.alpha*out + (1-w.alpha)*w.prev
	}
	w.prev = out
	w.emitted = true
	return out, true
}

// Len reports the current buffer fill; never exceeds the window size.
func (w *Window) Len() int {
	return len(w.buf)
}

func (w *Window) Reset() {
	w.buf = w.buf[:0]
	w.prev = 0
	w.emitted = false
}

// rms computes sqrt(mean(v^2)), optionally subtracting the buffer mean
// first. The result is total: NaN collapses to 0.
func rms(buf []float64, centering bool) float64 {
	if len(buf) == 0 {
		return 0
	}
	var mean float64
	if centering {
		var sum float64
		for _, v := range buf {
			sum += v
		}
		mean = sum / float64(len(buf))
	}
	var sq float64
	for _, v := range buf {
		d := v - mean
		sq += d * d
	}
	out := math.Sqrt(sq / float64(len(buf)))
	if math.IsNaN(out) {
		return 0
	}
	return out
}

// IntervalMax is the time-triggered top stage: it tracks a running maximum
// of its inputs and emits it once the configured wall-clock interval has
// elapsed, then resets. An interval with zero inputs emits nothing; the
// trigger is evaluated at input time, not on a timer.
type IntervalMax struct {
	interval  time.Duration
	max       float64
	lastReset time.Time
	started   bool
}

func NewIntervalMax(interval time.Duration) (*IntervalMax, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0, got %s", interval)
	}
	return &IntervalMax{interval: interval}, nil
}

func (m *IntervalMax) Push(v float64, now time.Time) (float64, bool) {
	if !m.started {
		m.lastReset = now
		m.started = true
	}
	if v > m.max {
		m.max = v
	}
	if now.Sub(m.lastReset) < m.interval {
		return 0, false
	}
	out := m.max
	m.max = 0
	m.lastReset = now
	return out, true
}

func (m *IntervalMax) Reset() {
	m.max = 0
	m.started = false
}
