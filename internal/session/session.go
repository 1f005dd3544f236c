package session

import (
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"time"

	"emgstream/internal/model"
)

var (
	// ErrNotRecording is returned by Stop while Idle; it is a no-op, no
	// buffer is touched.
	ErrNotRecording = errors.New("no recording in progress")
	// ErrAlreadyRecording is returned by Start while Active.
	ErrAlreadyRecording = errors.New("recording already in progress")
)

type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// Session captures aligned multi-channel time series while Active: the raw
// sample sequence, the elapsed time of each sample since Start, and the
// latest emission of every cascade stage at that instant. Stages that have
// not emitted since Start contribute the placeholder 0. Stop serializes
// the capture as CSV and resets to Idle.
//
// A Session is exclusively owned by the pipeline worker; it has no
// internal locking.
type Session struct {
	state      State
	stageNames []string
	startedAt  time.Time
	times      []float64
	raw        []float64
	derived    [][]float64
	latest     []float64
}

func New(stageNames []string) *Session {
	names := make([]string, len(stageNames))
	copy(names, stageNames)
	return &Session{
		state:      StateIdle,
		stageNames: names,
		latest:     make([]float64, len(names)),
	}
}

func (s *Session) Active() bool {
	return s.state == StateActive
}

func (s *Session) State() State {
	return s.state
}

// Start resets all owned sequences and the start-time reference.
func (s *Session) Start(now time.Time) error {
	if s.state == StateActive {
		return ErrAlreadyRecording
	}
	s.state = StateActive
	s.startedAt = now
	s.times = nil
	s.raw = nil
	s.derived = make([][]float64, len(s.stageNames))
	s.latest = make([]float64, len(s.stageNames))
	return nil
}

// Observe records a stage emission so that subsequent Ingest calls carry
// it. Ignored while Idle.
func (s *Session) Observe(stage int, value float64) {
	if s.state != StateActive || stage < 0 || stage >= len(s.latest) {
		return
	}
	s.latest[stage] = value
}

// Ingest appends one raw sample with its elapsed time and the per-stage
// values available at this instant, index-aligned. Ignored while Idle.
func (s *Session) Ingest(sample float64, now time.Time) {
	if s.state != StateActive {
		return
	}
	s.times = append(s.times, now.Sub(s.startedAt).Seconds())
	s.raw = append(s.raw, sample)
	for i := range s.derived {
		s.derived[i] = append(s.derived[i], s.latest[i])
	}
}

// Len reports the number of samples captured so far.
func (s *Session) Len() int {
	return len(s.raw)
}

// Stop finalizes the capture: it builds the export by zipping the raw
// sequence with each stage's derived sequence by index (padding short
// sequences with 0), serializes it as CSV, clears all owned sequences and
// returns to Idle. Rows are strictly in ingestion order and the row count
// equals the number of samples ingested.
func (s *Session) Stop(now time.Time) (model.Export, error) {
	if s.state != StateActive {
		return model.Export{}, ErrNotRecording
	}

	columns := make([]string, 0, 2+len(s.stageNames))
	columns = append(columns, "Time", "EMG")
	columns = append(columns, s.stageNames...)

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(columns)
	row := make([]string, len(columns))
	for i := range s.raw {
		row[0] = formatFloat(s.times[i])
		row[1] = formatFloat(s.raw[i])
		for j := range s.stageNames {
			v := 0.0
			if i < len(s.derived[j]) {
				v = s.derived[j][i]
			}
			row[2+j] = formatFloat(v)
		}
		_ = w.Write(row)
	}
	w.Flush()

	export := model.Export{
		StartedAt: s.startedAt,
		StoppedAt: now,
		Columns:   columns,
		Rows:      len(s.raw),
		CSV:       sb.String(),
	}

	s.state = StateIdle
	s.times = nil
	s.raw = nil
	s.derived = nil
	s.latest = make([]float64, len(s.stageNames))
	return export, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
