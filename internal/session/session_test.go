package session

import (
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestStartIngestStopRowCount(t *testing.T) {
	s := New([]string{"ShortRMS", "LongRMS"})
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.Start(base); err != nil {
		t.Fatalf("start: %v", err)
	}

	raw := []float64{0.25, -0.5, 0.75}
	for i, v := range raw {
		if i == 1 {
			s.Observe(0, 0.4)
		}
		s.Ingest(v, base.Add(time.Duration(i)*10*time.Millisecond))
	}

	export, err := s.Stop(base.Add(time.Second))
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if export.Rows != len(raw) {
		t.Fatalf("rows: %d, want %d", export.Rows, len(raw))
	}

	records, err := csv.NewReader(strings.NewReader(export.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	if len(records) != len(raw)+1 {
		t.Fatalf("csv lines: %d", len(records))
	}
	header := strings.Join(records[0], ",")
	if header != "Time,EMG,ShortRMS,LongRMS" {
		t.Fatalf("header: %s", header)
	}
	for i, want := range raw {
		got, err := strconv.ParseFloat(records[i+1][1], 64)
		if err != nil {
			t.Fatalf("row %d raw parse: %v", i, err)
		}
		if got != want {
			t.Fatalf("row %d raw: %v, want %v", i, got, want)
		}
	}
	// Stage 1 saw no emission before row 0; stage 2 never emitted.
	if records[1][2] != "0" {
		t.Fatalf("row 0 ShortRMS placeholder: %s", records[1][2])
	}
	if records[2][2] != "0.4" {
		t.Fatalf("row 1 ShortRMS: %s", records[2][2])
	}
	for i := 1; i <= len(raw); i++ {
		if records[i][3] != "0" {
			t.Fatalf("row %d LongRMS placeholder: %s", i-1, records[i][3])
		}
	}

	if s.State() != StateIdle {
		t.Fatalf("state after stop: %s", s.State())
	}
	if s.Len() != 0 {
		t.Fatalf("sequences must be cleared after stop, len=%d", s.Len())
	}
}

func TestStopIdleIsNotRecordingError(t *testing.T) {
	s := New([]string{"ShortRMS"})
	if _, err := s.Stop(time.Now()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
	if s.Len() != 0 || s.State() != StateIdle {
		t.Fatalf("stop on idle must not alter state")
	}
}

func TestStartWhileActive(t *testing.T) {
	s := New(nil)
	if err := s.Start(time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(time.Now()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestIngestWhileIdleIgnored(t *testing.T) {
	s := New([]string{"ShortRMS"})
	s.Observe(0, 1.0)
	s.Ingest(0.5, time.Now())
	if s.Len() != 0 {
		t.Fatalf("idle session must not capture samples")
	}
}

func TestElapsedTimesAreRelative(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.Start(base); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Ingest(0.1, base.Add(250*time.Millisecond))
	export, err := s.Stop(base.Add(time.Second))
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(export.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	if records[1][0] != "0.25" {
		t.Fatalf("elapsed time: %s, want 0.25", records[1][0])
	}
}

func TestRestartResetsCapture(t *testing.T) {
	s := New([]string{"ShortRMS"})
	base := time.Now()
	_ = s.Start(base)
	s.Observe(0, 2.0)
	s.Ingest(1.0, base)
	if _, err := s.Stop(base); err != nil {
		t.Fatalf("stop: %v", err)
	}
	_ = s.Start(base)
	s.Ingest(0.5, base)
	export, err := s.Stop(base)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if export.Rows != 1 {
		t.Fatalf("rows after restart: %d", export.Rows)
	}
	records, _ := csv.NewReader(strings.NewReader(export.CSV)).ReadAll()
	// Latest stage values must not leak across sessions.
	if records[1][2] != "0" {
		t.Fatalf("stage value leaked across sessions: %s", records[1][2])
	}
}
