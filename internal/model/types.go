package model

import "time"

// StageSnapshot is the display-facing view of one cascade stage: the last
// emitted value plus a bounded history of recent emissions.
type StageSnapshot struct {
	Name    string    `json:"name"`
	Latest  float64   `json:"latest"`
	History []float64 `json:"history"`
}

// Snapshot is the read-only state published after each processed frame.
// Every slice it carries is a copy owned by the snapshot; readers never
// alias the worker's buffers.
type Snapshot struct {
	UpdatedAt     time.Time       `json:"updated_at"`
	Recording     bool            `json:"recording"`
	FramesIn      uint64          `json:"frames_in"`
	FramesDropped uint64          `json:"frames_dropped"`
	SamplesIn     uint64          `json:"samples_in"`
	Raw           []float64       `json:"raw"`
	Stages        []StageSnapshot `json:"stages"`
}

// Export is the finalized dataset of one recording session: an aligned
// tabular series of raw samples and per-stage derived values, already
// serialized as CSV. The CSV text stays in memory so the caller can retry
// persistence if the storage collaborator fails.
type Export struct {
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Columns   []string  `json:"columns"`
	Rows      int       `json:"rows"`
	CSV       string    `json:"csv"`
}

// StageMetric is one emitted cascade value, timestamped for persistence.
type StageMetric struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Value     float64   `json:"value"`
}
