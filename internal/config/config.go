package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Decoder   DecoderConfig   `json:"decoder" yaml:"decoder"`
	Cascade   CascadeConfig   `json:"cascade" yaml:"cascade"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	API       APIConfig       `json:"api" yaml:"api"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	MaxFrameBytes int             `json:"max_frame_bytes" yaml:"max_frame_bytes"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

// DecoderConfig is the affine normalization applied to each decoded 16-bit
// sample: normalized = (raw - offset) / scale.
type DecoderConfig struct {
	Offset float64 `json:"offset" yaml:"offset"`
	Scale  float64 `json:"scale" yaml:"scale"`
}

// StageConfig describes one count-triggered window of the RMS cascade.
// Advance is "tumbling" or "sliding". Smoothing is an exponential blend
// factor in (0,1]; 0 disables smoothing.
type StageConfig struct {
	Name      string  `json:"name" yaml:"name"`
	Size      int     `json:"size" yaml:"size"`
	Centering bool    `json:"centering" yaml:"centering"`
	Advance   string  `json:"advance" yaml:"advance"`
	Smoothing float64 `json:"smoothing" yaml:"smoothing"`
}

// IntervalMaxConfig describes the optional time-triggered top stage: a
// running maximum over the preceding stage's emissions, reset every
// Interval of wall-clock time.
type IntervalMaxConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Name     string        `json:"name" yaml:"name"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

type CascadeConfig struct {
	Stages      []StageConfig     `json:"stages" yaml:"stages"`
	IntervalMax IntervalMaxConfig `json:"interval_max" yaml:"interval_max"`
}

type HistoryConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type TelemetryConfig struct {
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			ChannelBuffer: 4096,
			MaxFrameBytes: 65536,
			TCPStream:     TCPStreamConfig{Enabled: true, Addr: ":9400"},
			Kafka:         KafkaConfig{Enabled: false},
		},
		Decoder: DecoderConfig{Offset: 2048, Scale: 2048},
		Cascade: CascadeConfig{
			Stages: []StageConfig{
				{Name: "ShortRMS", Size: 32, Centering: true, Advance: "sliding", Smoothing: 0.2},
				{Name: "LongRMS", Size: 10, Centering: false, Advance: "tumbling"},
			},
			IntervalMax: IntervalMaxConfig{Enabled: true, Name: "MaxRMS", Interval: 1 * time.Second},
		},
		History:   HistoryConfig{Capacity: 512},
		API:       APIConfig{Enabled: true, Addr: ":8082"},
		Storage:   StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:emgstream.db?_pragma=busy_timeout(5000)"},
		Telemetry: TelemetryConfig{FlushInterval: 5 * time.Second},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 4096
	}
	if cfg.Ingest.MaxFrameBytes <= 0 {
		cfg.Ingest.MaxFrameBytes = 65536
	}
	if cfg.Decoder.Scale == 0 {
		cfg.Decoder.Offset = 2048
		cfg.Decoder.Scale = 2048
	}
	if len(cfg.Cascade.Stages) == 0 {
		cfg.Cascade.Stages = DefaultConfig().Cascade.Stages
	}
	for i := range cfg.Cascade.Stages {
		if cfg.Cascade.Stages[i].Name == "" {
			cfg.Cascade.Stages[i].Name = fmt.Sprintf("Stage%d", i+1)
		}
		if cfg.Cascade.Stages[i].Advance == "" {
			cfg.Cascade.Stages[i].Advance = "tumbling"
		}
	}
	if cfg.Cascade.IntervalMax.Enabled {
		if cfg.Cascade.IntervalMax.Name == "" {
			cfg.Cascade.IntervalMax.Name = "MaxRMS"
		}
		if cfg.Cascade.IntervalMax.Interval <= 0 {
			cfg.Cascade.IntervalMax.Interval = 1 * time.Second
		}
	}
	if cfg.History.Capacity <= 0 {
		cfg.History.Capacity = 512
	}
	if cfg.Telemetry.FlushInterval <= 0 {
		cfg.Telemetry.FlushInterval = 5 * time.Second
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Decoder.Scale == 0 {
		return errors.New("decoder.scale must be non-zero")
	}
	for i, stage := range cfg.Cascade.Stages {
		if stage.Size < 1 {
			return fmt.Errorf("cascade.stages[%d].size must be >= 1", i)
		}
		if stage.Advance != "tumbling" && stage.Advance != "sliding" {
			return fmt.Errorf("cascade.stages[%d].advance must be tumbling or sliding, got %q", i, stage.Advance)
		}
		if stage.Smoothing < 0 || stage.Smoothing > 1 {
			return fmt.Errorf("cascade.stages[%d].smoothing must be within [0, 1]", i)
		}
	}
	if cfg.Cascade.IntervalMax.Enabled && cfg.Cascade.IntervalMax.Interval <= 0 {
		return errors.New("cascade.interval_max.interval must be > 0")
	}
	if cfg.History.Capacity < 1 {
		return errors.New("history.capacity must be >= 1")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
