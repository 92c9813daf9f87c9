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

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string         `json:"log_level" yaml:"log_level"`
	LogFormat string         `json:"log_format" yaml:"log_format"`
	Ingest    IngestConfig   `json:"ingest" yaml:"ingest"`
	Analysis  AnalysisConfig `json:"analysis" yaml:"analysis"`
	Decision  DecisionConfig `json:"decision" yaml:"decision"`
	Workers   WorkerConfig   `json:"workers" yaml:"workers"`
	API       APIConfig      `json:"api" yaml:"api"`
	Storage   StorageConfig  `json:"storage" yaml:"storage"`
	Alerts    AlertsConfig   `json:"alerts" yaml:"alerts"`
	Sessions  SessionsConfig `json:"sessions" yaml:"sessions"`
}

type IngestConfig struct {
	ChannelBuffer int          `json:"channel_buffer" yaml:"channel_buffer"`
	REST          RESTConfig   `json:"rest" yaml:"rest"`
	Kafka         KafkaConfig  `json:"kafka" yaml:"kafka"`
	Replay        ReplayConfig `json:"replay" yaml:"replay"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type ReplayConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	StartAtEnd bool     `json:"start_at_end" yaml:"start_at_end"`
	Files      []string `json:"files" yaml:"files"`
}

// AnalysisConfig carries the risk analyzer thresholds. Defaults reproduce the
// production scoring constants; every contribution is bounded and the summed
// score is clamped to [0,1].
type AnalysisConfig struct {
	MinKeystrokes      int     `json:"min_keystrokes" yaml:"min_keystrokes"`
	MinPointerEvents   int     `json:"min_pointer_events" yaml:"min_pointer_events"`
	TypingDeviation    float64 `json:"typing_deviation" yaml:"typing_deviation"`
	TypingWeight       float64 `json:"typing_weight" yaml:"typing_weight"`
	PointerDeviation   float64 `json:"pointer_deviation" yaml:"pointer_deviation"`
	PointerWeight      float64 `json:"pointer_weight" yaml:"pointer_weight"`
	OffHoursUsageFloor float64 `json:"off_hours_usage_floor" yaml:"off_hours_usage_floor"`
	OffHoursConfidence float64 `json:"off_hours_confidence" yaml:"off_hours_confidence"`
	OffHoursWeight     float64 `json:"off_hours_weight" yaml:"off_hours_weight"`
	BaseRisk           float64 `json:"base_risk" yaml:"base_risk"`
	TriggerKeystrokes  int     `json:"trigger_keystrokes" yaml:"trigger_keystrokes"`
	AlertThreshold     float64 `json:"alert_threshold" yaml:"alert_threshold"`
	AlertHighSeverity  float64 `json:"alert_high_severity" yaml:"alert_high_severity"`
}

type DecisionConfig struct {
	BlockThreshold float64 `json:"block_threshold" yaml:"block_threshold"`
	FlagThreshold  float64 `json:"flag_threshold" yaml:"flag_threshold"`
	LargeAmount    float64 `json:"large_amount" yaml:"large_amount"`
	DefaultRisk    float64 `json:"default_risk" yaml:"default_risk"`
}

type WorkerConfig struct {
	Count     int `json:"count" yaml:"count"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`
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

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type SessionsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			REST:          RESTConfig{Enabled: true, Addr: ":8080"},
			Kafka:         KafkaConfig{Enabled: false},
			Replay:        ReplayConfig{Enabled: false, StartAtEnd: false},
		},
		Analysis: AnalysisConfig{
			MinKeystrokes:      6,
			MinPointerEvents:   11,
			TypingDeviation:    0.3,
			TypingWeight:       0.2,
			PointerDeviation:   0.4,
			PointerWeight:      0.15,
			OffHoursUsageFloor: 0.1,
			OffHoursConfidence: 0.5,
			OffHoursWeight:     0.1,
			BaseRisk:           0.05,
			TriggerKeystrokes:  10,
			AlertThreshold:     0.7,
			AlertHighSeverity:  0.8,
		},
		Decision: DecisionConfig{
			BlockThreshold: 0.8,
			FlagThreshold:  0.6,
			LargeAmount:    10000,
			DefaultRisk:    0.5,
		},
		Workers:  WorkerConfig{Count: 2, QueueSize: 256},
		API:      APIConfig{Enabled: true, Addr: ":8081"},
		Storage:  StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:biogate.db?_pragma=busy_timeout(5000)"},
		Alerts:   AlertsConfig{StoreLimit: 1000},
		Sessions: SessionsConfig{StoreLimit: 5000},
	}
}

// envOverrides are applied on top of whatever the config file supplied, so a
// deployment can point the same file at a different broker or database.
type envOverrides struct {
	LogLevel    string `env:"BIOGATE_LOG_LEVEL"`
	LogFormat   string `env:"BIOGATE_LOG_FORMAT"`
	RESTAddr    string `env:"BIOGATE_REST_ADDR"`
	APIAddr     string `env:"BIOGATE_API_ADDR"`
	KafkaBroker string `env:"BIOGATE_KAFKA_BROKERS"`
	StorageDSN  string `env:"BIOGATE_STORAGE_DSN"`
	Driver      string `env:"BIOGATE_STORAGE_DRIVER"`
}

func ApplyEnv(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env overrides: %w", err)
	}
	if ov.LogLevel != "" {
		cfg.LogLevel = ov.LogLevel
	}
	if ov.LogFormat != "" {
		cfg.LogFormat = ov.LogFormat
	}
	if ov.RESTAddr != "" {
		cfg.Ingest.REST.Addr = ov.RESTAddr
	}
	if ov.APIAddr != "" {
		cfg.API.Addr = ov.APIAddr
	}
	if ov.KafkaBroker != "" {
		cfg.Ingest.Kafka.Brokers = strings.Split(ov.KafkaBroker, ",")
	}
	if ov.StorageDSN != "" {
		cfg.Storage.DSN = ov.StorageDSN
	}
	if ov.Driver != "" {
		cfg.Storage.Driver = ov.Driver
	}
	return nil
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
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
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
	def := DefaultConfig()
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = def.Ingest.ChannelBuffer
	}
	if cfg.Analysis.MinKeystrokes <= 0 {
		cfg.Analysis.MinKeystrokes = def.Analysis.MinKeystrokes
	}
	if cfg.Analysis.MinPointerEvents <= 0 {
		cfg.Analysis.MinPointerEvents = def.Analysis.MinPointerEvents
	}
	if cfg.Analysis.TriggerKeystrokes <= 0 {
		cfg.Analysis.TriggerKeystrokes = def.Analysis.TriggerKeystrokes
	}
	if cfg.Analysis.AlertThreshold <= 0 {
		cfg.Analysis.AlertThreshold = def.Analysis.AlertThreshold
	}
	if cfg.Analysis.AlertHighSeverity <= 0 {
		cfg.Analysis.AlertHighSeverity = def.Analysis.AlertHighSeverity
	}
	if cfg.Decision.DefaultRisk <= 0 {
		cfg.Decision.DefaultRisk = def.Decision.DefaultRisk
	}
	if cfg.Decision.LargeAmount <= 0 {
		cfg.Decision.LargeAmount = def.Decision.LargeAmount
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = def.Workers.Count
	}
	if cfg.Workers.QueueSize <= 0 {
		cfg.Workers.QueueSize = def.Workers.QueueSize
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = def.Alerts.StoreLimit
	}
	if cfg.Sessions.StoreLimit <= 0 {
		cfg.Sessions.StoreLimit = def.Sessions.StoreLimit
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.Replay.Enabled && len(cfg.Ingest.Replay.Files) == 0 {
		return errors.New("ingest.replay.files required when ingest.replay.enabled is true")
	}
	if cfg.Decision.BlockThreshold <= cfg.Decision.FlagThreshold {
		return errors.New("decision.block_threshold must exceed decision.flag_threshold")
	}
	if cfg.Decision.DefaultRisk < 0 || cfg.Decision.DefaultRisk > 1 {
		return errors.New("decision.default_risk must be within [0,1]")
	}
	if cfg.Analysis.BaseRisk < 0 || cfg.Analysis.BaseRisk > 1 {
		return errors.New("analysis.base_risk must be within [0,1]")
	}
	if cfg.Analysis.AlertHighSeverity < cfg.Analysis.AlertThreshold {
		return errors.New("analysis.alert_high_severity must not be below analysis.alert_threshold")
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

// NewStaticManager wraps a fixed config with no backing file, for tests and
// embedded use.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	applyDefaults(cfg)
	m.cfg.Store(cfg)
	return m
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

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
		if info, err := os.Stat(m.path); err == nil {
			m.modTime = info.ModTime()
		}
	}
	m.cfg.Store(cfg)
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
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
