package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
decision:
  block_threshold: 0.9
  flag_threshold: 0.7
ingest:
  rest:
    enabled: true
    addr: ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level not applied: %s", cfg.LogLevel)
	}
	if cfg.Decision.BlockThreshold != 0.9 || cfg.Decision.FlagThreshold != 0.7 {
		t.Fatalf("decision thresholds not applied: %+v", cfg.Decision)
	}
	if cfg.Ingest.REST.Addr != ":9090" {
		t.Fatalf("rest addr not applied: %s", cfg.Ingest.REST.Addr)
	}
	// Unset fields fall back to defaults.
	if cfg.Analysis.TypingDeviation != 0.3 || cfg.Workers.Count != 2 {
		t.Fatalf("defaults not preserved: %+v %+v", cfg.Analysis, cfg.Workers)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"log_level":"warn","analysis":{"trigger_keystrokes":20}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Analysis.TriggerKeystrokes != 20 {
		t.Fatalf("json config not applied: %s %d", cfg.LogLevel, cfg.Analysis.TriggerKeystrokes)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decision.BlockThreshold = 0.5
	cfg.Decision.FlagThreshold = 0.6
	if err := Validate(cfg); err == nil {
		t.Fatalf("block threshold at or below flag threshold must fail")
	}
}

func TestValidateRejectsKafkaWithoutBrokers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingest.Kafka.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatalf("kafka without brokers must fail")
	}
}

func TestValidateRejectsReplayWithoutFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingest.Replay.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatalf("replay without files must fail")
	}
}

func TestManagerUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	next := *mgr.Get()
	next.Decision.FlagThreshold = 0.5
	if err := mgr.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mgr.Get().Decision.FlagThreshold != 0.5 {
		t.Fatalf("update not visible")
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Decision.FlagThreshold != 0.5 {
		t.Fatalf("update not written to disk")
	}
	bad := *mgr.Get()
	bad.Decision.BlockThreshold = 0.1
	if err := mgr.Update(&bad); err == nil {
		t.Fatalf("invalid update must be rejected")
	}
}

func TestStaticManager(t *testing.T) {
	cfg := DefaultConfig()
	mgr := NewStaticManager(cfg)
	if mgr.Path() != "" {
		t.Fatalf("static manager has no backing file")
	}
	if needs, err := mgr.NeedsReload(); err != nil || needs {
		t.Fatalf("static manager never reloads")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BIOGATE_LOG_LEVEL", "debug")
	t.Setenv("BIOGATE_KAFKA_BROKERS", "k1:9092,k2:9092")
	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level override not applied")
	}
	if len(cfg.Ingest.Kafka.Brokers) != 2 || cfg.Ingest.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("broker override not applied: %v", cfg.Ingest.Kafka.Brokers)
	}
}
