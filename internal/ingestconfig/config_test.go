package ingestconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest-config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[questdb]
uri = "postgres://localhost:8812/qdb"

[meter_usage]
name = "meter_usage"
[meter_usage.source]
http_bind_addr = ":8080"
[meter_usage.sink]

[generation_output]
name = "generation_output"
[generation_output.source]
http_bind_addr = ":8081"
[generation_output.sink]
`)
	t.Setenv("INGEST_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.QuestDB.ILPTCPAddr != defaultILPTCPAddr {
		t.Fatalf("expected default ilp_tcp_addr %q, got %q", defaultILPTCPAddr, cfg.QuestDB.ILPTCPAddr)
	}
	if cfg.MeterUsage.Source.MaxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("expected default max_body_bytes %d, got %d", defaultMaxBodyBytes, cfg.MeterUsage.Source.MaxBodyBytes)
	}
	if cfg.MeterUsage.Sink.Kind != SinkKindILP {
		t.Fatalf("expected default sink kind %q, got %q", SinkKindILP, cfg.MeterUsage.Sink.Kind)
	}
	if cfg.MeterUsage.Sink.Workers != defaultSinkWorkers {
		t.Fatalf("expected default workers %d, got %d", defaultSinkWorkers, cfg.MeterUsage.Sink.Workers)
	}
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := writeConfig(t, `
[questdb]
uri = "postgres://localhost:8812/qdb"
ilp_tcp_addr = "questdb:9009"

[meter_usage]
name = "meter_usage"
[meter_usage.source]
http_bind_addr = ":8080"
max_body_bytes = 2048
[meter_usage.sink]
kind = "pgwire"
workers = 4

[generation_output]
name = "generation_output"
[generation_output.source]
http_bind_addr = ":8081"
[generation_output.sink]
`)
	t.Setenv("INGEST_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.QuestDB.ILPTCPAddr != "questdb:9009" {
		t.Fatalf("expected explicit ilp_tcp_addr to survive, got %q", cfg.QuestDB.ILPTCPAddr)
	}
	if cfg.MeterUsage.Source.MaxBodyBytes != 2048 {
		t.Fatalf("expected explicit max_body_bytes to survive, got %d", cfg.MeterUsage.Source.MaxBodyBytes)
	}
	if cfg.MeterUsage.Sink.Kind != SinkKindPgwire {
		t.Fatalf("expected explicit sink kind to survive, got %q", cfg.MeterUsage.Sink.Kind)
	}
	if cfg.MeterUsage.Sink.Workers != 4 {
		t.Fatalf("expected explicit workers to survive, got %d", cfg.MeterUsage.Sink.Workers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("INGEST_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
