// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ingestconfig loads the TOML configuration file gridflow is
// started with. The struct layout mirrors the original Rust config.rs
// field for field; only the loading mechanics (go-toml/v2 instead of
// serde+toml) differ.
package ingestconfig

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// SinkKind selects which concrete sink a pipeline is wired to.
type SinkKind string

const (
	SinkKindILP    SinkKind = "ilp"
	SinkKindPgwire SinkKind = "pgwire"
)

// QuestDBConfig describes how to reach the downstream store, over both
// wire protocols this repo speaks.
type QuestDBConfig struct {
	URI            string `toml:"uri"`
	MaxConnections int    `toml:"max_connections"`
	ILPTCPAddr     string `toml:"ilp_tcp_addr"`
}

const defaultILPTCPAddr = "127.0.0.1:9009"

// HTTPSourceConfig configures one pipeline's HTTP intake: bind address,
// inbound queue capacity, optional bearer auth, and the size caps spec §6
// names explicitly.
type HTTPSourceConfig struct {
	HTTPBindAddr     string  `toml:"http_bind_addr"`
	ChannelCapacity  int     `toml:"channel_capacity"`
	AuthBearerToken  *string `toml:"auth_bearer_token"`
	MaxBodyBytes     int64   `toml:"max_body_bytes"`
	MaxRequestRecords int    `toml:"max_request_records"`
	MaxLineBytes     int64   `toml:"max_line_bytes"`
	NDJSONStrict     bool    `toml:"ndjson_strict"`
}

const (
	defaultMaxBodyBytes      = 10 * 1024 * 1024
	defaultMaxRequestRecords = 5000
	defaultMaxLineBytes      = 1024 * 1024
	defaultSinkWorkers       = 1
)

// SinkConfig configures one pipeline's sink: which implementation, how
// many parallel workers (ILP connections), batch size, and retry budget.
type SinkConfig struct {
	Kind           SinkKind `toml:"kind"`
	Workers        int      `toml:"workers"`
	BatchSize      int      `toml:"batch_size"`
	MaxRetries     uint32   `toml:"max_retries"`
	RetryBackoffMS uint64   `toml:"retry_backoff_ms"`
}

// PipelineConfig names one of the two pipelines and configures its source
// and sink.
type PipelineConfig struct {
	Name   string           `toml:"name"`
	Source HTTPSourceConfig `toml:"source"`
	Sink   SinkConfig       `toml:"sink"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	BindAddr string `toml:"bind_addr"`
}

// AppConfig is the top-level document loaded from the TOML file named by
// INGEST_CONFIG (default ingest-config.toml).
type AppConfig struct {
	QuestDB          QuestDBConfig   `toml:"questdb"`
	MeterUsage       PipelineConfig  `toml:"meter_usage"`
	GenerationOutput PipelineConfig  `toml:"generation_output"`
	Metrics          *MetricsConfig  `toml:"metrics"`
}

// Load reads the path named by INGEST_CONFIG (default ingest-config.toml),
// parses it as TOML, and fills in the same defaults the Rust config.rs
// applied via serde(default = ...): ilp_tcp_addr, the three HTTP size caps,
// sink.kind (ilp), and sink.workers.
func Load() (*AppConfig, error) {
	path := os.Getenv("INGEST_CONFIG")
	if path == "" {
		path = "ingest-config.toml"
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg AppConfig
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg.MeterUsage)
	applyDefaults(&cfg.GenerationOutput)
	if cfg.QuestDB.ILPTCPAddr == "" {
		cfg.QuestDB.ILPTCPAddr = defaultILPTCPAddr
	}

	return &cfg, nil
}

func applyDefaults(p *PipelineConfig) {
	if p.Source.MaxBodyBytes == 0 {
		p.Source.MaxBodyBytes = defaultMaxBodyBytes
	}
	if p.Source.MaxRequestRecords == 0 {
		p.Source.MaxRequestRecords = defaultMaxRequestRecords
	}
	if p.Source.MaxLineBytes == 0 {
		p.Source.MaxLineBytes = defaultMaxLineBytes
	}
	if p.Sink.Kind == "" {
		p.Sink.Kind = SinkKindILP
	}
	if p.Sink.Workers == 0 {
		p.Sink.Workers = defaultSinkWorkers
	}
}
