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

// Package main is the one-shot file backfill runner: it replays an NDJSON,
// CSV, or pipe-delimited .dat file through the same validation transform
// and SQL sink the live daemon uses, so a historical file and a live HTTP
// batch are indistinguishable once they reach the sink. One run handles
// one file of one record kind, same as the three original Rust binaries
// (backfill_meter_usage, backfill_meter_usage_dat, and their generation
// counterparts) this consolidates.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestconfig"
	"gridflow/internal/ingestfile"
	"gridflow/internal/ingesthttp"
	"gridflow/internal/ingestpipeline"
	"gridflow/internal/ingestrecord"
	"gridflow/internal/ingestsql"
	"gridflow/internal/ingesttransform"
)

func main() {
	kind := flag.String("kind", "meter_usage", "record kind to backfill: meter_usage or generation_output")
	format := flag.String("format", "", "file format: ndjson, csv, or dat (default: inferred from the file extension)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: backfill [-kind meter_usage|generation_output] [-format ndjson|csv|dat] <file_path>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := ingestconfig.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := sql.Open("postgres", cfg.QuestDB.URI)
	if err != nil {
		log.WithError(err).Fatal("failed to open QuestDB pgwire connection")
	}
	db.SetMaxOpenConns(cfg.QuestDB.MaxConnections)
	defer db.Close()

	resolvedFormat := *format
	if resolvedFormat == "" {
		resolvedFormat = formatFromExtension(path)
	}

	ctx := context.Background()

	switch *kind {
	case "meter_usage":
		if err := runMeterUsageBackfill(ctx, db, cfg, path, resolvedFormat, log); err != nil {
			log.WithError(err).Fatal("meter_usage backfill failed")
		}
	case "generation_output":
		if err := runGenerationBackfill(ctx, db, cfg, path, resolvedFormat, log); err != nil {
			log.WithError(err).Fatal("generation_output backfill failed")
		}
	default:
		log.Fatalf("unknown kind %q: expected meter_usage or generation_output", *kind)
	}
}

func formatFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".dat":
		return "dat"
	default:
		return "ndjson"
	}
}

func runMeterUsageBackfill(ctx context.Context, db *sql.DB, cfg *ingestconfig.AppConfig, path, format string, log *logrus.Logger) error {
	var source ingestpipeline.Source[ingestrecord.MeterReading]
	switch format {
	case "csv":
		source = ingestfile.NewCSVSource[ingestrecord.MeterReading](path, ingestfile.BuildMeterReading)
	case "dat":
		source = ingestfile.NewDATSource[ingestrecord.MeterReading](path, ingestfile.BuildMeterReading)
	default:
		source = ingestfile.NewNDJSONSource[ingestrecord.MeterReading](path, func(line []byte) (ingestrecord.MeterReading, error) {
			return ingesthttp.DecodeMeterReading(json.RawMessage(line))
		})
	}

	sinkCfg := cfg.MeterUsage.Sink
	sink := ingestsql.NewSink[ingestrecord.MeterReading](db, ingestsql.Config{
		Table:        "meter_usage",
		Columns:      ingestsql.MeterUsageColumns,
		BatchSize:    sinkCfg.BatchSize,
		MaxRetries:   sinkCfg.MaxRetries,
		RetryBackoff: time.Duration(sinkCfg.RetryBackoffMS) * time.Millisecond,
	}, ingestsql.MeterUsageRow, noopCounter, log.WithField("sink", "backfill_meter_usage"))

	pipeline := ingestpipeline.Pipeline[ingestrecord.MeterReading]{
		Name:       "backfill_meter_usage",
		Source:     source,
		Transforms: []ingestpipeline.Transform[ingestrecord.MeterReading]{ingesttransform.MeterReadingValidation{}},
		Sink:       sink,
		Log:        log.WithField("pipeline", "backfill_meter_usage"),
	}
	if perr := pipeline.Run(ctx); perr != nil {
		return perr
	}
	return nil
}

func runGenerationBackfill(ctx context.Context, db *sql.DB, cfg *ingestconfig.AppConfig, path, format string, log *logrus.Logger) error {
	var source ingestpipeline.Source[ingestrecord.GenerationSample]
	switch format {
	case "csv":
		source = ingestfile.NewCSVSource[ingestrecord.GenerationSample](path, ingestfile.BuildGenerationSample)
	case "dat":
		source = ingestfile.NewDATSource[ingestrecord.GenerationSample](path, ingestfile.BuildGenerationSample)
	default:
		source = ingestfile.NewNDJSONSource[ingestrecord.GenerationSample](path, func(line []byte) (ingestrecord.GenerationSample, error) {
			return ingesthttp.DecodeGenerationSample(json.RawMessage(line))
		})
	}

	sinkCfg := cfg.GenerationOutput.Sink
	sink := ingestsql.NewSink[ingestrecord.GenerationSample](db, ingestsql.Config{
		Table:        "generation_output",
		Columns:      ingestsql.GenerationOutputColumns,
		BatchSize:    sinkCfg.BatchSize,
		MaxRetries:   sinkCfg.MaxRetries,
		RetryBackoff: time.Duration(sinkCfg.RetryBackoffMS) * time.Millisecond,
	}, ingestsql.GenerationOutputRow, noopCounter, log.WithField("sink", "backfill_generation_output"))

	pipeline := ingestpipeline.Pipeline[ingestrecord.GenerationSample]{
		Name:       "backfill_generation_output",
		Source:     source,
		Transforms: []ingestpipeline.Transform[ingestrecord.GenerationSample]{ingesttransform.GenerationSampleValidation{}},
		Sink:       sink,
		Log:        log.WithField("pipeline", "backfill_generation_output"),
	}
	if perr := pipeline.Run(ctx); perr != nil {
		return perr
	}
	return nil
}

// noopCounter is passed as the sink's error counter: a one-shot CLI run
// has no Prometheus scrape to report to, and a failed batch already
// surfaces as a fatal PipelineError and non-zero exit status.
func noopCounter() {}
