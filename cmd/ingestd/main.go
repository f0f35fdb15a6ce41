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

// Package main is the ingestion daemon: it loads ingest-config.toml,
// starts the meter_usage and generation_output pipelines side by side, and
// runs until either one hits a fatal error or the process receives
// SIGINT/SIGTERM. Grounded on cmd/ratelimiter-api/main.go's
// load-flags/construct/start/signal/shutdown shape, with flags replaced by
// the TOML document ingestconfig.Load reads.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestconfig"
	"gridflow/internal/ingesthttp"
	"gridflow/internal/ingestilp"
	"gridflow/internal/ingestmetrics"
	"gridflow/internal/ingestpipeline"
	"gridflow/internal/ingestrecord"
	"gridflow/internal/ingestsql"
	"gridflow/internal/ingesttransform"
)

func main() {
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

	if cfg.Metrics != nil && cfg.Metrics.BindAddr != "" {
		ingestmetrics.StartEndpoint(cfg.Metrics.BindAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)

	meterUsageSrc, meterUsageServer := buildSource[ingestrecord.MeterReading](
		cfg.MeterUsage.Source, "meter_usage", ingestmetrics.MeterUsageHTTP, ingesthttp.DecodeMeterReading)
	generationSrc, generationServer := buildSource[ingestrecord.GenerationSample](
		cfg.GenerationOutput.Source, "generation_output", ingestmetrics.GenerationOutputHTTP, ingesthttp.DecodeGenerationSample)

	go func() {
		log.WithField("addr", cfg.MeterUsage.Source.HTTPBindAddr).Info("meter_usage HTTP source listening")
		if err := meterUsageServer.ListenAndServe(ctx); err != nil {
			errCh <- fmt.Errorf("meter_usage HTTP source: %w", err)
		}
	}()
	go func() {
		log.WithField("addr", cfg.GenerationOutput.Source.HTTPBindAddr).Info("generation_output HTTP source listening")
		if err := generationServer.ListenAndServe(ctx); err != nil {
			errCh <- fmt.Errorf("generation_output HTTP source: %w", err)
		}
	}()

	meterUsagePipeline := ingestpipeline.Pipeline[ingestrecord.MeterReading]{
		Name:       "meter_usage",
		Source:     meterUsageSrc,
		Transforms: []ingestpipeline.Transform[ingestrecord.MeterReading]{ingesttransform.MeterReadingValidation{}},
		Sink:       buildMeterUsageSink(cfg, db, log),
		Log:        log.WithField("pipeline", "meter_usage"),
	}
	generationPipeline := ingestpipeline.Pipeline[ingestrecord.GenerationSample]{
		Name:       "generation_output",
		Source:     generationSrc,
		Transforms: []ingestpipeline.Transform[ingestrecord.GenerationSample]{ingesttransform.GenerationSampleValidation{}},
		Sink:       buildGenerationSink(cfg, db, log),
		Log:        log.WithField("pipeline", "generation_output"),
	}

	go func() {
		if perr := meterUsagePipeline.Run(ctx); perr != nil {
			errCh <- fmt.Errorf("meter_usage pipeline: %w", perr)
		}
	}()
	go func() {
		if perr := generationPipeline.Run(ctx); perr != nil {
			errCh <- fmt.Errorf("generation_output pipeline: %w", perr)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Error("fatal pipeline error, shutting down")
	case <-stop:
		log.Info("shutdown signal received")
	}

	cancel()
	time.Sleep(500 * time.Millisecond)
	log.Info("gridflow ingestion daemon stopped")
}

func buildSource[T any](cfg ingestconfig.HTTPSourceConfig, kindPath string, counters ingestmetrics.HTTPCounters, decode func(json.RawMessage) (T, error)) (*ingesthttp.Source[T], *ingesthttp.Server) {
	src := ingesthttp.NewSource[T](cfg.ChannelCapacity)
	srv := ingesthttp.NewServer(cfg.HTTPBindAddr)
	ingesthttp.KindRoutes(srv.Router(), kindPath, cfg, src, counters, decode)
	return src, srv
}

func buildMeterUsageSink(cfg *ingestconfig.AppConfig, db *sql.DB, log *logrus.Logger) ingestpipeline.Sink[ingestrecord.MeterReading] {
	sinkCfg := cfg.MeterUsage.Sink
	sink, err := ingestpipeline.BuildSink[ingestrecord.MeterReading](
		string(sinkCfg.Kind),
		func() (ingestpipeline.Sink[ingestrecord.MeterReading], error) {
			return ingestilp.NewSink[ingestrecord.MeterReading](ingestilp.Config{
				Addr:         cfg.QuestDB.ILPTCPAddr,
				BatchSize:    sinkCfg.BatchSize,
				MaxRetries:   sinkCfg.MaxRetries,
				RetryBackoff: time.Duration(sinkCfg.RetryBackoffMS) * time.Millisecond,
				Workers:      sinkCfg.Workers,
			}, ingestrecord.MeterReading.ShardKey, ingestilp.EncodeMeterUsage, log.WithField("sink", "ilp_meter_usage")), nil
		},
		func() (ingestpipeline.Sink[ingestrecord.MeterReading], error) {
			return ingestsql.NewSink[ingestrecord.MeterReading](db, ingestsql.Config{
				Table:        "meter_usage",
				Columns:      ingestsql.MeterUsageColumns,
				BatchSize:    sinkCfg.BatchSize,
				MaxRetries:   sinkCfg.MaxRetries,
				RetryBackoff: time.Duration(sinkCfg.RetryBackoffMS) * time.Millisecond,
			}, ingestsql.MeterUsageRow, ingestmetrics.QuestdbSinkErrorsTotal.Inc, log.WithField("sink", "pgwire_meter_usage")), nil
		},
	)
	if err != nil {
		log.WithError(err).Fatal("failed to build meter_usage sink")
	}
	return sink
}

func buildGenerationSink(cfg *ingestconfig.AppConfig, db *sql.DB, log *logrus.Logger) ingestpipeline.Sink[ingestrecord.GenerationSample] {
	sinkCfg := cfg.GenerationOutput.Sink
	sink, err := ingestpipeline.BuildSink[ingestrecord.GenerationSample](
		string(sinkCfg.Kind),
		func() (ingestpipeline.Sink[ingestrecord.GenerationSample], error) {
			return ingestilp.NewSink[ingestrecord.GenerationSample](ingestilp.Config{
				Addr:         cfg.QuestDB.ILPTCPAddr,
				BatchSize:    sinkCfg.BatchSize,
				MaxRetries:   sinkCfg.MaxRetries,
				RetryBackoff: time.Duration(sinkCfg.RetryBackoffMS) * time.Millisecond,
				Workers:      sinkCfg.Workers,
			}, ingestrecord.GenerationSample.ShardKey, ingestilp.EncodeGenerationOutput, log.WithField("sink", "ilp_generation_output")), nil
		},
		func() (ingestpipeline.Sink[ingestrecord.GenerationSample], error) {
			return ingestsql.NewSink[ingestrecord.GenerationSample](db, ingestsql.Config{
				Table:        "generation_output",
				Columns:      ingestsql.GenerationOutputColumns,
				BatchSize:    sinkCfg.BatchSize,
				MaxRetries:   sinkCfg.MaxRetries,
				RetryBackoff: time.Duration(sinkCfg.RetryBackoffMS) * time.Millisecond,
			}, ingestsql.GenerationOutputRow, ingestmetrics.QuestdbGenerationSinkErrorsTotal.Inc, log.WithField("sink", "pgwire_generation_output")), nil
		},
	)
	if err != nil {
		log.WithError(err).Fatal("failed to build generation_output sink")
	}
	return sink
}
