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

// Package ingestsql is the pgwire alternative to ingestilp: a multi-row
// parameterized INSERT batch sink over database/sql and lib/pq, grounded on
// the rate limiter's PostgresPersister transaction idiom (BeginTx, deferred
// Rollback, ExecContext) but with QuestDB's row-insert-over-postgres-wire
// protocol in place of the idempotent counter-commit pattern.
package ingestsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestmetrics"
	"gridflow/internal/ingestpipeline"
	"gridflow/internal/ingestrecord"
)

// RowFunc renders one record as its positional column values, in the exact
// order Columns lists them.
type RowFunc[T any] func(T) []any

// Sink batches items and writes them as one multi-row INSERT per flush. No
// intra-batch splitting: a failing statement is retried whole, linearly
// backed off, up to MaxRetries.
type Sink[T any] struct {
	db            *sql.DB
	table         string
	columns       []string
	row           RowFunc[T]
	batchSize     int
	maxRetries    uint32
	retryBackoff  time.Duration
	errCounter    func()
	log           *logrus.Entry
}

// Config bundles the tunables a Sink needs beyond the record-specific
// table/columns/row functions.
type Config struct {
	Table        string
	Columns      []string
	BatchSize    int
	MaxRetries   uint32
	RetryBackoff time.Duration
}

// NewSink builds a SQL batch sink. errCounter increments the record-kind-
// specific error counter (QuestdbSinkErrorsTotal for meter usage,
// QuestdbGenerationSinkErrorsTotal for generation output) so the two
// pipelines stay independently observable.
func NewSink[T any](db *sql.DB, cfg Config, row RowFunc[T], errCounter func(), log *logrus.Entry) *Sink[T] {
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	return &Sink[T]{
		db:           db,
		table:        cfg.Table,
		columns:      cfg.Columns,
		row:          row,
		batchSize:    batchSize,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		errCounter:   errCounter,
		log:          log,
	}
}

// Run implements ingestpipeline.Sink[T]: drain input, flushing every
// BatchSize items and once more on channel close.
func (s *Sink[T]) Run(ctx context.Context, input <-chan ingestpipeline.Item[T]) *ingestpipeline.PipelineError {
	batch := make([]ingestrecord.Envelope[T], 0, s.batchSize)

	for {
		select {
		case item, ok := <-input:
			if !ok {
				return s.flush(ctx, batch)
			}
			if item.Err != nil {
				s.log.WithError(item.Err).Error("upstream pipeline error, aborting sink")
				if perr := s.flush(ctx, batch); perr != nil {
					return perr
				}
				return item.Err
			}
			batch = append(batch, item.Envelope)
			if len(batch) >= s.batchSize {
				if perr := s.flush(ctx, batch); perr != nil {
					return perr
				}
				batch = batch[:0]
			}
		case <-ctx.Done():
			return s.flush(ctx, batch)
		}
	}
}

// buildInsert renders "INSERT INTO table (c1, c2) VALUES ($1,$2),($3,$4)"
// for n rows of len(columns) values each.
func (s *Sink[T]) buildInsert(n int) string {
	var q strings.Builder
	fmt.Fprintf(&q, "INSERT INTO %s (%s) VALUES ", s.table, strings.Join(s.columns, ", "))

	ncols := len(s.columns)
	arg := 1
	for i := 0; i < n; i++ {
		if i > 0 {
			q.WriteString(",")
		}
		q.WriteString("(")
		for c := 0; c < ncols; c++ {
			if c > 0 {
				q.WriteString(",")
			}
			fmt.Fprintf(&q, "$%d", arg)
			arg++
		}
		q.WriteString(")")
	}
	return q.String()
}

func (s *Sink[T]) flush(ctx context.Context, batch []ingestrecord.Envelope[T]) *ingestpipeline.PipelineError {
	if len(batch) == 0 {
		return nil
	}

	query := s.buildInsert(len(batch))
	args := make([]any, 0, len(batch)*len(s.columns))
	for _, env := range batch {
		args = append(args, s.row(env.Payload)...)
	}

	var attempt uint32
	for {
		if err := s.execInsert(ctx, query, args); err == nil {
			ingestmetrics.QuestdbIngestedRecordsTotal.Add(float64(len(batch)))
			minReceived := batch[0].ReceivedAt
			for _, env := range batch[1:] {
				if env.ReceivedAt.Before(minReceived) {
					minReceived = env.ReceivedAt
				}
			}
			ingestmetrics.ObserveLatencyFromBatchMin(minReceived)
			return nil
		} else if attempt < s.maxRetries {
			attempt++
			s.log.WithError(err).WithField("attempt", attempt).Warn("SQL batch insert failed, retrying")
			time.Sleep(s.retryBackoff * time.Duration(attempt))
		} else {
			s.log.WithError(err).Error("SQL batch insert failed, giving up")
			s.errCounter()
			return ingestpipeline.SinkError("sql insert failed: %v", err)
		}
	}
}

func (s *Sink[T]) execInsert(ctx context.Context, query string, args []any) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// MeterUsageColumns is the fixed column order for meter_usage rows.
var MeterUsageColumns = []string{"ts", "meter_id", "premise_id", "kwh", "kvarh", "kva_demand", "quality_flag", "source_system"}

// MeterUsageRow renders a MeterReading in MeterUsageColumns order.
func MeterUsageRow(m ingestrecord.MeterReading) []any {
	return []any{m.TS, m.MeterID, m.PremiseID, m.Kwh, m.Kvarh, m.KvaDemand, m.QualityFlag, m.SourceSystem}
}

// GenerationOutputColumns is the fixed column order for generation_output rows.
var GenerationOutputColumns = []string{"ts", "plant_id", "unit_id", "mw", "mvar", "status", "fuel_type"}

// GenerationOutputRow renders a GenerationSample in GenerationOutputColumns order.
func GenerationOutputRow(g ingestrecord.GenerationSample) []any {
	return []any{g.TS, g.PlantID, g.UnitID, g.Mw, g.Mvar, g.Status, g.FuelType}
}
