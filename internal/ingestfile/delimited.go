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

package ingestfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gridflow/internal/ingestpipeline"
	"gridflow/internal/ingestrecord"
)

// DelimitedSource reads a header-driven CSV or pipe-delimited file: the
// header row names columns, and each record row is looked up by column
// name rather than position, exactly like the Rust record_to_meter_usage
// helper. encoding/csv is synchronous, so Stream's goroutine plays the
// role of the Rust comment's "wrapped in a single async task" — the
// blocking read happens off whatever goroutine is consuming the channel.
type DelimitedSource[T any] struct {
	path      string
	delimiter rune
	build     func(get func(col string) (string, bool)) (T, error)
}

// NewCSVSource builds a comma-delimited backfill source over path.
func NewCSVSource[T any](path string, build func(get func(col string) (string, bool)) (T, error)) *DelimitedSource[T] {
	return &DelimitedSource[T]{path: path, delimiter: ',', build: build}
}

// NewDATSource builds a pipe-delimited (`.dat`) backfill source over path.
func NewDATSource[T any](path string, build func(get func(col string) (string, bool)) (T, error)) *DelimitedSource[T] {
	return &DelimitedSource[T]{path: path, delimiter: '|', build: build}
}

// Stream opens path, reads the header row, then emits one Item per data
// row. A missing required column, an unparsable ts or primary metric, or
// an I/O failure ends the stream with a SourceError; an optional numeric
// column that does not parse is read as absent.
func (s *DelimitedSource[T]) Stream(ctx context.Context) <-chan ingestpipeline.Item[T] {
	out := make(chan ingestpipeline.Item[T])

	go func() {
		defer close(out)

		f, err := os.Open(s.path)
		if err != nil {
			emit(ctx, out, ingestpipeline.Item[T]{Err: ingestpipeline.SourceError("failed to open delimited file: %v", err)})
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.Comma = s.delimiter
		r.ReuseRecord = false

		header, err := r.Read()
		if err != nil {
			emit(ctx, out, ingestpipeline.Item[T]{Err: ingestpipeline.SourceError("failed to read header: %v", err)})
			return
		}
		index := make(map[string]int, len(header))
		for i, name := range header {
			index[strings.TrimSpace(name)] = i
		}

		for {
			row, err := r.Read()
			if err != nil {
				if err.Error() == "EOF" {
					return
				}
				emit(ctx, out, ingestpipeline.Item[T]{Err: ingestpipeline.SourceError("failed to read record: %v", err)})
				return
			}

			get := func(col string) (string, bool) {
				i, ok := index[col]
				if !ok || i >= len(row) {
					return "", false
				}
				return row[i], true
			}

			rec, err := s.build(get)
			if err != nil {
				emit(ctx, out, ingestpipeline.Item[T]{Err: ingestpipeline.SourceError("malformed record: %v", err)})
				return
			}
			if !emit(ctx, out, ingestpipeline.Item[T]{Envelope: ingestrecord.NewEnvelope(rec)}) {
				return
			}
		}
	}()

	return out
}

// --- column-lookup helpers mirroring the Rust record_to_meter_usage helper ---

func requiredColumn(get func(string) (string, bool), name string) (string, error) {
	v, ok := get(name)
	if !ok {
		return "", fmt.Errorf("missing column %q", name)
	}
	return v, nil
}

func optionalString(get func(string) (string, bool), name string) *string {
	v, ok := get(name)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalFloat(get func(string) (string, bool), name string) *float64 {
	v, ok := get(name)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &f
}

// BuildMeterReading parses one delimited row into a MeterReading, using
// the same column set as the CSV/DAT sources: ts, meter_id, premise_id,
// kwh, kvarh, kva_demand, quality_flag, source_system.
func BuildMeterReading(get func(col string) (string, bool)) (ingestrecord.MeterReading, error) {
	tsStr, err := requiredColumn(get, "ts")
	if err != nil {
		return ingestrecord.MeterReading{}, err
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(tsStr))
	if err != nil {
		return ingestrecord.MeterReading{}, fmt.Errorf("invalid ts %q: %w", tsStr, err)
	}

	meterID, err := requiredColumn(get, "meter_id")
	if err != nil {
		return ingestrecord.MeterReading{}, err
	}

	kwhStr, err := requiredColumn(get, "kwh")
	if err != nil {
		return ingestrecord.MeterReading{}, err
	}
	kwh, err := strconv.ParseFloat(strings.TrimSpace(kwhStr), 64)
	if err != nil {
		return ingestrecord.MeterReading{}, fmt.Errorf("invalid kwh %q: %w", kwhStr, err)
	}

	return ingestrecord.MeterReading{
		TS:           ts,
		MeterID:      meterID,
		PremiseID:    optionalString(get, "premise_id"),
		Kwh:          kwh,
		Kvarh:        optionalFloat(get, "kvarh"),
		KvaDemand:    optionalFloat(get, "kva_demand"),
		QualityFlag:  optionalString(get, "quality_flag"),
		SourceSystem: optionalString(get, "source_system"),
	}, nil
}

// BuildGenerationSample parses one delimited row into a GenerationSample:
// ts, plant_id, unit_id, mw, mvar, status, fuel_type.
func BuildGenerationSample(get func(col string) (string, bool)) (ingestrecord.GenerationSample, error) {
	tsStr, err := requiredColumn(get, "ts")
	if err != nil {
		return ingestrecord.GenerationSample{}, err
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(tsStr))
	if err != nil {
		return ingestrecord.GenerationSample{}, fmt.Errorf("invalid ts %q: %w", tsStr, err)
	}

	plantID, err := requiredColumn(get, "plant_id")
	if err != nil {
		return ingestrecord.GenerationSample{}, err
	}

	mwStr, err := requiredColumn(get, "mw")
	if err != nil {
		return ingestrecord.GenerationSample{}, err
	}
	mw, err := strconv.ParseFloat(strings.TrimSpace(mwStr), 64)
	if err != nil {
		return ingestrecord.GenerationSample{}, fmt.Errorf("invalid mw %q: %w", mwStr, err)
	}

	return ingestrecord.GenerationSample{
		TS:       ts,
		PlantID:  plantID,
		UnitID:   optionalString(get, "unit_id"),
		Mw:       mw,
		Mvar:     optionalFloat(get, "mvar"),
		Status:   optionalString(get, "status"),
		FuelType: optionalString(get, "fuel_type"),
	}, nil
}
