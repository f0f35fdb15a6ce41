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

// Package ingestrecord holds the two wire-level record types ingested by
// gridflow and the envelope that wraps them as they move through a pipeline.
package ingestrecord

import "time"

// MeterReading is a single interval meter observation (consumption side).
type MeterReading struct {
	TS            time.Time
	MeterID       string
	PremiseID     *string
	Kwh           float64
	Kvarh         *float64
	KvaDemand     *float64
	QualityFlag   *string
	SourceSystem  *string
}

// ShardKey returns the field the ILP sink shards on. Records sharing a
// shard key always route to the same worker, preserving per-meter
// ordering on the wire.
func (m MeterReading) ShardKey() string { return m.MeterID }

// PrimaryMetric is the required, must-be-finite-and->=0 numeric field.
func (m MeterReading) PrimaryMetric() float64 { return m.Kwh }

// Timestamp is the record's interval-end time, validated against the
// sanity window by ingesttransform.
func (m MeterReading) Timestamp() time.Time { return m.TS }

// GenerationSample is a single interval plant/unit output observation
// (supply side).
type GenerationSample struct {
	TS       time.Time
	PlantID  string
	UnitID   *string
	Mw       float64
	Mvar     *float64
	Status   *string
	FuelType *string
}

// ShardKey returns the field the ILP sink shards on.
func (g GenerationSample) ShardKey() string { return g.PlantID }

// PrimaryMetric is the required, must-be-finite-and->=0 numeric field.
func (g GenerationSample) PrimaryMetric() float64 { return g.Mw }

// Timestamp is the record's interval-end time.
func (g GenerationSample) Timestamp() time.Time { return g.TS }

// Envelope pairs a payload with the wall-clock time it was accepted at the
// source boundary. received_at is assigned exactly once, at construction,
// and is never mutated afterward — every stage that holds an Envelope owns
// it exclusively until it hands it downstream.
type Envelope[T any] struct {
	Payload    T
	ReceivedAt time.Time
}

// NewEnvelope stamps received_at as now and wraps payload.
func NewEnvelope[T any](payload T) Envelope[T] {
	return Envelope[T]{Payload: payload, ReceivedAt: time.Now()}
}

// Validation sanity window: ts must lie within [minTS, maxTS].
var (
	minTS = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTS = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// MinTimestamp returns the earliest ts accepted by validation, inclusive.
func MinTimestamp() time.Time { return minTS }

// MaxTimestamp returns the latest ts accepted by validation, inclusive.
func MaxTimestamp() time.Time { return maxTS }

// InTimestampWindow reports whether ts lies in the closed interval
// [2000-01-01T00:00:00Z, 2100-01-01T00:00:00Z].
func InTimestampWindow(ts time.Time) bool {
	return !ts.Before(minTS) && !ts.After(maxTS)
}
