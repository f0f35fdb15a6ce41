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

// Package ingestilp is the QuestDB Influx Line Protocol sink: a rendezvous-
// sharded pool of single-connection TCP workers, one line per record,
// retried with reconnect-and-backoff. Line encoding is grounded byte-for-
// byte on original_source's questdb_ilp.rs.
package ingestilp

import (
	"strconv"
	"strings"

	"gridflow/internal/ingestrecord"
)

// ilpEscapeIdent backslash-escapes commas, spaces and equals signs, the
// three characters ILP requires escaped in measurement/tag/field
// identifiers and tag values.
func ilpEscapeIdent(s string, out *strings.Builder) {
	for _, ch := range s {
		switch ch {
		case ',', ' ', '=':
			out.WriteByte('\\')
			out.WriteRune(ch)
		default:
			out.WriteRune(ch)
		}
	}
}

func pushTag(out *strings.Builder, key, value string) {
	out.WriteByte(',')
	ilpEscapeIdent(key, out)
	out.WriteByte('=')
	ilpEscapeIdent(value, out)
}

func pushFieldF64(out *strings.Builder, first *bool, key string, value float64) {
	if *first {
		*first = false
	} else {
		out.WriteByte(',')
	}
	ilpEscapeIdent(key, out)
	out.WriteByte('=')
	out.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
}

// Encodable is implemented by record types that know how to render
// themselves as one ILP line, terminated by the caller with a newline.
type Encodable interface {
	WriteILPLine(out *strings.Builder)
}

// writeMeterUsageLine renders m as one meter_usage measurement line: event_id,
// meter_id, premise_id, quality_flag and source_system as tags; kwh,
// kvarh, kva_demand as numeric fields; unix nanos as the timestamp.
func writeMeterUsageLine(m ingestrecord.MeterReading, out *strings.Builder) {
	out.WriteString("meter_usage")

	pushTag(out, "event_id", m.EventID())
	pushTag(out, "meter_id", m.MeterID)
	if m.PremiseID != nil {
		pushTag(out, "premise_id", *m.PremiseID)
	}
	if m.QualityFlag != nil {
		pushTag(out, "quality_flag", *m.QualityFlag)
	}
	if m.SourceSystem != nil {
		pushTag(out, "source_system", *m.SourceSystem)
	}

	out.WriteByte(' ')
	first := true
	pushFieldF64(out, &first, "kwh", m.Kwh)
	if m.Kvarh != nil {
		pushFieldF64(out, &first, "kvarh", *m.Kvarh)
	}
	if m.KvaDemand != nil {
		pushFieldF64(out, &first, "kva_demand", *m.KvaDemand)
	}

	out.WriteByte(' ')
	out.WriteString(strconv.FormatInt(m.TS.UnixNano(), 10))
}

// writeGenerationOutputLine renders g as one generation_output measurement line:
// event_id, plant_id, unit_id, status and fuel_type as tags; mw, mvar as
// numeric fields; unix nanos as the timestamp.
func writeGenerationOutputLine(g ingestrecord.GenerationSample, out *strings.Builder) {
	out.WriteString("generation_output")

	pushTag(out, "event_id", g.EventID())
	pushTag(out, "plant_id", g.PlantID)
	if g.UnitID != nil {
		pushTag(out, "unit_id", *g.UnitID)
	}
	if g.Status != nil {
		pushTag(out, "status", *g.Status)
	}
	if g.FuelType != nil {
		pushTag(out, "fuel_type", *g.FuelType)
	}

	out.WriteByte(' ')
	first := true
	pushFieldF64(out, &first, "mw", g.Mw)
	if g.Mvar != nil {
		pushFieldF64(out, &first, "mvar", *g.Mvar)
	}

	out.WriteByte(' ')
	out.WriteString(strconv.FormatInt(g.TS.UnixNano(), 10))
}

// meterUsageLine and generationOutputLine adapt the two concrete record
// types to Encodable without requiring ingestrecord to depend on ingestilp.
type meterUsageLine struct{ ingestrecord.MeterReading }

func (m meterUsageLine) WriteILPLine(out *strings.Builder) { writeMeterUsageLine(m.MeterReading, out) }

type generationOutputLine struct{ ingestrecord.GenerationSample }

func (g generationOutputLine) WriteILPLine(out *strings.Builder) {
	writeGenerationOutputLine(g.GenerationSample, out)
}

// EncodeMeterUsage wraps a MeterReading as an Encodable.
func EncodeMeterUsage(m ingestrecord.MeterReading) Encodable { return meterUsageLine{m} }

// EncodeGenerationOutput wraps a GenerationSample as an Encodable.
func EncodeGenerationOutput(g ingestrecord.GenerationSample) Encodable {
	return generationOutputLine{g}
}
