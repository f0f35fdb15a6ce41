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

package ingestrecord

import (
	"encoding/binary"
	"math"

	"lukechampine.com/blake3"
)

// EventID derives the deduplication key emitted on the wire as the ILP tag
// `event_id`. It must be stable across process runs and target languages,
// so the byte layout fed to the hasher is fixed and documented field by
// field: ts hashed as a 128-bit sign-extended little-endian unix-nanoseconds
// value (a bare 64-bit width does not reproduce the same digest), then each
// tag/field in a fixed order — a 1-byte
// presence flag ahead of every optional field, strings length-prefixed with
// a 4-byte little-endian length, floats hashed as their IEEE-754 bit
// pattern in little-endian byte order.
func hashTSNanos(h *blake3.Hasher, nanos int64) {
	var b [16]byte
	lo := uint64(nanos)
	var hi uint64
	if nanos < 0 {
		hi = math.MaxUint64
	}
	binary.LittleEndian.PutUint64(b[0:8], lo)
	binary.LittleEndian.PutUint64(b[8:16], hi)
	h.Write(b[:])
}

func hashString(h *blake3.Hasher, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func hashOptString(h *blake3.Hasher, s *string) {
	if s == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	hashString(h, *s)
}

func hashFloat64(h *blake3.Hasher, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	h.Write(b[:])
}

func hashOptFloat64(h *blake3.Hasher, v *float64) {
	if v == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	hashFloat64(h, *v)
}

// EventID computes the meter_usage dedup key: ts, meter_id, premise_id,
// kwh, kvarh, kva_demand, quality_flag, source_system, in that order.
func (m MeterReading) EventID() string {
	h := blake3.New(32, nil)
	hashTSNanos(h, m.TS.UnixNano())
	hashString(h, m.MeterID)
	hashOptString(h, m.PremiseID)
	hashFloat64(h, m.Kwh)
	hashOptFloat64(h, m.Kvarh)
	hashOptFloat64(h, m.KvaDemand)
	hashOptString(h, m.QualityFlag)
	hashOptString(h, m.SourceSystem)
	return hexDigest(h)
}

// EventID computes the generation_output dedup key: ts, plant_id, unit_id,
// mw, mvar, status, fuel_type, in that order.
func (g GenerationSample) EventID() string {
	h := blake3.New(32, nil)
	hashTSNanos(h, g.TS.UnixNano())
	hashString(h, g.PlantID)
	hashOptString(h, g.UnitID)
	hashFloat64(h, g.Mw)
	hashOptFloat64(h, g.Mvar)
	hashOptString(h, g.Status)
	hashOptString(h, g.FuelType)
	return hexDigest(h)
}

func hexDigest(h *blake3.Hasher) string {
	const hexChars = "0123456789abcdef"
	sum := h.Sum(nil)
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hexChars[b>>4]
		out[i*2+1] = hexChars[b&0x0f]
	}
	return string(out)
}
