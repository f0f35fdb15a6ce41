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

package ingesthttp

import (
	"encoding/json"
	"fmt"
	"time"

	"gridflow/internal/ingestrecord"
)

// incomingMeterReading mirrors the Rust IncomingMeterUsage DTO: required
// fields as values, optional fields as pointers so absence survives the
// JSON round-trip instead of collapsing to a zero value. time.Time already
// unmarshals RFC3339 (with timezone, per spec §6), so a bad ts surfaces as
// a JSON unmarshal error exactly like any other malformed field.
type incomingMeterReading struct {
	TS            time.Time `json:"ts"`
	MeterID       string    `json:"meter_id"`
	PremiseID     *string   `json:"premise_id"`
	Kwh           float64   `json:"kwh"`
	Kvarh         *float64  `json:"kvarh"`
	KvaDemand     *float64  `json:"kva_demand"`
	QualityFlag   *string   `json:"quality_flag"`
	SourceSystem  *string   `json:"source_system"`
}

// DecodeMeterReading parses one JSON object into a MeterReading. Unknown
// fields are ignored (no DisallowUnknownFields), per spec §6.
func DecodeMeterReading(raw json.RawMessage) (ingestrecord.MeterReading, error) {
	var in incomingMeterReading
	if err := json.Unmarshal(raw, &in); err != nil {
		return ingestrecord.MeterReading{}, err
	}
	var present map[string]json.RawMessage
	_ = json.Unmarshal(raw, &present)
	for _, f := range []string{"ts", "meter_id", "kwh"} {
		if v, ok := present[f]; !ok || string(v) == "null" {
			return ingestrecord.MeterReading{}, fmt.Errorf("missing required field %q", f)
		}
	}
	return ingestrecord.MeterReading{
		TS:           in.TS,
		MeterID:      in.MeterID,
		PremiseID:    in.PremiseID,
		Kwh:          in.Kwh,
		Kvarh:        in.Kvarh,
		KvaDemand:    in.KvaDemand,
		QualityFlag:  in.QualityFlag,
		SourceSystem: in.SourceSystem,
	}, nil
}

// incomingGenerationSample mirrors the generation_output wire shape.
type incomingGenerationSample struct {
	TS       time.Time `json:"ts"`
	PlantID  string    `json:"plant_id"`
	UnitID   *string   `json:"unit_id"`
	Mw       float64   `json:"mw"`
	Mvar     *float64  `json:"mvar"`
	Status   *string   `json:"status"`
	FuelType *string   `json:"fuel_type"`
}

// DecodeGenerationSample parses one JSON object into a GenerationSample.
func DecodeGenerationSample(raw json.RawMessage) (ingestrecord.GenerationSample, error) {
	var in incomingGenerationSample
	if err := json.Unmarshal(raw, &in); err != nil {
		return ingestrecord.GenerationSample{}, err
	}
	var present map[string]json.RawMessage
	_ = json.Unmarshal(raw, &present)
	for _, f := range []string{"ts", "plant_id", "mw"} {
		if v, ok := present[f]; !ok || string(v) == "null" {
			return ingestrecord.GenerationSample{}, fmt.Errorf("missing required field %q", f)
		}
	}
	return ingestrecord.GenerationSample{
		TS:       in.TS,
		PlantID:  in.PlantID,
		UnitID:   in.UnitID,
		Mw:       in.Mw,
		Mvar:     in.Mvar,
		Status:   in.Status,
		FuelType: in.FuelType,
	}, nil
}
