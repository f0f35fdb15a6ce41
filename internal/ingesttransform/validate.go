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

// Package ingesttransform implements the one stateless validation step
// every envelope passes through: the primary metric must be finite and
// non-negative, and ts must fall inside the sanity window.
package ingesttransform

import (
	"math"

	"gridflow/internal/ingestmetrics"
	"gridflow/internal/ingestpipeline"
	"gridflow/internal/ingestrecord"
)

// MeterReadingValidation rejects MeterReadings whose kwh is not finite and
// >= 0, or whose ts is outside [2000-01-01, 2100-01-01]. Rejections
// increment validation_meter_usage_rejected_total and are dropped —
// never retried, never written.
type MeterReadingValidation struct{}

func (MeterReadingValidation) Apply(env ingestrecord.Envelope[ingestrecord.MeterReading]) (ingestrecord.Envelope[ingestrecord.MeterReading], *ingestpipeline.PipelineError) {
	m := env.Payload
	if err := validateReading(m); err != nil {
		ingestmetrics.ValidationMeterUsageRejectedTotal.Inc()
		return env, err
	}
	return env, nil
}

func validateReading(m ingestrecord.MeterReading) *ingestpipeline.PipelineError {
	if math.IsNaN(m.Kwh) || math.IsInf(m.Kwh, 0) || m.Kwh < 0 {
		return ingestpipeline.TransformError("kwh must be non-negative")
	}
	if !ingestrecord.InTimestampWindow(m.TS) {
		return ingestpipeline.TransformError("timestamp out of allowed range")
	}
	return nil
}

// GenerationSampleValidation rejects GenerationSamples whose mw is not
// finite and >= 0, or whose ts is outside the sanity window. Rejections
// increment validation_generation_output_rejected_total.
type GenerationSampleValidation struct{}

func (GenerationSampleValidation) Apply(env ingestrecord.Envelope[ingestrecord.GenerationSample]) (ingestrecord.Envelope[ingestrecord.GenerationSample], *ingestpipeline.PipelineError) {
	g := env.Payload
	if err := validateSample(g); err != nil {
		ingestmetrics.ValidationGenerationOutputRejectedTotal.Inc()
		return env, err
	}
	return env, nil
}

func validateSample(g ingestrecord.GenerationSample) *ingestpipeline.PipelineError {
	if math.IsNaN(g.Mw) || math.IsInf(g.Mw, 0) || g.Mw < 0 {
		return ingestpipeline.TransformError("mw must be non-negative")
	}
	if !ingestrecord.InTimestampWindow(g.TS) {
		return ingestpipeline.TransformError("timestamp out of allowed range")
	}
	return nil
}
