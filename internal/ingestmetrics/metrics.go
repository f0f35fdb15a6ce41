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

// Package ingestmetrics registers the Prometheus counters and histograms
// named in the external interface as stable names, and serves them at
// /metrics. Kept process-wide and lock-free on the hot path, same as the
// teacher's churn telemetry package.
package ingestmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HTTPCounters is the counter set shared by both HTTP ingest pipelines
// (meter_usage, generation_output), parameterized by record kind so the
// stable names in spec §6 (http_ingest_*, http_generation_ingest_*) come
// out of one constructor instead of being hand-duplicated.
type HTTPCounters = httpCounterSet

type httpCounterSet struct {
	Requests            prometheus.Counter
	NDJSONRequests      prometheus.Counter
	Unauthorized        prometheus.Counter
	NDJSONUnauthorized  prometheus.Counter
	RejectedTooLarge     prometheus.Counter
	RejectedOverloaded   prometheus.Counter
	RejectedLineTooLarge prometheus.Counter
	NDJSONParseErrors   prometheus.Counter
	Failed              prometheus.Counter
}

func newHTTPCounterSet(prefix string) httpCounterSet {
	c := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + name, Help: help})
	}
	return httpCounterSet{
		Requests:             c("_requests_total", "Total HTTP batch ingest requests accepted for processing"),
		NDJSONRequests:       c("_ndjson_requests_total", "Total HTTP NDJSON ingest requests accepted for processing"),
		Unauthorized:         c("_unauthorized_total", "Requests rejected for a missing/incorrect bearer token (batch endpoint)"),
		NDJSONUnauthorized:   c("_ndjson_unauthorized_total", "Requests rejected for a missing/incorrect bearer token (NDJSON endpoint)"),
		RejectedTooLarge:     c("_rejected_too_large_total", "Requests rejected for exceeding max_body_bytes or max_request_records"),
		RejectedOverloaded:   c("_rejected_overloaded_total", "Requests that hit a full inbound queue (load-shed, 429)"),
		RejectedLineTooLarge: c("_rejected_line_too_large_total", "NDJSON requests rejected for a line exceeding max_line_bytes"),
		NDJSONParseErrors:    c("_ndjson_parse_errors_total", "NDJSON lines skipped for failing to parse (lenient mode)"),
		Failed:               c("_failed_total", "Requests that failed for reasons other than auth/size/overload"),
	}
}

func (s httpCounterSet) mustRegister() {
	prometheus.MustRegister(
		s.Requests, s.NDJSONRequests, s.Unauthorized, s.NDJSONUnauthorized,
		s.RejectedTooLarge, s.RejectedOverloaded, s.RejectedLineTooLarge,
		s.NDJSONParseErrors, s.Failed,
	)
}

var (
	MeterUsageHTTP       = newHTTPCounterSet("http_ingest")
	GenerationOutputHTTP = newHTTPCounterSet("http_generation_ingest")

	ValidationMeterUsageRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_meter_usage_rejected_total",
		Help: "MeterReading envelopes rejected by validation",
	})
	ValidationGenerationOutputRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "validation_generation_output_rejected_total",
		Help: "GenerationSample envelopes rejected by validation",
	})

	QuestdbIngestedRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questdb_ingested_records_total",
		Help: "Records successfully flushed to QuestDB across both sink kinds",
	})
	QuestdbIlpBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questdb_ilp_bytes_total",
		Help: "Bytes successfully written over the ILP TCP connection(s)",
	})
	QuestdbIlpRetryTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questdb_ilp_retry_total",
		Help: "ILP batch flush reconnect-and-retry attempts",
	})
	QuestdbIlpSinkErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questdb_ilp_sink_errors_total",
		Help: "ILP sink flushes that exhausted their retry budget",
	})
	QuestdbSinkErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questdb_sink_errors_total",
		Help: "SQL sink flushes for meter_usage that exhausted their retry budget",
	})
	QuestdbGenerationSinkErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "questdb_generation_sink_errors_total",
		Help: "SQL sink flushes for generation_output that exhausted their retry budget",
	})

	IngestEndToEndLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_end_to_end_latency_seconds",
		Help:    "Seconds between envelope received_at and its batch's successful flush",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	MeterUsageHTTP.mustRegister()
	GenerationOutputHTTP.mustRegister()
	prometheus.MustRegister(
		ValidationMeterUsageRejectedTotal, ValidationGenerationOutputRejectedTotal,
		QuestdbIngestedRecordsTotal, QuestdbIlpBytesTotal, QuestdbIlpRetryTotal, QuestdbIlpSinkErrorsTotal,
		QuestdbSinkErrorsTotal, QuestdbGenerationSinkErrorsTotal,
		IngestEndToEndLatencySeconds,
	)
}

// ObserveLatencyFromBatchMin records the end-to-end latency histogram
// sample for a flushed batch: now minus the earliest received_at in the
// batch, per spec §4.4/§4.5.
func ObserveLatencyFromBatchMin(minReceivedAt time.Time) {
	if minReceivedAt.IsZero() {
		return
	}
	IngestEndToEndLatencySeconds.Observe(time.Since(minReceivedAt).Seconds())
}

// StartEndpoint serves /metrics on addr in a background goroutine, mirroring
// the teacher's startMetricsEndpoint (a dedicated promhttp.Handler server).
func StartEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics endpoint stopped")
		}
	}()
}
