package ingestsql

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestpipeline"
)

func TestBuildInsertRendersPlaceholders(t *testing.T) {
	s := &Sink[int]{table: "meter_usage", columns: []string{"ts", "kwh"}}
	got := s.buildInsert(2)
	want := "INSERT INTO meter_usage (ts, kwh) VALUES ($1,$2),($3,$4)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRunPropagatesUpstreamFatalError(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	sink := NewSink[int](nil, Config{Table: "x", Columns: []string{"v"}, BatchSize: 10}, func(v int) []any {
		return []any{v}
	}, func() {}, log)

	input := make(chan ingestpipeline.Item[int], 1)
	fatal := ingestpipeline.SourceError("malformed backfill record")
	input <- ingestpipeline.Item[int]{Err: fatal}
	close(input)

	err := sink.Run(context.Background(), input)
	if err == nil {
		t.Fatalf("expected the upstream fatal error to propagate, got nil")
	}
	if !strings.Contains(err.Error(), "malformed backfill record") {
		t.Fatalf("expected propagated error to wrap the source error, got %q", err.Error())
	}
}
