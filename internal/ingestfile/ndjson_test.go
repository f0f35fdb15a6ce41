package ingestfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gridflow/internal/ingestrecord"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func decodeLine(line []byte) (ingestrecord.MeterReading, error) {
	return BuildMeterReading(func(col string) (string, bool) {
		switch col {
		case "ts":
			return "2024-01-01T00:00:00Z", true
		case "meter_id":
			return string(line), true
		case "kwh":
			return "1.5", true
		}
		return "", false
	})
}

func TestNDJSONSourceEmitsOneItemPerLine(t *testing.T) {
	path := writeFile(t, "in.ndjson", "m-1\nm-2\n\nm-3\n")
	src := NewNDJSONSource[ingestrecord.MeterReading](path, decodeLine)

	var got []ingestrecord.MeterReading
	for item := range src.Stream(context.Background()) {
		if item.Err != nil {
			t.Fatalf("unexpected error: %v", item.Err)
		}
		got = append(got, item.Envelope.Payload)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records (blank line skipped), got %d", len(got))
	}
	if got[0].MeterID != "m-1" || got[2].MeterID != "m-3" {
		t.Fatalf("unexpected record order/content: %+v", got)
	}
}

func TestNDJSONSourceMissingFileIsSourceError(t *testing.T) {
	src := NewNDJSONSource[ingestrecord.MeterReading](filepath.Join(t.TempDir(), "missing.ndjson"), decodeLine)

	item, ok := <-src.Stream(context.Background())
	if !ok {
		t.Fatalf("expected a terminal error item, got a closed empty channel")
	}
	if item.Err == nil {
		t.Fatalf("expected a SourceError for a missing file")
	}
}
