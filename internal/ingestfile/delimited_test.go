package ingestfile

import (
	"context"
	"testing"
)

func TestCSVSourceParsesHeaderDrivenRows(t *testing.T) {
	path := writeFile(t, "in.csv", "ts,meter_id,kwh,premise_id\n2024-01-01T00:00:00Z,m-1,1.25,p-1\n2024-01-01T00:15:00Z,m-2,2.5,\n")
	src := NewCSVSource(path, BuildMeterReading)

	var rows int
	for item := range src.Stream(context.Background()) {
		if item.Err != nil {
			t.Fatalf("unexpected error: %v", item.Err)
		}
		rows++
		if rows == 1 && (item.Envelope.Payload.MeterID != "m-1" || item.Envelope.Payload.PremiseID == nil) {
			t.Fatalf("unexpected first row: %+v", item.Envelope.Payload)
		}
		if rows == 2 && item.Envelope.Payload.PremiseID != nil {
			t.Fatalf("expected empty premise_id to decode as nil, got %q", *item.Envelope.Payload.PremiseID)
		}
	}
	if rows != 2 {
		t.Fatalf("expected 2 rows, got %d", rows)
	}
}

func TestDATSourceUsesPipeDelimiter(t *testing.T) {
	path := writeFile(t, "in.dat", "ts|plant_id|mw\n2024-01-01T00:00:00Z|plant-1|10\n")
	src := NewDATSource(path, BuildGenerationSample)

	item, ok := <-src.Stream(context.Background())
	if !ok {
		t.Fatalf("expected at least one item")
	}
	if item.Err != nil {
		t.Fatalf("unexpected error: %v", item.Err)
	}
	if item.Envelope.Payload.PlantID != "plant-1" || item.Envelope.Payload.Mw != 10 {
		t.Fatalf("unexpected payload: %+v", item.Envelope.Payload)
	}
}

func TestDelimitedSourceMissingColumnIsSourceError(t *testing.T) {
	path := writeFile(t, "in.csv", "ts,kwh\n2024-01-01T00:00:00Z,1\n")
	src := NewCSVSource(path, BuildMeterReading)

	item, ok := <-src.Stream(context.Background())
	if !ok {
		t.Fatalf("expected a terminal error item")
	}
	if item.Err == nil {
		t.Fatalf("expected a SourceError for the missing meter_id column")
	}
}
