package ingestrecord

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func sampleReading() MeterReading {
	return MeterReading{
		TS:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MeterID:     "m-1",
		PremiseID:   ptr("p-1"),
		Kwh:         1.25,
		Kvarh:       ptr(0.1),
		KvaDemand:   nil,
		QualityFlag: nil,
	}
}

func TestEventIDDeterministic(t *testing.T) {
	m := sampleReading()
	a := m.EventID()
	b := m.EventID()
	if a != b {
		t.Fatalf("event id not deterministic: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars (32-byte digest), got %d: %q", len(a), a)
	}
}

func TestEventIDChangesWithField(t *testing.T) {
	a := sampleReading()
	b := sampleReading()
	b.Kwh = 2.0
	if a.EventID() == b.EventID() {
		t.Fatalf("expected different event ids for different kwh")
	}
}

func TestEventIDDistinguishesPresenceOfOptional(t *testing.T) {
	a := sampleReading()
	a.PremiseID = nil
	b := sampleReading()
	b.PremiseID = ptr("")
	if a.EventID() == b.EventID() {
		t.Fatalf("absent optional and present-but-empty optional must hash differently")
	}
}

func TestEventIDGenerationSample(t *testing.T) {
	g := GenerationSample{
		TS:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PlantID: "plant",
		Mw:      10,
		FuelType: ptr("gas"),
	}
	if g.EventID() == "" {
		t.Fatalf("expected non-empty event id")
	}
	g2 := g
	if g.EventID() != g2.EventID() {
		t.Fatalf("expected stable event id across calls")
	}
}
