package ingestrecord

import (
	"testing"
	"time"
)

func TestInTimestampWindowBoundsInclusive(t *testing.T) {
	if !InTimestampWindow(MinTimestamp()) {
		t.Fatalf("expected min bound to be accepted")
	}
	if !InTimestampWindow(MaxTimestamp()) {
		t.Fatalf("expected max bound to be accepted (closed interval)")
	}
}

func TestInTimestampWindowRejectsOutside(t *testing.T) {
	if InTimestampWindow(MinTimestamp().Add(-time.Nanosecond)) {
		t.Fatalf("expected ts before min bound to be rejected")
	}
	if InTimestampWindow(MaxTimestamp().Add(time.Nanosecond)) {
		t.Fatalf("expected ts after max bound to be rejected")
	}
}
