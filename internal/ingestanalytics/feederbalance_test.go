package ingestanalytics

import "testing"

// These assertions pin the query shape the spec's cause_hint/alert
// invariants depend on, without standing up a real QuestDB/Postgres
// connection: the priority order of cause_hint's branches, alert's use of
// the bound $1 threshold, and the threshold value itself.
func TestInsertSQLCauseHintPriorityOrder(t *testing.T) {
	// 'unknown' appears twice (the zero-generation special case ahead of
	// everything, and the final ELSE fallback) so it is checked separately
	// from the four-way data/topology/theft/physics priority chain.
	order := []string{"'data'", "'topology'", "'theft'", "'physics'"}
	last := -1
	for _, want := range order {
		idx := indexOf(insertSQL, want)
		if idx == -1 {
			t.Fatalf("expected cause_hint branch %s in insertSQL", want)
		}
		if idx < last {
			t.Fatalf("cause_hint branch %s appears out of priority order", want)
		}
		last = idx
	}

	if finalUnknown := indexOf(insertSQL, "ELSE 'unknown'"); finalUnknown == -1 || finalUnknown < last {
		t.Fatalf("expected a final ELSE 'unknown' fallback after the physics branch")
	}
}

func TestInsertSQLAlertUsesBoundThreshold(t *testing.T) {
	if indexOf(insertSQL, "> $1") == -1 {
		t.Fatalf("expected alert's threshold comparison to use the bound parameter $1")
	}
}

func TestLossAlertThresholdMatchesSpec(t *testing.T) {
	if lossAlertThreshold != 0.02 {
		t.Fatalf("expected lossAlertThreshold 0.02, got %v", lossAlertThreshold)
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
