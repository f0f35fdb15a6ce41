package ingestpipeline

import (
	"context"
	"testing"

	"gridflow/internal/ingestrecord"
)

// fakeSource emits a fixed slice of items, in order, then closes.
type fakeSource struct {
	items []Item[int]
}

func (s *fakeSource) Stream(_ context.Context) <-chan Item[int] {
	ch := make(chan Item[int], len(s.items))
	for _, it := range s.items {
		ch <- it
	}
	close(ch)
	return ch
}

// recordingSink remembers every item it receives and returns the fatal
// error recorded on it, if any — mirroring the contract a real sink must
// honor for an upstream Item.Err.
type recordingSink struct {
	received []Item[int]
}

func (s *recordingSink) Run(_ context.Context, input <-chan Item[int]) *PipelineError {
	for item := range input {
		s.received = append(s.received, item)
		if item.Err != nil {
			return item.Err
		}
	}
	return nil
}

func TestPipelineRunPropagatesFatalSourceError(t *testing.T) {
	good := Item[int]{Envelope: ingestrecord.NewEnvelope(1)}
	fatal := Item[int]{Err: SourceError("malformed record at offset 2")}

	sink := &recordingSink{}
	p := Pipeline[int]{
		Name:   "test",
		Source: &fakeSource{items: []Item[int]{good, fatal}},
		Sink:   sink,
	}

	err := p.Run(context.Background())
	if err == nil {
		t.Fatalf("expected a fatal PipelineError, got nil")
	}
	if err.Kind != KindSource {
		t.Fatalf("expected KindSource, got %s", err.Kind)
	}
	if len(sink.received) != 2 {
		t.Fatalf("expected the good item to reach the sink ahead of the fatal one, got %d items", len(sink.received))
	}
}

func TestPipelineRunSucceedsWithNoErrors(t *testing.T) {
	good := Item[int]{Envelope: ingestrecord.NewEnvelope(1)}
	sink := &recordingSink{}
	p := Pipeline[int]{
		Name:   "test",
		Source: &fakeSource{items: []Item[int]{good}},
		Sink:   sink,
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(sink.received) != 1 {
		t.Fatalf("expected 1 item at the sink, got %d", len(sink.received))
	}
}
