package ingesthttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gridflow/internal/ingestconfig"
	"gridflow/internal/ingestmetrics"
	"gridflow/internal/ingestrecord"
)

func testConfig() ingestconfig.HTTPSourceConfig {
	return ingestconfig.HTTPSourceConfig{
		ChannelCapacity:   5,
		MaxBodyBytes:      1 << 20,
		MaxRequestRecords: 10,
		MaxLineBytes:      1 << 16,
	}
}

func newTestServer(cfg ingestconfig.HTTPSourceConfig) (*Source[ingestrecord.MeterReading], http.Handler) {
	src := NewSource[ingestrecord.MeterReading](cfg.ChannelCapacity)
	srv := NewServer(":0")
	KindRoutes(srv.Router(), "meter_usage", cfg, src, ingestmetrics.MeterUsageHTTP, DecodeMeterReading)
	return src, srv.Router()
}

func TestHandleBatchAccepts(t *testing.T) {
	cfg := testConfig()
	_, h := newTestServer(cfg)

	body := `[{"ts":"2024-01-01T00:00:00Z","meter_id":"m-1","kwh":1.25}]`
	req := httptest.NewRequest(http.MethodPost, "/ingest/meter_usage", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleBatchMalformedJSON(t *testing.T) {
	cfg := testConfig()
	_, h := newTestServer(cfg)

	req := httptest.NewRequest(http.MethodPost, "/ingest/meter_usage", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleBatchUnauthorized(t *testing.T) {
	cfg := testConfig()
	token := "secret"
	cfg.AuthBearerToken = &token
	_, h := newTestServer(cfg)

	req := httptest.NewRequest(http.MethodPost, "/ingest/meter_usage", strings.NewReader(`[]`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestHandleBatchOverloadedReturns429(t *testing.T) {
	cfg := testConfig()
	cfg.ChannelCapacity = 1
	src := NewSource[ingestrecord.MeterReading](cfg.ChannelCapacity)
	srv := NewServer(":0")
	KindRoutes(srv.Router(), "meter_usage", cfg, src, ingestmetrics.MeterUsageHTTP, DecodeMeterReading)

	body := `[{"ts":"2024-01-01T00:00:00Z","meter_id":"m-1","kwh":1},{"ts":"2024-01-01T00:00:00Z","meter_id":"m-2","kwh":1}]`
	req := httptest.NewRequest(http.MethodPost, "/ingest/meter_usage", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once queue fills, got %d", w.Code)
	}
}

func TestHandleBatchMalformedItemAcceptsNothing(t *testing.T) {
	cfg := testConfig()
	src := NewSource[ingestrecord.MeterReading](cfg.ChannelCapacity)
	srv := NewServer(":0")
	KindRoutes(srv.Router(), "meter_usage", cfg, src, ingestmetrics.MeterUsageHTTP, DecodeMeterReading)

	// First item decodes fine, second is missing meter_id: the whole
	// array must be rejected and nothing offered to the queue, not just
	// the items after the bad one.
	body := `[{"ts":"2024-01-01T00:00:00Z","meter_id":"m-1","kwh":1},{"ts":"2024-01-01T00:00:00Z","kwh":1}]`
	req := httptest.NewRequest(http.MethodPost, "/ingest/meter_usage", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	select {
	case item := <-src.ch:
		t.Fatalf("expected nothing enqueued after a whole-array parse failure, got %+v", item)
	default:
	}
}

func TestHandleNDJSONLenientCountsParseErrors(t *testing.T) {
	cfg := testConfig()
	_, h := newTestServer(cfg)

	body := "{\"ts\":\"2024-01-01T00:00:00Z\",\"meter_id\":\"m-1\",\"kwh\":1}\nnot json\n{\"ts\":\"2024-01-01T00:15:00Z\",\"meter_id\":\"m-1\",\"kwh\":2}\n"
	req := httptest.NewRequest(http.MethodPost, "/ingest/meter_usage/ndjson", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"accepted":2`) || !strings.Contains(w.Body.String(), `"parse_errors":1`) {
		t.Fatalf("unexpected response body: %s", w.Body.String())
	}
}
