package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aniladanir/webhook-inbox/internal/domain"
	"github.com/aniladanir/webhook-inbox/internal/metrics"
	"github.com/aniladanir/webhook-inbox/internal/persistant/sqlite"
	messageRepo "github.com/aniladanir/webhook-inbox/internal/repository/message"
	"github.com/aniladanir/webhook-inbox/internal/service"
	"github.com/aniladanir/webhook-inbox/internal/signature"
)

const e2eSecret = "s3cr3t"

// newFullStack wires the handler to a real service and an sqlite-backed
// repository, so the unique key does the dedup work.
func newFullStack(t *testing.T) (http.Handler, *metrics.Collector) {
	t.Helper()

	db, err := sqlite.Initialize(filepath.Join(t.TempDir(), "e2e.db"), []any{&domain.Message{}})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close(db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.NewInboxService(messageRepo.NewMessageRepository(db), nil, logger, e2eSecret, time.Second)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	collector := metrics.NewCollector()
	h := NewHttpHandler(":0", svc, collector, logger)
	return h.server.Handler, collector
}

func postWebhook(mux http.Handler, body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Signature", sig)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestEndToEnd_IngestThenQuery(t *testing.T) {
	mux, collector := newFullStack(t)

	body := `{"message_id":"m1","from":"+15551234567","to":"+15557654321","ts":"2024-01-01T00:00:00Z","text":"hi"}`
	sig := signature.Compute(e2eSecret, []byte(body))

	// first delivery
	rr := postWebhook(mux, body, sig)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"status":"ok"}` {
		t.Fatalf("expected ack body, got %q", got)
	}

	// redelivery: identical acknowledgement, no second record
	rr = postWebhook(mux, body, sig)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"status":"ok"}` {
		t.Fatalf("redelivery ack differs: %q", got)
	}

	// listing shows exactly one stored message
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/messages", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var list domain.ListResult
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v body=%q", err, rr.Body.String())
	}
	if list.Total != 1 || len(list.Data) != 1 {
		t.Fatalf("expected exactly one message, got %+v", list)
	}
	got := list.Data[0]
	if got.MessageID != "m1" || got.From != "+15551234567" || got.To != "+15557654321" {
		t.Fatalf("unexpected stored message: %+v", got)
	}
	if got.Text == nil || *got.Text != "hi" {
		t.Fatalf("unexpected text: %v", got.Text)
	}
	if got.TS != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected ts: %q", got.TS)
	}

	// stats reflect the single sender
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats domain.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.TotalMessages != 1 || stats.SendersCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.FirstMessageTS == nil || *stats.FirstMessageTS != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected first ts: %v", stats.FirstMessageTS)
	}

	// both outcomes counted once
	out := collector.Render()
	if !strings.Contains(out, `webhook_requests_total{result="created"} 1`) ||
		!strings.Contains(out, `webhook_requests_total{result="duplicate"} 1`) {
		t.Fatalf("expected one created and one duplicate, got:\n%s", out)
	}
}

func TestEndToEnd_BadSignatureNeverStores(t *testing.T) {
	mux, _ := newFullStack(t)

	body := `{"message_id":"m1","from":"+15551234567","to":"+15557654321","ts":"2024-01-01T00:00:00Z","text":"hi"}`

	rr := postWebhook(mux, body, "0000000000000000000000000000000000000000000000000000000000000000")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/messages", nil))

	var list domain.ListResult
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("rejected delivery reached storage: %+v", list)
	}
}

func TestEndToEnd_ValidationRejectedBeforeStorage(t *testing.T) {
	mux, _ := newFullStack(t)

	body := `{"message_id":"m1","from":"12345","to":"+200","ts":"2024-01-01"}`
	sig := signature.Compute(e2eSecret, []byte(body))

	rr := postWebhook(mux, body, sig)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%q", rr.Code, rr.Body.String())
	}

	var resp validationErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if _, ok := resp.Fields["from"]; !ok {
		t.Fatalf("expected field detail for from, got %+v", resp)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/messages", nil))

	var list domain.ListResult
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("invalid payload reached storage: %+v", list)
	}
}

func TestEndToEnd_OrderingAcrossDeliveries(t *testing.T) {
	mux, _ := newFullStack(t)

	deliveries := []struct{ id, ts string }{
		{"b", "2024-01-02"},
		{"a", "2024-01-01"},
		{"c", "2024-01-01"},
	}
	for _, d := range deliveries {
		body := `{"message_id":"` + d.id + `","from":"+100","to":"+200","ts":"` + d.ts + `"}`
		rr := postWebhook(mux, body, signature.Compute(e2eSecret, []byte(body)))
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery %s failed: %d %q", d.id, rr.Code, rr.Body.String())
		}
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/messages", nil))

	var list domain.ListResult
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.Data) != 3 {
		t.Fatalf("expected 3 messages, got %+v", list)
	}
	for i, want := range []string{"a", "c", "b"} {
		if list.Data[i].MessageID != want {
			t.Fatalf("expected order [a c b], got %q at %d", list.Data[i].MessageID, i)
		}
	}
}
