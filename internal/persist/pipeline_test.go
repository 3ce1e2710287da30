package persist_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"galle/internal/config"
	"galle/internal/model"
	"galle/internal/persist"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return nil
}

func (f *fakeConn) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.Send(payload)
}

func (f *fakeConn) acks(t *testing.T) []map[string]json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]json.RawMessage, 0, len(f.payloads))
	for _, payload := range f.payloads {
		var frame map[string]json.RawMessage
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("ack is not JSON: %v", err)
		}
		out = append(out, frame)
	}
	return out
}

func frameType(raw map[string]json.RawMessage) string {
	var s string
	_ = json.Unmarshal(raw["type"], &s)
	return s
}

func newPipeline(url string, attempts int) *persist.Pipeline {
	return persist.NewPipeline(config.PersistConfig{
		URL:         url,
		Timeout:     2 * time.Second,
		MaxAttempts: attempts,
		RetryDelay:  time.Millisecond,
	})
}

func mustFrame(t *testing.T, raw string) *model.Frame {
	t.Helper()
	frame, err := model.ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}
	return frame
}

// dropConnection aborts the request at the transport level, before any
// HTTP response is written.
func dropConnection(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatalf("hijack failed: %v", err)
	}
	conn.Close()
}

func TestRecordSucceedsAfterTransportFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			dropConnection(t, w)
			return
		}
		if r.Header.Get("X-WP-Token") != "tok" || r.Header.Get("X-User-ID") != "7" {
			t.Errorf("missing credential headers: %v", r.Header)
		}
		w.Write([]byte(`{"id":99}`))
	}))
	defer ts.Close()

	sender := &fakeConn{id: "c1"}
	pipeline := newPipeline(ts.URL, 5)

	pipeline.Record(context.Background(), sender, mustFrame(t, `{"emisor":"7","mensaje":"hola"}`), "tok", "7")

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("endpoint called %d times, want 3", got)
	}

	acks := sender.acks(t)
	if len(acks) != 1 {
		t.Fatalf("sender got %d acks, want exactly 1", len(acks))
	}
	if frameType(acks[0]) != model.TypeMessageSaved {
		t.Fatalf("ack type = %q, want message_saved", frameType(acks[0]))
	}

	sender.mu.Lock()
	savedRaw := sender.payloads[0]
	sender.mu.Unlock()

	var saved model.SavedAck
	if err := json.Unmarshal(savedRaw, &saved); err != nil {
		t.Fatalf("decode saved ack: %v", err)
	}
	if saved.MessageID != "99" {
		t.Fatalf("message_id = %q, want 99", saved.MessageID)
	}
	if saved.Timestamp == 0 {
		t.Fatal("timestamp missing")
	}

	var original map[string]any
	if err := json.Unmarshal(saved.Original, &original); err != nil {
		t.Fatalf("original_message is not JSON: %v", err)
	}
	if original["mensaje"] != "hola" {
		t.Fatalf("original_message lost fields: %v", original)
	}
}

func TestRecordExhaustsAttempts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		dropConnection(t, w)
	}))
	defer ts.Close()

	sender := &fakeConn{id: "c1"}
	pipeline := newPipeline(ts.URL, 5)

	pipeline.Record(context.Background(), sender, mustFrame(t, `{"emisor":"7","mensaje":"hola"}`), "tok", "7")

	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Fatalf("endpoint called %d times, want 5", got)
	}

	acks := sender.acks(t)
	if len(acks) != 1 {
		t.Fatalf("sender got %d acks, want exactly 1", len(acks))
	}
	if frameType(acks[0]) != model.TypeMessageError {
		t.Fatalf("ack type = %q, want message_error", frameType(acks[0]))
	}

	var errText string
	_ = json.Unmarshal(acks[0]["error"], &errText)
	if errText != model.PersistFailedText {
		t.Fatalf("error text = %q", errText)
	}
}

func TestRecordErrorStatusStopsRetrying(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		// An application-level error is still a transport success.
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer ts.Close()

	sender := &fakeConn{id: "c1"}
	pipeline := newPipeline(ts.URL, 5)

	pipeline.Record(context.Background(), sender, mustFrame(t, `{"emisor":"7","mensaje":"hola"}`), "tok", "7")

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("endpoint called %d times, want 1", got)
	}

	acks := sender.acks(t)
	if len(acks) != 1 || frameType(acks[0]) != model.TypeMessageSaved {
		t.Fatalf("expected one message_saved ack, got %v", acks)
	}
}

func TestRecordMessageIDAbsentWhenResponseHasNone(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	sender := &fakeConn{id: "c1"}
	newPipeline(ts.URL, 1).Record(context.Background(), sender, mustFrame(t, `{"emisor":"7","mensaje":"hola"}`), "tok", "7")

	acks := sender.acks(t)
	if len(acks) != 1 {
		t.Fatalf("got %d acks", len(acks))
	}
	if _, present := acks[0]["message_id"]; present {
		t.Fatal("message_id should be absent when the response has no id")
	}
}
