package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/store/memory"
)

func TestHTTPApplier_PostsChange(t *testing.T) {
	var got struct {
		Type      string          `json:"type"`
		Entity    string          `json:"entity"`
		Data      json.RawMessage `json:"data"`
		UserID    string          `json:"userId"`
		Timestamp time.Time       `json:"timestamp"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewHTTPApplier(srv.URL, srv.Client())
	err := a.ApplyChange(context.Background(), repository.QueuedChange{
		ID:        7,
		Type:      repository.ChangeUpdate,
		Entity:    repository.EntityMockup,
		Data:      []byte(`{"name":"v2"}`),
		UserID:    "u1",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != "update" || got.Entity != "mockup" || got.UserID != "u1" {
		t.Fatalf("forwarded change: %+v", got)
	}
	if string(got.Data) != `{"name":"v2"}` {
		t.Fatalf("data = %s", got.Data)
	}
}

func TestHTTPApplier_NonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend caído", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewHTTPApplier(srv.URL, srv.Client())
	err := a.ApplyChange(context.Background(), repository.QueuedChange{
		Type: repository.ChangeCreate, Entity: repository.EntityProject, Data: []byte(`{}`),
	})
	if err == nil {
		t.Fatal("want error for non-2xx response")
	}
}

func TestDrain_RequeuesOnBackendFailure(t *testing.T) {
	// El backend rechaza todo: el drain debe re-encolar, no aplicar.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	q := memory.NewQueueRepo()
	seedQueue(t, q, repository.EntityProject, 1)

	w := NewDrainWorker(q, NewHTTPApplier(srv.URL, srv.Client()), 3)
	if err := w.Drain(context.Background(), repository.EntityProject); err == nil {
		t.Fatal("want drain error while backend is down")
	}
	if hits.Load() != 1 {
		t.Fatalf("backend hits = %d, want 1", hits.Load())
	}

	pending, err := q.NextPending(context.Background(), repository.EntityProject, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("pending: %+v", pending)
	}
}
