package offline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/store/memory"
)

type probeSwitch struct {
	online bool
}

func (p *probeSwitch) probe(ctx context.Context) error {
	if p.online {
		return nil
	}
	return errors.New("no route")
}

func newTestCoordinator(online bool) (*Coordinator, *memory.QueueRepo, *probeSwitch) {
	q := memory.NewQueueRepo()
	p := &probeSwitch{online: online}
	c := NewCoordinator(q, p.probe, nil, time.Millisecond, 3)
	return c, q, p
}

func TestDo_OnlineRunsDirect(t *testing.T) {
	c, q, _ := newTestCoordinator(true)

	res, err := c.Do(context.Background(), "u1", repository.ChangeCreate, repository.EntityProject,
		json.RawMessage(`{"name":"p"}`),
		func(ctx context.Context) (any, error) { return map[string]string{"id": "real-1"}, nil },
	)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pending {
		t.Fatal("online mutation must not be pending")
	}
	if n, _ := q.CountPending(context.Background()); n != 0 {
		t.Fatalf("queue = %d, want 0", n)
	}
}

func TestDo_OnlineErrorPropagates(t *testing.T) {
	c, q, _ := newTestCoordinator(true)
	boom := errors.New("upstream 500")

	_, err := c.Do(context.Background(), "u1", repository.ChangeCreate, repository.EntityProject, nil,
		func(ctx context.Context) (any, error) { return nil, boom },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("want apply error, got %v", err)
	}
	// Un error de negocio no es falta de conectividad: no se encola.
	if n, _ := q.CountPending(context.Background()); n != 0 {
		t.Fatalf("queue = %d, want 0", n)
	}
}

func TestDo_OfflineQueuesOptimistic(t *testing.T) {
	c, q, _ := newTestCoordinator(false)

	called := false
	res, err := c.Do(context.Background(), "u1", repository.ChangeUpdate, repository.EntityMockup,
		json.RawMessage(`{"id":"m1"}`),
		func(ctx context.Context) (any, error) { called = true; return nil, nil },
	)
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("apply must not run while offline")
	}
	if !res.Pending {
		t.Fatal("offline mutation must be pending")
	}
	if !strings.HasPrefix(res.TempID, "temp_") {
		t.Fatalf("temp id = %q", res.TempID)
	}
	if res.QueueID == 0 {
		t.Fatal("queue id missing")
	}

	pending, _ := q.NextPending(context.Background(), repository.EntityMockup, 10)
	if len(pending) != 1 || pending[0].Type != repository.ChangeUpdate || pending[0].UserID != "u1" {
		t.Fatalf("queued: %+v", pending)
	}
}

func TestDo_InvalidEntity(t *testing.T) {
	c, _, _ := newTestCoordinator(false)
	_, err := c.Do(context.Background(), "u1", repository.ChangeCreate, "floppy", nil,
		func(ctx context.Context) (any, error) { return nil, nil },
	)
	if !errors.Is(err, repository.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestOnline_CachesProbe(t *testing.T) {
	c, _, p := newTestCoordinator(true)
	ctx := context.Background()

	if !c.Online(ctx) {
		t.Fatal("expected online")
	}
	// El cambio de conectividad no se ve hasta invalidar el cache del probe.
	p.online = false
	if !c.Online(ctx) {
		t.Fatal("probe result should still be cached")
	}
	c.InvalidateProbe()
	if c.Online(ctx) {
		t.Fatal("expected offline after invalidate")
	}
}

func TestRetryUpload_SucceedsAfterFailures(t *testing.T) {
	c, _, _ := newTestCoordinator(true)

	calls := 0
	err := c.RetryUpload(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryUpload_TerminalEmbedsLastCause(t *testing.T) {
	c, _, _ := newTestCoordinator(true)
	cause := errors.New("quota exceeded")

	calls := 0
	err := c.RetryUpload(context.Background(), func(ctx context.Context) error {
		calls++
		return cause
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want maxRetries=3", calls)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("terminal error must wrap last cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("error = %v", err)
	}
}

func TestRetryUpload_OfflineAborts(t *testing.T) {
	c, _, _ := newTestCoordinator(false)

	calls := 0
	err := c.RetryUpload(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("want ErrOffline, got %v", err)
	}
	if calls != 0 {
		t.Fatal("fn must not run while offline")
	}
}

func TestRetryUpload_ContextCancel(t *testing.T) {
	c, _, _ := newTestCoordinator(true)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.RetryUpload(ctx, func(ctx context.Context) error {
			calls++
			if calls == 1 {
				cancel()
			}
			return errors.New("fail")
		})
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}
