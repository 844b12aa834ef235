package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mockforge/mockforge/internal/store/memory"
)

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(memory.NewStateRepo(), 10*time.Minute)

	st, err := s.CreateState(ctx, "u1", "dropbox")
	if err != nil {
		t.Fatal(err)
	}
	if len(st) < 20 {
		t.Fatalf("state too short: %q", st)
	}

	rec, err := s.ConsumeState(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if rec.UserID != "u1" || rec.IntegrationID != "dropbox" {
		t.Fatalf("record: %+v", rec)
	}

	// Single-use: el segundo consumo falla.
	if _, err := s.ConsumeState(ctx, st); !errors.Is(err, ErrStateInvalid) {
		t.Fatalf("want ErrStateInvalid, got %v", err)
	}
}

func TestStateStore_UnknownAndEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(memory.NewStateRepo(), time.Minute)

	if _, err := s.ConsumeState(ctx, "never-issued"); !errors.Is(err, ErrStateInvalid) {
		t.Fatalf("want ErrStateInvalid, got %v", err)
	}
	if _, err := s.ConsumeState(ctx, ""); !errors.Is(err, ErrStateInvalid) {
		t.Fatalf("want ErrStateInvalid for empty state, got %v", err)
	}
}

func TestStateStore_StatesAreUnique(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(memory.NewStateRepo(), time.Minute)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		st, err := s.CreateState(ctx, "u1", "figma")
		if err != nil {
			t.Fatal(err)
		}
		if seen[st] {
			t.Fatalf("duplicate state generated: %q", st)
		}
		seen[st] = true
	}
}
