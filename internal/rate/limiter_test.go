package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "u1|/sync")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d debería pasar", i)
		}
		if want := int64(3 - i); res.Remaining != want {
			t.Fatalf("remaining = %d, want %d", res.Remaining, want)
		}
	}

	res, err := l.Allow(ctx, "u1|/sync")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("cuarto hit debería bloquearse")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("RetryAfter = %v", res.RetryAfter)
	}

	// Otra key no comparte ventana.
	res, err = l.Allow(ctx, "u2|/sync")
	if err != nil || !res.Allowed {
		t.Fatalf("otra key bloqueada: %+v, %v", res, err)
	}
}
