package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/mockforge/mockforge/internal/observability/logger"
)

// RetryUpload ejecuta fn con backoff exponencial: baseDelay, duplicando en
// cada intento, hasta maxRetries intentos. Antes de cada intento re-chequea
// conectividad; sin conexión aborta con ErrOffline sin quemar intentos.
// Agotados los intentos retorna un error terminal que envuelve la última
// causa.
func (c *Coordinator) RetryUpload(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := c.baseDelay

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if !c.Online(ctx) {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", ErrOffline, lastErr)
			}
			return ErrOffline
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		logger.From(ctx).Warn("upload attempt failed",
			logger.Attempt(attempt),
			logger.Err(lastErr),
		)

		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		c.InvalidateProbe()
	}
	return fmt.Errorf("offline: upload failed after %d attempts: %w", c.maxRetries, lastErr)
}
