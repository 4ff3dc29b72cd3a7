package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	pingAttempts = 5
	pingTimeout  = 5 * time.Second
	firstBackoff = 500 * time.Millisecond
)

// pingWithRetry keeps pinging a freshly created client while its backend
// comes up, doubling the wait between attempts.
func pingWithRetry(ctx context.Context, log zerolog.Logger, backend string, ping func(context.Context) error) error {
	backoff := firstBackoff
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == pingAttempts {
			break
		}
		log.Warn().Err(err).
			Str("backend", backend).
			Int("attempt", attempt).
			Dur("retry_in", backoff).
			Msg("Backend not ready")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
