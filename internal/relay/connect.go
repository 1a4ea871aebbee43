package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
	Target() string
}

// WaitForDownstream probes the next hop until it accepts a mutual-TLS
// connection, giving up after retries further attempts spaced interval apart.
func WaitForDownstream(ctx context.Context, p Pinger, retries int, interval time.Duration, logger *zap.SugaredLogger) error {
	attempt := 0
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(retries)), ctx)

	err := backoff.Retry(func() error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			logger.Warnw("Downstream not ready", "target", p.Target(), "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, b)
	if err != nil {
		return fmt.Errorf("downstream %s unreachable after %d attempts: %w", p.Target(), attempt, err)
	}

	logger.Infow("Connected to downstream", "target", p.Target(), "attempts", attempt)
	return nil
}
