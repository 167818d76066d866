package fetch

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs op under the configured exponential backoff policy:
// the first retry waits the initial backoff, each further retry
// doubles it up to the cap, and the retry budget bounds the total
// attempt count. Context cancellation stops the loop immediately.
func (g *Gate) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.cfg.InitialBackoff()
	policy.MaxInterval = g.cfg.MaxBackoff()
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	return backoff.Retry(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.cfg.Retries())), ctx))
}

// backoffPermanent marks an error as non-retryable.
func backoffPermanent(err error) error {
	return backoff.Permanent(err)
}
