package core

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smartystreets/clock"
	"github.com/smartystreets/logging"

	"github.com/smarty/prebuilt/contracts"
)

const (
	initialRetryInterval = time.Second
	maxRetryInterval     = 30 * time.Second
)

// RetryFetcher repeats transient (contracts.RetryErr) failures of the inner
// fetcher with exponential backoff. Anything else is returned immediately.
type RetryFetcher struct {
	sleeper  *clock.Sleeper
	logger   *logging.Logger
	inner    contracts.Fetcher
	maxRetry int
}

func NewRetryFetcher(inner contracts.Fetcher, maxRetry int) *RetryFetcher {
	if maxRetry < 0 {
		maxRetry = 0
	}
	return &RetryFetcher{inner: inner, maxRetry: maxRetry}
}

func (this *RetryFetcher) Fetch(ctx context.Context, address string) (artifact contracts.Artifact, err error) {
	schedule := newBackOff()
	for x := 0; x <= this.maxRetry; x++ {
		artifact, err = this.inner.Fetch(ctx, address)
		if err == nil {
			return artifact, nil
		}
		if !errors.Is(err, contracts.RetryErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if x < this.maxRetry {
			delay := schedule.NextBackOff()
			this.logger.Printf("[WARN] download of %s failed (%v), retry %d of %d in %s.", address, err, x+1, this.maxRetry, delay)
			if sleepErr := this.sleep(ctx, delay); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
	return nil, err
}

func (this *RetryFetcher) sleep(ctx context.Context, delay time.Duration) error {
	if this.sleeper != nil {
		this.sleeper.Sleep(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     initialRetryInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxRetryInterval,
	}
}
