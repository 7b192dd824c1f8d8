package glide

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// backoffPolicy builds the reconnect schedule described in §4.2: a
// deterministic exponential backoff (no jitter) bounded by maxInterval,
// retried indefinitely until the caller stops pulling from it. Using
// backoff/v4 here is a direct carry-over of the teacher's own reconnect
// loop dependency, generalized from a fixed Reconnect interval to a full
// exponential schedule per the expanded spec.
func backoffPolicy(base, max time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // retry forever; the caller decides when to stop
	return b
}

// retryReconnect calls connect repeatedly on the given schedule until it
// succeeds or stop is closed. It is the connection-level counterpart to
// the request-level MOVED/ASK redirection handled in topology.go/router.go.
func retryReconnect(connect func() error, base, max time.Duration, stop <-chan struct{}) error {
	b := backoffPolicy(base, max)
	for {
		err := connect()
		if err == nil {
			return nil
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return err
		}
	}
}
