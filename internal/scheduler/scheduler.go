// Package scheduler runs the pipeline on a fixed interval for unattended
// hosts. One-shot invocations use `leadgen run` instead.
package scheduler

import (
	"context"
	"log"
	"math/rand/v2"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then once per interval until the context is
// cancelled. A small random offset (up to 5% of the interval) is added to each
// wait so repeated runs don't land on the sources at the exact same second of
// the hour. Task errors are logged, never fatal; the next tick still fires.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	for {
		started := time.Now()
		if err := task(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[%s] run failed: %v", name, err)
		}

		wait := interval - time.Since(started)
		if wait < time.Minute {
			wait = time.Minute
		}
		if j := int64(interval / 20); j > 0 {
			wait += time.Duration(rand.Int64N(j))
		}
		log.Printf("[%s] next run in %s", name, wait.Round(time.Second))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
