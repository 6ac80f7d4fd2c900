// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vaultbench/vaultbench/vault/egpool"
)

// subBatchState tracks a sub-batch through the dispatcher:
//
//	pending → in-flight → succeeded
//	                    → retrying → succeeded
//	                               → failed
//
// succeeded and failed are terminal; an outcome never leaves a terminal
// state.
type subBatchState int

const (
	statePending subBatchState = iota
	stateInFlight
	stateRetrying
	stateSucceeded
	stateFailed
)

// callOutcome is the record of one sub-batch call. Until the dispatch
// barrier each outcome has exactly one writer — the worker goroutine
// running that sub-batch; after the barrier the dispatcher finalizes
// anything a dead worker left behind.
type callOutcome struct {
	state     subBatchState
	results   []string
	err       error
	latencyMs int64
}

// terminal reports whether the outcome reached a final state.
func (o *callOutcome) terminal() bool {
	return o.state == stateSucceeded || o.state == stateFailed
}

// finalize records the call's result, moving the outcome to succeeded or
// failed. Calling it on a terminal outcome is a no-op.
func (o *callOutcome) finalize(results []string, err error, latencyMs int64) {
	if o.terminal() {
		return
	}
	o.latencyMs = latencyMs
	if err != nil {
		o.state = stateFailed
		o.err = err
		return
	}
	o.state = stateSucceeded
	o.results = results
}

// subBatchCall performs the HTTP exchange for sub-batch i, reporting a
// retry attempt through onRetry.
type subBatchCall func(ctx context.Context, i int, onRetry func()) ([]string, error)

// dispatch runs n sub-batch calls with at most cfg.MaxConcurrency in flight
// at any instant, timing each from dispatch to completion. It blocks until
// every sub-batch is terminal — there is no partial delivery — and returns
// one outcome per sub-batch plus the wall-clock span of the whole fan-out.
//
// Cancellation: a sub-batch not yet picked up when ctx is canceled fails
// with the cancellation error without touching the network; in-flight HTTP
// calls are aborted by the context and fail through the normal path.
// Outcomes already terminal keep their results.
func (c *Client) dispatch(ctx context.Context, n int, call subBatchCall) ([]callOutcome, time.Duration) {
	outcomes := make([]callOutcome, n)
	eg := egpool.Group{PoolSize: c.cfg.MaxConcurrency}
	start := time.Now()

	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			out := &outcomes[i]
			out.state = stateInFlight

			if err := ctx.Err(); err != nil {
				out.finalize(nil, err, 0)
				return nil
			}

			callStart := time.Now()
			results, err := call(ctx, i, func() {
				out.state = stateRetrying
				c.Stats.Count(MetricVaultCallRetries, 1, 1.0)
			})
			elapsed := time.Since(callStart)
			out.finalize(results, err, elapsed.Milliseconds())

			c.Stats.Count(MetricVaultCalls, 1, 1.0)
			c.Stats.Timing(MetricVaultCallDurationSeconds, elapsed, 1.0)
			if err != nil {
				c.Stats.Count(MetricVaultCallErrors, 1, 1.0)
				c.logger.Errorf("sub-batch %d failed: %v", i, err)
			}
			return nil
		})
	}

	perr := eg.Wait()
	wall := time.Since(start)
	if perr != nil {
		c.logger.Errorf("sub-batch worker: %v", perr)
	}

	// A worker killed mid-job (panic, Goexit) leaves its slot non-terminal.
	// Fail it here so the caller still gets a full outcome set.
	for i := range outcomes {
		if outcomes[i].terminal() {
			continue
		}
		err := perr
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			err = errors.New("sub-batch never completed")
		}
		outcomes[i].finalize(nil, err, 0)
	}

	return outcomes, wall
}
