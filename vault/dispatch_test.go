// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/vaultbench/vaultbench/logger"
)

func newDispatchClient(t *testing.T, maxConcurrency int) *Client {
	t.Helper()
	c, err := NewClient(
		&Config{VaultURL: "http://vault.invalid", VaultID: "v1", MaxConcurrency: maxConcurrency},
		OptClientLogger(logger.NopLogger),
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCallOutcomeLifecycle(t *testing.T) {
	var o callOutcome
	if o.state != statePending {
		t.Fatalf("zero outcome should be pending, got %d", o.state)
	}

	o.state = stateInFlight
	o.state = stateRetrying
	o.finalize([]string{"v"}, nil, 12)
	if o.state != stateSucceeded || o.latencyMs != 12 {
		t.Fatalf("unexpected outcome after success: %+v", o)
	}

	// Terminal outcomes never transition.
	o.finalize(nil, errors.New("late failure"), 99)
	if o.state != stateSucceeded || o.err != nil || o.latencyMs != 12 {
		t.Fatalf("terminal outcome transitioned: %+v", o)
	}

	var f callOutcome
	f.state = stateInFlight
	f.finalize(nil, errors.New("blah"), 5)
	if f.state != stateFailed || f.err == nil {
		t.Fatalf("unexpected outcome after failure: %+v", f)
	}
	f.finalize([]string{"v"}, nil, 1)
	if f.state != stateFailed || f.latencyMs != 5 {
		t.Fatalf("failed outcome transitioned: %+v", f)
	}
}

func TestDispatchOutcomes(t *testing.T) {
	c := newDispatchClient(t, 4)

	outcomes, wall := c.dispatch(context.Background(), 5, func(ctx context.Context, i int, onRetry func()) ([]string, error) {
		if i == 3 {
			return nil, errors.New("blah")
		}
		return []string{"r"}, nil
	})

	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	if wall < 0 {
		t.Fatalf("negative wall time")
	}
	for i := range outcomes {
		if !outcomes[i].terminal() {
			t.Fatalf("outcome %d not terminal: %+v", i, outcomes[i])
		}
	}
	if outcomes[3].state != stateFailed || outcomes[3].err == nil {
		t.Errorf("outcome 3 should have failed: %+v", outcomes[3])
	}
	for _, i := range []int{0, 1, 2, 4} {
		if outcomes[i].state != stateSucceeded || len(outcomes[i].results) != 1 {
			t.Errorf("outcome %d should have succeeded: %+v", i, outcomes[i])
		}
	}
}

func TestDispatchBound(t *testing.T) {
	c := newDispatchClient(t, 4)

	var inFlight, maxInFlight int64
	outcomes, _ := c.dispatch(context.Background(), 20, func(ctx context.Context, i int, onRetry func()) ([]string, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return []string{"r"}, nil
	})

	if got := atomic.LoadInt64(&maxInFlight); got > 4 {
		t.Fatalf("concurrency bound exceeded: %d calls in flight", got)
	}
	for i := range outcomes {
		if outcomes[i].state != stateSucceeded {
			t.Fatalf("outcome %d: %+v", i, outcomes[i])
		}
	}
}

func TestDispatchPanicFinalizesSlot(t *testing.T) {
	c := newDispatchClient(t, 2)

	outcomes, _ := c.dispatch(context.Background(), 3, func(ctx context.Context, i int, onRetry func()) ([]string, error) {
		if i == 1 {
			panic("boom")
		}
		return []string{"r"}, nil
	})

	for i := range outcomes {
		if !outcomes[i].terminal() {
			t.Fatalf("outcome %d not terminal after panic: %+v", i, outcomes[i])
		}
	}
	if outcomes[1].state != stateFailed {
		t.Fatalf("panicked sub-batch should be failed: %+v", outcomes[1])
	}
	if !strings.Contains(outcomes[1].err.Error(), "panic") {
		t.Errorf("unexpected error for panicked sub-batch: %v", outcomes[1].err)
	}
	if outcomes[0].state != stateSucceeded || outcomes[2].state != stateSucceeded {
		t.Errorf("sibling sub-batches affected by panic: %+v %+v", outcomes[0], outcomes[2])
	}
}

func TestDispatchCanceledBeforeStart(t *testing.T) {
	c := newDispatchClient(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	outcomes, _ := c.dispatch(ctx, 4, func(ctx context.Context, i int, onRetry func()) ([]string, error) {
		atomic.AddInt64(&calls, 1)
		return []string{"r"}, nil
	})

	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("canceled dispatch still made %d calls", calls)
	}
	for i := range outcomes {
		if outcomes[i].state != stateFailed {
			t.Fatalf("outcome %d should have failed: %+v", i, outcomes[i])
		}
		if outcomes[i].err != context.Canceled {
			t.Errorf("outcome %d: expected context.Canceled, got %v", i, outcomes[i].err)
		}
	}
}
