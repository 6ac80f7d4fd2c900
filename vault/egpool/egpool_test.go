package egpool_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vaultbench/vaultbench/vault/egpool"
)

func TestEGPool(t *testing.T) {
	eg := egpool.Group{}

	a := make([]int, 10)

	for i := 0; i < 10; i++ {
		i := i
		eg.Go(func() error {
			a[i] = i
			if i == 7 {
				return errors.New("blah")
			}
			return nil
		})
	}

	err := eg.Wait()
	if err == nil || err.Error() != "blah" {
		t.Errorf("expected err blah, got: %v", err)
	}

	for i := 0; i < 10; i++ {
		if a[i] != i {
			t.Errorf("expected a[%d] to be %d, but is %d", i, i, a[i])
		}
	}

	if len(eg.Errors()) != 1 {
		t.Errorf("expected 1 error, got: %v", eg.Errors())
	}
}

func TestEGPoolBound(t *testing.T) {
	eg := egpool.Group{PoolSize: 3}

	var inFlight, maxInFlight int64
	for i := 0; i < 20; i++ {
		eg.Go(func() error {
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				max := atomic.LoadInt64(&maxInFlight)
				if cur <= max || atomic.CompareAndSwapInt64(&maxInFlight, max, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt64(&maxInFlight); got > 3 {
		t.Errorf("pool ran %d jobs at once, want at most 3", got)
	}
}

func TestEGPoolPanic(t *testing.T) {
	eg := egpool.Group{PoolSize: 2}

	for i := 0; i < 4; i++ {
		i := i
		eg.Go(func() error {
			if i == 2 {
				panic("boom")
			}
			return nil
		})
	}

	err := eg.Wait()
	if err == nil {
		t.Fatal("expected an error from the panicking job")
	}
	var ep egpool.ErrPanic
	if !errors.As(err, &ep) {
		t.Fatalf("expected ErrPanic, got: %v", err)
	}
	if ep.Value != "boom" {
		t.Errorf("expected panic value boom, got: %v", ep.Value)
	}
}

func TestEGPoolEmpty(t *testing.T) {
	eg := egpool.Group{}
	if err := eg.Wait(); err != nil {
		t.Fatalf("Wait on empty group: %v", err)
	}
}
