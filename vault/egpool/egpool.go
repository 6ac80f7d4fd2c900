// Package egpool provides a bounded-concurrency variant of errgroup.Group.
//
// Jobs submitted with Go run on at most PoolSize workers. A job that
// panics, or that exits via runtime.Goexit, is recorded as an error rather
// than crashing the process, so one bad sub-batch call cannot take down the
// dispatcher and the batch it is part of.
package egpool

import (
	"errors"
	"fmt"
	"sync"
)

// Group runs jobs on a bounded pool of workers. The zero value is usable;
// PoolSize defaults to 1 if unset. Go and Wait must not be called
// concurrently with each other.
type Group struct {
	PoolSize int

	jobs chan func() error

	sema     chan struct{}
	errMu    sync.Mutex
	firstErr error
	errs     []error
}

// Go submits a job. It starts a new worker only if no idle worker picks the
// job up and the pool is not yet at PoolSize, so an underfilled group never
// spawns more workers than it has jobs.
func (g *Group) Go(fn func() error) {
	if g.PoolSize <= 0 {
		g.PoolSize = 1
	}

	if g.jobs == nil {
		g.jobs = make(chan func() error)
		g.sema = make(chan struct{}, g.PoolSize)
	}

	// Hand the job to an idle worker if there is one.
	select {
	case g.jobs <- fn:
		return
	default:
	}

	select {
	case g.jobs <- fn:
		// A worker freed up and took it.
		return
	case g.sema <- struct{}{}:
		// Pool has room; start a worker for it.
		go g.work()
		g.jobs <- fn
	}
}

func (g *Group) err(err error) {
	g.errMu.Lock()
	defer g.errMu.Unlock()

	if g.firstErr == nil {
		g.firstErr = err
	}
	g.errs = append(g.errs, err)
}

// ErrPanic wraps a value recovered from a panicking job.
type ErrPanic struct {
	Value interface{}
}

func (p ErrPanic) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// ErrGoexit is recorded when a job function calls runtime.Goexit (e.g. via
// testing.T.Fatal from inside a job).
var ErrGoexit = errors.New("runtime.Goexit used in job function")

func (g *Group) work() {
	// Release the pool slot on the way out.
	defer func() { <-g.sema }()

	// Capture panic and Goexit so the slot is always released.
	var finished bool
	defer func() {
		if !finished {
			if p := recover(); p != nil {
				g.err(ErrPanic{p})
			} else {
				g.err(ErrGoexit)
			}
		}
	}()

	for fn := range g.jobs {
		if err := fn(); err != nil {
			g.err(err)
		}
	}

	finished = true
}

// Wait blocks until every submitted job has finished and returns the first
// error any job reported, if any.
func (g *Group) Wait() error {
	if g.jobs == nil {
		return nil
	}
	close(g.jobs)
	for i := 0; i < g.PoolSize; i++ {
		g.sema <- struct{}{}
	}
	return g.firstErr
}

// Errors returns every error reported by jobs, in completion order.
func (g *Group) Errors() []error {
	return g.errs
}
