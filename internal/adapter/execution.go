package adapter

import (
	"context"
	"errors"
	"time"
)

// OutcomeKind tags how an execution resolved.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Failure
	Cancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the resolved result of an execution. Results is non-empty
// on Success; Err is set otherwise (ErrCancelled for Cancelled).
type Outcome struct {
	Kind    OutcomeKind
	Results []Result
	Err     error
	Elapsed time.Duration
}

// Execution is a running statement batch. The token is available as soon
// as the Execution exists; the outcome once Done is closed.
type Execution struct {
	token   *Token
	done    chan struct{}
	outcome Outcome
}

// RunFunc runs a statement batch. Implementations bind tok to their
// backend abort around each native call.
type RunFunc func(ctx context.Context, tok *Token) ([]Result, error)

// Start runs fn on its own goroutine and returns without waiting.
func Start(ctx context.Context, fn RunFunc) *Execution {
	e := &Execution{token: newToken(), done: make(chan struct{})}
	go func() {
		start := time.Now()
		results, err := fn(ctx, e.token)
		e.resolve(results, err, time.Since(start))
	}()
	return e
}

// Failed returns an execution that has already resolved with err.
func Failed(err error) *Execution {
	e := &Execution{token: newToken(), done: make(chan struct{})}
	e.resolve(nil, err, 0)
	return e
}

func (e *Execution) resolve(results []Result, err error, elapsed time.Duration) {
	out := Outcome{Elapsed: elapsed}
	switch {
	case err != nil && (errors.Is(err, ErrCancelled) || e.token.Cancelled()):
		out.Kind = Cancelled
		out.Err = ErrCancelled
	case err != nil:
		out.Kind = Failure
		out.Err = err
	default:
		if len(results) == 0 {
			results = []Result{StatusResult("", 0)}
		}
		out.Kind = Success
		out.Results = results
	}
	e.token.finish()
	e.outcome = out
	close(e.done)
}

// Token returns the cancellation handle.
func (e *Execution) Token() *Token { return e.token }

// Done is closed when the outcome is available.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Outcome blocks until the execution resolves.
func (e *Execution) Outcome() Outcome {
	<-e.done
	return e.outcome
}

// Wait is Outcome bounded by ctx. Giving up on the wait does not cancel
// the execution.
func (e *Execution) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-e.done:
		return e.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
