package engine

import (
	"context"
	"sync"
)

// Completion is the result handle of an asynchronous operation. It resolves
// exactly once and cannot be cancelled.
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// completed returns an already resolved Completion.
func completed(err error) *Completion {
	c := newCompletion()
	c.resolve(err)
	return c
}

func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed once the operation has finished.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the outcome, or nil while the operation is still pending.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the operation finishes and returns its error.
func (c *Completion) Wait() error {
	<-c.done
	return c.err
}

// WaitContext is like Wait but gives up when ctx is done. Giving up does not
// cancel the operation.
func (c *Completion) WaitContext(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failed returns a Completion already resolved with err.
func Failed(err error) *Completion {
	return completed(err)
}
