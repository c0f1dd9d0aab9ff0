package document

import "context"

// Pending is the eventual result of an asynchronous operation.
type Pending[R any] struct {
	done  chan struct{}
	value R
	err   error
}

// start runs fn in a goroutine on ctx; cancelling ctx cancels fn.
func start[R any](ctx context.Context, fn func(context.Context) (R, error)) *Pending[R] {
	p := &Pending[R]{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.value, p.err = fn(ctx)
	}()
	return p
}

// Done is closed once the operation has finished.
func (p *Pending[R]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation finishes and returns its result.
func (p *Pending[R]) Wait() (R, error) {
	<-p.done
	return p.value, p.err
}

// WaitContext is Wait bounded by ctx. Giving up on the wait does not cancel
// the operation, which is governed by the context it was started with.
func (p *Pending[R]) WaitContext(ctx context.Context) (R, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
