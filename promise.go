package findorcreate

import "context"

// Callback receives the outcome of a call. On error res is the zero Result.
type Callback func(err error, res Result)

// Promise is the pending outcome of an asynchronous FindOrCreate.
type Promise struct {
	done chan struct{}
	res  Result
	err  error
}

func newPromise(fn func() (Result, error)) *Promise {
	p := &Promise{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.res, p.err = fn()
	}()
	return p
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Exec waits for the promise and hands its outcome to cb, like passing cb to
// the call directly. It does not run the operation again.
func (p *Promise) Exec(cb Callback) {
	<-p.done
	if cb != nil {
		cb(p.err, p.res)
	}
}
