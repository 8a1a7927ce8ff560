package gridstore

import (
	"context"
	"errors"
)

var errNoResult = errors.New("gridstore: result channel closed without a value")

// Result carries the outcome of an asynchronous registry call.
type Result[T any] struct {
	Value T
	Err   error
}

func async[T any](fn func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := fn()
		ch <- Result[T]{Value: v, Err: err}
		close(ch)
	}()
	return ch
}

// WriteAsync runs Write in its own goroutine. The channel receives exactly
// one Result and is then closed.
func (r *Registry) WriteAsync(ctx context.Context, src Source, opts WriteOptions) <-chan Result[*FileRecord] {
	return async(func() (*FileRecord, error) {
		return r.Write(ctx, src, opts)
	})
}

func (r *Registry) ReadAsync(ctx context.Context, selector any) <-chan Result[*File] {
	return async(func() (*File, error) {
		return r.Read(ctx, selector)
	})
}

func (r *Registry) RemoveAsync(ctx context.Context, selector any) <-chan Result[struct{}] {
	return async(func() (struct{}, error) {
		return struct{}{}, r.Remove(ctx, selector)
	})
}

// Then calls fn once with the first Result received from ch. It does not
// block the caller.
func Then[T any](ch <-chan Result[T], fn func(T, error)) {
	go func() {
		res, ok := <-ch
		if !ok {
			var zero T
			fn(zero, errNoResult)
			return
		}
		fn(res.Value, res.Err)
	}()
}
