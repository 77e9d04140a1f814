package kv

import "context"

// Quota rejects values larger than a fixed number of bytes, the way a browser
// rejects oversized local storage writes.
type Quota struct {
	inner    Store
	maxBytes int
}

// WithQuota returns inner unchanged when maxBytes is not positive.
func WithQuota(inner Store, maxBytes int) Store {
	if maxBytes <= 0 {
		return inner
	}
	return &Quota{inner: inner, maxBytes: maxBytes}
}

func (q *Quota) Get(ctx context.Context, key string) (string, bool, error) {
	return q.inner.Get(ctx, key)
}

func (q *Quota) Set(ctx context.Context, key, value string) error {
	if len(value) > q.maxBytes {
		return ErrQuotaExceeded
	}
	return q.inner.Set(ctx, key, value)
}

func (q *Quota) Delete(ctx context.Context, key string) error {
	return q.inner.Delete(ctx, key)
}

func (q *Quota) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return q.inner.Update(ctx, key, func(current string, exists bool) (string, error) {
		next, err := fn(current, exists)
		if err != nil {
			return "", err
		}
		if len(next) > q.maxBytes {
			return "", ErrQuotaExceeded
		}
		return next, nil
	})
}
