package kv

import "context"

// Namespaced scopes every key of an inner store under "ws:<namespace>:".
type Namespaced struct {
	inner  Store
	prefix string
}

func WithNamespace(inner Store, namespace string) *Namespaced {
	return &Namespaced{inner: inner, prefix: "ws:" + namespace + ":"}
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *Namespaced) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return n.inner.Update(ctx, n.prefix+key, fn)
}
