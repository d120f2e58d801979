package objectstore

import (
	"context"
	"io"
	"strings"
)

// tenantScoped prefixes every key with "tenants/{tenant_id}/" and strips
// that prefix back off on List, so callers work in tenant-relative key
// space regardless of which backend stores the bytes. No backend below
// this decorator is itself tenant-aware.
type tenantScoped struct {
	inner  Store
	prefix string
}

// NewTenantScoped wraps inner so every key is rooted under the given
// tenant's namespace.
func NewTenantScoped(inner Store, tenantID string) Store {
	return &tenantScoped{inner: inner, prefix: "tenants/" + tenantID + "/"}
}

func (t *tenantScoped) scoped(key string) string { return t.prefix + key }

func (t *tenantScoped) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	return t.inner.Put(ctx, t.scoped(key), r, size)
}

func (t *tenantScoped) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return t.inner.Get(ctx, t.scoped(key))
}

func (t *tenantScoped) Head(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := t.inner.Head(ctx, t.scoped(key))
	if err != nil {
		return ObjectInfo{}, err
	}
	info.Key = strings.TrimPrefix(info.Key, t.prefix)
	return info, nil
}

func (t *tenantScoped) Exists(ctx context.Context, key string) (bool, error) {
	return t.inner.Exists(ctx, t.scoped(key))
}

func (t *tenantScoped) Delete(ctx context.Context, key string) error {
	return t.inner.Delete(ctx, t.scoped(key))
}

func (t *tenantScoped) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	infos, err := t.inner.List(ctx, t.scoped(prefix))
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Key = strings.TrimPrefix(infos[i].Key, t.prefix)
	}
	return infos, nil
}

func (t *tenantScoped) Copy(ctx context.Context, srcKey, dstKey string) error {
	return t.inner.Copy(ctx, t.scoped(srcKey), t.scoped(dstKey))
}

func (t *tenantScoped) PutMultipart(ctx context.Context, key string, parts []io.Reader, partSize int64) error {
	return t.inner.PutMultipart(ctx, t.scoped(key), parts, partSize)
}
