// Package cache implements the invalidate_cache(tenant_id) side-effect
// port named in SPEC_FULL.md §6. The original source
// (cache_handler.py) shipped a handler whose real Redis-backed body was
// present but disabled behind an early return; this package keeps that
// shape as two concrete implementations instead of one compile-time
// dead branch: NoopInvalidator (what the disabled path effectively was)
// and RedisInvalidator (what it would have been).
package cache

import "context"

// Invalidator is the side-effect port invoked after every successful
// use-case session.
type Invalidator interface {
	// Invalidate drops any cached view keyed by tenantID. slug, when
	// non-empty, is an additional human-readable key some callers also
	// cache by (e.g. a company slug), mirroring the source's dual-key
	// invalidation.
	Invalidate(ctx context.Context, tenantID, slug string) error
}

// NoopInvalidator discards every call. Used in tests and in
// deployments with no cache layer in front of the repository.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(ctx context.Context, tenantID, slug string) error {
	return nil
}
