// Package catalog implements the contracted-service catalog port named
// as out-of-scope surface in the specification's §1 and given a
// concrete contract in SPEC_FULL.md §6. It is consulted only by the
// renew use case, never by the ledger aggregate itself — resolving Open
// Question 9.5's third point: the source reads
// status_financeiro == "ativo" in its adapter layer but never threads
// it into the domain, and this rewrite preserves that separation.
package catalog

import "context"

// ServiceCatalog reports whether a contracted service is still active.
type ServiceCatalog interface {
	IsActive(ctx context.Context, contractedServiceID string) (bool, error)
}

// AlwaysActive treats every contracted service as active. This is the
// default when no catalog is wired in, preserving the pre-expansion
// behavior where renew never skips a batch for this reason.
type AlwaysActive struct{}

func (AlwaysActive) IsActive(ctx context.Context, contractedServiceID string) (bool, error) {
	return true, nil
}
