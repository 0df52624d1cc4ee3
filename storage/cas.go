// Package storage defines the content-addressed store that persists
// serialized identity documents.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is a minimal content-addressable storage interface.
//
// Contract:
//   - Put MUST be idempotent: equal bytes yield the same CID and no error.
//   - Stored objects MUST be immutable.
//   - CIDs are CIDv1 raw sha2-256 of the bytes written (see cidutil).
//   - Get MUST return ErrNotFound when the CID is absent and ErrCIDMismatch
//     when stored bytes no longer hash to the CID.
//   - Operations return ctx.Err() once ctx is done.
type CAS interface {
	Put(ctx context.Context, b []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}
