// Package testkit holds conformance suites shared by storage implementations.
package testkit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/didkey/cidutil"
	"xdao.co/didkey/did"
	"xdao.co/didkey/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte(`{"id":"did:key:z6MkConformance"}`)

		id, err := cas.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.Sum(want)
		if err != nil {
			t.Fatalf("Sum failed: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := cas.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := cas.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := cidutil.Sum(b)
		if err != nil {
			t.Fatalf("Sum failed: %v", err)
		}

		if ok, err := cas.Has(ctx, id); err != nil || ok {
			t.Fatalf("Has(missing) = %v, %v", ok, err)
		}
		if _, err := cas.Get(ctx, id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := cas.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if ok, err := cas.Has(ctx, id); err != nil || !ok {
			t.Fatalf("Has after Put = %v, %v", ok, err)
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if ok, _ := cas.Has(ctx, undef); ok {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("DIDDocumentPayload", func(t *testing.T) {
		cas := newCAS(t)
		doc, err := did.ResolveDID("did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK", did.Authentication, did.AssertionMethod)
		if err != nil {
			t.Fatalf("ResolveDID failed: %v", err)
		}
		body, err := doc.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON failed: %v", err)
		}

		id, err := cas.Put(ctx, body)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		again, err := doc.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON failed: %v", err)
		}
		if id2, err := cidutil.Sum(again); err != nil || !id2.Equals(id) {
			t.Fatalf("document address not stable: %s vs %s (%v)", id, id2, err)
		}

		got, err := cas.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		parsed, err := did.ParseDocument(got)
		if err != nil {
			t.Fatalf("ParseDocument failed: %v", err)
		}
		if parsed.ID() != doc.ID() {
			t.Fatalf("stored document subject %s, want %s", parsed.ID(), doc.ID())
		}
		kid := did.SelfKeyID(doc.ID())
		if _, err := parsed.DereferenceKey(kid, did.AssertionMethod); err != nil {
			t.Fatalf("DereferenceKey after round trip: %v", err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cas := newCAS(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := cas.Put(cctx, []byte("late")); !errors.Is(err, context.Canceled) {
			t.Fatalf("Put with cancelled ctx: got %v", err)
		}
	})
}
