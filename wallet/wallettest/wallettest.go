// Package wallettest holds the conformance suite shared by wallet backends.
package wallettest

import (
	"bytes"
	"context"
	"testing"

	"xdao.co/didkey/did"
	"xdao.co/didkey/wallet"
)

// NewBackend constructs a backend and a config naming a store that does not
// exist yet. The returned store MUST be isolated from other tests.
type NewBackend func(t *testing.T) (wallet.Backend, wallet.Config)

type counterReader struct{ b byte }

func (r *counterReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func mustDocument(t *testing.T, start byte, keys did.KeyStore) *did.Document {
	t.Helper()
	doc, err := did.NewEngine(did.EngineConfig{Rand: &counterReader{b: start}, Keys: keys}).
		Synthesize(context.Background(), did.Options{Scheme: did.SchemeEd25519})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	return doc
}

func provisionAndOpen(t *testing.T, newBackend NewBackend) (wallet.Backend, wallet.Config, wallet.Store) {
	t.Helper()
	b, cfg := newBackend(t)
	ctx := context.Background()
	if err := b.Provision(ctx, cfg); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	s, err := b.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return b, cfg, s
}

func wantCode(t *testing.T, op string, err error, code wallet.ErrorCode) {
	t.Helper()
	if got := wallet.CodeOf(err); got != code {
		t.Fatalf("%s: got code %q (%v), want %q", op, got, err, code)
	}
}

func RunBackendConformance(t *testing.T, newBackend NewBackend) {
	t.Helper()
	ctx := context.Background()

	t.Run("ProvisionTwiceReportsAlreadyExists", func(t *testing.T) {
		b, cfg := newBackend(t)
		if err := b.Provision(ctx, cfg); err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
		wantCode(t, "second Provision", b.Provision(ctx, cfg), wallet.CodeAlreadyExists)
		s, err := b.Open(ctx, cfg)
		if err != nil {
			t.Fatalf("Open after re-provision failed: %v", err)
		}
		_ = s.Close()
	})

	t.Run("OpenUnprovisioned", func(t *testing.T) {
		b, cfg := newBackend(t)
		_, err := b.Open(ctx, cfg)
		wantCode(t, "Open", err, wallet.CodeNotFound)
	})

	t.Run("WrongKey", func(t *testing.T) {
		b, cfg := newBackend(t)
		if err := b.Provision(ctx, cfg); err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
		bad := cfg
		bad.Key = cfg.Key + "-wrong"
		_, err := b.Open(ctx, bad)
		wantCode(t, "Open with wrong key", err, wallet.CodeWrongKey)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		b, cfg := newBackend(t)
		bad := cfg
		bad.ID = "../escape"
		wantCode(t, "Provision", b.Provision(ctx, bad), wallet.CodeInvalidConfig)
	})

	t.Run("KeyRoundTrip", func(t *testing.T) {
		_, _, s := provisionAndOpen(t, newBackend)
		doc := mustDocument(t, 0x11, s)
		kid := did.SelfKeyID(doc.ID())

		kp, err := s.LoadKey(ctx, kid)
		if err != nil {
			t.Fatalf("LoadKey failed: %v", err)
		}
		id, err := did.FromPublicKey(kp.Type(), kp.PublicKey())
		if err != nil {
			t.Fatalf("FromPublicKey failed: %v", err)
		}
		if id != doc.ID() {
			t.Fatalf("loaded key derives %s, want %s", id, doc.ID())
		}
	})

	t.Run("DuplicateKidRejected", func(t *testing.T) {
		_, _, s := provisionAndOpen(t, newBackend)
		doc := mustDocument(t, 0x22, s)
		kp, err := s.LoadKey(ctx, did.SelfKeyID(doc.ID()))
		if err != nil {
			t.Fatalf("LoadKey failed: %v", err)
		}
		wantCode(t, "second StoreKey", s.StoreKey(ctx, did.SelfKeyID(doc.ID()), kp), wallet.CodeAlreadyExists)
	})

	t.Run("DeleteKey", func(t *testing.T) {
		_, _, s := provisionAndOpen(t, newBackend)
		doc := mustDocument(t, 0x77, s)
		kid := did.SelfKeyID(doc.ID())
		if err := s.DeleteKey(ctx, kid); err != nil {
			t.Fatalf("DeleteKey failed: %v", err)
		}
		_, err := s.LoadKey(ctx, kid)
		wantCode(t, "LoadKey after DeleteKey", err, wallet.CodeNotFound)
		wantCode(t, "second DeleteKey", s.DeleteKey(ctx, kid), wallet.CodeNotFound)

		// The kid is free again.
		mustDocument(t, 0x77, s)
	})

	t.Run("LoadMissingKey", func(t *testing.T) {
		_, _, s := provisionAndOpen(t, newBackend)
		_, err := s.LoadKey(ctx, "did:key:z6MkMissing#z6MkMissing")
		wantCode(t, "LoadKey", err, wallet.CodeNotFound)
	})

	t.Run("DocumentRoundTrip", func(t *testing.T) {
		_, _, s := provisionAndOpen(t, newBackend)
		doc := mustDocument(t, 0x33, nil)

		id, err := s.PutDocument(ctx, doc)
		if err != nil {
			t.Fatalf("PutDocument failed: %v", err)
		}
		again, err := s.PutDocument(ctx, doc)
		if err != nil {
			t.Fatalf("second PutDocument failed: %v", err)
		}
		if !again.Equals(id) {
			t.Fatalf("PutDocument not deterministic: %s vs %s", id, again)
		}

		got, err := s.GetDocument(ctx, doc.ID())
		if err != nil {
			t.Fatalf("GetDocument failed: %v", err)
		}
		want, _ := doc.MarshalJSON()
		have, _ := got.MarshalJSON()
		if !bytes.Equal(want, have) {
			t.Fatalf("document mismatch:\n%s\n%s", want, have)
		}

		_, err = s.GetDocument(ctx, "did:key:z6MkMissing")
		wantCode(t, "GetDocument missing", err, wallet.CodeNotFound)
	})

	t.Run("PersistsAcrossOpen", func(t *testing.T) {
		b, cfg, s := provisionAndOpen(t, newBackend)
		doc := mustDocument(t, 0x44, s)
		if _, err := s.PutDocument(ctx, doc); err != nil {
			t.Fatalf("PutDocument failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		reopened, err := b.Open(ctx, cfg)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer reopened.Close()
		if _, err := reopened.LoadKey(ctx, did.SelfKeyID(doc.ID())); err != nil {
			t.Fatalf("LoadKey after reopen failed: %v", err)
		}
		if _, err := reopened.GetDocument(ctx, doc.ID()); err != nil {
			t.Fatalf("GetDocument after reopen failed: %v", err)
		}
	})

	t.Run("ClosedStore", func(t *testing.T) {
		_, _, s := provisionAndOpen(t, newBackend)
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("second Close failed: %v", err)
		}
		_, err := s.LoadKey(ctx, "did:key:z6MkA#z6MkA")
		wantCode(t, "LoadKey after Close", err, wallet.CodeClosed)
		_, err = s.PutDocument(ctx, mustDocument(t, 0x55, nil))
		wantCode(t, "PutDocument after Close", err, wallet.CodeClosed)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		_, _, s := provisionAndOpen(t, newBackend)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := s.PutDocument(cctx, mustDocument(t, 0x66, nil)); err == nil {
			t.Fatalf("PutDocument with cancelled context succeeded")
		}
	})
}
