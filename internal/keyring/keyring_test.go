package keyring

import (
	"testing"

	"xdao.co/didkey/did"
	"xdao.co/didkey/internal/envelope"
	"xdao.co/didkey/wallet"
)

var fastParams = envelope.Params{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestSealOpenKey(t *testing.T) {
	kr, profile, err := Create("pass", fastParams)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	kp, err := did.GenerateKeyPair(did.SchemeEd25519, &deterministicReader{b: 3})
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	kid := did.KeyID("did:key:z6MkA#z6MkA")
	sealed, err := kr.SealKey(kid, kp)
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}

	again, err := Unlock("pass", profile)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	got, err := again.OpenKey(kid, sealed)
	if err != nil {
		t.Fatalf("OpenKey: %v", err)
	}
	if string(got.PublicKey()) != string(kp.PublicKey()) {
		t.Fatalf("restored key differs")
	}
	if _, err := again.OpenKey("did:key:z6MkB#z6MkB", sealed); wallet.CodeOf(err) != wallet.CodeCorrupt {
		t.Fatalf("record opened under a different kid: %v", err)
	}

	again.Destroy()
	if _, err := again.OpenKey(kid, sealed); wallet.CodeOf(err) != wallet.CodeClosed {
		t.Fatalf("after Destroy: %v", err)
	}
}

func TestUnlockErrors(t *testing.T) {
	_, profile, err := Create("right", fastParams)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Unlock("wrong", profile); wallet.CodeOf(err) != wallet.CodeWrongKey {
		t.Fatalf("wrong passphrase: %v", err)
	}
	if _, err := Unlock("right", []byte("garbage")); wallet.CodeOf(err) != wallet.CodeCorrupt {
		t.Fatalf("garbage profile: %v", err)
	}
}
