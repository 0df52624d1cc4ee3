package did

import (
	"context"
	"errors"
	"testing"
)

func mustDocument(t *testing.T, rels ...Relationship) *Document {
	t.Helper()
	doc, err := NewEngine(EngineConfig{Rand: &deterministicReader{b: 0x40}}).Synthesize(context.Background(), Options{
		Scheme:        SchemeEd25519,
		Relationships: rels,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	return doc
}

func TestResolveScopedToRelationship(t *testing.T) {
	doc := mustDocument(t)
	vm := doc.VerificationMethods()[0]

	got, err := Resolve(doc, vm.ID, Authentication)
	if err != nil {
		t.Fatalf("Resolve authentication: %v", err)
	}
	if got != vm {
		t.Fatalf("resolved %+v want %+v", got, vm)
	}

	_, err = Resolve(doc, vm.ID, AssertionMethod)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Resolve assertionMethod: got %v want NotFoundError", err)
	}
	if nf.KeyID != vm.ID || len(nf.Relationships) != 1 || nf.Relationships[0] != AssertionMethod {
		t.Fatalf("unexpected diagnostics %+v", nf)
	}
	if !errors.Is(err, ErrNotFound) || !IsKind(err, KindNotFound) {
		t.Fatalf("NotFoundError must match ErrNotFound and KindNotFound")
	}
}

func TestResolveAnyOfRelationships(t *testing.T) {
	doc := mustDocument(t)
	vm := doc.VerificationMethods()[0]
	if _, err := Resolve(doc, vm.ID, AssertionMethod, Authentication); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := doc.DereferenceKey(vm.ID, KeyAgreement, CapabilityInvocation); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DereferenceKey: got %v", err)
	}
}

func TestResolveWildcard(t *testing.T) {
	doc, err := NewDocument("did:example:123", []VerificationMethod{
		{ID: "did:example:123#a", Type: "Ed25519VerificationKey2020", Controller: "did:example:123"},
		{ID: "did:example:123#b", Type: "Ed25519VerificationKey2020", Controller: "did:example:123"},
	}, map[Relationship][]KeyID{Authentication: {"did:example:123#a"}})
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}

	got, err := Resolve(doc, "did:example:123#b")
	if err != nil || got.ID != "did:example:123#b" {
		t.Fatalf("wildcard resolve: %+v %v", got, err)
	}
	if _, err := Resolve(doc, "did:example:123#b", Authentication); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unlisted method must not resolve under authentication: %v", err)
	}
	if _, err := Resolve(doc, "did:example:123#c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: %v", err)
	}
}

func TestResolveExactMatchOnly(t *testing.T) {
	doc := mustDocument(t)
	vm := doc.VerificationMethods()[0]
	for _, ref := range []KeyID{
		"#" + KeyID(vm.ID.Fragment()),
		KeyID(vm.ID.Fragment()),
		vm.ID + " ",
		KeyID(doc.ID()),
	} {
		if _, err := Resolve(doc, ref, Authentication); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Resolve(%q): got %v want not found", ref, err)
		}
	}
}

func TestResolveEmptyDocument(t *testing.T) {
	empty, err := NewDocument("did:example:empty", nil, nil)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	for _, doc := range []*Document{nil, empty} {
		if _, err := Resolve(doc, "did:example:empty#x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("wildcard on empty: %v", err)
		}
		if _, err := Resolve(doc, "did:example:empty#x", Authentication); !errors.Is(err, ErrNotFound) {
			t.Fatalf("scoped on empty: %v", err)
		}
	}
}

func TestResolveDIDMatchesSynthesizedDocument(t *testing.T) {
	doc := mustDocument(t)
	expanded, err := ResolveDID(doc.ID())
	if err != nil {
		t.Fatalf("ResolveDID: %v", err)
	}
	a, _ := doc.MarshalJSON()
	b, _ := expanded.MarshalJSON()
	if string(a) != string(b) {
		t.Fatalf("expanded document differs:\n%s\n%s", a, b)
	}

	full, err := ResolveDID(doc.ID(), Authentication, AssertionMethod, CapabilityInvocation, CapabilityDelegation)
	if err != nil {
		t.Fatalf("ResolveDID: %v", err)
	}
	kid := SelfKeyID(doc.ID())
	if _, err := Resolve(full, kid, CapabilityDelegation); err != nil {
		t.Fatalf("Resolve capabilityDelegation: %v", err)
	}
	if _, err := ResolveDID("did:web:example.com"); !IsKind(err, KindEncoding) {
		t.Fatalf("ResolveDID(did:web): %v", err)
	}
}
