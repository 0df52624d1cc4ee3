package cidutil

import (
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func TestSumIsStableAndParses(t *testing.T) {
	a, err := Sum([]byte(`{"id":"did:key:z6Mk"}`))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	b, err := Sum([]byte(`{"id":"did:key:z6Mk"}`))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if !a.Equals(b) {
		t.Fatalf("Sum not deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a.String(), "bafkrei") {
		t.Fatalf("expected raw sha2-256 CIDv1 string, got %s", a)
	}

	parsed, err := Parse(a.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Equals(a) {
		t.Fatalf("Parse mismatch")
	}
}

func TestVerify(t *testing.T) {
	id, err := Sum([]byte("doc"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if ok, err := Verify(id, []byte("doc")); err != nil || !ok {
		t.Fatalf("Verify(match) = %v, %v", ok, err)
	}
	if ok, err := Verify(id, []byte("other")); err != nil || ok {
		t.Fatalf("Verify(mismatch) = %v, %v", ok, err)
	}
}

func TestParseRejectsOtherCIDs(t *testing.T) {
	sum, err := multihash.Sum([]byte("x"), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("multihash.Sum: %v", err)
	}
	dagPB := cid.NewCidV1(cid.DagProtobuf, sum)
	if _, err := Parse(dagPB.String()); err == nil {
		t.Fatalf("expected dag-pb CID to be rejected")
	}
	if _, err := Parse("not-a-cid"); err == nil {
		t.Fatalf("expected garbage to be rejected")
	}
	if _, err := Verify(cid.Undef, nil); err == nil {
		t.Fatalf("expected undefined CID to be rejected")
	}
}
