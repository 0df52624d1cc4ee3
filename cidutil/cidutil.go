// Package cidutil derives the content identifiers used to address stored
// identity documents.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Sum returns the CIDv1 (raw codec, sha2-256 multihash) of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Parse decodes s and rejects anything other than a CIDv1 raw sha2-256 CID.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if err := check(id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Verify reports whether data hashes to id.
func Verify(id cid.Cid, data []byte) (bool, error) {
	if err := check(id); err != nil {
		return false, err
	}
	got, err := Sum(data)
	if err != nil {
		return false, err
	}
	return got.Equals(id), nil
}

func check(id cid.Cid) error {
	if !id.Defined() {
		return fmt.Errorf("cidutil: undefined cid")
	}
	p := id.Prefix()
	if p.Version != 1 || p.Codec != cid.Raw || p.MhType != multihash.SHA2_256 {
		return fmt.Errorf("cidutil: unsupported cid %s (want v1 raw sha2-256)", id)
	}
	return nil
}
