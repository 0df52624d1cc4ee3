// Package keyring seals private keys for wallet backends.
//
// A store holds one profile: a random data key sealed under the store
// passphrase. Each key record is sealed with the data key and bound to its
// kid, so records cannot be swapped between kids.
package keyring

import (
	"encoding/json"
	"errors"

	"xdao.co/didkey/did"
	"xdao.co/didkey/internal/envelope"
	"xdao.co/didkey/wallet"
)

// Keyring holds an unlocked data key.
type Keyring struct {
	dataKey []byte
}

// Create makes a new data key and returns it with its sealed profile bytes.
func Create(passphrase string, p envelope.Params) (*Keyring, []byte, error) {
	key, err := envelope.NewDataKey()
	if err != nil {
		return nil, nil, wallet.WrapError(wallet.CodeInternal, "generate data key", err)
	}
	profile, err := envelope.SealWithParams(passphrase, key, p)
	if err != nil {
		envelope.Zero(key)
		return nil, nil, wallet.WrapError(wallet.CodeInternal, "seal profile", err)
	}
	return &Keyring{dataKey: key}, profile, nil
}

// Unlock opens a profile written by Create.
func Unlock(passphrase string, profile []byte) (*Keyring, error) {
	key, err := envelope.Open(passphrase, profile)
	switch {
	case errors.Is(err, envelope.ErrAuthFailed):
		return nil, wallet.WrapError(wallet.CodeWrongKey, "store key does not unlock profile", err)
	case errors.Is(err, envelope.ErrInvalid):
		return nil, wallet.WrapError(wallet.CodeCorrupt, "profile is malformed", err)
	case err != nil:
		return nil, wallet.WrapError(wallet.CodeInternal, "open profile", err)
	}
	return &Keyring{dataKey: key}, nil
}

type keyRecord struct {
	Type did.KeyType `json:"type"`
	Seed []byte      `json:"seed"`
}

// SealKey encrypts kp's private seed for kid.
func (k *Keyring) SealKey(kid did.KeyID, kp *did.KeyPair) ([]byte, error) {
	if k.dataKey == nil {
		return nil, wallet.NewError(wallet.CodeClosed, "keyring destroyed")
	}
	seed, err := kp.ExportSeed()
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeInternal, "export key", err)
	}
	defer envelope.Zero(seed)
	plain, err := json.Marshal(keyRecord{Type: kp.Type(), Seed: seed})
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeInternal, "encode key record", err)
	}
	defer envelope.Zero(plain)
	sealed, err := envelope.SealWithKey(k.dataKey, plain, []byte(kid))
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeInternal, "seal key record", err)
	}
	return sealed, nil
}

// OpenKey reverses SealKey.
func (k *Keyring) OpenKey(kid did.KeyID, sealed []byte) (*did.KeyPair, error) {
	if k.dataKey == nil {
		return nil, wallet.NewError(wallet.CodeClosed, "keyring destroyed")
	}
	plain, err := envelope.OpenWithKey(k.dataKey, sealed, []byte(kid))
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "key record for "+string(kid)+" does not open", err)
	}
	defer envelope.Zero(plain)
	var rec keyRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "decode key record", err)
	}
	defer envelope.Zero(rec.Seed)
	kp, err := did.KeyPairFromSeed(rec.Type, rec.Seed)
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "restore key", err)
	}
	return kp, nil
}

// Destroy zeroes the data key. Later calls fail with CodeClosed.
func (k *Keyring) Destroy() {
	envelope.Zero(k.dataKey)
	k.dataKey = nil
}
