package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/didkey/did"
)

// Config identifies one store. It is immutable for the life of a Handle.
type Config struct {
	// ID names the store; see CheckStoreID.
	ID string
	// Key is the passphrase protecting the store's key material.
	Key string
	// Path is the backend's root location (a directory for both bundled backends).
	Path string
}

// Validate checks the fields every backend relies on.
func (c Config) Validate() error {
	if err := CheckStoreID(c.ID); err != nil {
		return WrapError(CodeInvalidConfig, "invalid store id", err)
	}
	if c.Key == "" {
		return NewError(CodeInvalidConfig, "store key is required")
	}
	if c.Path == "" {
		return NewError(CodeInvalidConfig, "store path is required")
	}
	return nil
}

// CheckStoreID accepts non-empty ids made of ASCII letters, digits, '-' and '_'.
func CheckStoreID(id string) error {
	if id == "" {
		return errors.New("store id cannot be empty")
	}
	for _, char := range id {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in store id", char)
	}
	return nil
}

// Backend provisions and opens stores.
//
// Provision must report an existing store as a *CodedError with
// CodeAlreadyExists and must not modify it. Every other failure carries the
// most specific code available.
type Backend interface {
	Provision(ctx context.Context, cfg Config) error
	Open(ctx context.Context, cfg Config) (Store, error)
}

// Store is an opened wallet: key material plus the documents built on it.
//
// StoreKey rejects a kid that is already present with CodeAlreadyExists.
// Lookups and deletes of absent entries fail with CodeNotFound.
type Store interface {
	did.KeyStore
	LoadKey(ctx context.Context, kid did.KeyID) (*did.KeyPair, error)
	DeleteKey(ctx context.Context, kid did.KeyID) error
	PutDocument(ctx context.Context, doc *did.Document) (cid.Cid, error)
	GetDocument(ctx context.Context, id did.DID) (*did.Document, error)
	Close() error
}
