package did

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"xdao.co/didkey/logger"
)

// KeyStore receives engine-generated key material. Implementations copy what
// they need; the engine destroys its own copy once StoreKey returns.
//
// Uniqueness of kids is the store's responsibility; the engine does not
// serialize concurrent Synthesize calls.
type KeyStore interface {
	StoreKey(ctx context.Context, kid KeyID, kp *KeyPair) error
}

// EngineConfig wires an Engine to its collaborators. Every field is optional.
type EngineConfig struct {
	// Rand supplies key generation entropy. Nil selects crypto/rand.Reader.
	Rand io.Reader
	// Keys, when set, receives each generated key pair under its kid.
	Keys KeyStore
	// Logger defaults to logger.Nop().
	Logger *logger.Logger
}

// Options selects what Synthesize builds.
type Options struct {
	Scheme Scheme
	// Relationships lists the relationships the self key is published under.
	// Empty means DefaultRelationships().
	Relationships []Relationship
}

// Engine synthesizes did:key identifiers and their documents.
type Engine struct {
	rand io.Reader
	keys KeyStore
	log  *logger.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{rand: cfg.Rand, keys: cfg.Keys, log: cfg.Logger}
	if e.rand == nil {
		e.rand = rand.Reader
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	return e
}

// Synthesize generates a fresh key pair and returns the complete document
// for its identifier. On any failure no document is returned.
func (e *Engine) Synthesize(ctx context.Context, opts Options) (*Document, error) {
	if opts.Scheme != SchemeEd25519 {
		return nil, newError(KindUnsupportedScheme, fmt.Sprintf("unsupported signature scheme %s", opts.Scheme))
	}
	rels, err := normalizeRelationships(opts.Relationships)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapError(KindKeyGeneration, "synthesis cancelled", err)
	}

	e.log.Debug("generating key pair", logger.Fields{"scheme": opts.Scheme.String()})
	kp, err := GenerateKeyPair(opts.Scheme, e.rand)
	if err != nil {
		return nil, err
	}
	defer kp.Destroy()

	doc, err := buildKeyDocument(kp.Type(), kp.public, rels)
	if err != nil {
		return nil, err
	}
	kid := SelfKeyID(doc.ID())

	if e.keys != nil {
		if err := e.keys.StoreKey(ctx, kid, kp); err != nil {
			return nil, wrapError(KindKeyStorage, fmt.Sprintf("store key %s", kid), err)
		}
	}

	names := make([]string, len(rels))
	for i, r := range rels {
		names[i] = string(r)
	}
	e.log.Debug("identifier synthesized", logger.Fields{"did": doc.ID().String(), "kid": kid.String(), "relationships": names})
	return doc, nil
}
