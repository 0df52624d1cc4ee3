// Package localfs is a directory-per-store wallet backend.
//
// Layout under Config.Path:
//
//	<id>/profile.enc        data key sealed under the store key
//	<id>/keys/<kid cid>     key records sealed with the data key
//	<id>/dids/<did cid>     CID of the latest document for a DID
//	<id>/documents/...      documents in a content-addressed store
package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/didkey/cidutil"
	"xdao.co/didkey/did"
	"xdao.co/didkey/internal/envelope"
	"xdao.co/didkey/internal/keyring"
	"xdao.co/didkey/storage"
	casfs "xdao.co/didkey/storage/localfs"
	"xdao.co/didkey/wallet"
)

const (
	profileFile  = "profile.enc"
	keysDir      = "keys"
	didsDir      = "dids"
	documentsDir = "documents"
)

func init() {
	wallet.MustRegister(wallet.Registration{
		Name:        "localfs",
		Description: "one private directory per store",
		New:         func() wallet.Backend { return New(Options{}) },
	})
}

// Options tunes the backend. The zero value uses envelope.DefaultParams.
type Options struct {
	KDF envelope.Params
}

type Backend struct {
	kdf envelope.Params
}

func New(opts Options) *Backend {
	kdf := opts.KDF
	if kdf == (envelope.Params{}) {
		kdf = envelope.DefaultParams
	}
	return &Backend{kdf: kdf}
}

func storeDir(cfg wallet.Config) string { return filepath.Join(cfg.Path, cfg.ID) }

func (b *Backend) Provision(ctx context.Context, cfg wallet.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := storeDir(cfg)
	profile := filepath.Join(dir, profileFile)
	if _, err := os.Stat(profile); err == nil {
		return wallet.NewError(wallet.CodeAlreadyExists, "store "+cfg.ID+" already exists")
	}
	for _, d := range []string{dir, filepath.Join(dir, keysDir), filepath.Join(dir, didsDir), filepath.Join(dir, documentsDir)} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fsError("create store directory", err)
		}
	}

	kr, sealed, err := keyring.Create(cfg.Key, b.kdf)
	if err != nil {
		return err
	}
	kr.Destroy()
	if err := writeOnce(profile, sealed); err != nil {
		if errors.Is(err, os.ErrExist) {
			return wallet.NewError(wallet.CodeAlreadyExists, "store "+cfg.ID+" already exists")
		}
		return fsError("write profile", err)
	}
	return nil
}

func (b *Backend) Open(ctx context.Context, cfg wallet.Config) (wallet.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := storeDir(cfg)
	profile, err := os.ReadFile(filepath.Join(dir, profileFile))
	if err != nil {
		return nil, fsError("read profile", err)
	}
	kr, err := keyring.Unlock(cfg.Key, profile)
	if err != nil {
		return nil, err
	}
	docs, err := casfs.New(filepath.Join(dir, documentsDir))
	if err != nil {
		kr.Destroy()
		return nil, fsError("open document store", err)
	}
	return &Store{dir: dir, keys: kr, docs: docs}, nil
}

// Store is an opened localfs wallet.
type Store struct {
	dir  string
	docs storage.CAS

	mu     sync.Mutex
	keys   *keyring.Keyring
	closed bool
}

func (s *Store) begin(ctx context.Context) error {
	if s.closed {
		return wallet.WrapError(wallet.CodeClosed, "store is closed", wallet.ErrClosed)
	}
	return ctx.Err()
}

func (s *Store) StoreKey(ctx context.Context, kid did.KeyID, kp *did.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return err
	}
	path, err := s.entryPath(keysDir, string(kid))
	if err != nil {
		return err
	}
	sealed, err := s.keys.SealKey(kid, kp)
	if err != nil {
		return err
	}
	if err := writeOnce(path, sealed); err != nil {
		if errors.Is(err, os.ErrExist) {
			return wallet.NewError(wallet.CodeAlreadyExists, "key "+string(kid)+" already stored")
		}
		return fsError("write key", err)
	}
	return nil
}

func (s *Store) LoadKey(ctx context.Context, kid did.KeyID) (*did.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	path, err := s.entryPath(keysDir, string(kid))
	if err != nil {
		return nil, err
	}
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fsError("read key "+string(kid), err)
	}
	return s.keys.OpenKey(kid, sealed)
}

func (s *Store) DeleteKey(ctx context.Context, kid did.KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return err
	}
	path, err := s.entryPath(keysDir, string(kid))
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fsError("delete key "+string(kid), err)
	}
	return nil
}

func (s *Store) PutDocument(ctx context.Context, doc *did.Document) (cid.Cid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return cid.Undef, err
	}
	body, err := doc.MarshalJSON()
	if err != nil {
		return cid.Undef, wallet.WrapError(wallet.CodeInternal, "encode document", err)
	}
	id, err := s.docs.Put(ctx, body)
	if err != nil {
		return cid.Undef, casError("write document", err)
	}
	path, err := s.entryPath(didsDir, string(doc.ID()))
	if err != nil {
		return cid.Undef, err
	}
	if err := writeReplace(path, []byte(id.String())); err != nil {
		return cid.Undef, fsError("index document", err)
	}
	return id, nil
}

func (s *Store) GetDocument(ctx context.Context, id did.DID) (*did.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	path, err := s.entryPath(didsDir, string(id))
	if err != nil {
		return nil, err
	}
	ref, err := os.ReadFile(path)
	if err != nil {
		return nil, fsError("read document index for "+string(id), err)
	}
	c, err := cidutil.Parse(strings.TrimSpace(string(ref)))
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "document index for "+string(id), err)
	}
	body, err := s.docs.Get(ctx, c)
	if err != nil {
		return nil, casError("read document", err)
	}
	doc, err := did.ParseDocument(body)
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "decode document", err)
	}
	return doc, nil
}

// Close destroys the unlocked data key. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.keys.Destroy()
	return nil
}

// entryPath names a file by the CID of name, so arbitrary kids and DIDs map
// to safe, fixed-alphabet file names.
func (s *Store) entryPath(sub, name string) (string, error) {
	id, err := cidutil.Sum([]byte(name))
	if err != nil {
		return "", wallet.WrapError(wallet.CodeInternal, "hash entry name", err)
	}
	return filepath.Join(s.dir, sub, id.String()), nil
}

func writeOnce(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func writeReplace(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fsError(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return wallet.WrapError(wallet.CodeNotFound, op, err)
	case errors.Is(err, os.ErrPermission):
		return wallet.WrapError(wallet.CodePermissionDenied, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return wallet.WrapError(wallet.CodeInternal, op, err)
	}
}

func casError(op string, err error) error {
	switch {
	case storage.IsNotFound(err):
		return wallet.WrapError(wallet.CodeNotFound, op, err)
	case storage.IsIntegrity(err):
		return wallet.WrapError(wallet.CodeCorrupt, op, err)
	default:
		return fsError(op, err)
	}
}
