package localfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/didkey/cidutil"
	"xdao.co/didkey/storage"
)

// CAS is a local filesystem-backed content-addressable store.
//
// Objects are written once, read-only, under root/<last two cid chars>/<cid>. Wallet
// directories hold documents here, so files and directories are private to
// the owner.
type CAS struct {
	root string
}

// New constructs a filesystem CAS rooted at root. The directory will be created if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

func (c *CAS) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.Sum(b)
	if err != nil {
		return cid.Undef, err
	}

	path := c.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o400)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := c.Get(ctx, id)
			if rerr != nil || !bytes.Equal(existing, b) {
				// An existing object that is unreadable or differs is never overwritten.
				return cid.Undef, storage.ErrImmutable
			}
			return id, nil
		}
		return cid.Undef, err
	}

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(c.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	ok, err := cidutil.Verify(id, b)
	if err != nil {
		return nil, storage.ErrInvalidCID
	}
	if !ok {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !id.Defined() {
		return false, nil
	}
	_, err := os.Stat(c.pathFor(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	// Every CIDv1 string shares its leading multibase/version characters, so
	// fan out on the tail instead.
	return filepath.Join(c.root, s[len(s)-2:], s)
}
