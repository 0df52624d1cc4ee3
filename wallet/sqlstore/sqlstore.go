// Package sqlstore is the default wallet backend: one SQLite database file
// per store, accessed through gorm with a pure-Go driver.
package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"xdao.co/didkey/cidutil"
	"xdao.co/didkey/did"
	"xdao.co/didkey/internal/envelope"
	"xdao.co/didkey/internal/keyring"
	"xdao.co/didkey/wallet"
)

func init() {
	wallet.MustRegister(wallet.Registration{
		Name:        "sqlite",
		Description: "one SQLite database per store",
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

func dbPath(cfg wallet.Config) string { return filepath.Join(cfg.Path, cfg.ID+".db") }

func openDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) Provision(ctx context.Context, cfg wallet.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
		return fsError("create store directory", err)
	}
	db, err := openDB(dbPath(cfg))
	if err != nil {
		return wallet.WrapError(wallet.CodeInternal, "open database", err)
	}
	defer closeDB(db)

	if err := db.WithContext(ctx).AutoMigrate(&profileRow{}, &keyRow{}, &documentRow{}); err != nil {
		return dbError(ctx, "migrate database", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&profileRow{}).Count(&n).Error; err != nil {
			return dbError(ctx, "read profile", err)
		}
		if n > 0 {
			return wallet.NewError(wallet.CodeAlreadyExists, "store "+cfg.ID+" already exists")
		}
		kr, sealed, err := keyring.Create(cfg.Key, b.kdf)
		if err != nil {
			return err
		}
		kr.Destroy()
		if err := tx.Create(&profileRow{ID: uuid.NewString(), StoreID: cfg.ID, Sealed: sealed}).Error; err != nil {
			return dbError(ctx, "write profile", err)
		}
		return nil
	})
}

func (b *Backend) Open(ctx context.Context, cfg wallet.Config) (wallet.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := dbPath(cfg)
	// The driver would create a missing file; an absent store is NOT_FOUND.
	if _, err := os.Stat(path); err != nil {
		return nil, fsError("open store "+cfg.ID, err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeInternal, "open database", err)
	}

	var profile profileRow
	if err := db.WithContext(ctx).Where("store_id = ?", cfg.ID).First(&profile).Error; err != nil {
		_ = closeDB(db)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wallet.WrapError(wallet.CodeNotFound, "store "+cfg.ID+" has no profile", err)
		}
		return nil, dbError(ctx, "read profile", err)
	}
	kr, err := keyring.Unlock(cfg.Key, profile.Sealed)
	if err != nil {
		_ = closeDB(db)
		return nil, err
	}
	return &Store{db: db, keys: kr}, nil
}

// Store is an opened SQLite wallet.
type Store struct {
	db *gorm.DB

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
	sealed, err := s.keys.SealKey(kid, kp)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&keyRow{}).Where("kid = ?", string(kid)).Count(&n).Error; err != nil {
			return dbError(ctx, "check key", err)
		}
		if n > 0 {
			return wallet.NewError(wallet.CodeAlreadyExists, "key "+string(kid)+" already stored")
		}
		if err := tx.Create(&keyRow{ID: uuid.NewString(), KID: string(kid), Sealed: sealed}).Error; err != nil {
			return dbError(ctx, "write key", err)
		}
		return nil
	})
}

func (s *Store) LoadKey(ctx context.Context, kid did.KeyID) (*did.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	var row keyRow
	if err := s.db.WithContext(ctx).Where("kid = ?", string(kid)).First(&row).Error; err != nil {
		return nil, dbError(ctx, "read key "+string(kid), err)
	}
	return s.keys.OpenKey(kid, row.Sealed)
}

func (s *Store) DeleteKey(ctx context.Context, kid did.KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("kid = ?", string(kid)).Delete(&keyRow{})
	if res.Error != nil {
		return dbError(ctx, "delete key "+string(kid), res.Error)
	}
	if res.RowsAffected == 0 {
		return wallet.NewError(wallet.CodeNotFound, "key "+string(kid)+" not stored")
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
	id, err := cidutil.Sum(body)
	if err != nil {
		return cid.Undef, wallet.WrapError(wallet.CodeInternal, "address document", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		err := tx.Where("did = ?", string(doc.ID())).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&documentRow{ID: uuid.NewString(), DID: string(doc.ID()), CID: id.String(), Body: body}).Error
		case err != nil:
			return err
		}
		return tx.Model(&row).Updates(map[string]any{"cid": id.String(), "body": body}).Error
	})
	if err != nil {
		return cid.Undef, dbError(ctx, "write document", err)
	}
	return id, nil
}

func (s *Store) GetDocument(ctx context.Context, id did.DID) (*did.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	var row documentRow
	if err := s.db.WithContext(ctx).Where("did = ?", string(id)).First(&row).Error; err != nil {
		return nil, dbError(ctx, "read document "+string(id), err)
	}
	c, err := cidutil.Parse(row.CID)
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "document cid for "+string(id), err)
	}
	ok, err := cidutil.Verify(c, row.Body)
	if err != nil || !ok {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "document body does not match its cid", err)
	}
	doc, err := did.ParseDocument(row.Body)
	if err != nil {
		return nil, wallet.WrapError(wallet.CodeCorrupt, "decode document", err)
	}
	return doc, nil
}

// Close releases the database and destroys the unlocked data key. It is
// safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.keys.Destroy()
	if err := closeDB(s.db); err != nil {
		return wallet.WrapError(wallet.CodeInternal, "close database", err)
	}
	return nil
}

func dbError(ctx context.Context, op string, err error) error {
	var ce *wallet.CodedError
	switch {
	case errors.As(err, &ce):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, gorm.ErrRecordNotFound):
		return wallet.WrapError(wallet.CodeNotFound, op, err)
	default:
		return wallet.WrapError(wallet.CodeInternal, op, err)
	}
}

func fsError(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return wallet.WrapError(wallet.CodeNotFound, op, err)
	case errors.Is(err, os.ErrPermission):
		return wallet.WrapError(wallet.CodePermissionDenied, op, err)
	default:
		return wallet.WrapError(wallet.CodeInternal, op, err)
	}
}
