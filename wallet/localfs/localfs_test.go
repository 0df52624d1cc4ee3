package localfs

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/didkey/internal/envelope"
	"xdao.co/didkey/wallet"
	"xdao.co/didkey/wallet/wallettest"
)

var fastKDF = envelope.Params{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

func newBackend(t *testing.T) (wallet.Backend, wallet.Config) {
	return New(Options{KDF: fastKDF}), wallet.Config{ID: "conformance", Key: "test-key", Path: t.TempDir()}
}

func TestConformance(t *testing.T) {
	wallettest.RunBackendConformance(t, newBackend)
}

func TestRegistered(t *testing.T) {
	b, err := wallet.Lookup("localfs")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, ok := b.(*Backend); !ok {
		t.Fatalf("Lookup returned %T", b)
	}
}

func TestCorruptProfile(t *testing.T) {
	b, cfg := newBackend(t)
	ctx := context.Background()
	if err := b.Provision(ctx, cfg); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	profile := filepath.Join(cfg.Path, cfg.ID, profileFile)
	if err := os.WriteFile(profile, []byte("not an envelope"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := b.Open(ctx, cfg); wallet.CodeOf(err) != wallet.CodeCorrupt {
		t.Fatalf("Open: got %v want CORRUPT", err)
	}
}

func TestInflatedKDFCostIsCorrupt(t *testing.T) {
	b, cfg := newBackend(t)
	ctx := context.Background()
	m := wallet.NewManager(b, wallet.ManagerOptions{Name: "localfs"})
	h, err := m.Provision(ctx, cfg)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	profile := filepath.Join(cfg.Path, cfg.ID, profileFile)
	raw, err := os.ReadFile(profile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		t.Fatalf("profile has no header line")
	}
	var env envelope.Envelope
	if err := json.Unmarshal(raw[nl+1:], &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	env.KDFMemoryKB = 0xFFFFFFFF
	body, err := json.Marshal(&env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(profile, append(raw[:nl+1:nl+1], body...), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = m.Initialize(ctx, h)
	if !wallet.IsKind(err, wallet.KindInitialization) || wallet.CodeOf(err) != wallet.CodeCorrupt {
		t.Fatalf("Initialize: got %v want Initialization/CORRUPT", err)
	}
}

func TestStoreDirectoryIsPrivate(t *testing.T) {
	b, cfg := newBackend(t)
	if err := b.Provision(context.Background(), cfg); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	info, err := os.Stat(filepath.Join(cfg.Path, cfg.ID))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Fatalf("store directory mode %o is not private", perm)
	}
}
