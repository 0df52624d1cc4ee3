package config

import (
	"os"
	"path/filepath"
	"testing"

	"xdao.co/didkey/did"
	"xdao.co/didkey/logger"
)

var envKeys = []string{"WALLET_ID", "WALLET_KEY", "LOG_LEVEL", "CREDO_LOG_LEVEL", "STORE_BACKEND", "STORE_PATH", "KEY_SCHEME", "DID_RELATIONSHIPS"}

// clearEnv blanks every variable; viper treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := cfg.Wallet()
	if w.ID != "test-wallet" || w.Key != "test-key" {
		t.Fatalf("wallet = %+v", w)
	}
	if w.Path != filepath.Join(home, ".didkey", "wallets") {
		t.Fatalf("store path = %s", w.Path)
	}
	if cfg.StoreBackend != "sqlite" || cfg.Level() != logger.LevelInfo || cfg.Scheme() != did.SchemeEd25519 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if rels := cfg.Relationships(); len(rels) != 1 || rels[0] != did.Authentication {
		t.Fatalf("relationships = %v", rels)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WALLET_ID", "alice")
	t.Setenv("STORE_PATH", "/var/lib/didkey")
	t.Setenv("CREDO_LOG_LEVEL", "TRACE")
	t.Setenv("DID_RELATIONSHIPS", "authentication,assertionMethod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WalletID != "alice" || cfg.StorePath != "/var/lib/didkey" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Level() != logger.LevelTrace {
		t.Fatalf("legacy level variable ignored: %s", cfg.Level())
	}
	opts := cfg.DIDOptions()
	if len(opts.Relationships) != 2 || opts.Relationships[1] != did.AssertionMethod {
		t.Fatalf("relationships = %v", opts.Relationships)
	}

	t.Setenv("LOG_LEVEL", "warn")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Level() != logger.LevelWarn {
		t.Fatalf("LOG_LEVEL must win over CREDO_LOG_LEVEL, got %s", cfg.Level())
	}
}

func TestInvalidValues(t *testing.T) {
	cases := map[string]string{
		"WALLET_ID":         "no spaces",
		"LOG_LEVEL":         "verbose",
		"KEY_SCHEME":        "secp256k1",
		"DID_RELATIONSHIPS": "authentication,signing",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%q accepted", key, value)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "didkey.yaml")
	body := "wallet_id: from-file\nstore_backend: localfs\nstore_path: /tmp/stores\ndid_relationships:\n  - authentication\n  - capabilityInvocation\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("STORE_BACKEND", "sqlite")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.WalletID != "from-file" || cfg.StorePath != "/tmp/stores" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.StoreBackend != "sqlite" {
		t.Fatalf("environment must override the file, got %s", cfg.StoreBackend)
	}
	if rels := cfg.Relationships(); len(rels) != 2 || rels[1] != did.CapabilityInvocation {
		t.Fatalf("relationships = %v", rels)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}
