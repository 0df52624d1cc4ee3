package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/didkey/did"
)

func setStoreEnv(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	for _, k := range []string{"WALLET_ID", "WALLET_KEY", "LOG_LEVEL", "CREDO_LOG_LEVEL", "KEY_SCHEME", "DID_RELATIONSHIPS"} {
		t.Setenv(k, "")
	}
	t.Setenv("STORE_BACKEND", backend)
	t.Setenv("STORE_PATH", dir)
	return dir
}

func TestCreateEndToEnd(t *testing.T) {
	for _, backend := range []string{"sqlite", "localfs"} {
		t.Run(backend, func(t *testing.T) {
			dir := setStoreEnv(t, backend)
			metricsPath := filepath.Join(dir, "metrics.prom")

			for i := 0; i < 2; i++ {
				var out, errOut bytes.Buffer
				if code := run([]string{"create", "--metrics-out", metricsPath}, &out, &errOut); code != 0 {
					t.Fatalf("run %d exit %d: %s", i, code, errOut.String())
				}
				var res struct {
					DID      string          `json:"did"`
					KID      string          `json:"kid"`
					CID      string          `json:"cid"`
					Document json.RawMessage `json:"document"`
				}
				if err := json.Unmarshal(out.Bytes(), &res); err != nil {
					t.Fatalf("decode output: %v\n%s", err, out.String())
				}
				if !strings.HasPrefix(res.DID, "did:key:z6Mk") || res.KID != res.DID+"#"+strings.TrimPrefix(res.DID, "did:key:") {
					t.Fatalf("unexpected did/kid %s %s", res.DID, res.KID)
				}
				doc, err := did.ParseDocument(res.Document)
				if err != nil {
					t.Fatalf("ParseDocument: %v", err)
				}
				if _, err := doc.DereferenceKey(did.KeyID(res.KID), did.Authentication); err != nil {
					t.Fatalf("DereferenceKey: %v", err)
				}
				logs := errOut.String()
				if !strings.Contains(logs, "[INFO] Created DID") || !strings.Contains(logs, res.DID) {
					t.Fatalf("missing creation log line: %s", logs)
				}
				if i == 1 && !strings.Contains(logs, "store already exists, continuing") {
					t.Fatalf("second run should reuse the store: %s", logs)
				}
			}

			metrics, err := os.ReadFile(metricsPath)
			if err != nil {
				t.Fatalf("ReadFile metrics: %v", err)
			}
			if !strings.Contains(string(metrics), `didkey_wallet_provision_total{outcome="existing"} 1`) {
				t.Fatalf("metrics missing existing outcome:\n%s", metrics)
			}
		})
	}
}

func TestCreateWrongKeyFails(t *testing.T) {
	setStoreEnv(t, "localfs")
	var out, errOut bytes.Buffer
	if code := run([]string{"create"}, &out, &errOut); code != 0 {
		t.Fatalf("first create exit %d: %s", code, errOut.String())
	}
	t.Setenv("WALLET_KEY", "another-key")
	out.Reset()
	errOut.Reset()
	if code := run([]string{"create"}, &out, &errOut); code != 1 {
		t.Fatalf("exit %d want 1", code)
	}
	if out.Len() != 0 || !strings.Contains(errOut.String(), "WRONG_KEY") {
		t.Fatalf("out=%q err=%q", out.String(), errOut.String())
	}
}

func TestCreateYAML(t *testing.T) {
	setStoreEnv(t, "localfs")
	t.Setenv("LOG_LEVEL", "off")
	var out, errOut bytes.Buffer
	if code := run([]string{"create", "--format", "yaml"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("logging is off but got %q", errOut.String())
	}
	for _, want := range []string{"did: did:key:z6Mk", "kid: ", "document:", "verificationMethod:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, out.String())
		}
	}
}

func TestResolve(t *testing.T) {
	const id = "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"
	kid := id + "#z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"

	var out, errOut bytes.Buffer
	if code := run([]string{"resolve", "--did", id}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if _, err := did.ParseDocument(out.Bytes()); err != nil {
		t.Fatalf("ParseDocument: %v\n%s", err, out.String())
	}

	out.Reset()
	if code := run([]string{"resolve", "--did", id, "--kid", kid, "--rel", "authentication"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), `"publicKeyMultibase": "z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"`) {
		t.Fatalf("unexpected method:\n%s", out.String())
	}

	errOut.Reset()
	if code := run([]string{"resolve", "--did", id, "--kid", kid, "--rel", "assertionMethod"}, &out, &errOut); code != 1 {
		t.Fatalf("out-of-scope dereference exit %d", code)
	}
	if code := run([]string{"resolve", "--did", id, "--kid", kid, "--rel", "assertionMethod", "--publish", "assertionMethod"}, &out, &errOut); code != 0 {
		t.Fatalf("published relationship exit %d: %s", code, errOut.String())
	}
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"bogus"},
		{"resolve"},
		{"resolve", "--did", "did:key:z", "--rel", "signing"},
		{"create", "--format", "xml"},
		{"create", "extra"},
	} {
		var out, errOut bytes.Buffer
		if code := run(args, &out, &errOut); code != 2 {
			t.Fatalf("run(%q) exit %d want 2", args, code)
		}
	}
	var out bytes.Buffer
	if code := run([]string{"help"}, &out, &out); code != 0 || !strings.Contains(out.String(), "didkey create") {
		t.Fatalf("help exit %d: %s", code, out.String())
	}
}
