package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

var fastParams = Params{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

func TestSealOpenPassphrase(t *testing.T) {
	sealed, err := SealWithParams("test-key", []byte("data key"), fastParams)
	if err != nil {
		t.Fatalf("SealWithParams: %v", err)
	}
	got, err := Open("test-key", sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, []byte("data key")) {
		t.Fatalf("plaintext mismatch: %q", got)
	}

	if _, err := Open("wrong-key", sealed); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("wrong passphrase: got %v want ErrAuthFailed", err)
	}
}

func TestOpenRejectsMalformed(t *testing.T) {
	for name, in := range map[string][]byte{
		"empty":     nil,
		"plaintext": []byte(`{"version":1}`),
		"badjson":   []byte(filePrefix + "{"),
		"version":   []byte(filePrefix + `{"version":9,"kdf":"argon2id"}`),
	} {
		if _, err := Open("k", in); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: got %v want ErrInvalid", name, err)
		}
	}
	for _, p := range []Params{{}, {Time: 1, MemoryKB: MaxParams.MemoryKB + 1, Threads: 1}} {
		if _, err := SealWithParams("k", nil, p); err == nil {
			t.Fatalf("expected params %+v to be rejected", p)
		}
	}
}

func TestOpenRejectsExcessiveCost(t *testing.T) {
	sealed, err := SealWithParams("pw", []byte("data key"), fastParams)
	if err != nil {
		t.Fatalf("SealWithParams: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(sealed[len(filePrefix):], &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for name, mutate := range map[string]func(*Envelope){
		"memory":  func(e *Envelope) { e.KDFMemoryKB = 0xFFFFFFFF },
		"time":    func(e *Envelope) { e.KDFTime = MaxParams.Time + 1 },
		"threads": func(e *Envelope) { e.KDFThreads = MaxParams.Threads + 1 },
	} {
		tampered := env
		mutate(&tampered)
		raw, err := json.Marshal(&tampered)
		if err != nil {
			t.Fatalf("%s: Marshal: %v", name, err)
		}
		if _, err := Open("pw", append([]byte(filePrefix), raw...)); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: got %v want ErrInvalid", name, err)
		}
	}
}

func TestSealWithKeyBindsAAD(t *testing.T) {
	key, err := NewDataKey()
	if err != nil {
		t.Fatalf("NewDataKey: %v", err)
	}
	sealed, err := SealWithKey(key, []byte("seed"), []byte("kid-1"))
	if err != nil {
		t.Fatalf("SealWithKey: %v", err)
	}
	got, err := OpenWithKey(key, sealed, []byte("kid-1"))
	if err != nil || !bytes.Equal(got, []byte("seed")) {
		t.Fatalf("OpenWithKey = %q, %v", got, err)
	}
	if _, err := OpenWithKey(key, sealed, []byte("kid-2")); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("aad swap: got %v want ErrAuthFailed", err)
	}
	if _, err := OpenWithKey(key, sealed[:4], nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("short input: got %v want ErrInvalid", err)
	}

	other, _ := NewDataKey()
	if _, err := OpenWithKey(other, sealed, []byte("kid-1")); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("wrong key: got %v want ErrAuthFailed", err)
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Fatalf("Zero left %v", b)
	}
}
