package securestore

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := Decrypt("pass", data)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(plain) != "secret" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt("other", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptTamperedFailsDeterministically(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if len(data) < 10 {
		t.Fatalf("unexpected encrypted payload size: %d", len(data))
	}
	data[len(data)-2] ^= 0xFF
	_, err = Decrypt("pass", data)
	if !errors.Is(err, ErrAuthFailed) && !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptRejectsLegacyPlaintext(t *testing.T) {
	if _, err := Decrypt("pass", []byte(`{"pub":"x"}`)); !errors.Is(err, ErrLegacyData) {
		t.Fatalf("expected ErrLegacyData, got %v", err)
	}
}

func TestOpenRejectsOutOfRangeParams(t *testing.T) {
	env, err := Seal("pass", []byte("secret"), DefaultParams)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	env.KDFMemoryKB = maxKDFMemoryKB * 4
	if _, err := Open("pass", env); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for oversized KDF memory, got %v", err)
	}
}

func TestOpenRejectsTruncatedNonce(t *testing.T) {
	env, err := Seal("pass", []byte("secret"), DefaultParams)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	env.Nonce = env.Nonce[:4]
	if _, err := Open("pass", env); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for truncated nonce, got %v", err)
	}
}

func TestSealHonorsParams(t *testing.T) {
	env, err := Seal("pass", []byte("secret"), Params{Time: 1, MemoryKB: 8 * 1024, Threads: 1})
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if env.KDFTime != 1 || env.KDFMemoryKB != 8*1024 {
		t.Fatalf("params not recorded in envelope: %+v", env)
	}
	plain, err := Open("pass", env)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if string(plain) != "secret" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestEncryptedJSONFileRoundtrip(t *testing.T) {
	type record struct {
		Alias string `json:"alias"`
	}
	path := filepath.Join(t.TempDir(), "nested", "state.enc")
	if err := WriteEncryptedJSON(path, "pass", record{Alias: "alice"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var got record
	if err := ReadEncryptedJSON(path, "pass", &got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Alias != "alice" {
		t.Fatalf("unexpected record: %+v", got)
	}
}
