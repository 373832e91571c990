package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}

	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	original := []byte("SQLite format 3\x00 chore rotation data")

	sealed, err := Seal(original, "correct horse")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !bytes.HasPrefix(sealed, magic) {
		t.Error("sealed snapshot should start with the magic header")
	}
	if bytes.Contains(sealed, original) {
		t.Error("sealed snapshot contains the plaintext")
	}

	got, err := Open(sealed, "correct horse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("open = %q, want %q", got, original)
	}
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, err := Seal([]byte("same"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Seal([]byte("same"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two seals of the same input should differ")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("secret"), "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(sealed, "wrong"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("err = %v, want ErrBadPassphrase", err)
	}
}

func TestOpenTampered(t *testing.T) {
	sealed, err := Seal([]byte("secret"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(magic)] ^= 0xff // flip a salt byte
	if _, err := Open(sealed, "pass"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("err = %v, want ErrBadPassphrase", err)
	}
}

func TestOpenNotSnapshot(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("CWB1short"), bytes.Repeat([]byte("x"), 64)} {
		if _, err := Open(data, "pass"); !errors.Is(err, ErrNotSnapshot) {
			t.Errorf("Open(%q) err = %v, want ErrNotSnapshot", data, err)
		}
	}
}

func TestSealEmptyPassphrase(t *testing.T) {
	if _, err := Seal([]byte("x"), ""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}
