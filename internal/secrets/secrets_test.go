package secrets

import (
	"strings"
	"testing"
)

func newTestBox(t *testing.T) *Box {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	box, err := NewBox(key)
	if err != nil {
		t.Fatalf("failed to create box: %v", err)
	}
	return box
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	box := newTestBox(t)

	plaintext := "whsec_supersecret"
	encrypted, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if encrypted == plaintext {
		t.Error("encrypted value must differ from plaintext")
	}
	if strings.Contains(encrypted, plaintext) {
		t.Error("encrypted value must not contain plaintext")
	}

	decrypted, err := box.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("expected '%s', got '%s'", plaintext, decrypted)
	}
}

func TestEncrypt_EmptyStaysEmpty(t *testing.T) {
	box := newTestBox(t)

	encrypted, err := box.Encrypt("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if encrypted != "" {
		t.Errorf("expected empty ciphertext for empty input, got '%s'", encrypted)
	}

	decrypted, err := box.Decrypt("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decrypted != "" {
		t.Errorf("expected empty plaintext, got '%s'", decrypted)
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	box := newTestBox(t)

	a, _ := box.Encrypt("secret")
	b, _ := box.Encrypt("secret")
	if a == b {
		t.Error("two encryptions of the same value must differ (random nonce)")
	}
}

func TestDecrypt_RejectsTampered(t *testing.T) {
	box := newTestBox(t)

	if _, err := box.Decrypt("not-base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := box.Decrypt("c2hvcnQ="); err == nil {
		t.Error("expected error for truncated ciphertext")
	}

	encrypted, _ := box.Encrypt("secret")
	other := newTestBox(t)
	if _, err := other.Decrypt(encrypted); err == nil {
		t.Error("expected error when decrypting with a different key")
	}
}

func TestNewBox_RejectsBadKeys(t *testing.T) {
	if _, err := NewBox("not-hex"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := NewBox("abcd"); err == nil {
		t.Error("expected error for short key")
	}
}
