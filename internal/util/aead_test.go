package util

import (
	"bytes"
	"testing"
)

func TestSealOpen(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	plain := []byte("bearer-token")
	aad := []byte("slot:token")

	t.Run("RoundTrip", func(t *testing.T) {
		sealed, err := Seal(key, plain, aad)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		got, err := Open(key, sealed, aad)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if !bytes.Equal(plain, got) {
			t.Errorf("expected %s, got %s", plain, got)
		}
	})

	t.Run("WrongAAD", func(t *testing.T) {
		sealed, _ := Seal(key, plain, aad)
		if _, err := Open(key, sealed, []byte("slot:username")); err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("Tampered", func(t *testing.T) {
		sealed, _ := Seal(key, plain, aad)
		sealed[len(sealed)-1] ^= 0xFF
		if _, err := Open(key, sealed, aad); err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("Short", func(t *testing.T) {
		if _, err := Open(key, []byte{1, 2, 3}, aad); err == nil {
			t.Error("expected error with short input, got nil")
		}
	})

	t.Run("BadKeySize", func(t *testing.T) {
		if _, err := Seal([]byte("short"), plain, aad); err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	WipeBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped: %d", i, v)
		}
	}
}
