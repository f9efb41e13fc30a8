package credentials

import "testing"

func TestCryptoRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	c := NewCipher(key)

	plaintext := "hello what's up?"
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %s", err)
	}

	got, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %s", err)
	}
	if got != plaintext {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestCryptoDecryptWithDifferentKeyFails(t *testing.T) {
	var key1, key2 [32]byte
	for i := range key1 {
		key1[i] = byte(i)
		key2[i] = byte(255 - i)
	}
	c1 := NewCipher(key1)
	c2 := NewCipher(key2)

	ciphertext, err := c1.Encrypt("secret value")
	if err != nil {
		t.Fatalf("Encrypt failed: %s", err)
	}

	if _, err := c2.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption with a different key to fail")
	}
}

func TestCryptoDecryptMalformedHex(t *testing.T) {
	var key [32]byte
	c := NewCipher(key)
	if _, err := c.Decrypt("not hex at all!!"); err == nil {
		t.Fatal("expected error for malformed hex input")
	}
}
