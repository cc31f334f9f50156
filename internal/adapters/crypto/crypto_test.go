package crypto

import "testing"

func testMaster() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestNewRejectsShortSecret(t *testing.T) {
	if _, err := New([]byte("too-short")); err == nil {
		t.Fatalf("expected error for a secret under 32 bytes")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := New(testMaster())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ciphertext, err := enc.Encrypt("user-1", "https://provider.example/recordings/abc.wav")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == "" {
		t.Fatalf("expected non-empty ciphertext")
	}

	plaintext, err := enc.Decrypt("user-1", ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "https://provider.example/recordings/abc.wav" {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	enc, err := New(testMaster())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := enc.Encrypt("user-1", "same-plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := enc.Encrypt("user-1", "same-plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct ciphertexts from distinct nonces, got identical output")
	}
}

func TestDecryptFailsForWrongUser(t *testing.T) {
	enc, err := New(testMaster())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ciphertext, err := enc.Encrypt("user-1", "secret-url")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := enc.Decrypt("user-2", ciphertext); err == nil {
		t.Fatalf("expected decryption under a different user's derived key to fail")
	}
}

func TestDecryptFailsForTamperedCiphertext(t *testing.T) {
	enc, err := New(testMaster())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ciphertext, err := enc.Encrypt("user-1", "secret-url")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := enc.Decrypt("user-1", string(tampered)); err == nil {
		t.Fatalf("expected tampered ciphertext to fail GCM authentication")
	}
}
