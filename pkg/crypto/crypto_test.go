package crypto

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("expected password to be hashed")
	}

	if !VerifyPassword(hash, "s3cret-pass") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong-pass") {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestGenerateTokenLengthAndUniqueness(t *testing.T) {
	first, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(first))
	}

	second, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
}

func TestVerifyToken(t *testing.T) {
	token, err := GenerateToken(16)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	digest := HashToken(token)
	if !VerifyToken(token, digest) {
		t.Fatal("expected token to match its digest")
	}
	if VerifyToken("other-token", digest) {
		t.Fatal("expected mismatched token to fail")
	}
}
