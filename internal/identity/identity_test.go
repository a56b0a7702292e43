package identity

import (
	"errors"
	"testing"
	"time"
)

func TestVerifier_GenerateAndVerify(t *testing.T) {
	v := NewVerifier("test-secret", 5*time.Minute)

	token, _, err := v.GenerateToken("user-1", "client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	p, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if p.ID != "user-1" || p.Role != "client" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	v := NewVerifier("secret-one", 5*time.Minute)
	other := NewVerifier("secret-two", 5*time.Minute)

	token, _, err := v.GenerateToken("user-1", "worker")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_RejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret", -time.Minute)

	token, _, err := v.GenerateToken("user-1", "client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifier_Rotation(t *testing.T) {
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	v := NewVerifierFromKeys(keys, "k2", 5*time.Minute)

	// token signed with the active key
	tkn2, _, err := v.GenerateToken("user-1", "client")
	if err != nil {
		t.Fatalf("GenerateToken (k2) failed: %v", err)
	}
	if _, err := v.Verify(tkn2); err != nil {
		t.Fatalf("Verify (k2) failed: %v", err)
	}

	// a token previously issued under the older key must still verify
	vOld := NewVerifierFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := vOld.GenerateToken("user-1", "client")
	if err != nil {
		t.Fatalf("GenerateToken (k1) failed: %v", err)
	}
	if _, err := v.Verify(tkn1); err != nil {
		t.Fatalf("Verify (old k1) failed: %v", err)
	}
}

func TestParseKeys(t *testing.T) {
	keys, err := ParseKeys("k1:aaa,k2:bbb")
	if err != nil {
		t.Fatalf("ParseKeys failed: %v", err)
	}
	if keys["k1"] != "aaa" || keys["k2"] != "bbb" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if _, err := ParseKeys("broken"); err == nil {
		t.Fatal("expected error for malformed entry")
	}
	if _, err := ParseKeys(""); err == nil {
		t.Fatal("expected error for empty keys")
	}
}
