package util

import "testing"

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT("9f6d2f34-8f1a-4a3e-9c61-0a4efbd1f001", "secret")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	userID, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if userID != "9f6d2f34-8f1a-4a3e-9c61-0a4efbd1f001" {
		t.Fatalf("unexpected user id %q", userID)
	}
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-1", "secret")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ParseJWT(token, "other-secret"); err == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}
