package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignedTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", "test-issuer")

	payload := map[string]string{"email": "user@example.com", "name": "User"}
	token, err := svc.Issue(payload, PurposeEmailVerify, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := svc.Verify(token, PurposeEmailVerify)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got["email"] != "user@example.com" || got["name"] != "User" {
		t.Errorf("payload = %v", got)
	}
}

func TestSignedTokenWrongPurpose(t *testing.T) {
	svc := NewTokenService("test-secret", "test-issuer")

	token, err := svc.Issue(map[string]string{"x": "y"}, PurposeEmailVerify, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = svc.Verify(token, PurposeEmailChange)
	if !errors.Is(err, ErrTokenWrongPurpose) {
		t.Fatalf("error = %v, want ErrTokenWrongPurpose", err)
	}
}

func TestSignedTokenExpired(t *testing.T) {
	svc := NewTokenService("test-secret", "test-issuer")

	token, err := svc.Issue(map[string]string{"x": "y"}, PurposeEmailVerify, -time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = svc.Verify(token, PurposeEmailVerify)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}
}

func TestSignedTokenTampered(t *testing.T) {
	svc := NewTokenService("test-secret", "test-issuer")
	other := NewTokenService("other-secret", "test-issuer")

	token, err := other.Issue(map[string]string{"x": "y"}, PurposeEmailVerify, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = svc.Verify(token, PurposeEmailVerify)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want ErrTokenInvalid", err)
	}

	_, err = svc.Verify("not-a-token", PurposeEmailVerify)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want ErrTokenInvalid", err)
	}
}
