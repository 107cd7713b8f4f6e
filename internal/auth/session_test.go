package auth

import (
	"testing"
	"time"
)

var testSecret = []byte("test-session-secret")

func testSession() *Session {
	return &Session{
		SubjectID:   "subj-1",
		Name:        "Test User",
		Email:       "user@example.com",
		Country:     "US",
		Permissions: []string{"rights-reviewer"},
	}
}

func TestSignAndVerifySession(t *testing.T) {
	token, err := SignSession(testSecret, testSession(), time.Hour)
	if err != nil {
		t.Fatalf("SignSession failed: %v", err)
	}

	got, err := VerifySession(testSecret, token)
	if err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}

	if got.Email != "user@example.com" {
		t.Errorf("expected email round-trip, got %q", got.Email)
	}
	if !got.HasPermission("rights-reviewer") {
		t.Errorf("expected permission round-trip, got %v", got.Permissions)
	}
	if got.Su != "" {
		t.Errorf("expected empty su, got %q", got.Su)
	}
}

func TestVerifySessionRejectsWrongSecret(t *testing.T) {
	token, err := SignSession(testSecret, testSession(), time.Hour)
	if err != nil {
		t.Fatalf("SignSession failed: %v", err)
	}

	if _, err := VerifySession([]byte("other-secret"), token); err == nil {
		t.Error("expected verification failure with wrong secret")
	}
}

func TestVerifySessionRejectsTamperedToken(t *testing.T) {
	token, err := SignSession(testSecret, testSession(), time.Hour)
	if err != nil {
		t.Fatalf("SignSession failed: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := VerifySession(testSecret, tampered); err == nil {
		t.Error("expected verification failure for tampered token")
	}
}

func TestVerifySessionRejectsExpiredToken(t *testing.T) {
	// Expired well past the clock-skew leeway.
	token, err := SignSession(testSecret, testSession(), -time.Minute)
	if err != nil {
		t.Fatalf("SignSession failed: %v", err)
	}

	if _, err := VerifySession(testSecret, token); err == nil {
		t.Error("expected verification failure for expired token")
	}
}

func TestVerifySessionToleratesSmallClockSkew(t *testing.T) {
	// Expired less than the leeway ago still verifies.
	token, err := SignSession(testSecret, testSession(), -time.Second)
	if err != nil {
		t.Fatalf("SignSession failed: %v", err)
	}

	if _, err := VerifySession(testSecret, token); err != nil {
		t.Errorf("expected leeway to absorb 1s expiry, got %v", err)
	}
}

func TestHasPermission(t *testing.T) {
	session := &Session{Permissions: []string{"rights-reviewer", "sudo"}}

	if !session.HasPermission("sudo") {
		t.Error("expected sudo permission")
	}
	if session.HasPermission("reports-admin") {
		t.Error("did not expect reports-admin permission")
	}
}
