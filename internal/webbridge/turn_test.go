package webbridge

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestGenerateTURNCredentials_UsernameEncodesExpiryAndUser(t *testing.T) {
	username, password := GenerateTURNCredentials("s3cr3t", "operator-1", 3600)
	if username == "" || password == "" {
		t.Fatalf("expected non-empty credentials")
	}
	parts := strings.SplitN(username, ":", 2)
	if len(parts) != 2 || parts[1] != "operator-1" {
		t.Fatalf("expected username to contain the user id, got %q", username)
	}
	expires, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || expires <= time.Now().Unix() {
		t.Fatalf("expected username to start with a future expiry, got %q", username)
	}
}

func TestGenerateTURNCredentials_SameInputsProduceSamePassword(t *testing.T) {
	u1, p1 := GenerateTURNCredentials("s3cr3t", "operator-1", 3600)
	u2, p2 := GenerateTURNCredentials("s3cr3t", "operator-1", 3600)
	if u1 == u2 {
		// expiry is time-based; usernames will only match if called within the
		// same second, which is acceptable for this determinism check on the
		// underlying HMAC, so just confirm matching usernames yield matching
		// passwords.
		if p1 != p2 {
			t.Fatalf("expected identical username to yield identical password")
		}
	}
}
