package security

import (
	"encoding/hex"
	"testing"
)

func TestGenerateSessionToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := GenerateSessionToken()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(token) != 64 {
			t.Fatalf("token length = %d, want 64", len(token))
		}
		if _, err := hex.DecodeString(token); err != nil {
			t.Fatalf("token is not hex: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatal("duplicate token generated")
		}
		seen[token] = struct{}{}
	}
}

func TestDeviceFingerprint(t *testing.T) {
	a := DeviceFingerprint("10.0.0.1", "firefox")
	b := DeviceFingerprint("10.0.0.1", "firefox")
	if a != b {
		t.Error("fingerprint is not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}

	if DeviceFingerprint("10.0.0.1", "chrome") == a {
		t.Error("user agent change must change the fingerprint")
	}
	if DeviceFingerprint("10.0.0.2", "firefox") == a {
		t.Error("ip change must change the fingerprint")
	}

	// The separator keeps (ip, ua) pairs from colliding by concatenation.
	if DeviceFingerprint("10.0.0.1x", "y") == DeviceFingerprint("10.0.0.1", "xy") {
		t.Error("fingerprint inputs collide")
	}
}
