// kex/utils/security_test.go
package utils

import (
	"net/http/httptest"
	"strings"
	"testing"
)

// TestSignAndVerifyValue ensures round-tripping works and tampering is
// detected.
func TestSignAndVerifyValue(t *testing.T) {
	SessionSecret = "test-secret-for-predictable-signatures"
	defer func() { SessionSecret = "" }()

	signed := SignValue("admin:v1")
	if !strings.HasPrefix(signed, "admin:v1.") {
		t.Fatalf("Expected signed value to start with payload, got '%s'", signed)
	}

	payload, ok := VerifyValue(signed)
	if !ok {
		t.Fatal("Expected a freshly signed value to verify")
	}
	if payload != "admin:v1" {
		t.Errorf("Expected payload 'admin:v1', got '%s'", payload)
	}

	t.Run("Tampered payload", func(t *testing.T) {
		tampered := "admin:v2" + signed[len("admin:v1"):]
		if _, ok := VerifyValue(tampered); ok {
			t.Error("Expected tampered payload to fail verification")
		}
	})

	t.Run("Tampered signature", func(t *testing.T) {
		if _, ok := VerifyValue("admin:v1.deadbeef"); ok {
			t.Error("Expected tampered signature to fail verification")
		}
	})

	t.Run("Missing separator", func(t *testing.T) {
		if _, ok := VerifyValue("no-separator-here"); ok {
			t.Error("Expected malformed value to fail verification")
		}
	})

	t.Run("Different secret", func(t *testing.T) {
		SessionSecret = "another-secret"
		if _, ok := VerifyValue(signed); ok {
			t.Error("Expected value signed under a different secret to fail")
		}
	})
}

// TestValidSubmitterName checks the class+name requirement.
func TestValidSubmitterName(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Class and name", "Class 3 Jamie Park", true},
		{"Minimal with space", "3 Jo", true},
		{"Too short", "A B", false},
		{"No whitespace", "JamiePark", false},
		{"Empty", "", false},
		{"Tab separator", "Class\tJamie", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidSubmitterName(tc.input); got != tc.expected {
				t.Errorf("ValidSubmitterName(%q) = %v, expected %v", tc.input, got, tc.expected)
			}
		})
	}
}

// TestGetIPAddress verifies the proxy header precedence.
func TestGetIPAddress(t *testing.T) {
	testCases := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{
			name:     "Cloudflare header wins",
			headers:  map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"},
			remote:   "3.3.3.3:1234",
			expected: "1.1.1.1",
		},
		{
			name:     "First forwarded entry",
			headers:  map[string]string{"X-Forwarded-For": "2.2.2.2, 9.9.9.9"},
			remote:   "3.3.3.3:1234",
			expected: "2.2.2.2",
		},
		{
			name:     "Real IP fallback",
			headers:  map[string]string{"X-Real-IP": "4.4.4.4"},
			remote:   "3.3.3.3:1234",
			expected: "4.4.4.4",
		},
		{
			name:     "Remote address",
			headers:  nil,
			remote:   "3.3.3.3:1234",
			expected: "3.3.3.3",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := GetIPAddress(req); got != tc.expected {
				t.Errorf("Expected '%s', got '%s'", tc.expected, got)
			}
		})
	}
}
