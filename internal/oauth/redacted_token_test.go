package oauth

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestRedactedToken_Formatting(t *testing.T) {
	token := NewRedactedToken("super-secret-token-12345")

	if token.Value() != "super-secret-token-12345" {
		t.Errorf("Expected actual token, got %s", token.Value())
	}

	for _, format := range []string{"%s", "%v", "%+v"} {
		if got := fmt.Sprintf(format, token); got != "[REDACTED]" {
			t.Errorf("Sprintf(%q) = %q, expected [REDACTED]", format, got)
		}
	}

	if got := fmt.Sprintf("%#v", token); got != "oauth.RedactedToken{[REDACTED]}" {
		t.Errorf("Sprintf(%%#v) = %q", got)
	}
}

func TestRedactedToken_JSON(t *testing.T) {
	payload := struct {
		Token RedactedToken `json:"token"`
	}{Token: NewRedactedToken("secret")}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"token":"[REDACTED]"}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestRedactedToken_IsEmpty(t *testing.T) {
	if !NewRedactedToken("").IsEmpty() {
		t.Error("expected empty token to report IsEmpty")
	}
	if NewRedactedToken("x").IsEmpty() {
		t.Error("expected non-empty token to report !IsEmpty")
	}
}

func TestTokenRecord_IsExpired(t *testing.T) {
	var nilRec *TokenRecord
	if !nilRec.IsExpired(0) {
		t.Error("nil record should count as expired")
	}

	noExpiry := &TokenRecord{}
	if noExpiry.IsExpired(24 * 365 * time.Hour) {
		t.Error("record without expiry should never expire")
	}
}
