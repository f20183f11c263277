package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Correlation token decode failures.
var (
	// ErrMalformedToken means the value does not have the <id>.<signature> shape.
	ErrMalformedToken = errors.New("malformed correlation token")

	// ErrUnknownIdentity means the token parsed but names no plausible chat.
	ErrUnknownIdentity = errors.New("correlation token names an unknown identity")

	// ErrForgedToken means the signature does not match the embedded identity.
	ErrForgedToken = errors.New("correlation token signature mismatch")
)

// minSecretLength is the shortest signing secret NewCodec accepts.
const minSecretLength = 16

// Codec converts chat identities to and from the OAuth state parameter.
//
// Tokens have the form "<chatID>.<sig>" where sig is the unpadded base64url
// HMAC-SHA256 of the decimal chat identity. Encoding is deterministic and
// the codec holds no mutable state, so a single Codec is safe for
// concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec signing with secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("state secret must be at least %d bytes, got %d", minSecretLength, len(secret))
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Codec{secret: key}, nil
}

// GenerateSecret returns a random 32-byte signing secret. Tokens signed
// with it do not survive a process restart.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// Encode returns the correlation token for id.
func (c *Codec) Encode(id ChatID) string {
	payload := id.String()
	return payload + "." + c.sign(payload)
}

// Decode recovers the chat identity from token. It never returns a
// different identity than the one that was encoded: any mismatch fails
// with ErrForgedToken.
func (c *Codec) Decode(token string) (ChatID, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" || strings.Contains(sig, ".") {
		return 0, ErrMalformedToken
	}

	raw, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	// Reject non-canonical forms such as "+42" or "042"; they would
	// otherwise verify against a different payload string.
	if strconv.FormatInt(raw, 10) != payload {
		return 0, ErrMalformedToken
	}

	given, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	id := ChatID(raw)
	if !id.Valid() {
		return 0, ErrUnknownIdentity
	}

	if !hmac.Equal(given, c.mac(payload)) {
		return 0, ErrForgedToken
	}

	return id, nil
}

func (c *Codec) mac(payload string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

func (c *Codec) sign(payload string) string {
	return base64.RawURLEncoding.EncodeToString(c.mac(payload))
}

// truncateState shortens a state value for logging.
func truncateState(state string) string {
	const keep = 12
	if len(state) <= keep {
		return state
	}
	return state[:keep] + "..."
}
