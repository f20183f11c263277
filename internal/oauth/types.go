package oauth

import (
	"strconv"
	"time"
)

// ChatID identifies a conversation in the chat transport. It is used as the
// token-store key and is embedded in the correlation token.
type ChatID int64

// String returns the decimal form of the identity.
func (id ChatID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether id is a plausible chat identity. Telegram uses
// negative identities for group chats, so only zero is rejected.
func (id ChatID) Valid() bool {
	return id != 0
}

// TokenRecord is the access credential stored for a chat identity.
type TokenRecord struct {
	// AccessToken is the provider credential used on data calls.
	AccessToken RedactedToken `json:"-"`

	// ObtainedAt is when the token was issued to us.
	ObtainedAt time.Time `json:"obtained_at"`

	// ExpiresAt is the provider-reported expiry. Zero means the provider
	// did not report one.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// LongLived is set when the lifetime extension step succeeded.
	LongLived bool `json:"long_lived,omitempty"`
}

// IsExpired reports whether the record is expired or will expire within
// margin. Records without an expiry never expire.
func (r *TokenRecord) IsExpired(margin time.Duration) bool {
	if r == nil {
		return true
	}
	if r.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(r.ExpiresAt)
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

func (t tokenResponse) record(now time.Time) TokenRecord {
	rec := TokenRecord{
		AccessToken: NewRedactedToken(t.AccessToken),
		ObtainedAt:  now,
	}
	if t.ExpiresIn > 0 {
		rec.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return rec
}
