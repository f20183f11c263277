package oauth

// RedactedToken wraps a provider credential so it cannot leak through
// fmt, slog or JSON. Use Value() only when building an outbound request.
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the wrapped credential.
func (t RedactedToken) Value() string {
	return t.value
}

// String implements fmt.Stringer.
func (t RedactedToken) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{[REDACTED]}"
}

// IsEmpty returns true if no credential is wrapped.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}
