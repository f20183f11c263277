// Package oauth implements the session bridge between a chat identity and
// an advertising-data provider's OAuth authorization-code flow.
//
// # Flow
//
//  1. A chat user issues "connect"; the dispatcher asks the Exchanger for an
//     authorization URL whose state parameter is Codec.Encode(chatID).
//  2. The user authorizes in the browser; the provider redirects to the
//     callback Handler with code and state.
//  3. The Handler decodes state back into the chat identity, exchanges the
//     code for a short-lived token, best-effort extends it to a long-lived
//     one, and commits the result to the TokenStore.
//  4. Later chat commands read the TokenStore and call the provider with the
//     stored token.
//
// # Components
//
//   - Codec: stateless, HMAC-signed correlation tokens (the OAuth state).
//   - TokenStore: get/set/invalidate keyed by ChatID. MemoryTokenStore and
//     RedisTokenStore both satisfy it.
//   - Exchanger: code-for-token exchange and lifetime extension.
//   - Handler: the /oauth/callback HTTP endpoint.
//
// # Security
//
// The state parameter embeds the chat identity in the clear, followed by an
// HMAC-SHA256 signature over it. Without the signing secret a third party
// cannot craft a state that attributes a stolen authorization to another
// chat. Tokens are deterministic, so a replayed callback re-uses an already
// consumed authorization code and fails at the exchange step.
//
// Access tokens are carried as RedactedToken and never logged.
package oauth
