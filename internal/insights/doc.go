// Package insights fetches advertising account and campaign performance
// data from the provider's Graph-style data API and renders it for chat.
//
// The Fetcher exposes two operations:
//
//   - ListAccounts: the ad accounts visible to a token (/me/adaccounts)
//   - GetInsights: per-campaign impressions, clicks and spend for one account
//     over a trailing window (/<account>/insights?level=campaign)
//
// Every failure is returned as a *FetchError whose Kind tells the caller
// what to tell the user: Unauthorized means the stored token is no longer
// accepted and the chat must reconnect; Transient covers network failures,
// timeouts and provider-side errors that may succeed on retry.
//
// Concurrent identical GetInsights calls (same token, account and window)
// share one provider request. Results are never cached beyond that.
package insights
