// Package bot routes inbound chat events to command handlers.
//
// The Dispatcher is transport-neutral: a chat source translates its own
// updates into Events and renders the returned Reply. It holds no state of
// its own; everything that outlives a single event lives in the TokenStore.
//
// Commands:
//
//	/start       greeting
//	/connect     authorization link carrying the chat's correlation token
//	/report      account list for the connected chat
//	/disconnect  forget the stored token
//	/help        command overview
//
// Selecting an account from the /report list produces a callback event
// whose data is "acct:<account id>"; the dispatcher answers it with the
// campaign table for the trailing reporting window.
package bot
