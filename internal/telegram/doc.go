// Package telegram connects the bot dispatcher to the Telegram Bot API.
//
// Updates arrive either from a long-polling Poller or from a
// WebhookHandler registered on the HTTP listener; a deployment uses exactly
// one of the two. Both hand updates to a Processor, which enqueues each one
// on the shared scheduler, translates it into a bot.Event, and renders the
// resulting bot.Reply with sendMessage. Button presses are always answered
// with answerCallbackQuery so the client stops its loading indicator.
package telegram
