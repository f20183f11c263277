// Package config loads adbridge's runtime configuration.
//
// Values are layered, lowest precedence first:
//
//  1. built-in defaults (DefaultConfig)
//  2. config.yaml in the configuration directory, if present
//  3. a .env file, if present
//  4. the process environment
//
// The environment keys are:
//
//	BOT_TOKEN                Telegram bot credential (required)
//	TELEGRAM_MODE            "polling" (default) or "webhook"
//	TELEGRAM_WEBHOOK_URL     public URL Telegram posts updates to (webhook mode)
//	TELEGRAM_WEBHOOK_SECRET  value expected in X-Telegram-Bot-Api-Secret-Token
//	TELEGRAM_BOT_USERNAME    bot username, used for group chat commands and links
//	PROVIDER_CLIENT_ID       OAuth client id of the advertising provider
//	PROVIDER_CLIENT_SECRET   OAuth client secret
//	PROVIDER_REDIRECT_URI    registered redirect URI ending in /oauth/callback
//	PORT                     HTTP listen port
//	TRUST_FORWARDED_FOR      key the callback rate limit on X-Forwarded-For
//	STATE_SECRET             HMAC key for OAuth state tokens
//	REDIS_URL                redis:// URL; enables the persistent token store
//	LOG_LEVEL                debug, info, warn or error
//
// Missing provider credentials are not an error: the bot starts and answers
// /connect and /report with a configuration message. A missing BOT_TOKEN is
// fatal and reported as a ConfigurationError.
package config
