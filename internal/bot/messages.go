package bot

import (
	"adbridge/internal/template"
)

// Message template names.
const (
	msgStart         = "start"
	msgHelp          = "help"
	msgConnect       = "connect"
	msgNotConfigured = "not_configured"
	msgConnectFirst  = "connect_first"
	msgExpired       = "expired"
	msgReconnect     = "reconnect"
	msgNoAccounts    = "no_accounts"
	msgChooseAccount = "choose_account"
	msgReport        = "report"
	msgNoData        = "no_data"
	msgFetchFailed   = "fetch_failed"
	msgStoreFailed   = "store_failed"
	msgDisconnected  = "disconnected"
	msgConnected     = "connected"
	msgStaleButton   = "stale_button"
)

var defaultMessages = map[string]string{
	msgStart: `
👋 Hello{{ with .Name }}, {{ . | trunc 32 | html }}{{ end }}!
I show campaign performance from your advertising account right here in the chat.

Use /connect to link your account, then /report to see the last {{ .WindowDays }} days.`,

	msgHelp: `
<b>Commands</b>
/connect - link your advertising account
/report - choose an account and see its campaigns
/disconnect - forget the linked account
/help - show this message`,

	msgConnect: `
Open the link below and approve read access to your ad accounts.
When you are done, come back here and run /report.`,

	msgNotConfigured: `⚙️ The advertising provider is not configured on this bot yet. Please contact the bot administrator.`,

	msgConnectFirst: `🔒 No account is linked to this chat. Run /connect first.`,

	msgExpired: `⌛ Your authorization has expired. Run /connect to link your account again.`,

	msgReconnect: `🔒 The provider no longer accepts the stored authorization. Run /connect to link your account again.`,

	msgNoAccounts: `No ad accounts are available for this authorization.`,

	msgChooseAccount: `Choose an account ({{ .Count }} available):`,

	msgReport: `
<b>{{ .Account | html }}</b>
{{ .Since.Format "Jan 2" }} - {{ .Until.Format "Jan 2, 2006" }}
<pre>{{ .Table | html }}</pre>`,

	msgNoData: `No campaign data for <b>{{ .Account | html }}</b> in the last {{ .WindowDays }} days.`,

	msgFetchFailed: `⚠️ Could not reach the advertising provider. Please try again in a moment.`,

	msgStoreFailed: `⚠️ Something went wrong on our side. Please try again in a moment.`,

	msgDisconnected: `Your advertising account has been unlinked from this chat.`,

	msgConnected: `✅ Your advertising account is connected. Run /report to see your campaigns.`,

	msgStaleButton: `This button is no longer valid. Run /report again.`,
}

func newMessages() *template.Engine {
	return template.Must(template.New(defaultMessages))
}
