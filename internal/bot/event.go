package bot

import (
	"strings"
	"unicode"

	"adbridge/internal/oauth"
)

// EventKind distinguishes typed commands from button presses.
type EventKind int

const (
	// EventCommand is a slash command typed into the chat.
	EventCommand EventKind = iota
	// EventCallback is a press on an inline button.
	EventCallback
)

func (k EventKind) String() string {
	if k == EventCallback {
		return "callback"
	}
	return "command"
}

// Event is one inbound chat event.
type Event struct {
	ChatID oauth.ChatID
	Kind   EventKind

	// Command and Args are set for EventCommand. Command is lower case and
	// has no leading slash or @bot suffix.
	Command string
	Args    []string

	// Data and CallbackID are set for EventCallback.
	Data       string
	CallbackID string

	// FromName is the sender's display name, if known.
	FromName string
}

// Button is an inline option attached to a Reply. Exactly one of Data and
// URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Reply is what the dispatcher wants shown in the chat.
type Reply struct {
	ChatID oauth.ChatID

	// Text is HTML formatted.
	Text string

	// Buttons are rendered one per row.
	Buttons []Button

	// Notice is a short toast used to acknowledge a callback event.
	Notice string
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool {
	return r.Text == "" && len(r.Buttons) == 0
}

// ParseCommand splits a chat message into a command and its arguments.
// ok is false when text is not a slash command, or is addressed to a bot
// other than botUsername. botUsername may be empty.
func ParseCommand(text, botUsername string) (command string, args []string, ok bool) {
	fields := strings.FieldsFunc(strings.TrimSpace(text), unicode.IsSpace)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}

	command = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(command, '@'); at >= 0 {
		target := command[at+1:]
		command = command[:at]
		if botUsername != "" && !strings.EqualFold(target, strings.TrimPrefix(botUsername, "@")) {
			return "", nil, false
		}
	}
	if command == "" {
		return "", nil, false
	}
	return strings.ToLower(command), fields[1:], true
}
