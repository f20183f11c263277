package telegram

import (
	"context"
	"fmt"
	"strings"

	"adbridge/internal/bot"
	"adbridge/internal/oauth"
	"adbridge/pkg/logging"
)

// Dispatcher handles one chat event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) bot.Reply
}

// API is the part of Client the Processor needs.
type API interface {
	bot.Sender
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Processor turns updates into dispatcher calls and sends the replies.
type Processor struct {
	api         API
	dispatcher  Dispatcher
	queue       bot.Submitter
	botUsername string
}

// NewProcessor creates a Processor. botUsername filters commands addressed
// to other bots in group chats and may be empty.
func NewProcessor(api API, dispatcher Dispatcher, queue bot.Submitter, botUsername string) *Processor {
	return &Processor{
		api:         api,
		dispatcher:  dispatcher,
		queue:       queue,
		botUsername: strings.TrimPrefix(botUsername, "@"),
	}
}

// Enqueue schedules u for handling and returns immediately.
func (p *Processor) Enqueue(u Update) error {
	_, err := p.queue.Submit(fmt.Sprintf("update-%d", u.UpdateID), func(ctx context.Context) error {
		return p.Handle(ctx, u)
	})
	return err
}

// Handle processes one update synchronously.
func (p *Processor) Handle(ctx context.Context, u Update) error {
	ev, ok := ToEvent(u, p.botUsername)
	if !ok {
		logging.Debug("Telegram", "Ignoring update %d", u.UpdateID)
		return nil
	}

	reply := p.dispatcher.Dispatch(ctx, ev)

	if ev.Kind == bot.EventCallback {
		if err := p.api.AnswerCallbackQuery(ctx, ev.CallbackID, reply.Notice); err != nil {
			logging.Warn("Telegram", "answerCallbackQuery for chat=%s failed: %v", ev.ChatID, err)
		}
	}

	if reply.Empty() {
		return nil
	}
	if reply.ChatID == 0 {
		reply.ChatID = ev.ChatID
	}
	if err := p.api.Send(ctx, reply); err != nil {
		return fmt.Errorf("send reply to chat %s: %w", ev.ChatID, err)
	}
	return nil
}

// ToEvent translates an update into a dispatcher event. ok is false for
// updates the bot does not act on.
func ToEvent(u Update, botUsername string) (ev bot.Event, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.Message == nil {
			return bot.Event{}, false
		}
		return bot.Event{
			ChatID:     oauth.ChatID(cq.Message.Chat.ID),
			Kind:       bot.EventCallback,
			Data:       cq.Data,
			CallbackID: cq.ID,
			FromName:   cq.From.FirstName,
		}, true

	case u.Message != nil:
		msg := u.Message
		if msg.From != nil && msg.From.IsBot {
			return bot.Event{}, false
		}
		command, args, isCommand := bot.ParseCommand(msg.Text, botUsername)
		if !isCommand {
			return bot.Event{}, false
		}
		ev := bot.Event{
			ChatID:  oauth.ChatID(msg.Chat.ID),
			Kind:    bot.EventCommand,
			Command: command,
			Args:    args,
		}
		if msg.From != nil {
			ev.FromName = msg.From.FirstName
		}
		return ev, true
	}
	return bot.Event{}, false
}
