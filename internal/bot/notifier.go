package bot

import (
	"context"

	"adbridge/internal/oauth"
	"adbridge/internal/workqueue"
	"adbridge/pkg/logging"
)

// Sender delivers a Reply to the chat transport.
type Sender interface {
	Send(ctx context.Context, reply Reply) error
}

// Submitter enqueues background work.
type Submitter interface {
	Submit(name string, task workqueue.Task) (string, error)
}

// ConnectedNotifier tells a chat that its authorization was committed. It
// satisfies oauth.ConnectNotifier.
type ConnectedNotifier struct {
	dispatcher *Dispatcher
	sender     Sender
	queue      Submitter
}

var _ oauth.ConnectNotifier = (*ConnectedNotifier)(nil)

// NewConnectedNotifier creates a notifier that sends through sender on
// queue.
func NewConnectedNotifier(d *Dispatcher, sender Sender, queue Submitter) *ConnectedNotifier {
	return &ConnectedNotifier{dispatcher: d, sender: sender, queue: queue}
}

// NotifyConnected enqueues the "connected" message. Delivery failures are
// logged only.
func (n *ConnectedNotifier) NotifyConnected(ctx context.Context, id oauth.ChatID) {
	reply := n.dispatcher.Connected(id)
	_, err := n.queue.Submit("notify-connected", func(taskCtx context.Context) error {
		return n.sender.Send(taskCtx, reply)
	})
	if err != nil {
		logging.Warn("Notifier", "Could not enqueue connected message for chat=%s: %v", id, err)
	}
}
