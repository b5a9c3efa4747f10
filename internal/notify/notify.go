package notify

import (
	"context"
	"errors"
	"time"

	"futurebot/internal/bus"
	"futurebot/internal/obs"
	"futurebot/pkg/exception"

	"github.com/yanun0323/logs"
)

// Message is one notification.
type Message struct {
	Subject string
	Body    string
}

// Notifier delivers a message over one channel.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}

type channel uint8

const (
	channelEmail channel = 1 << iota
	channelSMS
)

type delivery struct {
	channels channel
	msg      Message
}

// Hub delivers messages in the background. Deliveries are best-effort: a full
// queue drops the message and failures are only logged.
type Hub struct {
	email   Notifier
	sms     Notifier
	queue   *bus.Queue[delivery]
	metrics *obs.Metrics
	timeout time.Duration
}

// NewHub creates a hub. A nil notifier disables its channel.
func NewHub(email, sms Notifier, capacity int, metrics *obs.Metrics) *Hub {
	return &Hub{
		email:   email,
		sms:     sms,
		queue:   bus.NewQueue[delivery](capacity),
		metrics: metrics,
		timeout: 30 * time.Second,
	}
}

// Email queues an email.
func (h *Hub) Email(subject, body string) {
	h.publish(delivery{channels: channelEmail, msg: Message{Subject: subject, Body: body}})
}

// SMS queues a text message.
func (h *Hub) SMS(body string) {
	h.publish(delivery{channels: channelSMS, msg: Message{Body: body}})
}

// Alert queues the message on every channel.
func (h *Hub) Alert(subject, body string) {
	h.publish(delivery{channels: channelEmail | channelSMS, msg: Message{Subject: subject, Body: body}})
}

func (h *Hub) publish(d delivery) {
	if h == nil {
		return
	}
	if err := h.queue.TryPublish(d); err != nil {
		h.metrics.IncQueueDrop("notify")
		logs.Errorf("drop notification %q, err: %+v", d.msg.Subject, err)
	}
}

// Run delivers queued messages until ctx is done or the hub is closed.
func (h *Hub) Run(ctx context.Context) {
	h.queue.Run(ctx, func(d delivery) {
		if d.channels&channelEmail != 0 {
			h.deliver(ctx, "email", h.email, d.msg)
		}
		if d.channels&channelSMS != 0 {
			h.deliver(ctx, "sms", h.sms, d.msg)
		}
	})
}

// Close stops accepting messages. Run returns after the queue drains.
func (h *Hub) Close() {
	h.queue.Close()
}

func (h *Hub) deliver(ctx context.Context, name string, n Notifier, m Message) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := n.Send(ctx, m); err != nil && !errors.Is(err, exception.ErrNotifyDisabled) {
		logs.Errorf("send %s notification %q, err: %+v", name, m.Subject, err)
	}
}
