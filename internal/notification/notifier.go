package notification

import (
	"context"
	"time"
)

// Kind distinguishes the two message families the scanner sends
type Kind string

const (
	KindReminder Kind = "reminder"
	KindOverdue  Kind = "overdue"
)

// Channel names reported in DeliveryResult
const (
	ChannelEmail  = "email"
	ChannelPush   = "push"
	ChannelPubSub = "pubsub"
)

// Message is one rendered notification addressed to an owner
type Message struct {
	Kind       Kind
	OwnerID    string
	ActivityID string
	To         string // recipient email
	Subject    string
	HTML       string
	Text       string // short plain body for push payloads
	CardTitle  string
	DueDate    *time.Time
	Recurring  bool
}

// DeliveryResult describes how a message left the process. Simulated is
// set when the channel is not configured and nothing was sent.
type DeliveryResult struct {
	Channel   string `json:"channel"`
	Simulated bool   `json:"simulated"`
	ID        string `json:"id,omitempty"`
}

// Notifier dispatches a message on one or more channels
type Notifier interface {
	Send(ctx context.Context, msg Message) (DeliveryResult, error)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, msg Message) (DeliveryResult, error)

func (f NotifierFunc) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	return f(ctx, msg)
}
