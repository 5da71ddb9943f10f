// Package transport defines how chat messages reach the router and how
// replies get back to the user.
package transport

import "context"

// Message is one inbound chat message.
type Message struct {
	Platform       string
	UserID         string
	ConversationID string
	Text           string
	MessageID      string
}

// Handler processes an inbound message. Transports run it through a
// Dispatcher, so calls for one conversation never overlap and keep
// arrival order.
type Handler func(ctx context.Context, m Message)

// Replier is the outbound half of a transport.
type Replier interface {
	// Send delivers text, splitting it into numbered chunks when it exceeds
	// the platform limit.
	Send(ctx context.Context, conversationID, text string) error
	// SendTyping shows a "working" indicator.
	SendTyping(ctx context.Context, conversationID string) error
}

// Transport connects a chat platform to a Handler.
type Transport interface {
	Replier
	// Start receives messages until ctx is done.
	Start(ctx context.Context, h Handler) error
	Name() string
}
