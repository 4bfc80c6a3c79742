// Package chat provides a capability-abstracted interface to the chat
// protocol client, so moderation logic can be unit-tested with fakes.
package chat

import (
	"context"
)

// MsgTypeText is the only message type the moderation engine inspects.
const MsgTypeText = "m.text"

// Membership states carried on membership events.
const (
	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
)

// Message is a normalized room message event.
type Message struct {
	RoomID   string
	EventID  string
	SenderID string
	MsgType  string
	Body     string
}

// Membership is a normalized room membership change event.
type Membership struct {
	RoomID     string
	UserID     string
	Membership string
}

// MessageHandler consumes a single room message event.
type MessageHandler func(ctx context.Context, msg *Message)

// MembershipHandler consumes a single membership change event.
type MembershipHandler func(ctx context.Context, m *Membership)

// Client exposes the moderation actions the engine needs from the chat
// protocol client.
type Client interface {
	// RedactEvent removes a previously sent message from room history.
	RedactEvent(ctx context.Context, roomID, eventID, reason string) error

	// SendNotice posts a notice message to the room.
	SendNotice(ctx context.Context, roomID, text string) error

	// SetPowerLevel sets a member's permission tier in the room.
	SetPowerLevel(ctx context.Context, roomID, userID string, level int) error

	// UserID returns the bot's own user identity, used to skip its own events.
	UserID() string
}

// Source delivers room events to registered handlers. Handlers must be
// registered before Start; Start blocks until the context is cancelled.
type Source interface {
	OnMessage(handler MessageHandler)
	OnMembership(handler MembershipHandler)
	Start(ctx context.Context) error
}
