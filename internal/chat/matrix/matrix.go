// Package matrix implements the chat interfaces on top of the mautrix
// client library.
package matrix

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"roomwarden/internal/chat"
)

// Config holds Matrix-specific configuration
type Config struct {
	HomeserverURL string
	AccessToken   string
}

// Client implements chat.Client and chat.Source for a Matrix homeserver.
type Client struct {
	config *Config
	logger *zap.Logger
	client *mautrix.Client

	onMessage    chat.MessageHandler
	onMembership chat.MembershipHandler
}

// NewClient creates a Matrix client. The bot's user ID is resolved from the
// access token on Start. syncStore may be nil to keep sync state in memory.
func NewClient(config *Config, syncStore mautrix.SyncStore, logger *zap.Logger) (*Client, error) {
	cli, err := mautrix.NewClient(config.HomeserverURL, "", config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	if syncStore != nil {
		cli.Store = syncStore
	}

	return &Client{
		config: config,
		logger: logger,
		client: cli,
	}, nil
}

// OnMessage registers the handler for room message events.
func (c *Client) OnMessage(handler chat.MessageHandler) {
	c.onMessage = handler
}

// OnMembership registers the handler for membership change events.
func (c *Client) OnMembership(handler chat.MembershipHandler) {
	c.onMembership = handler
}

// Start resolves the bot identity, wires the sync handlers and runs the sync
// loop until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	whoami, err := c.client.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve bot identity: %w", err)
	}
	c.client.UserID = whoami.UserID
	c.logger.Info("Connected to homeserver",
		zap.String("homeserver", c.config.HomeserverURL),
		zap.String("user_id", whoami.UserID.String()))

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnSync(c.client.DontProcessOldEvents)

	syncer.OnEventType(event.EventMessage, c.handleMessageEvent)
	syncer.OnEventType(event.StateMember, c.handleMemberEvent)

	go func() {
		<-ctx.Done()
		c.client.StopSync()
	}()

	if err := c.client.SyncWithContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("sync loop failed: %w", err)
	}
	return nil
}

func (c *Client) handleMessageEvent(ctx context.Context, evt *event.Event) {
	if c.onMessage == nil {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil {
		return
	}

	c.onMessage(ctx, &chat.Message{
		RoomID:   evt.RoomID.String(),
		EventID:  evt.ID.String(),
		SenderID: evt.Sender.String(),
		MsgType:  string(content.MsgType),
		Body:     content.Body,
	})
}

func (c *Client) handleMemberEvent(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsMember()
	if content == nil || evt.StateKey == nil {
		return
	}
	membership := string(content.Membership)

	// Accept invites addressed to the bot itself.
	if membership == chat.MembershipInvite && *evt.StateKey == c.client.UserID.String() {
		if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
			c.logger.Warn("Failed to join room on invite",
				zap.String("room_id", evt.RoomID.String()),
				zap.Error(err))
		} else {
			c.logger.Info("Joined room on invite", zap.String("room_id", evt.RoomID.String()))
		}
		return
	}

	if c.onMembership != nil {
		c.onMembership(ctx, &chat.Membership{
			RoomID:     evt.RoomID.String(),
			UserID:     *evt.StateKey,
			Membership: membership,
		})
	}
}

// RedactEvent removes an event from room history with the given reason.
func (c *Client) RedactEvent(ctx context.Context, roomID, eventID, reason string) error {
	_, err := c.client.RedactEvent(ctx, id.RoomID(roomID), id.EventID(eventID), mautrix.ReqRedact{Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to redact event %s: %w", eventID, err)
	}
	return nil
}

// SendNotice posts an m.notice message to the room.
func (c *Client) SendNotice(ctx context.Context, roomID, text string) error {
	_, err := c.client.SendNotice(ctx, id.RoomID(roomID), text)
	if err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// SetPowerLevel rewrites the room power levels with the member set to level.
func (c *Client) SetPowerLevel(ctx context.Context, roomID, userID string, level int) error {
	var levels event.PowerLevelsEventContent
	if err := c.client.StateEvent(ctx, id.RoomID(roomID), event.StatePowerLevels, "", &levels); err != nil {
		return fmt.Errorf("failed to fetch power levels: %w", err)
	}
	levels.SetUserLevel(id.UserID(userID), level)
	if _, err := c.client.SendStateEvent(ctx, id.RoomID(roomID), event.StatePowerLevels, "", &levels); err != nil {
		return fmt.Errorf("failed to update power levels: %w", err)
	}
	return nil
}

// UserID returns the bot's own user ID, empty until Start resolved it.
func (c *Client) UserID() string {
	return c.client.UserID.String()
}
