package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"roomwarden/internal/chat"
	"roomwarden/internal/i18n"
)

// Dispatcher translates policy decisions into chat client calls. It holds no
// decision logic; failures are logged and counted, never escalated.
type Dispatcher struct {
	client       chat.Client
	localizer    *i18n.Localizer
	logger       *zap.Logger
	metrics      MetricsRecorder
	maxRetries   int
	retryDelay   time.Duration
	demotedLevel int
}

// NewDispatcher creates a dispatcher for the given chat client.
func NewDispatcher(config *Config, client chat.Client, metrics MetricsRecorder, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:       client,
		localizer:    i18n.NewLocalizer(config.App.Language),
		logger:       logger,
		metrics:      metrics,
		maxRetries:   config.App.MaxRetries,
		retryDelay:   time.Duration(config.App.RetryDelaySecs) * time.Second,
		demotedLevel: config.Moderation.DemotedPowerLevel,
	}
}

// SelfID returns the bot's own user ID.
func (d *Dispatcher) SelfID() string {
	return d.client.UserID()
}

// Execute carries out the actions for a decision. The warning notice, when
// present, is sent and awaited before the redaction so the sender sees them
// in that order.
func (d *Dispatcher) Execute(ctx context.Context, decision Decision, msg *chat.Message) {
	if decision.Action == ActionNone {
		return
	}

	if decision.Warn {
		notice := d.localizer.T("notice.duplicate_warning", msg.SenderID)
		if err := d.withRetry(ctx, func(ctx context.Context) error {
			return d.client.SendNotice(ctx, msg.RoomID, notice)
		}); err != nil {
			d.logger.Error("Failed to send warning notice",
				zap.String("room_id", msg.RoomID),
				zap.String("sender", msg.SenderID),
				zap.Error(err))
		}
	}

	err := d.withRetry(ctx, func(ctx context.Context) error {
		return d.client.RedactEvent(ctx, msg.RoomID, msg.EventID, decision.Reason)
	})
	status := "ok"
	if err != nil {
		status = "error"
		d.logger.Error("Failed to redact event",
			zap.String("room_id", msg.RoomID),
			zap.String("event_id", msg.EventID),
			zap.Error(err))
	} else {
		d.logger.Info("Moderation action applied",
			zap.String("action", string(decision.Action)),
			zap.String("room_id", msg.RoomID),
			zap.String("sender", msg.SenderID))
	}
	if d.metrics != nil {
		d.metrics.RecordAction(string(decision.Action), status)
	}
}

// Demote drops a member to the configured read-only power level.
func (d *Dispatcher) Demote(ctx context.Context, roomID, userID string) {
	err := d.withRetry(ctx, func(ctx context.Context) error {
		return d.client.SetPowerLevel(ctx, roomID, userID, d.demotedLevel)
	})
	status := "ok"
	if err != nil {
		status = "error"
		d.logger.Error("Failed to demote member",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err))
	} else {
		d.logger.Info("Demoted new member",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Int("level", d.demotedLevel))
	}
	if d.metrics != nil {
		d.metrics.RecordAction("demote", status)
	}
}

// withRetry runs fn up to maxRetries+1 times with a fixed delay between
// attempts, stopping early when ctx is cancelled.
func (d *Dispatcher) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		d.logger.Debug("Chat client call failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return err
}
