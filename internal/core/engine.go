package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"roomwarden/internal/chat"
	"roomwarden/internal/flood"
	"roomwarden/internal/i18n"
)

// Action identifies the moderation outcome selected for a message.
type Action string

const (
	ActionNone              Action = "none"
	ActionDeleteOversize    Action = "delete-oversize"
	ActionWarnAndDelete     Action = "warn-and-delete"
	ActionDeleteSevereRepeat Action = "delete-severe-repeat"
	ActionDeleteSpam        Action = "delete-spam"
)

// Decision is the evaluated outcome for a single message.
type Decision struct {
	Action Action
	Warn   bool   // send the duplicate warning notice before redacting
	Reason string // redaction reason shown in room history
}

// Classifier is the gateway to the external spam classification service.
type Classifier interface {
	Classify(ctx context.Context, body string) (bool, error)
}

// MetricsRecorder receives moderation telemetry. Implementations must be
// safe for concurrent use; a nil recorder disables telemetry.
type MetricsRecorder interface {
	RecordMessage(outcome string)
	RecordAction(action, status string)
	RecordClassifierCall(status string, duration time.Duration)
	RecordStoreError()
}

// Engine is the moderation policy core. It evaluates each message against
// the oversize, duplicate and spam checks in that order and hands the
// resulting decision to the dispatcher.
type Engine struct {
	config      *Config
	limiter     *flood.Limiter
	classifier  Classifier
	dispatcher  *Dispatcher
	senderLocks *flood.KeyedMutex
	localizer   *i18n.Localizer
	logger      *zap.Logger
	metrics     MetricsRecorder
}

// NewEngine creates the moderation engine.
func NewEngine(
	config *Config,
	limiter *flood.Limiter,
	classifier Classifier,
	dispatcher *Dispatcher,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		config:      config,
		limiter:     limiter,
		classifier:  classifier,
		dispatcher:  dispatcher,
		senderLocks: flood.NewKeyedMutex(),
		localizer:   i18n.NewLocalizer(config.App.Language),
		logger:      logger,
		metrics:     metrics,
	}
}

// Start registers the event handlers and runs the source's event loop until
// ctx is cancelled. Each event is processed on its own goroutine so a slow
// classifier or store call never blocks delivery of other events.
func (e *Engine) Start(ctx context.Context, source chat.Source) error {
	e.logger.Info("Starting moderation engine",
		zap.Int("spam_check_threshold", e.config.Moderation.SpamCheckThreshold),
		zap.Int("max_message_length", e.config.Moderation.MaxMessageLength),
		zap.Int("repeat_threshold", e.config.Moderation.RepeatThreshold))

	source.OnMessage(func(ctx context.Context, msg *chat.Message) {
		go e.HandleMessage(ctx, msg)
	})
	source.OnMembership(func(ctx context.Context, m *chat.Membership) {
		go e.HandleMembership(ctx, m)
	})

	return source.Start(ctx)
}

// HandleMessage runs the policy for one room message and dispatches the
// selected actions.
func (e *Engine) HandleMessage(ctx context.Context, msg *chat.Message) {
	if msg.MsgType != chat.MsgTypeText {
		return
	}
	if msg.SenderID == e.dispatcher.SelfID() {
		return
	}

	decision := e.Evaluate(ctx, msg)

	e.logger.Debug("Message evaluated",
		zap.String("room_id", msg.RoomID),
		zap.String("sender", msg.SenderID),
		zap.String("action", string(decision.Action)))
	if e.metrics != nil {
		e.metrics.RecordMessage(string(decision.Action))
	}

	e.dispatcher.Execute(ctx, decision, msg)
}

// Evaluate applies the policy checks in priority order: oversize first,
// duplicates second, the classifier last. The cheap local checks
// short-circuit before the network call.
func (e *Engine) Evaluate(ctx context.Context, msg *chat.Message) Decision {
	mod := e.config.Moderation
	length := utf16Len(msg.Body)

	if length > mod.MaxMessageLength {
		return Decision{
			Action: ActionDeleteOversize,
			Reason: e.localizer.T("reason.oversize", mod.MaxMessageLength),
		}
	}

	decision := Decision{Action: ActionNone}
	if verdict := e.checkDuplicate(ctx, msg); verdict != nil {
		if verdict.severe {
			return Decision{
				Action: ActionDeleteSevereRepeat,
				Reason: e.localizer.T("reason.duplicate_severe"),
			}
		}
		if verdict.warn {
			decision = Decision{
				Action: ActionWarnAndDelete,
				Warn:   true,
				Reason: e.localizer.T("reason.duplicate"),
			}
		}
	}

	// A tolerated duplicate does not suppress the spam check; the spam
	// verdict takes over the redaction reason while the warning stands.
	if length > mod.SpamCheckThreshold && e.checkSpam(ctx, msg.Body) {
		decision.Action = ActionDeleteSpam
		decision.Reason = e.localizer.T("reason.spam")
	}

	return decision
}

// HandleMembership demotes newly joined members to the configured power
// level. Only joins count; leaves, bans and invites pass through untouched.
func (e *Engine) HandleMembership(ctx context.Context, m *chat.Membership) {
	if m.Membership != chat.MembershipJoin {
		return
	}
	if m.UserID == e.dispatcher.SelfID() {
		return
	}
	e.dispatcher.Demote(ctx, m.RoomID, m.UserID)
}

type duplicateVerdict struct {
	warn   bool
	severe bool
}

// checkDuplicate runs the limiter and the escalation transition it selects
// under a per-sender lock, so two in-flight messages from the same sender
// cannot race on the record. Returns nil when the store failed and the
// duplicate evaluation is skipped for this message.
func (e *Engine) checkDuplicate(ctx context.Context, msg *chat.Message) *duplicateVerdict {
	unlock := e.senderLocks.Lock(msg.SenderID)
	defer unlock()

	res, err := e.limiter.Check(ctx, msg.SenderID, msg.Body)
	if err != nil {
		e.logger.Warn("Sender store unavailable, skipping duplicate check",
			zap.String("sender", msg.SenderID),
			zap.Error(err))
		if e.metrics != nil {
			e.metrics.RecordStoreError()
		}
		return nil
	}
	if !res.Repeat {
		return &duplicateVerdict{}
	}

	if res.Count > int64(e.config.Moderation.RepeatThreshold) {
		if err := e.limiter.Clear(ctx, msg.SenderID); err != nil {
			e.logger.Warn("Failed to clear sender record", zap.Error(err))
			if e.metrics != nil {
				e.metrics.RecordStoreError()
			}
		}
		return &duplicateVerdict{severe: true}
	}

	if err := e.limiter.Confirm(ctx, msg.SenderID); err != nil {
		e.logger.Warn("Failed to persist repeat count", zap.Error(err))
		if e.metrics != nil {
			e.metrics.RecordStoreError()
		}
	}
	return &duplicateVerdict{warn: true}
}

// checkSpam consults the classifier gateway, failing open on any error.
func (e *Engine) checkSpam(ctx context.Context, body string) bool {
	if e.classifier == nil {
		return false
	}

	start := time.Now()
	spam, err := e.classifier.Classify(ctx, body)
	if err != nil {
		e.logger.Warn("Spam classification failed, treating as not spam", zap.Error(err))
		if e.metrics != nil {
			e.metrics.RecordClassifierCall("error", time.Since(start))
		}
		return false
	}

	status := "ham"
	if spam {
		status = "spam"
	}
	if e.metrics != nil {
		e.metrics.RecordClassifierCall(status, time.Since(start))
	}
	return spam
}

// utf16Len counts UTF-16 code units, so length thresholds line up with chat
// clients that measure message length that way rather than in bytes or runes.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n++
		if r > 0xFFFF {
			n++
		}
	}
	return n
}
