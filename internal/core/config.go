package core

import (
	"time"

	"roomwarden/internal/i18n"
)

// Default values applied by DefaultConfig.
const (
	DefaultSpamCheckThreshold = 50
	DefaultMaxMessageLength   = 1000
	DefaultRepeatThreshold    = 3
	DefaultDemotedPowerLevel  = -1
	DefaultClassifierTimeout  = 10
	DefaultMaxTrackedSenders  = 10000
	DefaultMaxRetries         = 3
	DefaultRetryDelaySecs     = 5
)

type Config struct {
	Matrix     MatrixConfig
	Classifier ClassifierConfig
	Moderation ModerationConfig
	Store      StoreConfig
	Server     ServerConfig
	Log        LogConfig
	App        AppConfig
}

type MatrixConfig struct {
	HomeserverURL string
	AccessToken   string
	SessionPath   string
}

type ClassifierConfig struct {
	Endpoint    string
	TimeoutSecs int
}

type ModerationConfig struct {
	// SpamCheckThreshold is the message length above which the external
	// classifier is consulted.
	SpamCheckThreshold int
	// MaxMessageLength is the oversize cutoff; longer messages are removed
	// without any further checks.
	MaxMessageLength int
	// RepeatThreshold is the number of tolerated consecutive duplicate sends
	// before the severe escalation fires.
	RepeatThreshold int
	// DemotedPowerLevel is assigned to members when the join guard fires.
	DemotedPowerLevel int
}

type StoreConfig struct {
	// RedisURL selects the shared redis sender store; empty falls back to
	// the bounded in-memory store.
	RedisURL      string
	MaxSenders    int
	RecordTTLSecs int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language       string
	MaxRetries     int
	RetryDelaySecs int
}

func DefaultConfig() *Config {
	return &Config{
		Matrix: MatrixConfig{
			SessionPath: "./roomwarden_session.db",
		},
		Classifier: ClassifierConfig{
			TimeoutSecs: DefaultClassifierTimeout,
		},
		Moderation: ModerationConfig{
			SpamCheckThreshold: DefaultSpamCheckThreshold,
			MaxMessageLength:   DefaultMaxMessageLength,
			RepeatThreshold:    DefaultRepeatThreshold,
			DemotedPowerLevel:  DefaultDemotedPowerLevel,
		},
		Store: StoreConfig{
			MaxSenders: DefaultMaxTrackedSenders,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:       i18n.DefaultLanguage,
			MaxRetries:     DefaultMaxRetries,
			RetryDelaySecs: DefaultRetryDelaySecs,
		},
	}
}
