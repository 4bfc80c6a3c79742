// Package main provides the RoomWarden CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"roomwarden/internal/chat/matrix"
	"roomwarden/internal/classify"
	"roomwarden/internal/core"
	"roomwarden/internal/flood"
	httpserver "roomwarden/internal/http"
	"roomwarden/internal/session"
	"roomwarden/internal/store"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "roomwarden",
	Short: "RoomWarden - Matrix room moderation bot",
	Long: `RoomWarden watches Matrix rooms and removes oversized messages,
consecutive duplicates and classifier-flagged spam, and demotes newly joined
members to a read-restricted power level.`,
	RunE: runRoomWarden,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("homeserver-url", "", "Matrix homeserver base URL")
	rootCmd.PersistentFlags().String("access-token", "", "Matrix access token")
	rootCmd.PersistentFlags().String("session-path", "./roomwarden_session.db", "sync state database path")
	rootCmd.PersistentFlags().String("classifier-endpoint", "", "spam classifier endpoint URL")
	rootCmd.PersistentFlags().Int("classifier-timeout", core.DefaultClassifierTimeout, "classifier request timeout in seconds")
	rootCmd.PersistentFlags().Int("spam-check-threshold", core.DefaultSpamCheckThreshold, "message length above which the classifier runs")
	rootCmd.PersistentFlags().Int("max-message-length", core.DefaultMaxMessageLength, "maximum allowed message length")
	rootCmd.PersistentFlags().Int("repeat-threshold", core.DefaultRepeatThreshold, "tolerated consecutive duplicates before escalation")
	rootCmd.PersistentFlags().Int("demoted-power-level", core.DefaultDemotedPowerLevel, "power level assigned to new members")
	rootCmd.PersistentFlags().String("redis-url", "", "redis URL for the shared sender store (empty: in-memory)")
	rootCmd.PersistentFlags().Int("max-senders", core.DefaultMaxTrackedSenders, "in-memory store capacity")
	rootCmd.PersistentFlags().Int("record-ttl", 0, "redis sender record TTL in seconds (0: no expiry)")
	rootCmd.PersistentFlags().String("language", "en", "notice and reason language (en, zh)")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("ROOMWARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Matrix.HomeserverURL = viper.GetString("homeserver-url")
	cfg.Matrix.AccessToken = viper.GetString("access-token")
	cfg.Matrix.SessionPath = viper.GetString("session-path")
	if cfg.Matrix.SessionPath == "" {
		cfg.Matrix.SessionPath = "./roomwarden_session.db"
	}

	cfg.Classifier.Endpoint = viper.GetString("classifier-endpoint")
	cfg.Classifier.TimeoutSecs = viper.GetInt("classifier-timeout")

	cfg.Moderation.SpamCheckThreshold = viper.GetInt("spam-check-threshold")
	cfg.Moderation.MaxMessageLength = viper.GetInt("max-message-length")
	cfg.Moderation.RepeatThreshold = viper.GetInt("repeat-threshold")
	cfg.Moderation.DemotedPowerLevel = viper.GetInt("demoted-power-level")

	cfg.Store.RedisURL = viper.GetString("redis-url")
	cfg.Store.MaxSenders = viper.GetInt("max-senders")
	if cfg.Store.MaxSenders == 0 {
		cfg.Store.MaxSenders = core.DefaultMaxTrackedSenders
	}
	cfg.Store.RecordTTLSecs = viper.GetInt("record-ttl")

	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")

	cfg.App.Language = viper.GetString("language")
	cfg.App.MaxRetries = viper.GetInt("max-retries")
	if cfg.App.MaxRetries == 0 {
		cfg.App.MaxRetries = core.DefaultMaxRetries
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runRoomWarden(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting RoomWarden",
		zap.String("homeserver", config.Matrix.HomeserverURL),
		zap.String("classifier", config.Classifier.Endpoint))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	sessionStore, err := session.Open(config.Matrix.SessionPath, logger.Named("session"))
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessionStore.Close()

	matrixClient, err := matrix.NewClient(&matrix.Config{
		HomeserverURL: config.Matrix.HomeserverURL,
		AccessToken:   config.Matrix.AccessToken,
	}, sessionStore, logger.Named("matrix"))
	if err != nil {
		return fmt.Errorf("failed to create matrix client: %w", err)
	}

	var senderStore store.SenderStore
	var memStore *store.MemoryStore
	if config.Store.RedisURL != "" {
		senderStore, err = store.NewRedisStore(ctx, config.Store.RedisURL, int64(config.Store.RecordTTLSecs))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	} else {
		memStore, err = store.NewMemoryStore(config.Store.MaxSenders)
		if err != nil {
			return fmt.Errorf("failed to create sender store: %w", err)
		}
		senderStore = memStore
	}
	defer senderStore.Close()

	var classifier core.Classifier
	if config.Classifier.Endpoint != "" {
		classifier = classify.NewClient(
			config.Classifier.Endpoint,
			time.Duration(config.Classifier.TimeoutSecs)*time.Second,
			logger.Named("classify"),
		)
	}

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"))

	dispatcher := core.NewDispatcher(config, matrixClient, httpServer, logger.Named("dispatch"))
	engine := core.NewEngine(
		config,
		flood.New(senderStore, logger.Named("flood")),
		classifier,
		dispatcher,
		httpServer,
		logger.Named("engine"),
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return engine.Start(gCtx, matrixClient)
	})

	if memStore != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()

			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					httpServer.SetTrackedSenders(memStore.Len())
				}
			}
		})
	}

	logger.Info("RoomWarden started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("RoomWarden stopped with error", zap.Error(err))
		return err
	}

	logger.Info("RoomWarden stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.Matrix.HomeserverURL == "" {
		return fmt.Errorf("matrix homeserver URL is required")
	}

	if config.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix access token is required")
	}

	if config.Moderation.MaxMessageLength <= config.Moderation.SpamCheckThreshold {
		return fmt.Errorf("max message length must exceed the spam check threshold")
	}

	if config.Moderation.RepeatThreshold < 1 {
		return fmt.Errorf("repeat threshold must be at least 1")
	}

	return nil
}
