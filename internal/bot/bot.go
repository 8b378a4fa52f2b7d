package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/codec/backend"
	"github.com/ankogit/4duk-recorder/internal/config"
	"github.com/ankogit/4duk-recorder/internal/observe"
	"github.com/ankogit/4duk-recorder/internal/recorder"
)

// Bot represents the Discord recording bot
type Bot struct {
	session  *discordgo.Session
	config   *config.Config
	manager  *recorder.Manager
	codec    codec.Factory
	vendor   string
	metrics  *observe.Metrics
	captures map[string]context.CancelFunc
	capMu    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *logrus.Logger
}

// New creates a new bot instance
func New(cfg *config.Config, logger *logrus.Logger, metrics *observe.Metrics) (*Bot, error) {
	factory, err := backend.Factory(cfg.CodecBackend)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	ctx, cancel := context.WithCancel(context.Background())

	bot := &Bot{
		session:  session,
		config:   cfg,
		manager:  recorder.NewManager(cfg.GuildSettingsPath(), logger),
		codec:    factory,
		vendor:   backend.Vendor(cfg.CodecBackend),
		metrics:  metrics,
		captures: make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onMessageCreate)

	return bot, nil
}

// Start starts the bot
func (b *Bot) Start() error {
	err := b.session.Open()
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	b.logger.Info("Bot started successfully")
	return nil
}

// Stop finalizes every recording and shuts the bot down
func (b *Bot) Stop() error {
	b.logger.Info("Shutting down...")

	// Mark everything inactive so captures do not trigger reconnects
	for _, guildID := range b.manager.GetAllGuildIDs() {
		b.manager.GetOrCreate(guildID).SetActive(false)
	}

	// Cancel context to stop all goroutines
	b.cancel()

	for _, guildID := range b.manager.GetAllGuildIDs() {
		b.disconnectVoice(guildID)
	}

	// Wait for capture goroutines before finalizing their recordings
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("All goroutines finished")
	case <-time.After(10 * time.Second):
		b.logger.Warn("Timeout waiting for goroutines to finish")
	}

	results, err := b.manager.StopAll()
	if err != nil {
		b.logger.WithError(err).Error("Error finalizing recordings")
	}
	for _, res := range results {
		b.logger.Infof("Saved %s (%s)", res.Path, res.Duration.Round(time.Second))
	}

	// Close Discord session
	if err := b.session.Close(); err != nil {
		b.logger.WithError(err).Error("Error closing Discord session")
	}
	return nil
}

// disconnectVoice leaves the voice channel of a guild, if any
func (b *Bot) disconnectVoice(guildID string) {
	vc, exists := b.session.VoiceConnections[guildID]
	if !exists || vc == nil {
		return
	}
	// Remove from map first to prevent Kill() panic
	delete(b.session.VoiceConnections, guildID)
	func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Debugf("[%s] Panic during disconnect (ignored): %v", guildID, r)
			}
		}()
		_ = vc.Disconnect(context.Background())
	}()
}
