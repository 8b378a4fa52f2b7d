package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/bot"
	"github.com/ankogit/4duk-recorder/internal/config"
	"github.com/ankogit/4duk-recorder/internal/observe"
)

var version = "dev"

func main() {
	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise metrics")
	}
	defer provider.Shutdown(context.Background())

	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create metrics")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Infof("Serving metrics on %s/metrics", cfg.MetricsAddr)
			if err := provider.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	// Run bot with automatic restart on panic
	// This handles panics from discordgo fork
	runBotWithRecovery(cfg, logger, metrics)
}

func runBotWithRecovery(cfg *config.Config, logger *logrus.Logger, metrics *observe.Metrics) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		botChan := make(chan error, 1)
		stopped := make(chan struct{})
		var discordBot *bot.Bot

		// Run bot in goroutine to catch panics
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.WithField("panic", r).
						WithField("stack", string(debug.Stack())).
						Error("CRITICAL: Panic caught - finalizing recordings and restarting bot")

					// Finalize open recordings so their files stay playable
					if discordBot != nil {
						func() {
							defer func() {
								if r := recover(); r != nil {
									logger.WithField("panic", r).Error("Panic during bot cleanup, ignoring")
								}
							}()
							_ = discordBot.Stop()
						}()
					}

					botChan <- fmt.Errorf("panic: %v", r)
				}
			}()

			var err error
			discordBot, err = bot.New(cfg, logger, metrics)
			if err != nil {
				logger.WithError(err).Fatal("Failed to create bot")
			}

			err = discordBot.Start()
			if err != nil {
				logger.WithError(err).Fatal("Failed to start bot")
			}

			botChan <- nil

			// Wait for interrupt
			<-sigChan

			err = discordBot.Stop()
			if err != nil {
				logger.WithError(err).Error("Error stopping bot")
			} else {
				logger.Info("Bot stopped successfully")
			}
			close(stopped)
		}()

		// Wait for bot to start or panic
		err := <-botChan
		if err != nil {
			logger.Warnf("Bot crashed, waiting 5 seconds before restart: %v", err)
			time.Sleep(5 * time.Second)
			continue // Restart bot
		}

		// Recordings are finalized by Stop; returning lets deferred
		// metric shutdown run
		<-stopped
		return
	}
}
