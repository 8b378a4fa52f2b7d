package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/container"
)

// Encoder holds the settings shared by the bot and the CLI
type Encoder struct {
	Format            container.Kind
	Bitrate           int
	Application       codec.Application
	CodecBackend      string
	MaxPacketsPerPage int
	InputSampleRate   int
	InputChannels     int
	LogLevel          logrus.Level
}

// Config holds all configuration for the bot
type Config struct {
	Encoder

	DiscordToken         string
	RadioURL             string
	OutputDir            string
	DataDir              string
	FlushInterval        time.Duration
	UploadLimitBytes     int64
	MetricsAddr          string
	MaxReconnectAttempts int
	ReconnectBackoffBase time.Duration
	VoiceCheckInterval   time.Duration
}

// GuildSettingsPath is where per-guild settings are persisted
func (c *Config) GuildSettingsPath() string {
	return filepath.Join(c.DataDir, "recorder_guilds.yaml")
}

// Load loads bot configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	discordToken := os.Getenv("DISCORD_TOKEN")
	if discordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN not set in environment")
	}

	enc, err := loadEncoder()
	if err != nil {
		return nil, err
	}

	radioURL := os.Getenv("RADIO_URL")
	if radioURL == "" {
		radioURL = "http://radio.4duk.ru/4duk128.mp3"
	}

	cfg := &Config{
		Encoder:      *enc,
		DiscordToken: discordToken,
		RadioURL:     radioURL,
		OutputDir:    envString("OUTPUT_DIR", "recordings"),
		DataDir:      envString("DATA_DIR", "data"),
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
	}

	if cfg.FlushInterval, err = envDuration("FLUSH_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.UploadLimitBytes, err = envInt64("UPLOAD_LIMIT_BYTES", 8<<20); err != nil {
		return nil, err
	}
	if cfg.MaxReconnectAttempts, err = envInt("MAX_RECONNECT_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.ReconnectBackoffBase, err = envDuration("RECONNECT_BACKOFF_BASE", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.VoiceCheckInterval, err = envDuration("VOICE_CHECK_INTERVAL", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("FLUSH_INTERVAL must be positive, got %s", cfg.FlushInterval)
	}
	return cfg, nil
}

// LoadEncoder loads only the encoder settings; no Discord token is needed
func LoadEncoder() (*Encoder, error) {
	_ = godotenv.Load()
	return loadEncoder()
}

func loadEncoder() (*Encoder, error) {
	var (
		enc Encoder
		err error
	)

	if enc.Format, err = container.ParseKind(os.Getenv("RECORD_FORMAT")); err != nil {
		return nil, fmt.Errorf("RECORD_FORMAT: %w", err)
	}
	if enc.Application, err = codec.ParseApplication(os.Getenv("OPUS_APPLICATION")); err != nil {
		return nil, fmt.Errorf("OPUS_APPLICATION: %w", err)
	}
	enc.CodecBackend = strings.ToLower(envString("CODEC_BACKEND", "libopus"))

	if enc.Bitrate, err = envInt("OPUS_BITRATE", 0); err != nil {
		return nil, err
	}
	if enc.Bitrate != 0 && (enc.Bitrate < codec.MinBitrate || enc.Bitrate > codec.MaxBitrate) {
		return nil, fmt.Errorf("OPUS_BITRATE %d outside [%d, %d]", enc.Bitrate, codec.MinBitrate, codec.MaxBitrate)
	}
	if enc.MaxPacketsPerPage, err = envInt("MAX_PACKETS_PER_PAGE", 10); err != nil {
		return nil, err
	}
	if enc.InputSampleRate, err = envInt("INPUT_SAMPLE_RATE", 44100); err != nil {
		return nil, err
	}
	if enc.InputChannels, err = envInt("INPUT_CHANNELS", 2); err != nil {
		return nil, err
	}
	if enc.InputChannels < 1 || enc.InputChannels > 2 {
		return nil, fmt.Errorf("INPUT_CHANNELS must be 1 or 2, got %d", enc.InputChannels)
	}

	enc.LogLevel = logrus.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if enc.LogLevel, err = logrus.ParseLevel(v); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	return &enc, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
