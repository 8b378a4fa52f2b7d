package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/container"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load without DISCORD_TOKEN succeeded")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	for _, k := range []string{"RADIO_URL", "OUTPUT_DIR", "DATA_DIR", "RECORD_FORMAT", "OPUS_BITRATE",
		"OPUS_APPLICATION", "CODEC_BACKEND", "MAX_PACKETS_PER_PAGE", "FLUSH_INTERVAL",
		"INPUT_SAMPLE_RATE", "INPUT_CHANNELS", "UPLOAD_LIMIT_BYTES", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Format != container.Ogg || cfg.CodecBackend != "libopus" || cfg.MaxPacketsPerPage != 10 {
		t.Errorf("encoder defaults = %+v", cfg.Encoder)
	}
	if cfg.InputSampleRate != 44100 || cfg.InputChannels != 2 || cfg.LogLevel != logrus.InfoLevel {
		t.Errorf("input defaults = %+v", cfg.Encoder)
	}
	if cfg.FlushInterval != time.Second || cfg.UploadLimitBytes != 8<<20 {
		t.Errorf("flush %s upload %d", cfg.FlushInterval, cfg.UploadLimitBytes)
	}
	if cfg.GuildSettingsPath() != filepath.Join("data", "recorder_guilds.yaml") {
		t.Errorf("settings path = %s", cfg.GuildSettingsPath())
	}
}

func TestLoadEncoderOverrides(t *testing.T) {
	t.Setenv("RECORD_FORMAT", "audio/wav")
	t.Setenv("OPUS_BITRATE", "64000")
	t.Setenv("OPUS_APPLICATION", "voip")
	t.Setenv("CODEC_BACKEND", "GoPus")
	t.Setenv("INPUT_CHANNELS", "1")
	t.Setenv("LOG_LEVEL", "debug")

	enc, err := LoadEncoder()
	if err != nil {
		t.Fatalf("LoadEncoder: %v", err)
	}
	if enc.Format != container.Wav || enc.Bitrate != 64000 || enc.Application != codec.AppVoIP {
		t.Errorf("enc = %+v", enc)
	}
	if enc.CodecBackend != "gopus" || enc.InputChannels != 1 || enc.LogLevel != logrus.DebugLevel {
		t.Errorf("enc = %+v", enc)
	}
}

func TestLoadEncoderRejects(t *testing.T) {
	tests := map[string]string{
		"RECORD_FORMAT":    "video/mp4",
		"OPUS_BITRATE":     "12",
		"OPUS_APPLICATION": "karaoke",
		"INPUT_CHANNELS":   "6",
		"LOG_LEVEL":        "chatty",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := LoadEncoder(); err == nil {
				t.Errorf("%s=%s accepted", key, val)
			}
		})
	}
}
