package bot

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/config"
	"github.com/ankogit/4duk-recorder/internal/container"
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dir := t.TempDir()
	cfg := &config.Config{
		Encoder: config.Encoder{
			Format:            container.Ogg,
			Bitrate:           64000,
			Application:       codec.AppVoIP,
			CodecBackend:      "gopus",
			MaxPacketsPerPage: 10,
			InputSampleRate:   44100,
			InputChannels:     2,
		},
		DiscordToken:  "test",
		OutputDir:     filepath.Join(dir, "out"),
		DataDir:       dir,
		FlushInterval: time.Second,
	}
	b, err := New(cfg, logger, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(b.cancel)
	return b
}

func TestRecordingOptionsDefaults(t *testing.T) {
	b := newTestBot(t)

	opts, err := b.recordingOptions("g1", "radio", 44100, 2)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Kind != container.Ogg || opts.Encoder.Bitrate != 64000 || opts.Encoder.Application != codec.AppVoIP {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Dir != filepath.Join(b.config.OutputDir, "g1") || opts.Label != "radio" {
		t.Errorf("dir %s label %s", opts.Dir, opts.Label)
	}
	if opts.Encoder.Codec == nil || opts.Encoder.Vendor == "" {
		t.Error("codec backend not wired")
	}
}

func TestRecordingOptionsGuildOverrides(t *testing.T) {
	b := newTestBot(t)
	state := b.manager.GetOrCreate("g1")
	state.SetFormat("wav")
	state.SetBitrate(128000)

	opts, err := b.recordingOptions("g1", "voice-1", 48000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Kind != container.Wav || opts.Encoder.Bitrate != 128000 || opts.Encoder.InputRate != 48000 {
		t.Errorf("opts = %+v", opts)
	}

	state.SetFormat("flac")
	if _, err := b.recordingOptions("g1", "x", 48000, 2); err == nil {
		t.Error("unknown saved format accepted")
	}
}

func TestCaptureReplacement(t *testing.T) {
	b := newTestBot(t)

	first := b.beginCapture("g1")
	second := b.beginCapture("g1")
	if first.Err() == nil {
		t.Error("previous capture not cancelled")
	}
	if second.Err() != nil {
		t.Error("new capture cancelled")
	}

	b.endCapture("g1")
	if second.Err() == nil {
		t.Error("endCapture did not cancel")
	}
	b.endCapture("g1") // no capture left
}
