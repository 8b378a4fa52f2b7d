package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ankogit/4duk-recorder/internal/audio"
	"github.com/ankogit/4duk-recorder/internal/container"
	"github.com/ankogit/4duk-recorder/internal/pipeline"
	"github.com/ankogit/4duk-recorder/internal/recorder"
)

// recordingOptions builds recording options for a guild, applying its saved
// format and bitrate overrides.
func (b *Bot) recordingOptions(guildID, label string, sampleRate, channels int) (recorder.Options, error) {
	state := b.manager.GetOrCreate(guildID)

	kind := b.config.Format
	if f := state.GetFormat(); f != "" {
		k, err := container.ParseKind(f)
		if err != nil {
			return recorder.Options{}, err
		}
		kind = k
	}
	bitrate := b.config.Bitrate
	if br := state.GetBitrate(); br != 0 {
		bitrate = br
	}

	return recorder.Options{
		Dir:   filepath.Join(b.config.OutputDir, guildID),
		Label: label,
		Kind:  kind,
		Encoder: pipeline.Options{
			InputRate:         sampleRate,
			Channels:          channels,
			Bitrate:           bitrate,
			Application:       b.config.Application,
			Codec:             b.codec,
			Vendor:            b.vendor,
			MaxPacketsPerPage: b.config.MaxPacketsPerPage,
		},
		FlushInterval: b.config.FlushInterval,
		Logger:        b.logger.WithField("guild", guildID),
		Metrics:       b.metrics,
	}, nil
}

// beginCapture replaces the capture context of a guild
func (b *Bot) beginCapture(guildID string) context.Context {
	b.capMu.Lock()
	defer b.capMu.Unlock()

	if cancel, ok := b.captures[guildID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(b.ctx)
	b.captures[guildID] = cancel
	return ctx
}

// endCapture stops the capture goroutine of a guild, if any
func (b *Bot) endCapture(guildID string) {
	b.capMu.Lock()
	defer b.capMu.Unlock()

	if cancel, ok := b.captures[guildID]; ok {
		cancel()
		delete(b.captures, guildID)
	}
}

// startStreamCapture records a stream URL through ffmpeg into rec. When the
// stream drops while the guild is still recording, a reconnect is scheduled.
func (b *Bot) startStreamCapture(guildID, url string, rec *recorder.Recording) {
	state := b.manager.GetOrCreate(guildID)
	ctx := b.beginCapture(guildID)
	source := audio.NewFFmpegSource(url, b.config.InputSampleRate, b.config.InputChannels, b.logger.WithField("guild", guildID))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		err := source.Run(ctx, state.IsActive, rec.Write)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			b.logger.WithError(err).Warnf("[%s] Capture ended", guildID)
		}

		if rec.Failed() {
			b.logger.Errorf("[%s] Encoder failed, stopping recording", guildID)
			b.finishRecording(guildID, "⚠️ Запись остановлена из-за ошибки кодека.")
			return
		}

		// Trigger reconnect if still active
		if state.IsActive() {
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.reconnectCapture(guildID)
			}()
		}
	}()
}

// startVoiceCapture records every speaker of a voice connection into its
// own file.
func (b *Bot) startVoiceCapture(vc *discordgo.VoiceConnection, guildID string) error {
	if vc == nil || vc.Status != discordgo.VoiceConnectionStatusReady {
		return fmt.Errorf("voice connection not ready")
	}

	ctx := b.beginCapture(guildID)
	receiver := audio.NewVoiceReceiver(audio.NewDecoderPool(), b.logger.WithField("guild", guildID))

	var mu sync.Mutex
	speakers := make(map[uint32]*recorder.Recording)

	handle := func(ssrc uint32, chunk [][]float32) error {
		mu.Lock()
		rec, ok := speakers[ssrc]
		if !ok {
			opts, err := b.recordingOptions(guildID, fmt.Sprintf("voice-%d", ssrc), audio.SampleRate, audio.Channels)
			if err != nil {
				mu.Unlock()
				return err
			}
			rec, err = recorder.Start(opts)
			if err != nil {
				mu.Unlock()
				return err
			}
			speakers[ssrc] = rec
			b.manager.Add(guildID, rec)
			b.logger.Infof("[%s] Recording speaker SSRC %d", guildID, ssrc)
		}
		mu.Unlock()

		if err := rec.Write(chunk); err != nil {
			// one broken speaker must not end the capture of the others
			b.logger.WithError(err).Warnf("[%s] SSRC %d: write failed", guildID, ssrc)
		}
		return nil
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		err := receiver.Run(ctx, vc.OpusRecv, handle)
		if err != nil && ctx.Err() == nil {
			b.logger.WithError(err).Warnf("[%s] Voice capture ended", guildID)
		}
	}()

	return nil
}

// finishRecording stops capture, finalizes every recording of the guild and
// uploads the files to the guild's text channel.
func (b *Bot) finishRecording(guildID, notice string) {
	state := b.manager.GetOrCreate(guildID)
	textChannelID := state.GetTextChannelID()

	state.SetActive(false)
	state.ResetReconnectAttempts()
	b.endCapture(guildID)

	source, _ := state.GetSource()
	if source == recorder.SourceVoice {
		b.disconnectVoice(guildID)
	}

	results, err := b.manager.StopGuild(guildID)
	if err != nil {
		b.logger.WithError(err).Errorf("[%s] Error finalizing recordings", guildID)
	}

	if textChannelID == "" {
		for _, res := range results {
			b.logger.Infof("[%s] Saved %s", guildID, res.Path)
		}
		return
	}
	if notice != "" {
		b.session.ChannelMessageSend(textChannelID, notice)
	}
	b.uploadResults(textChannelID, results)
}

// uploadResults sends finished files that fit the upload limit and lists
// the paths of the rest.
func (b *Bot) uploadResults(channelID string, results []*recorder.Result) {
	if len(results) == 0 {
		b.session.ChannelMessageSend(channelID, "Нечего сохранять: запись пуста.")
		return
	}

	var kept []string
	for _, res := range results {
		if res.Bytes > b.config.UploadLimitBytes {
			kept = append(kept, fmt.Sprintf("`%s` (%s, %.1f МБ)", res.Path, res.Duration.Round(time.Second), float64(res.Bytes)/(1<<20)))
			continue
		}

		f, err := os.Open(res.Path)
		if err != nil {
			b.logger.WithError(err).Errorf("Failed to open %s for upload", res.Path)
			kept = append(kept, fmt.Sprintf("`%s`", res.Path))
			continue
		}
		_, err = b.session.ChannelFileSend(channelID, filepath.Base(res.Path), f)
		f.Close()
		if err != nil {
			b.logger.WithError(err).Errorf("Failed to upload %s", res.Path)
			kept = append(kept, fmt.Sprintf("`%s`", res.Path))
		}
	}

	if len(kept) > 0 {
		b.session.ChannelMessageSend(channelID, "Сохранено на сервере:\n"+strings.Join(kept, "\n"))
	}
}
