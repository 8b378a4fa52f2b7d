package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ankogit/4duk-recorder/internal/recorder"
)

// reconnectCapture restores the capture of an active guild with exponential
// backoff. Stream captures restart ffmpeg into the same recording; voice
// captures rejoin the channel.
func (b *Bot) reconnectCapture(guildID string) {
	state, exists := b.manager.Get(guildID)
	if !exists {
		return
	}

	if !state.IsActive() {
		b.logger.Infof("[%s] Recording not active anymore, skipping reconnect", guildID)
		return
	}

	attempts := state.GetReconnectAttempts()
	if attempts >= b.config.MaxReconnectAttempts {
		b.logger.Errorf("[%s] Reached max reconnect attempts (%d). Giving up", guildID, attempts)
		b.finishRecording(guildID, "⚠️ Источник недоступен, запись остановлена.")
		return
	}

	source, url := state.GetSource()
	channelID := state.GetChannelID()

	if source == recorder.SourceVoice {
		if channelID == "" {
			b.logger.Warnf("[%s] No channel recorded to reconnect", guildID)
			return
		}
		// Nobody left to record
		if b.countUsersInChannel(guildID, channelID) == 0 {
			b.logger.Infof("[%s] No users in channel %s, stopping recording instead of reconnecting", guildID, channelID)
			b.finishRecording(guildID, "Все вышли из канала, запись остановлена.")
			return
		}
	}

	backoff := time.Duration(1<<uint(attempts)) * b.config.ReconnectBackoffBase
	b.logger.Infof("[%s] Reconnect attempt #%d, sleeping %v before trying", guildID, attempts+1, backoff)

	select {
	case <-time.After(backoff):
	case <-b.ctx.Done():
		return
	}
	if !state.IsActive() {
		return
	}

	state.IncrementReconnectAttempts()

	switch source {
	case recorder.SourceRadio:
		recs := b.manager.Recordings(guildID)
		if len(recs) == 0 || recs[0].Stopped() {
			b.logger.Warnf("[%s] No open recording to resume", guildID)
			return
		}
		b.startStreamCapture(guildID, url, recs[0])

	case recorder.SourceVoice:
		vc, err := b.connectToChannel(b.session, guildID, channelID)
		if err != nil {
			b.logger.WithError(err).Errorf("[%s] Failed to reconnect to channel", guildID)
			// Schedule another attempt
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.reconnectCapture(guildID)
			}()
			return
		}
		state.ResetReconnectAttempts()
		if err := b.startVoiceCapture(vc, guildID); err != nil {
			b.logger.WithError(err).Errorf("[%s] Failed to restart voice capture after reconnect", guildID)
		}
	}
}

// voiceCheckLoop periodically checks voice connections
func (b *Bot) voiceCheckLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.VoiceCheckInterval)
	defer ticker.Stop()

	// Also check auto-record channels
	autoRecordTicker := time.NewTicker(30 * time.Second)
	defer autoRecordTicker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.checkVoiceConnections()
		case <-autoRecordTicker.C:
			b.checkAutoRecordChannels()
		}
	}
}

// checkVoiceConnections checks every active voice recording
func (b *Bot) checkVoiceConnections() {
	for _, guildID := range b.manager.GetAllGuildIDs() {
		state, exists := b.manager.Get(guildID)
		if !exists || !state.IsActive() {
			continue
		}
		if source, _ := state.GetSource(); source != recorder.SourceVoice {
			continue
		}

		channelID := state.GetChannelID()
		if channelID == "" {
			continue
		}

		if b.countUsersInChannel(guildID, channelID) == 0 {
			b.logger.Infof("[%s] voice_check_loop: no users in channel %s, stopping recording", guildID, channelID)
			b.wg.Add(1)
			go func(gid string) {
				defer b.wg.Done()
				b.finishRecording(gid, "Все вышли из канала, запись остановлена.")
			}(guildID)
			continue
		}

		vc, exists := b.session.VoiceConnections[guildID]
		if !exists || vc == nil || vc.Status != discordgo.VoiceConnectionStatusReady {
			b.logger.Infof("[%s] voice_check_loop: detected dead vc -> scheduling reconnect", guildID)
			b.wg.Add(1)
			go func(gid string) {
				defer b.wg.Done()
				b.reconnectCapture(gid)
			}(guildID)
		}
	}
}

// checkAutoRecordChannels starts recording saved channels once users join
func (b *Bot) checkAutoRecordChannels() {
	for _, guild := range b.session.State.Guilds {
		guildID := guild.ID
		state := b.manager.GetOrCreate(guildID)

		if !state.IsAutoRecordEnabled() {
			continue
		}
		autoChannelID := state.GetAutoChannelID()
		if autoChannelID == "" {
			b.logger.Debugf("[%s] No auto-record channel set, skipping", guildID)
			continue
		}
		if state.IsActive() {
			continue
		}

		userCount := b.countUsers(guild, autoChannelID)
		if userCount == 0 {
			b.logger.Debugf("[%s] No users in auto-record channel %s, skipping", guildID, autoChannelID)
			continue
		}

		b.logger.Infof("[%s] Auto-recording channel %s (%d users present)", guildID, autoChannelID, userCount)

		// Mark active before the join so the next tick does not start twice
		state.Start(recorder.SourceVoice, "", autoChannelID, "")
		state.ResetReconnectAttempts()

		b.wg.Add(1)
		go func(gid, cid string) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.WithField("panic", r).
						Errorf("[%s] Panic in auto-record goroutine", gid)
				}
			}()

			vc, err := b.connectToChannel(b.session, gid, cid)
			if err != nil {
				b.logger.WithError(err).Errorf("[%s] Failed to join auto-record channel", gid)
				b.manager.GetOrCreate(gid).SetActive(false)
				return
			}
			if err := b.startVoiceCapture(vc, gid); err != nil {
				b.logger.WithError(err).Errorf("[%s] Failed to start auto-record", gid)
				b.manager.GetOrCreate(gid).SetActive(false)
			}
		}(guildID, autoChannelID)
	}
}
