package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const joinAttempts = 3

// connectToChannel joins a voice channel to listen. The bot stays muted.
func (b *Bot) connectToChannel(s *discordgo.Session, guildID, channelID string) (*discordgo.VoiceConnection, error) {
	// Reuse a ready connection to the same channel
	if vc, exists := s.VoiceConnections[guildID]; exists {
		if vc.Status == discordgo.VoiceConnectionStatusReady {
			vs, err := s.State.VoiceState(guildID, s.State.User.ID)
			if err == nil && vs != nil && vs.ChannelID == channelID {
				return vc, nil
			}
		}
		b.disconnectVoice(guildID)
	}

	var vc *discordgo.VoiceConnection
	var err error

	ctx, cancel := context.WithTimeout(b.ctx, 15*time.Second)
	defer cancel()

	for attempt := 0; attempt < joinAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
			if _, exists := s.VoiceConnections[guildID]; exists {
				b.disconnectVoice(guildID)
				time.Sleep(500 * time.Millisecond)
			}
		}

		// Wrap ChannelVoiceJoin in recover to catch panics from fork
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Warnf("[%s] Panic during ChannelVoiceJoin: %v", guildID, r)
					b.disconnectVoice(guildID)
					err = fmt.Errorf("panic during join: %v", r)
				}
			}()
			// mute=true, deaf=false: the bot only listens
			vc, err = s.ChannelVoiceJoin(ctx, guildID, channelID, true, false)
		}()

		if err == nil && vc != nil {
			break
		}
		b.logger.Warnf("[%s] Voice join attempt %d failed: %v", guildID, attempt+1, err)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel after %d attempts: %w", joinAttempts, err)
	}

	timeout := time.NewTimer(10 * time.Second)
	defer timeout.Stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if vc.Status == discordgo.VoiceConnectionStatusReady {
				b.logger.Infof("[%s] Connected to voice channel %s", guildID, channelID)
				return vc, nil
			}
		case <-timeout.C:
			b.disconnectVoice(guildID)
			return nil, fmt.Errorf("timeout waiting for voice connection")
		case <-b.ctx.Done():
			b.disconnectVoice(guildID)
			return nil, b.ctx.Err()
		}
	}
}

// userVoiceChannel returns the voice channel the author of m is in
func (b *Bot) userVoiceChannel(s *discordgo.Session, m *discordgo.MessageCreate) (*discordgo.Channel, error) {
	vs, err := s.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs == nil {
		return nil, errNotInVoice
	}
	channel, err := s.Channel(vs.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != discordgo.ChannelTypeGuildVoice {
		return nil, errNotVoiceChannel
	}
	return channel, nil
}

// countUsersInChannel counts non-bot users in a voice channel
func (b *Bot) countUsersInChannel(guildID, channelID string) int {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		b.logger.WithError(err).Debugf("[%s] Failed to get guild info", guildID)
		return 0
	}
	return b.countUsers(guild, channelID)
}

func (b *Bot) countUsers(guild *discordgo.Guild, channelID string) int {
	userCount := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == b.session.State.User.ID {
			continue
		}
		member, err := b.session.GuildMember(guild.ID, vs.UserID)
		if err == nil && member != nil && !member.User.Bot {
			userCount++
		}
	}
	return userCount
}
