package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/container"
	"github.com/ankogit/4duk-recorder/internal/recorder"
)

var (
	errNotInVoice      = errors.New("user is not in a voice channel")
	errNotVoiceChannel = errors.New("not a voice channel")
)

// replyChannelError answers a failed userVoiceChannel lookup
func (b *Bot) replyChannelError(s *discordgo.Session, m *discordgo.MessageCreate, err error) {
	switch {
	case errors.Is(err, errNotInVoice):
		s.ChannelMessageSend(m.ChannelID, "Ты не в голосовом канале!")
	case errors.Is(err, errNotVoiceChannel):
		s.ChannelMessageSend(m.ChannelID, "Это не голосовой канал!")
	default:
		b.logger.WithError(err).Errorf("[%s] Failed to get channel", m.GuildID)
		s.ChannelMessageSend(m.ChannelID, "Ошибка при получении информации о канале.")
	}
}

// handleRecord handles the !record [url] command
func (b *Bot) handleRecord(s *discordgo.Session, m *discordgo.MessageCreate) {
	guildID := m.GuildID
	channelID := m.ChannelID

	state := b.manager.GetOrCreate(guildID)
	if state.IsActive() {
		s.ChannelMessageSend(channelID, "Запись уже идёт. Останови её командой `!stop`.")
		return
	}

	url := b.config.RadioURL
	if parts := strings.Fields(m.Content); len(parts) > 1 {
		url = parts[1]
	}

	opts, err := b.recordingOptions(guildID, "radio", b.config.InputSampleRate, b.config.InputChannels)
	if err != nil {
		s.ChannelMessageSend(channelID, fmt.Sprintf("Неверные настройки записи: %v", err))
		return
	}
	rec, err := recorder.Start(opts)
	if err != nil {
		b.logger.WithError(err).Errorf("[%s] Failed to start recording", guildID)
		s.ChannelMessageSend(channelID, fmt.Sprintf("Ошибка при запуске записи: %v", err))
		return
	}

	state.Start(recorder.SourceRadio, url, "", channelID)
	state.ResetReconnectAttempts()
	b.manager.Add(guildID, rec)
	b.startStreamCapture(guildID, url, rec)

	s.ChannelMessageSend(channelID, fmt.Sprintf("🔴 Записываю %s в %s", url, opts.Kind))
}

// handleRecordVoice handles the !recordvoice command
func (b *Bot) handleRecordVoice(s *discordgo.Session, m *discordgo.MessageCreate) {
	guildID := m.GuildID
	channelID := m.ChannelID

	state := b.manager.GetOrCreate(guildID)
	if state.IsActive() {
		s.ChannelMessageSend(channelID, "Запись уже идёт. Останови её командой `!stop`.")
		return
	}

	channel, err := b.userVoiceChannel(s, m)
	if err != nil {
		b.replyChannelError(s, m, err)
		return
	}

	vc, err := b.connectToChannel(s, guildID, channel.ID)
	if err != nil {
		b.logger.WithError(err).Errorf("[%s] Failed to connect to channel", guildID)
		s.ChannelMessageSend(channelID, fmt.Sprintf("Не удалось подключиться к голосовому каналу: %v", err))
		return
	}

	state.Start(recorder.SourceVoice, "", channel.ID, channelID)
	state.ResetReconnectAttempts()
	if err := b.startVoiceCapture(vc, guildID); err != nil {
		state.SetActive(false)
		b.logger.WithError(err).Errorf("[%s] Failed to start voice capture", guildID)
		s.ChannelMessageSend(channelID, fmt.Sprintf("Ошибка при запуске записи: %v", err))
		return
	}

	s.ChannelMessageSend(channelID, fmt.Sprintf("🔴 Записываю голосовой канал %s", channel.Name))
}

// handleStop handles the !stop command
func (b *Bot) handleStop(s *discordgo.Session, m *discordgo.MessageCreate) {
	state := b.manager.GetOrCreate(m.GuildID)
	if !state.IsActive() && len(b.manager.Recordings(m.GuildID)) == 0 {
		s.ChannelMessageSend(m.ChannelID, "Сейчас ничего не записывается.")
		return
	}

	s.ChannelMessageSend(m.ChannelID, "⏹️ Останавливаю запись...")
	b.finishRecording(m.GuildID, "")
}

// handleStatus handles the !status command
func (b *Bot) handleStatus(s *discordgo.Session, m *discordgo.MessageCreate) {
	guildID := m.GuildID
	state := b.manager.GetOrCreate(guildID)

	var sb strings.Builder
	format := state.GetFormat()
	if format == "" {
		format = b.config.Format.String()
	}
	bitrate := "авто"
	if br := state.GetBitrate(); br != 0 {
		bitrate = strconv.Itoa(br)
	} else if b.config.Bitrate != 0 {
		bitrate = strconv.Itoa(b.config.Bitrate)
	}
	fmt.Fprintf(&sb, "Формат: **%s**, битрейт: **%s**\n", format, bitrate)

	recs := b.manager.Recordings(guildID)
	if !state.IsActive() || len(recs) == 0 {
		sb.WriteString("Запись не идёт.")
		s.ChannelMessageSend(m.ChannelID, sb.String())
		return
	}

	source, url := state.GetSource()
	if source == recorder.SourceRadio {
		fmt.Fprintf(&sb, "Источник: %s\n", url)
	} else {
		fmt.Fprintf(&sb, "Источник: голосовой канал, дорожек: %d\n", len(recs))
	}
	for _, rec := range recs {
		st := rec.Stats()
		fmt.Fprintf(&sb, "• %s: %s, %.1f МБ на диске\n", rec.Label, st.Duration.Round(time.Second), float64(st.Bytes)/(1<<20))
	}
	s.ChannelMessageSend(m.ChannelID, sb.String())
}

// handleFormat handles the !format <ogg|wav> command
func (b *Bot) handleFormat(s *discordgo.Session, m *discordgo.MessageCreate) {
	parts := strings.Fields(m.Content)
	if len(parts) < 2 {
		s.ChannelMessageSend(m.ChannelID, "Использование: `!format ogg` или `!format wav`")
		return
	}

	kind, err := container.ParseKind(parts[1])
	if err == nil && kind == container.WebM {
		err = container.ErrUnsupported
	}
	if err != nil {
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Формат не поддерживается: %v", err))
		return
	}

	state := b.manager.GetOrCreate(m.GuildID)
	state.SetFormat(kind.String())
	b.manager.SaveState(m.GuildID)

	s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("✅ Формат записи: **%s** (с следующей записи)", kind))
}

// handleBitrate handles the !bitrate <bits|auto> command
func (b *Bot) handleBitrate(s *discordgo.Session, m *discordgo.MessageCreate) {
	parts := strings.Fields(m.Content)
	if len(parts) < 2 {
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Использование: `!bitrate <%d-%d>` или `!bitrate auto`", codec.MinBitrate, codec.MaxBitrate))
		return
	}

	bitrate := 0
	if !strings.EqualFold(parts[1], "auto") {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < codec.MinBitrate || n > codec.MaxBitrate {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Битрейт должен быть от %d до %d.", codec.MinBitrate, codec.MaxBitrate))
			return
		}
		bitrate = n
	}

	state := b.manager.GetOrCreate(m.GuildID)
	state.SetBitrate(bitrate)
	b.manager.SaveState(m.GuildID)

	if bitrate == 0 {
		s.ChannelMessageSend(m.ChannelID, "✅ Битрейт: **авто**")
		return
	}
	s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("✅ Битрейт: **%d** бит/с", bitrate))
}

// handleSetChannel handles the !setchannel command
// Sets the channel that is recorded automatically when users are present
func (b *Bot) handleSetChannel(s *discordgo.Session, m *discordgo.MessageCreate) {
	guildID := m.GuildID
	textChannelID := m.ChannelID

	parts := strings.Fields(m.Content)
	if len(parts) < 2 {
		s.ChannelMessageSend(textChannelID, "Использование: `!setchannel <ID_канала>`")
		return
	}
	channelID := parts[1]

	channel, err := s.Channel(channelID)
	if err != nil {
		b.logger.WithError(err).Debugf("[%s] Failed to get channel info", guildID)
		s.ChannelMessageSend(textChannelID, "Канал не найден. Проверьте ID канала.")
		return
	}
	if channel.Type != discordgo.ChannelTypeGuildVoice {
		s.ChannelMessageSend(textChannelID, "Это не голосовой канал!")
		return
	}

	state := b.manager.GetOrCreate(guildID)
	state.SetAutoChannelID(channelID)
	// Enable auto-record when setting channel
	state.SetAutoRecordEnabled(true)
	b.manager.SaveState(guildID)

	s.ChannelMessageSend(textChannelID, fmt.Sprintf("✅ Авто-запись установлена на канал: **%s** (включено)", channel.Name))
	b.logger.Infof("[%s] Auto-record channel set to %s (%s)", guildID, channel.Name, channelID)
}

// handleAutoRecord handles the !autorecord command
func (b *Bot) handleAutoRecord(s *discordgo.Session, m *discordgo.MessageCreate) {
	guildID := m.GuildID
	textChannelID := m.ChannelID
	state := b.manager.GetOrCreate(guildID)

	parts := strings.Fields(m.Content)
	if len(parts) < 2 {
		status := "выключено"
		if state.IsAutoRecordEnabled() {
			status = "включено"
		}
		message := fmt.Sprintf("Авто-запись: **%s**", status)

		if autoChannelID := state.GetAutoChannelID(); autoChannelID != "" {
			channel, err := s.Channel(autoChannelID)
			if err == nil && channel != nil {
				message += fmt.Sprintf("\nКанал: **%s** (`%s`)", channel.Name, autoChannelID)
			} else {
				message += fmt.Sprintf("\nКанал: `%s` (канал не найден)", autoChannelID)
			}
		} else {
			message += "\nКанал: не установлен"
		}

		message += "\n\nИспользование: `!autorecord on` или `!autorecord off`"
		s.ChannelMessageSend(textChannelID, message)
		return
	}

	switch strings.ToLower(parts[1]) {
	case "on", "enable", "вкл", "да":
		state.SetAutoRecordEnabled(true)
		b.manager.SaveState(guildID)
		if state.GetAutoChannelID() != "" {
			s.ChannelMessageSend(textChannelID, "✅ Авто-запись **включена**")
		} else {
			s.ChannelMessageSend(textChannelID, "✅ Авто-запись **включена**. Установите канал командой `!setchannel <ID>`")
		}
	case "off", "disable", "выкл", "нет":
		state.SetAutoRecordEnabled(false)
		b.manager.SaveState(guildID)
		s.ChannelMessageSend(textChannelID, "❌ Авто-запись **выключена**")
	default:
		s.ChannelMessageSend(textChannelID, "Использование: `!autorecord on` или `!autorecord off`")
	}
}
