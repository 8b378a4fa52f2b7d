package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// onReady handles the ready event
func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.logger.Infof("Bot ready as %s (ID: %s)", event.User.Username, event.User.ID)

	// Start voice check loop
	b.wg.Add(1)
	go b.voiceCheckLoop()
}

// onMessageCreate handles message creation events
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from bots
	if m.Author.Bot {
		return
	}

	// Check for command prefix
	if len(m.Content) < 2 || m.Content[0] != '!' {
		return
	}

	fields := strings.Fields(m.Content[1:])
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])

	// Handle commands
	switch command {
	case "record":
		b.handleRecord(s, m)
	case "recordvoice":
		b.handleRecordVoice(s, m)
	case "stop":
		b.handleStop(s, m)
	case "status":
		b.handleStatus(s, m)
	case "format":
		b.handleFormat(s, m)
	case "bitrate":
		b.handleBitrate(s, m)
	case "setchannel":
		b.handleSetChannel(s, m)
	case "autorecord":
		b.handleAutoRecord(s, m)
	}
}
