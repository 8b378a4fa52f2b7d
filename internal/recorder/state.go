package recorder

import (
	"sync"
)

// Source names what a guild is recording
type Source string

const (
	SourceNone  Source = ""
	SourceRadio Source = "radio"
	SourceVoice Source = "voice"
)

// State represents the recording state of a guild
type State struct {
	Active            bool
	Source            Source
	SourceURL         string // input for SourceRadio
	ChannelID         string // voice channel the bot joined
	TextChannelID     string // where finished files are uploaded
	AutoChannelID     string // Channel ID for auto-record when users are present
	AutoRecordEnabled bool
	Format            string // RECORD_FORMAT override, empty for the default
	Bitrate           int    // OPUS_BITRATE override, 0 for the default
	ReconnectAttempts int
	mu                sync.Mutex
}

// NewState creates a new recording state
func NewState() *State {
	return &State{}
}

// Start marks the guild as recording source into channelID
func (s *State) Start(source Source, url, channelID, textChannelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Active = true
	s.Source = source
	s.SourceURL = url
	s.ChannelID = channelID
	s.TextChannelID = textChannelID
	s.ReconnectAttempts = 0
}

// SetActive sets the active state
func (s *State) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Active = active
}

// IsActive returns whether a recording is running
func (s *State) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Active
}

// GetSource returns the recording source and its URL
func (s *State) GetSource() (Source, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Source, s.SourceURL
}

// GetChannelID returns the voice channel ID
func (s *State) GetChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ChannelID
}

// GetTextChannelID returns the channel finished recordings are posted to
func (s *State) GetTextChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TextChannelID
}

// IncrementReconnectAttempts increments reconnect attempts
func (s *State) IncrementReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReconnectAttempts++
	return s.ReconnectAttempts
}

// ResetReconnectAttempts resets reconnect attempts
func (s *State) ResetReconnectAttempts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReconnectAttempts = 0
}

// GetReconnectAttempts returns reconnect attempts
func (s *State) GetReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReconnectAttempts
}

// Reset clears the runtime fields. Persisted settings are kept.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Active = false
	s.Source = SourceNone
	s.SourceURL = ""
	s.ChannelID = ""
	s.ReconnectAttempts = 0
}

// SetAutoChannelID sets the auto-record channel ID
func (s *State) SetAutoChannelID(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AutoChannelID = channelID
}

// GetAutoChannelID returns the auto-record channel ID
func (s *State) GetAutoChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AutoChannelID
}

// SetAutoRecordEnabled sets whether auto-record is enabled
func (s *State) SetAutoRecordEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AutoRecordEnabled = enabled
}

// IsAutoRecordEnabled returns whether auto-record is enabled
func (s *State) IsAutoRecordEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AutoRecordEnabled
}

// SetFormat sets the container format override
func (s *State) SetFormat(format string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Format = format
}

// GetFormat returns the container format override
func (s *State) GetFormat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Format
}

// SetBitrate sets the bitrate override
func (s *State) SetBitrate(bitrate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bitrate = bitrate
}

// GetBitrate returns the bitrate override
func (s *State) GetBitrate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Bitrate
}
