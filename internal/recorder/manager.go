package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// stopConcurrency bounds how many recordings finalize at once
const stopConcurrency = 4

// Manager manages recording states and active recordings for multiple guilds
type Manager struct {
	states       map[string]*State
	recordings   map[string][]*Recording
	settingsFile string
	logger       logrus.FieldLogger
	mu           sync.RWMutex
}

// GuildSettings represents saved configuration for a guild
type GuildSettings struct {
	AutoChannelID     string `yaml:"auto_channel_id,omitempty"`
	AutoRecordEnabled bool   `yaml:"auto_record_enabled"`
	Format            string `yaml:"format,omitempty"`
	Bitrate           int    `yaml:"bitrate,omitempty"`
}

// NewManager creates a manager persisting guild settings to settingsFile
func NewManager(settingsFile string, logger logrus.FieldLogger) *Manager {
	m := &Manager{
		states:       make(map[string]*State),
		recordings:   make(map[string][]*Recording),
		settingsFile: settingsFile,
		logger:       logger,
	}
	if err := m.LoadSettings(); err != nil {
		logger.WithError(err).Warn("Failed to load guild settings")
	}
	return m
}

// LoadSettings loads saved settings from file. A missing file is not an error.
func (m *Manager) LoadSettings() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.settingsFile)
	if errors.Is(err, os.ErrNotExist) {
		// File doesn't exist yet, that's okay
		return nil
	}
	if err != nil {
		return err
	}

	var settings map[string]GuildSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse %s: %w", m.settingsFile, err)
	}

	for guildID, gs := range settings {
		state := m.getOrCreateUnsafe(guildID)
		state.SetAutoChannelID(gs.AutoChannelID)
		state.SetAutoRecordEnabled(gs.AutoRecordEnabled)
		state.SetFormat(gs.Format)
		state.SetBitrate(gs.Bitrate)
	}
	return nil
}

// SaveSettings saves current settings to file
func (m *Manager) SaveSettings() error {
	m.mu.RLock()
	settings := make(map[string]GuildSettings, len(m.states))
	for guildID, state := range m.states {
		gs := GuildSettings{
			AutoChannelID:     state.GetAutoChannelID(),
			AutoRecordEnabled: state.IsAutoRecordEnabled(),
			Format:            state.GetFormat(),
			Bitrate:           state.GetBitrate(),
		}
		if gs != (GuildSettings{}) {
			settings[guildID] = gs
		}
	}
	m.mu.RUnlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}

	// Ensure directory exists before writing
	if err := os.MkdirAll(filepath.Dir(m.settingsFile), 0755); err != nil {
		return err
	}

	// Write file atomically using temp file
	tmpFile := m.settingsFile + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpFile, m.settingsFile); err != nil {
		_ = os.Remove(tmpFile) // Clean up temp file on error
		return err
	}
	return nil
}

// SaveState saves settings, logging instead of returning failures
func (m *Manager) SaveState(guildID string) {
	if err := m.SaveSettings(); err != nil {
		m.logger.WithError(err).Errorf("[%s] Failed to save guild settings", guildID)
	}
}

// getOrCreateUnsafe gets or creates a state without locking (internal use)
func (m *Manager) getOrCreateUnsafe(guildID string) *State {
	state, exists := m.states[guildID]
	if !exists {
		state = NewState()
		m.states[guildID] = state
	}
	return state
}

// GetOrCreate gets or creates a state for a guild
func (m *Manager) GetOrCreate(guildID string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateUnsafe(guildID)
}

// Get gets a state for a guild (read-only)
func (m *Manager) Get(guildID string) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, exists := m.states[guildID]
	return state, exists
}

// GetAllGuildIDs returns all guild IDs with states
func (m *Manager) GetAllGuildIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	guilds := make([]string, 0, len(m.states))
	for guildID := range m.states {
		guilds = append(guilds, guildID)
	}
	return guilds
}

// Add registers a running recording for a guild
func (m *Manager) Add(guildID string, rec *Recording) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings[guildID] = append(m.recordings[guildID], rec)
}

// Recordings returns the running recordings of a guild
func (m *Manager) Recordings(guildID string) []*Recording {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Recording(nil), m.recordings[guildID]...)
}

// StopGuild stops every recording of a guild concurrently. Results are
// returned for every recording that produced a file, even on error.
func (m *Manager) StopGuild(guildID string) ([]*Result, error) {
	m.mu.Lock()
	recs := m.recordings[guildID]
	delete(m.recordings, guildID)
	m.mu.Unlock()

	return stopAll(recs)
}

// StopAll stops the recordings of every guild
func (m *Manager) StopAll() ([]*Result, error) {
	m.mu.Lock()
	var recs []*Recording
	for guildID, rs := range m.recordings {
		recs = append(recs, rs...)
		delete(m.recordings, guildID)
	}
	m.mu.Unlock()

	return stopAll(recs)
}

func stopAll(recs []*Recording) ([]*Result, error) {
	results := make([]*Result, len(recs))
	var g errgroup.Group
	g.SetLimit(stopConcurrency)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			res, err := rec.Stop()
			results[i] = res
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		})
	}
	err := g.Wait()

	out := results[:0]
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, err
}
