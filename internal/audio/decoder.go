package audio

import (
	"fmt"
	"sync"

	"github.com/hraban/opus"
)

// DecoderPool manages Opus decoders for multiple speakers, keyed by SSRC
type DecoderPool struct {
	decoders map[uint32]*opus.Decoder
	mu       sync.RWMutex
}

// NewDecoderPool creates a new decoder pool
func NewDecoderPool() *DecoderPool {
	return &DecoderPool{
		decoders: make(map[uint32]*opus.Decoder),
	}
}

// GetOrCreate gets or creates an Opus decoder for a speaker
func (p *DecoderPool) GetOrCreate(ssrc uint32) (*opus.Decoder, error) {
	p.mu.RLock()
	decoder, exists := p.decoders[ssrc]
	p.mu.RUnlock()

	if exists && decoder != nil {
		return decoder, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if decoder, exists := p.decoders[ssrc]; exists && decoder != nil {
		return decoder, nil
	}

	decoder, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	p.decoders[ssrc] = decoder
	return decoder, nil
}

// Len returns the number of speakers with a decoder
func (p *DecoderPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.decoders)
}

// Remove removes the decoder for a speaker
func (p *DecoderPool) Remove(ssrc uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.decoders, ssrc)
}

// Clear removes all decoders
func (p *DecoderPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decoders = make(map[uint32]*opus.Decoder)
}
