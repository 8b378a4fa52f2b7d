// Package mock provides a deterministic in-memory codec.Bridge for tests.
package mock

import (
	"sync"

	"github.com/ankogit/4duk-recorder/internal/codec"
)

// Compile-time interface assertion.
var _ codec.Bridge = (*Bridge)(nil)

// Bridge records every frame it is handed and returns packets whose length
// is chosen by PacketSize. Resampling is nearest-neighbour.
type Bridge struct {
	mu sync.Mutex

	cfg codec.Config

	// PacketSize returns the packet length for the n-th Compress call
	// (0-based). When nil every packet is 100 bytes.
	PacketSize func(n int) int

	// ResampleErr and CompressErr, when set, are returned by the
	// corresponding call.
	ResampleErr error
	CompressErr error

	// ResampleCalls holds a copy of every frame passed to Resample.
	ResampleCalls [][]float32
	// CompressCalls holds a copy of every frame passed to Compress.
	CompressCalls [][]float32

	closed bool
	out    []float32
	packet []byte
}

// New returns a Bridge for cfg.
func New(cfg codec.Config) *Bridge {
	return &Bridge{cfg: cfg}
}

// Factory returns a codec.Factory that always hands out b, after recording
// the configuration it was asked for.
func Factory(b *Bridge) codec.Factory {
	return func(cfg codec.Config) (codec.Bridge, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.cfg = cfg
		b.mu.Unlock()
		return b, nil
	}
}

// Config returns the configuration the bridge was created with.
func (b *Bridge) Config() codec.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Resample implements codec.Bridge.
func (b *Bridge) Resample(in []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ResampleCalls = append(b.ResampleCalls, append([]float32(nil), in...))
	if b.ResampleErr != nil {
		return nil, b.ResampleErr
	}

	ch := max(b.cfg.Channels, 1)
	inSize := len(in) / ch
	outSize := b.cfg.OutputFrameSize()
	if outSize == 0 {
		outSize = inSize
	}
	if cap(b.out) < outSize*ch {
		b.out = make([]float32, outSize*ch)
	}
	b.out = b.out[:outSize*ch]
	for j := 0; j < outSize; j++ {
		i := j * inSize / outSize
		for c := 0; c < ch; c++ {
			b.out[j*ch+c] = in[i*ch+c]
		}
	}
	return b.out, nil
}

// Compress implements codec.Bridge. The packet bytes are the call index so
// tests can tell packets apart after demuxing.
func (b *Bridge) Compress(pcm []float32) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.CompressCalls)
	b.CompressCalls = append(b.CompressCalls, append([]float32(nil), pcm...))
	if b.CompressErr != nil {
		return nil, b.CompressErr
	}

	size := 100
	if b.PacketSize != nil {
		size = b.PacketSize(n)
	}
	if cap(b.packet) < size {
		b.packet = make([]byte, size)
	}
	b.packet = b.packet[:size]
	for i := range b.packet {
		b.packet[i] = byte(n)
	}
	return b.packet, nil
}

// Close implements codec.Bridge.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *Bridge) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Calls returns the number of Compress calls so far.
func (b *Bridge) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.CompressCalls)
}
