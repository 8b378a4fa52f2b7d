// Package gopus implements codec.Bridge with layeh.com/gopus. The encoder
// takes 16-bit PCM, so frames are clamped and converted before compression.
package gopus

import (
	"errors"
	"math"

	"layeh.com/gopus"

	"github.com/ankogit/4duk-recorder/internal/codec"
)

// Compile-time interface assertion.
var _ codec.Bridge = (*Bridge)(nil)

// Bridge owns one gopus encoder and one resampler.
type Bridge struct {
	cfg       codec.Config
	encoder   *gopus.Encoder
	resampler *codec.LinearResampler
	pcm       []int16
}

// New creates a Bridge. It satisfies codec.Factory.
func New(cfg codec.Config) (codec.Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	encoder, err := gopus.NewEncoder(cfg.OutputRate, cfg.Channels, application(cfg.Application))
	if err != nil {
		return nil, &codec.Error{Op: "init", Code: -1, Err: err}
	}
	if cfg.Bitrate != 0 {
		encoder.SetBitrate(cfg.Bitrate)
	}

	resampler, err := codec.NewLinearResampler(cfg.InputFrameSize(), cfg.OutputFrameSize(), cfg.Channels)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		cfg:       cfg,
		encoder:   encoder,
		resampler: resampler,
		pcm:       make([]int16, cfg.OutputFrameSize()*cfg.Channels),
	}, nil
}

// Resample implements codec.Bridge.
func (b *Bridge) Resample(in []float32) ([]float32, error) {
	return b.resampler.Process(in)
}

// Compress implements codec.Bridge.
func (b *Bridge) Compress(pcm []float32) ([]byte, error) {
	if b.encoder == nil {
		return nil, &codec.Error{Op: "compress", Code: -1, Err: errors.New("bridge closed")}
	}
	if len(pcm) != len(b.pcm) {
		return nil, &codec.Error{Op: "compress", Code: -1, Err: errors.New("frame size mismatch")}
	}
	for i, s := range pcm {
		b.pcm[i] = floatToInt16(s)
	}
	packet, err := b.encoder.Encode(b.pcm, b.cfg.OutputFrameSize(), codec.MaxPacketSize)
	if err != nil {
		return nil, &codec.Error{Op: "compress", Code: -1, Err: err}
	}
	if len(packet) > codec.MaxPacketSize {
		return nil, &codec.Error{Op: "compress", Code: len(packet)}
	}
	return packet, nil
}

// Close implements codec.Bridge.
func (b *Bridge) Close() error {
	b.encoder = nil
	b.resampler = nil
	return nil
}

func application(app codec.Application) gopus.Application {
	switch app {
	case codec.AppVoIP:
		return gopus.Voip
	case codec.AppLowDelay:
		return gopus.RestrictedLowDelay
	default:
		return gopus.Audio
	}
}

func floatToInt16(s float32) int16 {
	v := math.Round(float64(s) * math.MaxInt16)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
