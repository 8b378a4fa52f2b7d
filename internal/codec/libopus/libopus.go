// Package libopus implements codec.Bridge on top of the libopus C library
// through github.com/hraban/opus.
package libopus

import (
	"errors"
	"fmt"

	"github.com/hraban/opus"

	"github.com/ankogit/4duk-recorder/internal/codec"
)

// Compile-time interface assertion.
var _ codec.Bridge = (*Bridge)(nil)

// Bridge owns one libopus encoder and one resampler.
type Bridge struct {
	cfg       codec.Config
	encoder   *opus.Encoder
	resampler *codec.LinearResampler
	packet    []byte
}

// New creates a Bridge. It satisfies codec.Factory.
func New(cfg codec.Config) (codec.Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	encoder, err := opus.NewEncoder(cfg.OutputRate, cfg.Channels, application(cfg.Application))
	if err != nil {
		return nil, &codec.Error{Op: "init", Code: errorCode(err), Err: err}
	}
	if cfg.Bitrate != 0 {
		if err := encoder.SetBitrate(cfg.Bitrate); err != nil {
			return nil, &codec.Error{Op: "init", Code: errorCode(err), Err: fmt.Errorf("set bitrate: %w", err)}
		}
	}

	resampler, err := codec.NewLinearResampler(cfg.InputFrameSize(), cfg.OutputFrameSize(), cfg.Channels)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		cfg:       cfg,
		encoder:   encoder,
		resampler: resampler,
		packet:    make([]byte, codec.MaxPacketSize),
	}, nil
}

// Vendor returns the libopus version string, suitable for the OpusTags vendor.
func Vendor() string {
	return opus.Version()
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
	n, err := b.encoder.EncodeFloat32(pcm, b.packet)
	if err != nil {
		return nil, &codec.Error{Op: "compress", Code: errorCode(err), Err: err}
	}
	if n < 0 || n > len(b.packet) {
		return nil, &codec.Error{Op: "compress", Code: n}
	}
	return b.packet[:n], nil
}

// Close implements codec.Bridge. The encoder memory is owned by the Go
// runtime, so Close only drops the references.
func (b *Bridge) Close() error {
	b.encoder = nil
	b.resampler = nil
	return nil
}

func application(app codec.Application) opus.Application {
	switch app {
	case codec.AppVoIP:
		return opus.AppVoIP
	case codec.AppLowDelay:
		return opus.AppRestrictedLowdelay
	default:
		return opus.AppAudio
	}
}

// errorCode extracts the libopus error number, or -1 when err is not one.
func errorCode(err error) int {
	var oerr opus.Error
	if errors.As(err, &oerr) {
		return int(oerr)
	}
	return -1
}
