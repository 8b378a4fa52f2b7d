// Package codec defines the bridge between the encoding pipeline and a native
// Opus implementation: a fixed-ratio resampler and a packet compressor, both
// operating on fixed-size interleaved float32 frames.
package codec

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// OutputSampleRate is the rate the compressor runs at. Ogg Opus granule
	// positions are always counted at 48 kHz.
	OutputSampleRate = 48000

	// FrameDuration is the length of one codec frame.
	FrameDuration = 20 * time.Millisecond

	// MaxPacketSize is the largest packet a single Compress call may return.
	MaxPacketSize = 4000

	// MinBitrate and MaxBitrate bound an explicit bitrate request.
	MinBitrate = 500
	MaxBitrate = 512000
)

// Application selects the encoder tuning.
type Application int

const (
	// AppAudio favours fidelity for music and mixed content.
	AppAudio Application = iota
	// AppVoIP favours speech intelligibility.
	AppVoIP
	// AppLowDelay disables the speech-optimised modes for minimum latency.
	AppLowDelay
)

func (a Application) String() string {
	switch a {
	case AppAudio:
		return "audio"
	case AppVoIP:
		return "voip"
	case AppLowDelay:
		return "lowdelay"
	default:
		return fmt.Sprintf("Application(%d)", int(a))
	}
}

// ParseApplication maps a configuration string to an Application.
func ParseApplication(s string) (Application, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "audio":
		return AppAudio, nil
	case "voip", "voice":
		return AppVoIP, nil
	case "lowdelay", "restricted_lowdelay", "low-delay":
		return AppLowDelay, nil
	default:
		return 0, fmt.Errorf("%w: unknown application %q", ErrInvalidConfig, s)
	}
}

// Config describes one bridge instance.
type Config struct {
	InputRate   int // capture sample rate
	OutputRate  int // compressor sample rate, normally OutputSampleRate
	Channels    int
	Bitrate     int // 0 keeps the encoder default
	Application Application
}

// Validate reports whether the configuration can drive a bridge.
func (c Config) Validate() error {
	if c.InputRate <= 0 {
		return fmt.Errorf("%w: input sample rate %d", ErrInvalidConfig, c.InputRate)
	}
	switch c.OutputRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return fmt.Errorf("%w: output sample rate %d", ErrInvalidConfig, c.OutputRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidConfig, c.Channels)
	}
	if c.Bitrate != 0 && (c.Bitrate < MinBitrate || c.Bitrate > MaxBitrate) {
		return fmt.Errorf("%w: bitrate %d outside [%d, %d]", ErrInvalidConfig, c.Bitrate, MinBitrate, MaxBitrate)
	}
	return nil
}

// InputFrameSize is the number of input samples per channel in one frame.
func (c Config) InputFrameSize() int {
	return FrameSamples(c.InputRate)
}

// OutputFrameSize is the number of compressor samples per channel in one frame.
func (c Config) OutputFrameSize() int {
	return FrameSamples(c.OutputRate)
}

// FrameSamples returns the samples per channel in one FrameDuration at rate.
func FrameSamples(rate int) int {
	return rate * int(FrameDuration/time.Millisecond) / 1000
}

// Bridge is the resample+compress call pair consumed by the pipeline.
// Both calls are synchronous and deterministic; a Bridge is owned by exactly
// one session and is not safe for concurrent use.
type Bridge interface {
	// Resample converts one interleaved input frame
	// (InputFrameSize*Channels samples) into one interleaved output frame
	// (OutputFrameSize*Channels samples).
	Resample(in []float32) ([]float32, error)

	// Compress encodes one interleaved output frame into a packet of at most
	// MaxPacketSize bytes. The returned slice is only valid until the next call.
	Compress(pcm []float32) ([]byte, error)

	// Close releases native state.
	Close() error
}

// Factory creates a Bridge for cfg.
type Factory func(cfg Config) (Bridge, error)

var (
	// ErrInvalidConfig marks configuration errors.
	ErrInvalidConfig = errors.New("codec: invalid configuration")

	// ErrCodec marks a failure reported by the native codec or resampler.
	ErrCodec = errors.New("codec: native call failed")
)

// Error is a failed native call. Code is the native return value.
type Error struct {
	Op   string // "init", "resample", "compress"
	Code int
	Err  error // underlying library error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: %s failed (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("codec: %s failed (code %d)", e.Op, e.Code)
}

// Is lets errors.Is match ErrCodec.
func (e *Error) Is(target error) bool {
	return target == ErrCodec
}

func (e *Error) Unwrap() error {
	return e.Err
}
