package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/container"
	"github.com/ankogit/4duk-recorder/internal/container/wav"
	"github.com/ankogit/4duk-recorder/internal/frame"
	"github.com/ankogit/4duk-recorder/internal/observe"
)

// Encoder is the call surface shared by every container format.
type Encoder interface {
	PushInput(chunk [][]float32) error
	Flush() ([][]byte, error)
	Finalize() ([][]byte, error)
	Kind() container.Kind
	State() State
	Duration() time.Duration
}

// Open starts a session writing kind.
func Open(kind container.Kind, opts Options) (Encoder, error) {
	switch kind {
	case container.Ogg:
		return NewController(opts)
	case container.Wav:
		return NewWaveEncoder(opts)
	default:
		return nil, fmt.Errorf("%w: %s", container.ErrUnsupported, kind)
	}
}

// WaveEncoder writes interleaved 16-bit PCM after a streaming header. The
// input rate and channel layout pass through unchanged.
type WaveEncoder struct {
	state   State
	format  wav.Format
	pending []byte
	scratch []float32
	samples int64 // per channel
	data    int64 // bytes after the header
	log     logrus.FieldLogger
	metrics *observe.Metrics
}

var _ Encoder = (*WaveEncoder)(nil)

// NewWaveEncoder validates opts and queues the header.
func NewWaveEncoder(opts Options) (*WaveEncoder, error) {
	if opts.InputRate <= 0 {
		return nil, fmt.Errorf("%w: input sample rate %d", ErrInvalidConfig, opts.InputRate)
	}
	if opts.Channels < 1 || opts.Channels > 2 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidConfig, opts.Channels)
	}
	f := wav.Format{SampleRate: opts.InputRate, Channels: opts.Channels}
	e := &WaveEncoder{
		state:   Ready,
		format:  f,
		pending: wav.Header(f),
		log:     opts.logger(),
		metrics: opts.Metrics,
	}
	e.log.WithField("format", fmt.Sprintf("%d Hz, %d ch", f.SampleRate, f.Channels)).Debug("wave session initialised")
	return e, nil
}

// PushInput appends one chunk, one slice per channel of equal length.
func (e *WaveEncoder) PushInput(chunk [][]float32) error {
	if !e.state.accepting() {
		return &StateError{Op: "pushInputData", State: e.state}
	}
	if len(chunk) != e.format.Channels {
		return fmt.Errorf("%w: got %d channels, want %d", frame.ErrChannelMismatch, len(chunk), e.format.Channels)
	}
	n := len(chunk[0])
	for _, ch := range chunk[1:] {
		if len(ch) != n {
			return frame.ErrChannelMismatch
		}
	}
	if n == 0 {
		return frame.ErrEmptyChunk
	}

	e.scratch = frame.Interleave(e.scratch, chunk)
	before := len(e.pending)
	e.pending = wav.AppendPCM16(e.pending, e.scratch)
	e.data += int64(len(e.pending) - before)
	e.samples += int64(n)
	e.state = Streaming
	return nil
}

// Flush returns the bytes written since the last call as a single block.
func (e *WaveEncoder) Flush() ([][]byte, error) {
	if !e.state.accepting() {
		return nil, &StateError{Op: "getEncodedData", State: e.state}
	}
	return e.take(), nil
}

// Finalize returns the remaining bytes. Sizes in the header stay at the
// streaming marker; see wav.PatchSizes.
func (e *WaveEncoder) Finalize() ([][]byte, error) {
	if !e.state.accepting() {
		return nil, &StateError{Op: "done", State: e.state}
	}
	e.state = Finalized
	return e.take(), nil
}

func (e *WaveEncoder) take() [][]byte {
	if len(e.pending) == 0 {
		return nil
	}
	out := [][]byte{e.pending}
	e.pending = nil
	e.metrics.RecordPages(context.Background(), container.Wav.String(), out)
	return out
}

// Kind implements Encoder.
func (e *WaveEncoder) Kind() container.Kind { return container.Wav }

// State returns the session state.
func (e *WaveEncoder) State() State { return e.state }

// DataSize is the number of sample bytes produced, for wav.PatchSizes.
func (e *WaveEncoder) DataSize() int64 { return e.data }

// Duration is the length of audio written.
func (e *WaveEncoder) Duration() time.Duration {
	return time.Duration(e.samples) * time.Second / time.Duration(e.format.SampleRate)
}
