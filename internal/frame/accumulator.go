// Package frame bridges irregular capture chunk sizes to the fixed frame size
// a codec expects. It does no I/O.
package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelMismatch is returned when a chunk does not carry exactly one
	// slice per configured channel, or the channel slices differ in length.
	ErrChannelMismatch = errors.New("frame: channel layout mismatch")

	// ErrEmptyChunk is returned for a chunk with zero samples per channel.
	ErrEmptyChunk = errors.New("frame: empty chunk")
)

// Accumulator collects per-channel samples into an interleaved buffer of a
// fixed number of samples per channel and hands out full frames.
//
// All channels share one cursor, so they always fill in lock-step.
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	frameSize int
	channels  int
	buf       []float32
	cursor    int // samples per channel written into buf
}

// NewAccumulator creates an accumulator for frames of frameSize samples per
// channel.
func NewAccumulator(frameSize, channels int) (*Accumulator, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame: invalid frame size %d", frameSize)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("frame: invalid channel count %d", channels)
	}
	return &Accumulator{
		frameSize: frameSize,
		channels:  channels,
		buf:       make([]float32, frameSize*channels),
	}, nil
}

// FrameSize returns the number of samples per channel in one frame.
func (a *Accumulator) FrameSize() int { return a.frameSize }

// Channels returns the channel count.
func (a *Accumulator) Channels() int { return a.channels }

// Buffered returns how many samples per channel are waiting for the next frame.
func (a *Accumulator) Buffered() int { return a.cursor }

// Push appends chunk to the buffer. Each time the buffer fills, emit receives
// the full interleaved frame (ch0[0], ch1[0], ch0[1], ...) and the cursor
// returns to 0; the rest of the chunk keeps filling in the same call.
//
// The slice passed to emit is reused after emit returns. If emit fails, Push
// stops and returns the error; samples after the failing frame are dropped.
func (a *Accumulator) Push(chunk [][]float32, emit func(frame []float32) error) error {
	n, err := a.validate(chunk)
	if err != nil {
		return err
	}

	offset := 0
	for offset < n {
		count := min(a.frameSize-a.cursor, n-offset)
		for ch, samples := range chunk {
			src := samples[offset : offset+count]
			for i, s := range src {
				a.buf[(a.cursor+i)*a.channels+ch] = s
			}
		}
		a.cursor += count
		offset += count

		if a.cursor == a.frameSize {
			a.cursor = 0
			if err := emit(a.buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// Drain zero-pads a partially filled buffer to a full frame and emits it.
// Nothing is emitted when the buffer is empty.
func (a *Accumulator) Drain(emit func(frame []float32) error) error {
	if a.cursor == 0 {
		return nil
	}
	clear(a.buf[a.cursor*a.channels:])
	a.cursor = 0
	return emit(a.buf)
}

func (a *Accumulator) validate(chunk [][]float32) (int, error) {
	if len(chunk) != a.channels {
		return 0, fmt.Errorf("%w: got %d channels, want %d", ErrChannelMismatch, len(chunk), a.channels)
	}
	n := len(chunk[0])
	for ch := 1; ch < len(chunk); ch++ {
		if len(chunk[ch]) != n {
			return 0, fmt.Errorf("%w: channel %d has %d samples, channel 0 has %d",
				ErrChannelMismatch, ch, len(chunk[ch]), n)
		}
	}
	if n == 0 {
		return 0, ErrEmptyChunk
	}
	return n, nil
}

// Interleave writes chunk into dst as ch0[0], ch1[0], ch0[1], ... and returns
// the written prefix of dst. dst grows when it is too short.
func Interleave(dst []float32, chunk [][]float32) []float32 {
	if len(chunk) == 0 {
		return dst[:0]
	}
	channels := len(chunk)
	n := len(chunk[0])
	if cap(dst) < n*channels {
		dst = make([]float32, n*channels)
	}
	dst = dst[:n*channels]
	for ch, samples := range chunk {
		for i := 0; i < n && i < len(samples); i++ {
			dst[i*channels+ch] = samples[i]
		}
	}
	return dst
}

// Deinterleave splits interleaved samples into per-channel slices, reusing
// dst when it has the right shape.
func Deinterleave(dst [][]float32, interleaved []float32, channels int) [][]float32 {
	n := len(interleaved) / channels
	if len(dst) != channels {
		dst = make([][]float32, channels)
	}
	for ch := range dst {
		if cap(dst[ch]) < n {
			dst[ch] = make([]float32, n)
		}
		dst[ch] = dst[ch][:n]
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			dst[ch][i] = interleaved[i*channels+ch]
		}
	}
	return dst
}
