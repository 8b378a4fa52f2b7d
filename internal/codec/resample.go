package codec

import "fmt"

// LinearResampler converts fixed-size interleaved frames between two rates by
// linear interpolation. The last input sample of each frame is carried into
// the next call, so the output lags the input by exactly one input sample and
// frame edges stay continuous.
type LinearResampler struct {
	channels int
	inSize   int // samples per channel in
	outSize  int // samples per channel out
	history  []float32
	out      []float32
}

// NewLinearResampler creates a resampler for frames of inSize samples per
// channel producing outSize samples per channel.
func NewLinearResampler(inSize, outSize, channels int) (*LinearResampler, error) {
	if inSize <= 0 || outSize <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: resampler %d->%d x%d", ErrInvalidConfig, inSize, outSize, channels)
	}
	return &LinearResampler{
		channels: channels,
		inSize:   inSize,
		outSize:  outSize,
		history:  make([]float32, channels),
		out:      make([]float32, outSize*channels),
	}, nil
}

// Process resamples one frame. The returned slice is reused by the next call.
func (r *LinearResampler) Process(in []float32) ([]float32, error) {
	if len(in) != r.inSize*r.channels {
		return nil, &Error{Op: "resample", Code: -1,
			Err: fmt.Errorf("frame has %d samples, want %d", len(in), r.inSize*r.channels)}
	}

	if r.inSize == r.outSize {
		copy(r.out, in)
		return r.out, nil
	}

	ch := r.channels
	// Position j maps to t = j*inSize/outSize on the sequence
	// [history, in[0], in[1], ...], so index 0 is the previous frame's last sample.
	for j := 0; j < r.outSize; j++ {
		num := j * r.inSize
		i0 := num / r.outSize
		frac := float32(num%r.outSize) / float32(r.outSize)
		for c := 0; c < ch; c++ {
			var s0 float32
			if i0 == 0 {
				s0 = r.history[c]
			} else {
				s0 = in[(i0-1)*ch+c]
			}
			s1 := in[i0*ch+c]
			r.out[j*ch+c] = s0 + (s1-s0)*frac
		}
	}
	copy(r.history, in[(r.inSize-1)*ch:])
	return r.out, nil
}
