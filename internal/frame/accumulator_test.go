package frame

import (
	"errors"
	"math/rand"
	"testing"
)

// collect returns an emit func that copies every frame into frames.
func collect(frames *[][]float32) func([]float32) error {
	return func(f []float32) error {
		cp := make([]float32, len(f))
		copy(cp, f)
		*frames = append(*frames, cp)
		return nil
	}
}

func TestNewAccumulator_Invalid(t *testing.T) {
	if _, err := NewAccumulator(0, 1); err == nil {
		t.Error("expected error for zero frame size")
	}
	if _, err := NewAccumulator(960, 0); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestPush_TwoHalvesMakeOneFrame(t *testing.T) {
	acc, err := NewAccumulator(4096, 1)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	var frames [][]float32
	half := make([]float32, 2048)
	if err := acc.Push([][]float32{half}, collect(&frames)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("frames after first half = %d, want 0", len(frames))
	}
	if acc.Buffered() != 2048 {
		t.Errorf("Buffered = %d, want 2048", acc.Buffered())
	}
	if err := acc.Push([][]float32{half}, collect(&frames)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames after second half = %d, want 1", len(frames))
	}
	if acc.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", acc.Buffered())
	}
}

func TestPush_LongChunkSpillsIntoNextFrame(t *testing.T) {
	acc, _ := NewAccumulator(960, 1)

	in := make([]float32, 960*2+100)
	for i := range in {
		in[i] = float32(i)
	}
	var frames [][]float32
	if err := acc.Push([][]float32{in}, collect(&frames)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[1][0] != 960 {
		t.Errorf("second frame starts at %v, want 960", frames[1][0])
	}
	if acc.Buffered() != 100 {
		t.Errorf("Buffered = %d, want 100", acc.Buffered())
	}
}

func TestPush_StereoInterleaveOrder(t *testing.T) {
	acc, _ := NewAccumulator(4, 2)

	left := []float32{1, 2, 3, 4}
	right := []float32{-1, -2, -3, -4}
	var frames [][]float32
	if err := acc.Push([][]float32{left, right}, collect(&frames)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	want := []float32{1, -1, 2, -2, 3, -3, 4, -4}
	for i := range want {
		if frames[0][i] != want[i] {
			t.Fatalf("frame = %v, want %v", frames[0], want)
		}
	}
}

func TestPush_ChannelMismatch(t *testing.T) {
	acc, _ := NewAccumulator(960, 2)

	err := acc.Push([][]float32{make([]float32, 10)}, collect(new([][]float32)))
	if !errors.Is(err, ErrChannelMismatch) {
		t.Errorf("err = %v, want ErrChannelMismatch", err)
	}
	err = acc.Push([][]float32{make([]float32, 10), make([]float32, 9)}, collect(new([][]float32)))
	if !errors.Is(err, ErrChannelMismatch) {
		t.Errorf("err = %v, want ErrChannelMismatch", err)
	}
	err = acc.Push([][]float32{{}, {}}, collect(new([][]float32)))
	if !errors.Is(err, ErrEmptyChunk) {
		t.Errorf("err = %v, want ErrEmptyChunk", err)
	}
}

func TestPush_EmitErrorStops(t *testing.T) {
	acc, _ := NewAccumulator(10, 1)
	boom := errors.New("boom")
	calls := 0
	err := acc.Push([][]float32{make([]float32, 35)}, func([]float32) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("emit calls = %d, want 1", calls)
	}
}

func TestDrain_PadsWithZeros(t *testing.T) {
	acc, _ := NewAccumulator(8, 1)

	var frames [][]float32
	_ = acc.Push([][]float32{{1, 1, 1, 1, 1, 1, 1, 1}}, collect(&frames))
	_ = acc.Push([][]float32{{5, 6, 7}}, collect(&frames))
	if err := acc.Drain(collect(&frames)); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	want := []float32{5, 6, 7, 0, 0, 0, 0, 0}
	for i := range want {
		if frames[1][i] != want[i] {
			t.Fatalf("drained frame = %v, want %v", frames[1], want)
		}
	}

	// Nothing buffered: nothing emitted.
	if err := acc.Drain(collect(&frames)); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("frames after empty drain = %d, want 2", len(frames))
	}
}

// TestPush_NoDataLoss pushes random-length chunks and checks that the
// concatenated frames equal the concatenated input plus zero padding.
func TestPush_NoDataLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, channels := range []int{1, 2} {
		acc, _ := NewAccumulator(882, channels)
		input := make([][]float32, channels)
		var frames [][]float32

		next := float32(1)
		for i := 0; i < 200; i++ {
			n := 1 + rng.Intn(3000)
			chunk := make([][]float32, channels)
			for ch := range chunk {
				chunk[ch] = make([]float32, n)
			}
			for j := 0; j < n; j++ {
				for ch := range chunk {
					chunk[ch][j] = next * float32(ch+1)
					input[ch] = append(input[ch], chunk[ch][j])
				}
				next++
			}
			if err := acc.Push(chunk, collect(&frames)); err != nil {
				t.Fatalf("Push: %v", err)
			}
		}
		if err := acc.Drain(collect(&frames)); err != nil {
			t.Fatalf("Drain: %v", err)
		}

		total := 0
		for _, f := range frames {
			if len(f) != 882*channels {
				t.Fatalf("frame length %d, want %d", len(f), 882*channels)
			}
			total += len(f) / channels
		}
		if total%882 != 0 {
			t.Fatalf("delivered %d samples, not a multiple of 882", total)
		}
		if total < len(input[0]) || total-len(input[0]) >= 882 {
			t.Fatalf("delivered %d samples for %d input", total, len(input[0]))
		}

		out := Deinterleave(nil, concat(frames), channels)
		for ch := 0; ch < channels; ch++ {
			for i, want := range input[ch] {
				if out[ch][i] != want {
					t.Fatalf("channel %d sample %d = %v, want %v", ch, i, out[ch][i], want)
				}
			}
			for i := len(input[ch]); i < total; i++ {
				if out[ch][i] != 0 {
					t.Fatalf("padding sample %d = %v, want 0", i, out[ch][i])
				}
			}
		}
	}
}

func concat(frames [][]float32) []float32 {
	var out []float32
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func TestInterleave(t *testing.T) {
	got := Interleave(nil, [][]float32{{1, 2}, {3, 4}, {5, 6}})
	want := []float32{1, 3, 5, 2, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Interleave = %v, want %v", got, want)
		}
	}
}
