package codec

import (
	"errors"
	"math"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"mono 44.1k", Config{InputRate: 44100, OutputRate: 48000, Channels: 1}, false},
		{"stereo with bitrate", Config{InputRate: 48000, OutputRate: 48000, Channels: 2, Bitrate: 64000}, false},
		{"zero input rate", Config{InputRate: 0, OutputRate: 48000, Channels: 1}, true},
		{"odd output rate", Config{InputRate: 48000, OutputRate: 44100, Channels: 1}, true},
		{"three channels", Config{InputRate: 48000, OutputRate: 48000, Channels: 3}, true},
		{"bitrate too low", Config{InputRate: 48000, OutputRate: 48000, Channels: 1, Bitrate: 10}, true},
		{"bitrate too high", Config{InputRate: 48000, OutputRate: 48000, Channels: 1, Bitrate: 1 << 20}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestFrameSamples(t *testing.T) {
	cases := map[int]int{48000: 960, 44100: 882, 16000: 320, 8000: 160}
	for rate, want := range cases {
		if got := FrameSamples(rate); got != want {
			t.Errorf("FrameSamples(%d) = %d, want %d", rate, got, want)
		}
	}
}

func TestParseApplication(t *testing.T) {
	for in, want := range map[string]Application{"": AppAudio, "VOIP": AppVoIP, "lowdelay": AppLowDelay} {
		got, err := ParseApplication(in)
		if err != nil || got != want {
			t.Errorf("ParseApplication(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseApplication("karaoke"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestErrorIsCodec(t *testing.T) {
	var err error = &Error{Op: "compress", Code: -3}
	if !errors.Is(err, ErrCodec) {
		t.Error("Error should match ErrCodec")
	}
	if errors.Is(err, ErrInvalidConfig) {
		t.Error("Error should not match ErrInvalidConfig")
	}
}

func TestLinearResampler_SameRateCopies(t *testing.T) {
	r, err := NewLinearResampler(4, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Process([]float32{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if out[i] != want {
			t.Fatalf("out = %v", out)
		}
	}
}

func TestLinearResampler_OutputLength(t *testing.T) {
	r, err := NewLinearResampler(882, 960, 2)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Process(make([]float32, 882*2))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 960*2 {
		t.Errorf("len(out) = %d, want %d", len(out), 960*2)
	}

	if _, err := r.Process(make([]float32, 10)); !errors.Is(err, ErrCodec) {
		t.Errorf("short frame err = %v, want ErrCodec", err)
	}
}

// A constant signal must stay constant after the first frame, and a ramp must
// stay monotonic across frame boundaries.
func TestLinearResampler_Continuity(t *testing.T) {
	r, _ := NewLinearResampler(441, 480, 1)

	in := make([]float32, 441)
	for i := range in {
		in[i] = 0.5
	}
	_, _ = r.Process(in)
	out, _ := r.Process(in)
	for i, s := range out {
		if math.Abs(float64(s-0.5)) > 1e-6 {
			t.Fatalf("out[%d] = %v, want 0.5", i, s)
		}
	}

	r, _ = NewLinearResampler(441, 480, 1)
	prev := float32(-1)
	for f := 0; f < 3; f++ {
		for i := range in {
			in[i] = float32(f*441 + i)
		}
		out, _ := r.Process(in)
		for i, s := range out {
			if s < prev {
				t.Fatalf("frame %d out[%d] = %v < previous %v", f, i, s, prev)
			}
			prev = s
		}
	}
}
