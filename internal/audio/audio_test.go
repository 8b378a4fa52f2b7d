package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

func f32le(samples ...float32) []byte {
	var b []byte
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(s))
	}
	return b
}

func TestReadPCMChunks(t *testing.T) {
	// 5 stereo frames, chunks of 2, plus a dangling half sample
	in := f32le(0, 10, 1, 11, 2, 12, 3, 13, 4, 14)
	in = append(in, 0xff, 0xff)

	var got [][][]float32
	err := ReadPCM(bytes.NewReader(in), 2, 2, func(chunk [][]float32) error {
		cp := [][]float32{append([]float32(nil), chunk[0]...), append([]float32(nil), chunk[1]...)}
		got = append(got, cp)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadPCM: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	if len(got[2][0]) != 1 || got[2][0][0] != 4 || got[2][1][0] != 14 {
		t.Errorf("last chunk = %v", got[2])
	}
	if got[1][0][1] != 3 || got[1][1][1] != 13 {
		t.Errorf("second chunk = %v", got[1])
	}
}

func TestReadPCMHandlerError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := ReadPCM(bytes.NewReader(f32le(make([]float32, 8)...)), 1, 2, func([][]float32) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err %v after %d calls", err, calls)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestReadPCMReadError(t *testing.T) {
	err := ReadPCM(failingReader{}, 1, 4, func([][]float32) error { return nil })
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v", err)
	}
	if err := ReadPCM(failingReader{}, 0, 4, nil); err == nil {
		t.Error("zero channels accepted")
	}
}

func TestFFmpegArgs(t *testing.T) {
	s := NewFFmpegSource("http://radio.example/stream.mp3", 44100, 2, logrus.New())
	args := s.args()
	if args[0] != "-reconnect" {
		t.Errorf("network input without reconnect flags: %v", args)
	}
	joined := ""
	for _, a := range args {
		joined += a + " "
	}
	if !bytes.Contains([]byte(joined), []byte("-f f32le -ar 44100 -ac 2 -")) {
		t.Errorf("args = %s", joined)
	}

	local := NewFFmpegSource("in.flac", 48000, 1, logrus.New()).args()
	if local[0] == "-reconnect" {
		t.Errorf("file input got reconnect flags: %v", local)
	}
}

func TestVoiceReceiverSkipsEmptyPackets(t *testing.T) {
	pool := NewDecoderPool()
	r := NewVoiceReceiver(pool, logrus.New())

	packets := make(chan *discordgo.Packet, 2)
	packets <- nil
	packets <- &discordgo.Packet{SSRC: 7}
	close(packets)

	called := false
	err := r.Run(context.Background(), packets, func(uint32, [][]float32) error {
		called = true
		return nil
	})
	if err != nil || called {
		t.Errorf("Run = %v, handler called %v", err, called)
	}
	if pool.Len() != 0 {
		t.Errorf("pool holds %d decoders", pool.Len())
	}
}

func TestVoiceReceiverContext(t *testing.T) {
	r := NewVoiceReceiver(NewDecoderPool(), logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx, make(chan *discordgo.Packet), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
