package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/frame"
)

// ChunkHandler receives one chunk of per-channel samples. The slices are
// reused after the handler returns.
type ChunkHandler func(chunk [][]float32) error

// FFmpegSource decodes any input ffmpeg understands into float PCM chunks
type FFmpegSource struct {
	input      string
	sampleRate int
	channels   int
	logger     logrus.FieldLogger
}

// NewFFmpegSource creates a new source for a URL or file path
func NewFFmpegSource(input string, sampleRate, channels int, logger logrus.FieldLogger) *FFmpegSource {
	return &FFmpegSource{
		input:      input,
		sampleRate: sampleRate,
		channels:   channels,
		logger:     logger,
	}
}

// SampleRate returns the rate ffmpeg resamples to
func (s *FFmpegSource) SampleRate() int { return s.sampleRate }

// Channels returns the channel count ffmpeg downmixes or upmixes to
func (s *FFmpegSource) Channels() int { return s.channels }

func (s *FFmpegSource) args() []string {
	var args []string
	if strings.HasPrefix(s.input, "http://") || strings.HasPrefix(s.input, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-reconnect_at_eof", "1",
		)
	}
	return append(args,
		"-loglevel", "error",
		"-i", s.input,
		"-f", "f32le",
		"-ar", strconv.Itoa(s.sampleRate),
		"-ac", strconv.Itoa(s.channels),
		"-",
	)
}

// Run starts ffmpeg and hands chunks of ChunkFrames samples per channel to
// handle until the input ends, isActive returns false, or ctx is done.
// A clean end of input returns nil.
func (s *FFmpegSource) Run(ctx context.Context, isActive func() bool, handle ChunkHandler) error {
	s.logger.Infof("Starting ffmpeg capture: %s", s.input)

	cmd := exec.CommandContext(ctx, "ffmpeg", s.args()...)
	cmd.Stderr = os.Stderr // Log ffmpeg errors

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}()

	err = ReadPCM(stdout, s.channels, ChunkFrames, func(chunk [][]float32) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if isActive != nil && !isActive() {
			return errStopped
		}
		return handle(chunk)
	})
	if errors.Is(err, errStopped) {
		return nil
	}
	return err
}

var errStopped = errors.New("audio: source stopped")

// ReadPCM reads interleaved little-endian float32 samples from r and calls
// handle with chunks of chunkFrames samples per channel. A trailing partial
// chunk is delivered at its real length. io.EOF is not an error.
func ReadPCM(r io.Reader, channels, chunkFrames int, handle ChunkHandler) error {
	if channels <= 0 || chunkFrames <= 0 {
		return fmt.Errorf("audio: invalid layout %d channels x %d frames", channels, chunkFrames)
	}
	raw := make([]byte, chunkFrames*channels*bytesPerSample)
	interleaved := make([]float32, chunkFrames*channels)
	var chunk [][]float32

	for {
		n, err := io.ReadFull(r, raw)
		frames := n / (channels * bytesPerSample)
		if frames > 0 {
			samples := interleaved[:frames*channels]
			for i := range samples {
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample:]))
			}
			chunk = frame.Deinterleave(chunk, samples, channels)
			if herr := handle(chunk); herr != nil {
				return herr
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("error reading audio data: %w", err)
		}
	}
}
