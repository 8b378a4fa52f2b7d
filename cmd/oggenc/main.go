// Command oggenc encodes audio files into Ogg Opus or WAV and checks the
// structure of Ogg Opus streams.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/audio"
	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/codec/backend"
	"github.com/ankogit/4duk-recorder/internal/config"
	"github.com/ankogit/4duk-recorder/internal/container"
	"github.com/ankogit/4duk-recorder/internal/container/ogg"
	"github.com/ankogit/4duk-recorder/internal/container/wav"
	"github.com/ankogit/4duk-recorder/internal/pipeline"
)

const usage = `usage:
  oggenc encode -in <file|url> -out <file> [flags]
  oggenc verify <file.ogg>
`

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(os.Args[2:], logger)
	case "verify":
		err = runVerify(os.Args[2:], os.Stdout)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.WithError(err).Fatal(os.Args[1] + " failed")
	}
}

func runEncode(args []string, logger *logrus.Logger) error {
	defaults, err := config.LoadEncoder()
	if err != nil {
		return err
	}
	logger.SetLevel(defaults.LogLevel)

	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	in := fs.String("in", "", "input file or URL (\"-\" reads stdin with -raw)")
	out := fs.String("out", "", "output file")
	format := fs.String("format", defaults.Format.String(), "container: ogg or wav")
	bitrate := fs.Int("bitrate", defaults.Bitrate, "Opus bitrate in bits/s, 0 for the encoder default")
	rate := fs.Int("rate", defaults.InputSampleRate, "capture sample rate")
	channels := fs.Int("channels", defaults.InputChannels, "capture channels (1 or 2)")
	raw := fs.Bool("raw", false, "input is interleaved f32le PCM, skip ffmpeg")
	backendName := fs.String("backend", defaults.CodecBackend, "codec backend: libopus or gopus")
	app := fs.String("application", defaults.Application.String(), "audio, voip or lowdelay")
	fs.Parse(args)

	if *in == "" || *out == "" {
		fs.Usage()
		return errors.New("-in and -out are required")
	}

	kind, err := container.ParseKind(*format)
	if err != nil {
		return err
	}
	application, err := codec.ParseApplication(*app)
	if err != nil {
		return err
	}
	factory, err := backend.Factory(*backendName)
	if err != nil {
		return err
	}

	enc, err := pipeline.Open(kind, pipeline.Options{
		InputRate:         *rate,
		Channels:          *channels,
		Bitrate:           *bitrate,
		Application:       application,
		Codec:             factory,
		Vendor:            backend.Vendor(*backendName),
		MaxPacketsPerPage: defaults.MaxPacketsPerPage,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	write := func(pages [][]byte) error {
		for _, p := range pages {
			if _, err := w.Write(p); err != nil {
				return err
			}
		}
		return nil
	}
	handle := func(chunk [][]float32) error {
		if err := enc.PushInput(chunk); err != nil {
			return err
		}
		pages, err := enc.Flush()
		if err != nil {
			return err
		}
		return write(pages)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	if *raw {
		var src io.Reader = os.Stdin
		if *in != "-" {
			rf, err := os.Open(*in)
			if err != nil {
				return err
			}
			defer rf.Close()
			src = rf
		}
		err = audio.ReadPCM(bufio.NewReader(src), *channels, audio.ChunkFrames, handle)
	} else {
		err = audio.NewFFmpegSource(*in, *rate, *channels, logger).Run(ctx, nil, handle)
	}
	// an interrupted capture still gets a valid file
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	pages, err := enc.Finalize()
	if err != nil {
		return err
	}
	if err := write(pages); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if we, ok := enc.(*pipeline.WaveEncoder); ok {
		if err := wav.PatchSizes(f, we.DataSize()); err != nil {
			return err
		}
	}

	logger.Infof("Wrote %s: %s of audio in %s", *out, enc.Duration().Round(time.Millisecond), time.Since(started).Round(time.Millisecond))
	return nil
}

func runVerify(args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("verify takes exactly one file")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var largest int
	info, err := ogg.Verify(bufio.NewReader(f), func(packet []byte) {
		largest = max(largest, len(packet))
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "serial:      %08x\n", info.Serial)
	fmt.Fprintf(w, "channels:    %d\n", info.Head.Channels)
	fmt.Fprintf(w, "input rate:  %d Hz\n", info.Head.InputSampleRate)
	fmt.Fprintf(w, "pre-skip:    %d\n", info.Head.PreSkip)
	fmt.Fprintf(w, "vendor:      %s\n", info.Tags.Vendor)
	for _, c := range info.Tags.Comments {
		fmt.Fprintf(w, "comment:     %s\n", c)
	}
	fmt.Fprintf(w, "pages:       %d\n", info.Pages)
	fmt.Fprintf(w, "packets:     %d (largest %d bytes)\n", info.Packets, largest)
	fmt.Fprintf(w, "granule:     %d\n", info.Granule)
	fmt.Fprintf(w, "duration:    %s\n", time.Duration(info.Granule)*time.Second/codec.OutputSampleRate)
	fmt.Fprintf(w, "bytes:       %d\n", info.Bytes)
	return nil
}
