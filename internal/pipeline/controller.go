// Package pipeline drives one encoding session: capture chunks go through
// the frame accumulator, the codec bridge and the container muxer, and come
// out as page bytes the caller pulls with Flush and Finalize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/container"
	"github.com/ankogit/4duk-recorder/internal/container/ogg"
	"github.com/ankogit/4duk-recorder/internal/frame"
	"github.com/ankogit/4duk-recorder/internal/observe"
)

// Options configure a session.
type Options struct {
	InputRate   int
	Channels    int
	Bitrate     int
	Application codec.Application

	// Codec builds the session's bridge. Required for Ogg.
	Codec  codec.Factory
	Vendor string
	// Comments go into OpusTags as "KEY=value" entries.
	Comments []string

	MaxPacketsPerPage int
	// Serial is the Ogg stream serial. Zero picks a random one.
	Serial uint32

	Logger  logrus.FieldLogger
	Metrics *observe.Metrics
}

func (o Options) codecConfig() codec.Config {
	return codec.Config{
		InputRate:   o.InputRate,
		OutputRate:  codec.OutputSampleRate,
		Channels:    o.Channels,
		Bitrate:     o.Bitrate,
		Application: o.Application,
	}
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Controller is an Ogg Opus encoding session. It is not safe for concurrent
// use.
type Controller struct {
	state   State
	failure error

	cfg     codec.Config
	acc     *frame.Accumulator
	bridge  codec.Bridge
	mux     *ogg.Muxer
	log     logrus.FieldLogger
	metrics *observe.Metrics

	frames int64
}

var _ Encoder = (*Controller)(nil)

// NewController returns an initialised session.
func NewController(opts Options) (*Controller, error) {
	c := &Controller{}
	if err := c.Init(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Init validates opts, builds the bridge and muxer and queues the two
// header pages.
func (c *Controller) Init(opts Options) error {
	if c.state != Uninitialized {
		return &StateError{Op: "init", State: c.state}
	}
	if opts.Codec == nil {
		return fmt.Errorf("%w: no codec factory", ErrInvalidConfig)
	}
	cfg := opts.codecConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.InputFrameSize() == 0 {
		return fmt.Errorf("%w: input rate %d too low for a %v frame", ErrInvalidConfig, cfg.InputRate, codec.FrameDuration)
	}

	acc, err := frame.NewAccumulator(cfg.InputFrameSize(), cfg.Channels)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if opts.Serial == 0 {
		opts.Serial = rand.Uint32()
	}
	log := opts.logger()
	mux, err := ogg.NewMuxer(ogg.Options{
		Serial:            opts.Serial,
		Channels:          cfg.Channels,
		InputSampleRate:   cfg.InputRate,
		Vendor:            opts.Vendor,
		Comments:          opts.Comments,
		MaxPacketsPerPage: opts.MaxPacketsPerPage,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	bridge, err := opts.Codec(cfg)
	if err != nil {
		if errors.Is(err, codec.ErrInvalidConfig) {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return err
	}

	c.cfg = cfg
	c.acc = acc
	c.bridge = bridge
	c.mux = mux
	c.log = log
	c.metrics = opts.Metrics
	c.state = Ready

	c.log.WithFields(logrus.Fields{
		"input_rate":  cfg.InputRate,
		"channels":    cfg.Channels,
		"bitrate":     cfg.Bitrate,
		"application": cfg.Application,
		"input_frame": cfg.InputFrameSize(),
	}).Debug("encoding session initialised")
	return nil
}

// PushInput feeds one capture chunk, one slice per channel. Every completed
// frame is resampled, compressed and written to the muxer.
func (c *Controller) PushInput(chunk [][]float32) error {
	if err := c.check("pushInputData"); err != nil {
		return err
	}
	if err := c.acc.Push(chunk, c.encodeFrame); err != nil {
		return c.handle(err)
	}
	c.state = Streaming
	return nil
}

// Flush returns the pages completed so far, forcing out a page for any
// buffered packets. It never produces an empty page.
func (c *Controller) Flush() ([][]byte, error) {
	if err := c.check("getEncodedData"); err != nil {
		return nil, err
	}
	c.mux.Flush()
	return c.take(), nil
}

// Finalize pads and encodes any partial frame, ends the stream and returns
// the remaining pages. The last page carries the end-of-stream flag.
func (c *Controller) Finalize() ([][]byte, error) {
	if err := c.check("done"); err != nil {
		return nil, err
	}
	if err := c.acc.Drain(c.encodeFrame); err != nil {
		return nil, c.handle(err)
	}
	if err := c.mux.Finalize(); err != nil {
		// the muxer is only finalized here
		panic(fmt.Sprintf("pipeline: muxer already finalized: %v", err))
	}
	pages := c.take()
	if err := c.bridge.Close(); err != nil {
		c.log.WithError(err).Warn("closing codec")
	}
	c.state = Finalized
	c.log.WithFields(logrus.Fields{
		"frames":  c.frames,
		"granule": c.mux.Granule(),
	}).Debug("encoding session finalized")
	return pages, nil
}

func (c *Controller) encodeFrame(in []float32) error {
	start := time.Now()
	ctx := context.Background()

	pcm, err := c.bridge.Resample(in)
	if err != nil {
		c.metrics.RecordCodecError(ctx, "resample")
		return err
	}
	packet, err := c.bridge.Compress(pcm)
	if err != nil {
		c.metrics.RecordCodecError(ctx, "compress")
		return err
	}
	if len(packet) > codec.MaxPacketSize {
		c.metrics.RecordCodecError(ctx, "compress")
		return &codec.Error{Op: "compress", Code: len(packet),
			Err: fmt.Errorf("packet of %d bytes exceeds %d", len(packet), codec.MaxPacketSize)}
	}
	if err := c.mux.WritePacket(packet, c.cfg.OutputFrameSize()); err != nil {
		panic(fmt.Sprintf("pipeline: write to muxer: %v", err))
	}
	c.frames++
	c.metrics.RecordPacket(ctx, time.Since(start))
	return nil
}

// handle separates rejected input from codec failures, which end the
// session.
func (c *Controller) handle(err error) error {
	if errors.Is(err, frame.ErrChannelMismatch) || errors.Is(err, frame.ErrEmptyChunk) {
		return err
	}
	c.state = Failed
	c.failure = err
	if cerr := c.bridge.Close(); cerr != nil {
		c.log.WithError(cerr).Warn("closing codec after failure")
	}
	c.log.WithError(err).Error("encoding session failed")
	return err
}

func (c *Controller) check(op string) error {
	if c.state.accepting() {
		return nil
	}
	return &StateError{Op: op, State: c.state, Err: c.failure}
}

func (c *Controller) take() [][]byte {
	pages := c.mux.TakePages()
	c.metrics.RecordPages(context.Background(), container.Ogg.String(), pages)
	return pages
}

// Kind implements Encoder.
func (c *Controller) Kind() container.Kind { return container.Ogg }

// State returns the session state.
func (c *Controller) State() State { return c.state }

// Config returns the bridge configuration chosen at Init.
func (c *Controller) Config() codec.Config { return c.cfg }

// Serial returns the Ogg stream serial, or 0 before Init.
func (c *Controller) Serial() uint32 {
	if c.mux == nil {
		return 0
	}
	return c.mux.Serial()
}

// Granule returns the samples at 48 kHz encoded so far.
func (c *Controller) Granule() uint64 {
	if c.mux == nil {
		return 0
	}
	return c.mux.Granule()
}

// Duration is the encoded audio length.
func (c *Controller) Duration() time.Duration {
	return time.Duration(c.Granule()) * time.Second / codec.OutputSampleRate
}
