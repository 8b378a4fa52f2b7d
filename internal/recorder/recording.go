package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/container"
	"github.com/ankogit/4duk-recorder/internal/container/wav"
	"github.com/ankogit/4duk-recorder/internal/observe"
	"github.com/ankogit/4duk-recorder/internal/pipeline"
)

// ErrStopped is returned when writing to a stopped recording
var ErrStopped = errors.New("recorder: recording stopped")

// Options configure one recording
type Options struct {
	Dir     string
	Label   string // file name prefix, e.g. the guild or speaker
	Kind    container.Kind
	Encoder pipeline.Options
	// FlushInterval is how often encoded data is written to disk. Zero
	// writes only on Flush and Stop.
	FlushInterval time.Duration
	Logger        logrus.FieldLogger
	Metrics       *observe.Metrics
}

// Result describes a finished recording
type Result struct {
	ID       uuid.UUID
	Label    string
	Path     string
	Kind     container.Kind
	Bytes    int64
	Duration time.Duration
}

// Stats is a snapshot of a running recording
type Stats struct {
	Bytes    int64
	Writes   int
	Duration time.Duration
	Started  time.Time
}

// Recording writes one encoding session to a file. Its methods are safe for
// concurrent use.
type Recording struct {
	ID    uuid.UUID
	Label string
	Path  string
	Kind  container.Kind

	mu      sync.Mutex
	session pipeline.Session
	file    *os.File
	bytes   int64
	writes  int
	started time.Time
	stopped bool
	err     error // first file write failure

	stop     chan struct{}
	loopDone chan struct{}
	logger   logrus.FieldLogger
	metrics  *observe.Metrics
}

// Start creates the output file, initialises the encoder and, when
// FlushInterval is set, starts the periodic flush.
func Start(opts Options) (*Recording, error) {
	id := uuid.New()
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Label == "" {
		opts.Label = "recording"
	}
	// the stream serial and the file name share the id
	opts.Encoder.Serial = binary.BigEndian.Uint32(id[:4])
	if opts.Encoder.Logger == nil {
		opts.Encoder.Logger = opts.Logger
	}
	if opts.Encoder.Metrics == nil {
		opts.Encoder.Metrics = opts.Metrics
	}
	if opts.Encoder.Comments == nil {
		opts.Encoder.Comments = []string{"TITLE=" + opts.Label, "DATE=" + time.Now().UTC().Format(time.RFC3339)}
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s%s", opts.Label, id.String()[:8], opts.Kind.Extension()))

	r := &Recording{
		ID:       id,
		Label:    opts.Label,
		Path:     path,
		Kind:     opts.Kind,
		started:  time.Now(),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		logger:   opts.Logger.WithField("recording", id.String()[:8]),
		metrics:  opts.Metrics,
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}
	if _, err := r.session.Dispatch(pipeline.Command{
		Type:    pipeline.CmdInit,
		Kind:    opts.Kind,
		Options: opts.Encoder,
	}); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	r.file = f

	r.metrics.RecordingStarted(context.Background(), opts.Kind.String())
	r.logger.Infof("Recording %s to %s", opts.Kind, path)

	if opts.FlushInterval > 0 {
		go r.flushLoop(opts.FlushInterval)
	} else {
		close(r.loopDone)
	}
	return r, nil
}

func (r *Recording) flushLoop(interval time.Duration) {
	defer close(r.loopDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil && !errors.Is(err, ErrStopped) {
				r.logger.WithError(err).Warn("Periodic flush failed")
			}
		}
	}
}

// Write feeds one chunk of per-channel samples to the encoder
func (r *Recording) Write(chunk [][]float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if r.err != nil {
		return r.err
	}
	_, err := r.session.Dispatch(pipeline.Command{Type: pipeline.CmdPushInputData, Buffers: chunk})
	return err
}

// Flush writes the pages encoded so far to the file
func (r *Recording) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if r.err != nil {
		return r.err
	}
	reply, err := r.session.Dispatch(pipeline.Command{Type: pipeline.CmdGetEncodedData})
	if err != nil {
		return err
	}
	return r.writePages(reply.Pages)
}

func (r *Recording) writePages(pages [][]byte) error {
	for _, p := range pages {
		n, err := r.file.Write(p)
		r.bytes += int64(n)
		if err != nil {
			r.err = fmt.Errorf("failed to write recording: %w", err)
			return r.err
		}
	}
	if len(pages) > 0 {
		r.writes++
	}
	return nil
}

// Stop finalizes the encoder, writes the tail, fixes up WAV sizes and
// closes the file. Calling Stop again returns ErrStopped.
func (r *Recording) Stop() (*Result, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrStopped
	}
	r.stopped = true
	close(r.stop)
	r.mu.Unlock()

	// the flush loop takes the lock, so wait outside it
	<-r.loopDone

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	enc := r.session.Encoder()
	reply, err := r.session.Dispatch(pipeline.Command{Type: pipeline.CmdDone})
	if err != nil {
		errs = append(errs, err)
	} else if err := r.writePages(reply.Pages); err != nil {
		errs = append(errs, err)
	}

	if we, ok := enc.(*pipeline.WaveEncoder); ok && len(errs) == 0 {
		if err := wav.PatchSizes(r.file, we.DataSize()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close recording: %w", err))
	}
	r.metrics.RecordingStopped(context.Background(), r.Kind.String())

	res := &Result{
		ID:       r.ID,
		Label:    r.Label,
		Path:     r.Path,
		Kind:     r.Kind,
		Bytes:    r.bytes,
		Duration: enc.Duration(),
	}
	err = errors.Join(errs...)
	if err != nil {
		r.logger.WithError(err).Warnf("Recording %s stopped with errors", r.Path)
	} else {
		r.logger.Infof("Recording %s finished: %d bytes, %s", r.Path, r.bytes, res.Duration.Round(time.Millisecond))
	}
	return res, err
}

// Stats returns a snapshot of the recording
func (r *Recording) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Bytes:    r.bytes,
		Writes:   r.writes,
		Duration: r.session.Encoder().Duration(),
		Started:  r.started,
	}
}

// Failed reports whether the encoder rejected input for good
func (r *Recording) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err != nil || r.session.Encoder().State() == pipeline.Failed
}

// Stopped reports whether Stop was called
func (r *Recording) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
