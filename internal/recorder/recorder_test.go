package recorder

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/codec/mock"
	"github.com/ankogit/4duk-recorder/internal/container"
	"github.com/ankogit/4duk-recorder/internal/container/ogg"
	"github.com/ankogit/4duk-recorder/internal/container/wav"
	"github.com/ankogit/4duk-recorder/internal/pipeline"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testOptions(t *testing.T, kind container.Kind, b *mock.Bridge) Options {
	t.Helper()
	return Options{
		Dir:   t.TempDir(),
		Label: "guild1",
		Kind:  kind,
		Encoder: pipeline.Options{
			InputRate: 48000,
			Channels:  2,
			Codec:     mock.Factory(b),
			Vendor:    "mock",
		},
		Logger: quietLogger(),
	}
}

func stereo(n int, v float32) [][]float32 {
	chunk := [][]float32{make([]float32, n), make([]float32, n)}
	for i := 0; i < n; i++ {
		chunk[0][i] = v
		chunk[1][i] = -v
	}
	return chunk
}

func TestRecordingOgg(t *testing.T) {
	b := &mock.Bridge{}
	rec, err := Start(testOptions(t, container.Ogg, b))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.HasSuffix(rec.Path, ".ogg") || !strings.HasPrefix(filepath.Base(rec.Path), "guild1-") {
		t.Errorf("path = %s", rec.Path)
	}

	for iter := 0; iter < 3; iter++ {
		if err := rec.Write(stereo(1000, 0.25)); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}
	if st := rec.Stats(); st.Bytes == 0 || st.Writes != 1 {
		t.Errorf("stats after flush = %+v", st)
	}

	res, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !b.Closed() {
		t.Error("codec not closed")
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(data)) != res.Bytes {
		t.Errorf("file is %d bytes, result says %d", len(data), res.Bytes)
	}
	info, err := ogg.Verify(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// 3000 samples -> 4 frames after padding
	if info.Granule != 3840 || res.Duration != 80*time.Millisecond {
		t.Errorf("granule %d duration %s", info.Granule, res.Duration)
	}
	if info.Tags.Vendor != "mock" || len(info.Tags.Comments) != 2 || info.Tags.Comments[0] != "TITLE=guild1" {
		t.Errorf("tags = %+v", info.Tags)
	}

	if _, err := rec.Stop(); !errors.Is(err, ErrStopped) {
		t.Errorf("second Stop err = %v", err)
	}
	if err := rec.Write(stereo(10, 0)); !errors.Is(err, ErrStopped) {
		t.Errorf("Write after Stop err = %v", err)
	}
}

func TestRecordingWavPatchesSizes(t *testing.T) {
	rec, err := Start(testOptions(t, container.Wav, &mock.Bridge{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Write(stereo(480, 0.5)); err != nil {
		t.Fatal(err)
	}
	res, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	f, size, err := wav.ParseHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if f.SampleRate != 48000 || f.Channels != 2 || size != 480*4 {
		t.Errorf("format %+v data size %d", f, size)
	}
	if len(data) != wav.HeaderSize+480*4 {
		t.Errorf("file is %d bytes", len(data))
	}
	if res.Duration != 10*time.Millisecond {
		t.Errorf("duration = %s", res.Duration)
	}
}

func TestRecordingPeriodicFlush(t *testing.T) {
	opts := testOptions(t, container.Ogg, &mock.Bridge{})
	opts.FlushInterval = 5 * time.Millisecond
	rec, err := Start(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Stop() })

	if err := rec.Write(stereo(960, 0.1)); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for rec.Stats().Writes == 0 {
		if time.Now().After(deadline) {
			t.Fatal("periodic flush never wrote")
		}
		time.Sleep(5 * time.Millisecond)
	}
	fi, err := os.Stat(rec.Path)
	if err != nil || fi.Size() == 0 {
		t.Errorf("file not written: %v", err)
	}
}

func TestRecordingCodecFailure(t *testing.T) {
	b := &mock.Bridge{CompressErr: errors.New("boom")}
	rec, err := Start(testOptions(t, container.Ogg, b))
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Write(stereo(960, 0)); err == nil {
		t.Fatal("Write succeeded with a failing codec")
	}
	if !rec.Failed() {
		t.Error("recording not marked failed")
	}
	if err := rec.Write(stereo(960, 0)); !errors.Is(err, pipeline.ErrInvalidState) {
		t.Errorf("Write after failure err = %v", err)
	}
	res, err := rec.Stop()
	if !errors.Is(err, pipeline.ErrInvalidState) {
		t.Errorf("Stop err = %v", err)
	}
	if res == nil || res.Path != rec.Path {
		t.Errorf("Stop result = %+v", res)
	}
}

func TestStartRejectsBadOptions(t *testing.T) {
	opts := testOptions(t, container.WebM, &mock.Bridge{})
	if _, err := Start(opts); !errors.Is(err, container.ErrUnsupported) {
		t.Errorf("WebM err = %v", err)
	}
	entries, _ := os.ReadDir(opts.Dir)
	if len(entries) != 0 {
		t.Errorf("failed start left %d files", len(entries))
	}
}

func TestManagerSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "recorder_guilds.yaml")
	m := NewManager(path, quietLogger())

	s := m.GetOrCreate("g1")
	s.SetAutoChannelID("c1")
	s.SetAutoRecordEnabled(true)
	s.SetFormat("wav")
	s.SetBitrate(96000)
	m.GetOrCreate("g2") // nothing to persist
	if err := m.SaveSettings(); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "auto_channel_id: c1") || strings.Contains(string(raw), "g2") {
		t.Errorf("settings file:\n%s", raw)
	}

	m2 := NewManager(path, quietLogger())
	got, ok := m2.Get("g1")
	if !ok {
		t.Fatal("g1 not loaded")
	}
	if got.GetAutoChannelID() != "c1" || !got.IsAutoRecordEnabled() || got.GetFormat() != "wav" || got.GetBitrate() != 96000 {
		t.Errorf("loaded state = %+v", got)
	}
	if _, ok := m2.Get("g2"); ok {
		t.Error("empty guild persisted")
	}
}

func TestManagerBadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("g1: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path, quietLogger())
	if err := m.LoadSettings(); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestManagerStopGuild(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "s.yaml"), quietLogger())

	for _, label := range []string{"a", "b", "c"} {
		opts := testOptions(t, container.Ogg, &mock.Bridge{})
		opts.Label = label
		rec, err := Start(opts)
		if err != nil {
			t.Fatal(err)
		}
		if err := rec.Write(stereo(960, 0)); err != nil {
			t.Fatal(err)
		}
		guild := "g1"
		if label == "c" {
			guild = "g2"
		}
		m.Add(guild, rec)
	}
	if n := len(m.Recordings("g1")); n != 2 {
		t.Fatalf("g1 has %d recordings", n)
	}

	results, err := m.StopGuild("g1")
	if err != nil {
		t.Fatalf("StopGuild: %v", err)
	}
	if len(results) != 2 || len(m.Recordings("g1")) != 0 {
		t.Errorf("%d results, %d left", len(results), len(m.Recordings("g1")))
	}
	for _, r := range results {
		if r.Duration != 20*time.Millisecond {
			t.Errorf("%s duration = %s", r.Label, r.Duration)
		}
	}

	results, err = m.StopAll()
	if err != nil || len(results) != 1 || results[0].Label != "c" {
		t.Errorf("StopAll = %v, %v", results, err)
	}
}
