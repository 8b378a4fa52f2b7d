// Package ogg writes and reads Ogg pages carrying an Opus stream.
package ogg

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultMaxPacketsPerPage bounds how many packets share one audio page.
const DefaultMaxPacketsPerPage = 10

// Options configure a Muxer.
type Options struct {
	Serial          uint32
	Channels        int
	InputSampleRate int
	// PreSkip defaults to DefaultPreSkip.
	PreSkip uint16
	Vendor  string
	// Comments are written into OpusTags as "KEY=value" entries.
	Comments []string
	// MaxPacketsPerPage defaults to DefaultMaxPacketsPerPage.
	MaxPacketsPerPage int
	Logger            logrus.FieldLogger
}

// Muxer lays out Opus packets as Ogg pages. Completed pages accumulate until
// TakePages is called. A Muxer is not safe for concurrent use.
type Muxer struct {
	serial     uint32
	maxPackets int
	log        logrus.FieldLogger

	sequence uint32
	segments []byte
	data     []byte
	packets  int
	// continued is set when the page being built starts inside a packet.
	continued bool

	granule     uint64
	pageGranule uint64
	pageCloses  bool
	lastWritten uint64
	ended       bool

	pages      [][]byte
	pagesTotal int
	bytesTotal int64
}

// NewMuxer validates opts and emits the OpusHead and OpusTags pages.
func NewMuxer(opts Options) (*Muxer, error) {
	if opts.Channels < 1 || opts.Channels > 255 {
		return nil, fmt.Errorf("ogg: invalid channel count %d", opts.Channels)
	}
	if opts.InputSampleRate <= 0 {
		return nil, fmt.Errorf("ogg: invalid input sample rate %d", opts.InputSampleRate)
	}
	if len(opts.Vendor) > maxVendorLength {
		return nil, fmt.Errorf("ogg: vendor string too long (%d bytes)", len(opts.Vendor))
	}
	if opts.PreSkip == 0 {
		opts.PreSkip = DefaultPreSkip
	}
	if opts.MaxPacketsPerPage <= 0 {
		opts.MaxPacketsPerPage = DefaultMaxPacketsPerPage
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}

	m := &Muxer{
		serial:     opts.Serial,
		maxPackets: opts.MaxPacketsPerPage,
		log:        opts.Logger.WithField("serial", fmt.Sprintf("%08x", opts.Serial)),
		segments:   make([]byte, 0, MaxSegments),
	}

	head := OpusHead{
		Version:         1,
		Channels:        uint8(opts.Channels),
		PreSkip:         opts.PreSkip,
		InputSampleRate: uint32(opts.InputSampleRate),
	}
	tags := OpusTags{Vendor: opts.Vendor, Comments: opts.Comments}
	tagsPacket := tags.Encode()
	if len(Lacing(len(tagsPacket))) > MaxSegments {
		return nil, fmt.Errorf("ogg: OpusTags does not fit on one page (%d bytes)", len(tagsPacket))
	}
	m.writeHeaderPage(head.Encode(), FlagBOS)
	m.writeHeaderPage(tagsPacket, 0)
	return m, nil
}

func (m *Muxer) writeHeaderPage(packet []byte, headerType byte) {
	p := &Page{
		HeaderType: headerType,
		Granule:    0,
		Serial:     m.serial,
		Sequence:   m.sequence,
		Segments:   Lacing(len(packet)),
		Data:       packet,
	}
	m.push(p)
}

// WritePacket appends one packet covering samples granule units. Pages are
// emitted when the segment table fills or the packet limit is reached.
func (m *Muxer) WritePacket(packet []byte, samples int) error {
	if m.ended {
		return ErrStreamClosed
	}
	if samples < 0 {
		return fmt.Errorf("ogg: negative sample count %d", samples)
	}
	if m.packets >= m.maxPackets {
		m.emitPage(0)
	}

	rest := packet
	inPacket := false
	for {
		if len(m.segments) == MaxSegments {
			m.emitPage(0)
			m.continued = inPacket
		}
		n := min(len(rest), MaxSegmentSize)
		m.segments = append(m.segments, byte(n))
		m.data = append(m.data, rest[:n]...)
		rest = rest[n:]
		inPacket = true
		if n < MaxSegmentSize {
			break
		}
	}

	m.granule += uint64(samples)
	m.pageGranule = m.granule
	m.pageCloses = true
	m.packets++
	return nil
}

// Flush emits the page under construction, if it holds any segments.
func (m *Muxer) Flush() {
	if m.ended || len(m.segments) == 0 {
		return
	}
	m.emitPage(0)
}

// Finalize emits the last page with the end-of-stream flag and the final
// granule position. The page is empty when nothing was pending.
func (m *Muxer) Finalize() error {
	if m.ended {
		return ErrStreamClosed
	}
	m.emitPage(FlagEOS)
	m.ended = true
	return nil
}

// TakePages returns the pages completed so far and forgets them.
func (m *Muxer) TakePages() [][]byte {
	out := m.pages
	m.pages = nil
	return out
}

func (m *Muxer) emitPage(flags byte) {
	if m.ended {
		panic("ogg: page emitted after end of stream")
	}
	if len(m.segments) > MaxSegments {
		panic(fmt.Sprintf("ogg: segment table overflow (%d entries)", len(m.segments)))
	}

	headerType := flags
	if m.continued {
		headerType |= FlagContinued
	}

	granule := GranuleUnknown
	switch {
	case flags&FlagEOS != 0:
		granule = m.granule
	case m.pageCloses && m.pageGranule > m.lastWritten:
		granule = m.pageGranule
	}
	if granule != GranuleUnknown {
		if granule < m.lastWritten {
			panic(fmt.Sprintf("ogg: granule regressed from %d to %d", m.lastWritten, granule))
		}
		m.lastWritten = granule
	}

	p := &Page{
		HeaderType: headerType,
		Granule:    granule,
		Serial:     m.serial,
		Sequence:   m.sequence,
		Segments:   m.segments,
		Data:       m.data,
	}
	m.push(p)

	m.segments = m.segments[:0]
	m.data = m.data[:0]
	m.packets = 0
	m.pageCloses = false
	m.continued = false
}

func (m *Muxer) push(p *Page) {
	b := p.Encode()
	m.pages = append(m.pages, b)
	m.sequence++
	m.pagesTotal++
	m.bytesTotal += int64(len(b))

	m.log.WithFields(logrus.Fields{
		"seq":      p.Sequence,
		"type":     p.HeaderType,
		"granule":  int64(p.Granule),
		"segments": len(p.Segments),
		"bytes":    len(b),
	}).Debug("page emitted")
}

// Serial returns the stream serial number.
func (m *Muxer) Serial() uint32 { return m.serial }

// Sequence returns the sequence number the next page will carry.
func (m *Muxer) Sequence() uint32 { return m.sequence }

// Granule returns the total samples of all packets written.
func (m *Muxer) Granule() uint64 { return m.granule }

// Pending reports the segments and packets buffered for the next page.
func (m *Muxer) Pending() (segments, packets int) { return len(m.segments), m.packets }

// Ended reports whether the end-of-stream page has been emitted.
func (m *Muxer) Ended() bool { return m.ended }

// Totals returns the number of pages and bytes emitted since construction.
func (m *Muxer) Totals() (pages int, bytes int64) { return m.pagesTotal, m.bytesTotal }
