package ogg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Reader reads consecutive pages from a byte stream.
type Reader struct {
	r   *bufio.Reader
	buf []byte
	off int64
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Offset is the byte position of the next page.
func (r *Reader) Offset() int64 { return r.off }

// NextPage reads and checks one page. It returns io.EOF at a clean end of
// input and io.ErrUnexpectedEOF for a truncated page.
func (r *Reader) NextPage() (*Page, error) {
	r.buf = r.buf[:0]
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r.r, hdr); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	r.buf = append(r.buf, hdr...)

	segments := make([]byte, int(hdr[26]))
	if _, err := io.ReadFull(r.r, segments); err != nil {
		return nil, unexpected(err)
	}
	r.buf = append(r.buf, segments...)

	n := 0
	for _, s := range segments {
		n += int(s)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, unexpected(err)
	}
	r.buf = append(r.buf, body...)

	p, size, err := ParsePage(r.buf)
	if err != nil {
		return nil, fmt.Errorf("at offset %d: %w", r.off, err)
	}
	r.off += int64(size)
	return p, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// StreamInfo summarises a verified Ogg Opus stream.
type StreamInfo struct {
	Head    OpusHead
	Tags    OpusTags
	Serial  uint32
	Pages   int
	Packets int
	// Granule is the position carried by the end-of-stream page.
	Granule uint64
	Bytes   int64
}

// ErrMalformedStream is wrapped by every structural error Verify reports.
var ErrMalformedStream = errors.New("ogg: malformed stream")

// Verify reads a whole single-stream Ogg Opus file and checks page
// checksums, contiguous sequence numbers, a constant serial, BOS only on
// the first page, EOS only on the last, header placement, continuation
// flags and granule monotonicity. Packets reassembled from the audio pages
// are passed to fn when it is non-nil.
func Verify(src io.Reader, fn func(packet []byte)) (*StreamInfo, error) {
	rd := NewReader(src)
	info := &StreamInfo{}

	var (
		partial     []byte
		openPacket  bool
		lastGranule uint64
		sawEOS      bool
		headerCount int
	)
	fail := func(seq uint32, format string, args ...any) error {
		return fmt.Errorf("%w: page %d: %s", ErrMalformedStream, seq, fmt.Sprintf(format, args...))
	}

	for {
		p, err := rd.NextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return info, err
		}
		if sawEOS {
			return info, fail(p.Sequence, "data after end of stream")
		}

		if info.Pages == 0 {
			if !p.BOS() {
				return info, fail(p.Sequence, "first page lacks BOS flag")
			}
			info.Serial = p.Serial
		} else {
			if p.BOS() {
				return info, fail(p.Sequence, "unexpected BOS flag")
			}
			if p.Serial != info.Serial {
				return info, fail(p.Sequence, "serial %08x, want %08x", p.Serial, info.Serial)
			}
		}
		if p.Sequence != uint32(info.Pages) {
			return info, fail(p.Sequence, "sequence out of order, want %d", info.Pages)
		}
		if p.Continued() != openPacket {
			return info, fail(p.Sequence, "continuation flag %v, want %v", p.Continued(), openPacket)
		}

		info.Pages++
		info.Bytes += int64(p.Size())

		packets, complete := p.Packets()
		switch headerCount {
		case 0:
			if len(packets) != 1 || !complete {
				return info, fail(p.Sequence, "identification page must hold exactly one packet")
			}
			if info.Head, err = ParseOpusHead(packets[0]); err != nil {
				return info, err
			}
			headerCount++
			continue
		case 1:
			if len(packets) != 1 || !complete {
				return info, fail(p.Sequence, "comment page must hold exactly one packet")
			}
			if info.Tags, err = ParseOpusTags(packets[0]); err != nil {
				return info, err
			}
			if p.Granule != 0 {
				return info, fail(p.Sequence, "comment page granule %d, want 0", p.Granule)
			}
			headerCount++
			continue
		}

		for i, pkt := range packets {
			last := i == len(packets)-1
			if openPacket && i == 0 {
				pkt = append(partial, pkt...)
			}
			if last && !complete {
				partial = append(partial[:0:0], pkt...)
				openPacket = true
				break
			}
			openPacket = false
			partial = nil
			info.Packets++
			if fn != nil {
				fn(pkt)
			}
		}
		if p.Granule != GranuleUnknown {
			if p.Granule < lastGranule {
				return info, fail(p.Sequence, "granule %d regresses below %d", p.Granule, lastGranule)
			}
			lastGranule = p.Granule
		}
		if p.EOS() {
			sawEOS = true
			info.Granule = p.Granule
			if openPacket {
				return info, fail(p.Sequence, "stream ends inside a packet")
			}
		}
	}

	if headerCount < 2 {
		return info, fmt.Errorf("%w: missing Opus headers", ErrMalformedStream)
	}
	if !sawEOS {
		return info, fmt.Errorf("%w: no end-of-stream page", ErrMalformedStream)
	}
	return info, nil
}
