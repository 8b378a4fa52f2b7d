package ogg

import (
	"encoding/binary"
	"fmt"
)

// Header type flags.
const (
	FlagContinued byte = 0x01
	FlagBOS       byte = 0x02
	FlagEOS       byte = 0x04
)

const (
	capturePattern = "OggS"
	headerSize     = 27

	// MaxSegments is the largest segment table a page can carry.
	MaxSegments = 255
	// MaxSegmentSize is the largest lacing value.
	MaxSegmentSize = 255
)

// GranuleUnknown marks a page on which no packet completes.
const GranuleUnknown = ^uint64(0)

// Page is one decoded Ogg page.
type Page struct {
	HeaderType byte
	Granule    uint64
	Serial     uint32
	Sequence   uint32
	Checksum   uint32
	Segments   []byte
	Data       []byte
}

func (p *Page) Continued() bool { return p.HeaderType&FlagContinued != 0 }
func (p *Page) BOS() bool       { return p.HeaderType&FlagBOS != 0 }
func (p *Page) EOS() bool       { return p.HeaderType&FlagEOS != 0 }

// Size is the encoded length of the page.
func (p *Page) Size() int {
	return headerSize + len(p.Segments) + len(p.Data)
}

// Encode serialises the page and fills in its checksum.
func (p *Page) Encode() []byte {
	buf := make([]byte, p.Size())
	copy(buf, capturePattern)
	buf[4] = 0
	buf[5] = p.HeaderType
	binary.LittleEndian.PutUint64(buf[6:14], p.Granule)
	binary.LittleEndian.PutUint32(buf[14:18], p.Serial)
	binary.LittleEndian.PutUint32(buf[18:22], p.Sequence)
	// checksum field stays zero while the CRC is computed
	buf[26] = byte(len(p.Segments))
	copy(buf[headerSize:], p.Segments)
	copy(buf[headerSize+len(p.Segments):], p.Data)

	p.Checksum = Checksum(buf)
	binary.LittleEndian.PutUint32(buf[22:26], p.Checksum)
	return buf
}

// ParsePage decodes the page at the start of b and returns it with the number
// of bytes consumed. The checksum is verified.
func ParsePage(b []byte) (*Page, int, error) {
	if len(b) < headerSize {
		return nil, 0, fmt.Errorf("%w: short header (%d bytes)", ErrInvalidPage, len(b))
	}
	if string(b[:4]) != capturePattern {
		return nil, 0, fmt.Errorf("%w: missing capture pattern", ErrInvalidPage)
	}
	if b[4] != 0 {
		return nil, 0, fmt.Errorf("%w: version %d", ErrInvalidPage, b[4])
	}
	nseg := int(b[26])
	if len(b) < headerSize+nseg {
		return nil, 0, fmt.Errorf("%w: truncated segment table", ErrInvalidPage)
	}
	segments := b[headerSize : headerSize+nseg]
	dataLen := 0
	for _, s := range segments {
		dataLen += int(s)
	}
	total := headerSize + nseg + dataLen
	if len(b) < total {
		return nil, 0, fmt.Errorf("%w: truncated body", ErrInvalidPage)
	}

	p := &Page{
		HeaderType: b[5],
		Granule:    binary.LittleEndian.Uint64(b[6:14]),
		Serial:     binary.LittleEndian.Uint32(b[14:18]),
		Sequence:   binary.LittleEndian.Uint32(b[18:22]),
		Checksum:   binary.LittleEndian.Uint32(b[22:26]),
		Segments:   append([]byte(nil), segments...),
		Data:       append([]byte(nil), b[headerSize+nseg:total]...),
	}

	crc := crcUpdate(0, b[:22])
	crc = crcUpdate(crc, []byte{0, 0, 0, 0})
	crc = crcUpdate(crc, b[26:total])
	if crc != p.Checksum {
		return nil, 0, fmt.Errorf("%w: page %d stored %08x computed %08x", ErrBadChecksum, p.Sequence, p.Checksum, crc)
	}
	return p, total, nil
}

// Lacing returns the segment table for a packet of n bytes: n/255 entries
// of 255 followed by n%255. A packet whose length is a multiple of 255 gets
// a terminating zero.
func Lacing(n int) []byte {
	out := make([]byte, 0, n/MaxSegmentSize+1)
	for n >= MaxSegmentSize {
		out = append(out, MaxSegmentSize)
		n -= MaxSegmentSize
	}
	return append(out, byte(n))
}

// Packets splits a page body into its packets. The last element is partial
// (and complete is false) when the final lacing value is 255.
func (p *Page) Packets() (packets [][]byte, complete bool) {
	off, start := 0, 0
	complete = true
	for i, s := range p.Segments {
		off += int(s)
		if s < MaxSegmentSize {
			packets = append(packets, p.Data[start:off])
			start = off
		} else if i == len(p.Segments)-1 {
			packets = append(packets, p.Data[start:off])
			complete = false
		}
	}
	return packets, complete
}
