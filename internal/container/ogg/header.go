package ogg

import (
	"encoding/binary"
	"fmt"
)

const (
	opusHeadMagic = "OpusHead"
	opusTagsMagic = "OpusTags"
	opusHeadSize  = 19

	// DefaultPreSkip is 80 ms at 48 kHz.
	DefaultPreSkip = 3840

	// maxVendorLength keeps OpusTags on a single page.
	maxVendorLength = 4096
)

// OpusHead is the identification header of an Ogg Opus stream.
type OpusHead struct {
	Version         uint8
	Channels        uint8
	PreSkip         uint16
	InputSampleRate uint32
	OutputGain      int16
	MappingFamily   uint8
}

// Encode returns the 19-byte packet for mapping family 0.
func (h OpusHead) Encode() []byte {
	b := make([]byte, opusHeadSize)
	copy(b, opusHeadMagic)
	b[8] = h.Version
	b[9] = h.Channels
	binary.LittleEndian.PutUint16(b[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(b[12:16], h.InputSampleRate)
	binary.LittleEndian.PutUint16(b[16:18], uint16(h.OutputGain))
	b[18] = h.MappingFamily
	return b
}

// ParseOpusHead decodes an identification header.
func ParseOpusHead(b []byte) (OpusHead, error) {
	if len(b) < opusHeadSize || string(b[:8]) != opusHeadMagic {
		return OpusHead{}, fmt.Errorf("%w: not an OpusHead packet", ErrInvalidHeader)
	}
	h := OpusHead{
		Version:         b[8],
		Channels:        b[9],
		PreSkip:         binary.LittleEndian.Uint16(b[10:12]),
		InputSampleRate: binary.LittleEndian.Uint32(b[12:16]),
		OutputGain:      int16(binary.LittleEndian.Uint16(b[16:18])),
		MappingFamily:   b[18],
	}
	if h.Version&0xF0 != 0 {
		return OpusHead{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, h.Version)
	}
	if h.Channels == 0 {
		return OpusHead{}, fmt.Errorf("%w: zero channels", ErrInvalidHeader)
	}
	return h, nil
}

// OpusTags is the comment header. Comments are "KEY=value" strings.
type OpusTags struct {
	Vendor   string
	Comments []string
}

// Encode returns the comment header packet.
func (t OpusTags) Encode() []byte {
	n := 8 + 4 + len(t.Vendor) + 4
	for _, c := range t.Comments {
		n += 4 + len(c)
	}
	b := make([]byte, 0, n)
	b = append(b, opusTagsMagic...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Vendor)))
	b = append(b, t.Vendor...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Comments)))
	for _, c := range t.Comments {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(c)))
		b = append(b, c...)
	}
	return b
}

// ParseOpusTags decodes a comment header.
func ParseOpusTags(b []byte) (OpusTags, error) {
	if len(b) < 16 || string(b[:8]) != opusTagsMagic {
		return OpusTags{}, fmt.Errorf("%w: not an OpusTags packet", ErrInvalidHeader)
	}
	b = b[8:]
	readString := func() (string, bool) {
		if len(b) < 4 {
			return "", false
		}
		n := binary.LittleEndian.Uint32(b)
		b = b[4:]
		if uint64(n) > uint64(len(b)) {
			return "", false
		}
		s := string(b[:n])
		b = b[n:]
		return s, true
	}

	var t OpusTags
	var ok bool
	if t.Vendor, ok = readString(); !ok {
		return OpusTags{}, fmt.Errorf("%w: truncated vendor", ErrInvalidHeader)
	}
	if len(b) < 4 {
		return OpusTags{}, fmt.Errorf("%w: missing comment count", ErrInvalidHeader)
	}
	count := binary.LittleEndian.Uint32(b)
	b = b[4:]
	for i := uint32(0); i < count; i++ {
		c, ok := readString()
		if !ok {
			return OpusTags{}, fmt.Errorf("%w: truncated comment %d", ErrInvalidHeader, i)
		}
		t.Comments = append(t.Comments, c)
	}
	return t, nil
}
