// Package wav writes 16-bit PCM RIFF/WAVE data for streams of unknown length.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the length of the canonical RIFF/fmt/data header.
	HeaderSize = 44

	bitsPerSample = 16
	// StreamingSize marks the RIFF and data sizes as unknown.
	StreamingSize = 0xFFFFFFFF
)

// ErrInvalidHeader is returned by ParseHeader for anything but 16-bit PCM.
var ErrInvalidHeader = errors.New("wav: invalid header")

// Format describes the sample layout of a file.
type Format struct {
	SampleRate int
	Channels   int
}

// BlockAlign is the size in bytes of one interleaved sample frame.
func (f Format) BlockAlign() int { return f.Channels * bitsPerSample / 8 }

// Header returns a 44-byte header whose sizes are set to StreamingSize.
func Header(f Format) []byte {
	hdr := make([]byte, HeaderSize)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], StreamingSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(f.SampleRate*f.BlockAlign()))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], StreamingSize)
	return hdr
}

// ParseHeader reads the format and data size from a canonical header.
func ParseHeader(b []byte) (Format, uint32, error) {
	if len(b) < HeaderSize || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Format{}, 0, ErrInvalidHeader
	}
	if tag, bits := binary.LittleEndian.Uint16(b[20:22]), binary.LittleEndian.Uint16(b[34:36]); tag != 1 || bits != bitsPerSample {
		return Format{}, 0, fmt.Errorf("%w: format %d, %d bits", ErrInvalidHeader, tag, bits)
	}
	f := Format{
		Channels:   int(binary.LittleEndian.Uint16(b[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(b[24:28])),
	}
	return f, binary.LittleEndian.Uint32(b[40:44]), nil
}

// AppendPCM16 clamps interleaved float samples to [-1, 1], scales them by
// 0x7FFF and appends them to dst as little-endian int16.
func AppendPCM16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(v*0x7FFF)))
	}
	return dst
}

// PatchSizes rewrites the RIFF and data sizes once the amount of sample data
// written after the header is known. The write offset is restored.
func PatchSizes(ws io.WriteSeeker, dataBytes int64) error {
	if dataBytes < 0 || dataBytes > math.MaxUint32-36 {
		return fmt.Errorf("wav: data size %d out of range", dataBytes)
	}
	cur, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("wav: seek: %w", err)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(36+dataBytes))
	if err := writeAt(ws, 4, b[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[:], uint32(dataBytes))
	if err := writeAt(ws, 40, b[:]); err != nil {
		return err
	}
	if _, err := ws.Seek(cur, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek: %w", err)
	}
	return nil
}

func writeAt(ws io.WriteSeeker, off int64, b []byte) error {
	if _, err := ws.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek: %w", err)
	}
	if _, err := ws.Write(b); err != nil {
		return fmt.Errorf("wav: patch header: %w", err)
	}
	return nil
}
