package ogg

import "errors"

var (
	// ErrInvalidPage is returned for a page without the capture pattern, with
	// an unknown version, or truncated.
	ErrInvalidPage = errors.New("ogg: invalid page")

	// ErrBadChecksum is returned when the stored CRC does not match the page.
	ErrBadChecksum = errors.New("ogg: checksum mismatch")

	// ErrInvalidHeader is returned for a malformed OpusHead or OpusTags packet.
	ErrInvalidHeader = errors.New("ogg: invalid Opus header")

	// ErrStreamClosed is returned when writing after the end-of-stream page.
	ErrStreamClosed = errors.New("ogg: stream already ended")
)
