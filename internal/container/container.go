// Package container names the output formats a recording can be written in.
package container

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is an output container format, resolved once when a session is built.
type Kind int

const (
	// Ogg is Ogg-encapsulated Opus (RFC 3533, RFC 7845).
	Ogg Kind = iota
	// WebM is Matroska-encapsulated Opus. Declared, not implemented.
	WebM
	// Wav is RIFF/WAVE with 16-bit PCM.
	Wav
)

// ErrUnsupported is returned for a Kind that has no muxer.
var ErrUnsupported = errors.New("container: unsupported format")

// String returns the short name of the kind.
func (k Kind) String() string {
	switch k {
	case Ogg:
		return "ogg"
	case WebM:
		return "webm"
	case Wav:
		return "wav"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MIMEType returns the media type files of this kind are served as.
func (k Kind) MIMEType() string {
	switch k {
	case Ogg:
		return "audio/ogg"
	case WebM:
		return "audio/webm"
	case Wav:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension including the dot.
func (k Kind) Extension() string {
	switch k {
	case Ogg:
		return ".ogg"
	case WebM:
		return ".webm"
	case Wav:
		return ".wav"
	default:
		return ".bin"
	}
}

// ParseKind maps a MIME type or short name to a Kind. MIME parameters such as
// "; codecs=opus" are ignored.
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	switch v {
	case "", "ogg", "opus", "audio/ogg", "audio/opus":
		return Ogg, nil
	case "webm", "audio/webm":
		return WebM, nil
	case "wav", "wave", "audio/wav", "audio/wave", "audio/x-wav":
		return Wav, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
}
