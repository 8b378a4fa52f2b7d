package container

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"audio/ogg", Ogg},
		{"audio/ogg; codecs=opus", Ogg},
		{"OGG", Ogg},
		{"", Ogg},
		{"audio/webm", WebM},
		{"audio/wave", Wav},
		{"wav", Wav},
	}
	for _, tc := range tests {
		got, err := ParseKind(tc.in)
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseKind("video/mp4"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ParseKind(video/mp4) err = %v, want ErrUnsupported", err)
	}
}

func TestKindMetadata(t *testing.T) {
	if Ogg.MIMEType() != "audio/ogg" || Ogg.Extension() != ".ogg" {
		t.Errorf("Ogg metadata = %s %s", Ogg.MIMEType(), Ogg.Extension())
	}
	if Wav.String() != "wav" {
		t.Errorf("Wav.String() = %s", Wav.String())
	}
}
