// Package backend resolves a configured codec backend name to a factory.
package backend

import (
	"fmt"
	"strings"

	"github.com/ankogit/4duk-recorder/internal/codec"
	"github.com/ankogit/4duk-recorder/internal/codec/gopus"
	"github.com/ankogit/4duk-recorder/internal/codec/libopus"
)

// Names of the available backends.
const (
	LibOpus = "libopus"
	GoPus   = "gopus"
)

// Factory returns the codec.Factory registered under name.
func Factory(name string) (codec.Factory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LibOpus:
		return libopus.New, nil
	case GoPus:
		return gopus.New, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec backend %q", codec.ErrInvalidConfig, name)
	}
}

// Vendor returns the OpusTags vendor string for the backend.
func Vendor(name string) string {
	if strings.EqualFold(strings.TrimSpace(name), GoPus) {
		return "libopus (layeh.com/gopus)"
	}
	return libopus.Vendor()
}
