// Package decoder turns camera frames into recognized codes.
package decoder

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/codescan/internal/focus"
)

// Symbology is the encoding scheme of a scannable code.
type Symbology string

const (
	QR         Symbology = "qr"
	DataMatrix Symbology = "datamatrix"
	Aztec      Symbology = "aztec"
	PDF417     Symbology = "pdf417"
	Code128    Symbology = "code128"
	Code39     Symbology = "code39"
	Code93     Symbology = "code93"
	EAN8       Symbology = "ean8"
	EAN13      Symbology = "ean13"
	UPCA       Symbology = "upca"
	UPCE       Symbology = "upce"
	ITF        Symbology = "itf"
	Codabar    Symbology = "codabar"
)

// AllSymbologies returns every supported symbology.
func AllSymbologies() []Symbology {
	return []Symbology{
		QR, DataMatrix, Aztec, PDF417,
		Code128, Code39, Code93, EAN8, EAN13, UPCA, UPCE, ITF, Codabar,
	}
}

// Linear reports whether s is a one-dimensional barcode.
func (s Symbology) Linear() bool {
	switch s {
	case QR, DataMatrix, Aztec, PDF417:
		return false
	default:
		return true
	}
}

// ParseSymbology converts a configuration name into a Symbology.
func ParseSymbology(s string) (Symbology, error) {
	name := Symbology(strings.ToLower(strings.TrimSpace(s)))
	for _, sym := range AllSymbologies() {
		if sym == name {
			return sym, nil
		}
	}
	return "", fmt.Errorf("unknown symbology %q", s)
}

// ParseSymbologies parses a list of names. An empty list means all.
func ParseSymbologies(names []string) ([]Symbology, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Symbology, 0, len(names))
	for _, n := range names {
		s, err := ParseSymbology(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Code is one recognized code in a frame.
type Code struct {
	Symbology Symbology `json:"symbology"`
	Payload   string    `json:"payload"`

	// Bounds and Corners are normalized to the frame.
	Bounds  focus.Rect    `json:"bounds"`
	Corners []focus.Point `json:"corners,omitempty"`

	// PreviewCorners are Corners in preview surface coordinates.
	PreviewCorners []focus.Point `json:"preview_corners,omitempty"`
}

// Options control a single Decode call.
type Options struct {
	// Symbologies restricts the search. Nil means all supported.
	Symbologies []Symbology

	// Region restricts the search to a frame-normalized rectangle.
	// The zero value means the whole frame.
	Region focus.Rect

	TryHarder bool
}

// Wants reports whether opts allow s.
func (o Options) Wants(s Symbology) bool {
	if len(o.Symbologies) == 0 {
		return true
	}
	for _, want := range o.Symbologies {
		if want == s {
			return true
		}
	}
	return false
}

// Decoder defines the interface for code recognition implementations.
type Decoder interface {
	// Decode analyzes a frame and returns the recognized codes.
	// Returns an empty slice if nothing is found.
	Decode(frame *gocv.Mat, opts Options) ([]Code, error)

	// Close releases any resources held by the decoder.
	Close() error
}
