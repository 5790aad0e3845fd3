package types

import "fmt"

// Image is a dense 8-bit image stored row-major, channel-last (HWC)
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// NewImage allocates a zeroed image of the given shape
func NewImage(height, width, channels int) Image {
	return Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]uint8, height*width*channels),
	}
}

// Offset returns the index of channel c of pixel (y, x) in Pix
func (im Image) Offset(y, x, c int) int {
	return (y*im.Width+x)*im.Channels + c
}

// At returns channel c of pixel (y, x)
func (im Image) At(y, x, c int) uint8 {
	return im.Pix[im.Offset(y, x, c)]
}

// Shape returns (height, width, channels)
func (im Image) Shape() [3]int {
	return [3]int{im.Height, im.Width, im.Channels}
}

// String implements fmt.Stringer
func (im Image) String() string {
	return fmt.Sprintf("%dx%dx%d", im.Height, im.Width, im.Channels)
}

// FloatImage is a normalized image with samples in [0,1], same layout as Image
type FloatImage struct {
	Height   int
	Width    int
	Channels int
	Pix      []float64
}

// PairedSample holds one low-resolution image and its high-resolution counterpart
type PairedSample struct {
	Name    string
	LowRes  Image
	HighRes Image
}

// NormalizedPair is an augmented sample ready to be batched
type NormalizedPair struct {
	Name    string
	LowRes  FloatImage
	HighRes FloatImage
}

// DecodeMode selects how a Record carries its images
type DecodeMode int

const (
	// Paths means the record references image files on disk
	Paths DecodeMode = iota
	// Embedded means the record carries encoded image payloads
	Embedded
)

// String implements fmt.Stringer
func (m DecodeMode) String() string {
	switch m {
	case Paths:
		return "paths"
	case Embedded:
		return "embedded"
	default:
		return fmt.Sprintf("DecodeMode(%d)", int(m))
	}
}

// ParseDecodeMode converts "paths" or "embedded" into a DecodeMode
func ParseDecodeMode(s string) (DecodeMode, error) {
	switch s {
	case "paths", "path", "":
		return Paths, nil
	case "embedded", "binary", "bin":
		return Embedded, nil
	default:
		return Paths, fmt.Errorf("unknown decode mode %q (use paths or embedded)", s)
	}
}

// Record is one opaque dataset entry. Only the fields of the selected DecodeMode are used.
type Record struct {
	Name         string `json:"name"`
	HighResBytes []byte `json:"-"`
	LowResBytes  []byte `json:"-"`
	HighResPath  string `json:"high_res_path,omitempty"`
	LowResPath   string `json:"low_res_path,omitempty"`
}
