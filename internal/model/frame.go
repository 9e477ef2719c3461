package model

import "fmt"

// PixelFormat describes the layout of Image.Pix.
type PixelFormat int

const (
	FormatRGB24 PixelFormat = iota
	FormatBGR24
	FormatDepth16
)

// BytesPerPixel returns the packed size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB24, FormatBGR24:
		return 3
	case FormatDepth16:
		return 2
	default:
		return 0
	}
}

// Image is a tightly packed pixel buffer. Depth16 samples are little-endian millimetres.
type Image struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// Valid reports whether the image has a positive size and a buffer that matches it.
func (img *Image) Valid() bool {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return false
	}
	bpp := img.Format.BytesPerPixel()
	return bpp > 0 && len(img.Pix) == img.Width*img.Height*bpp
}

// Frame is one synchronized sample from a frame source.
// Pose maps camera space to world space (left-handed, Y-up, Z-forward).
type Frame struct {
	Timestamp float64
	Color     *Image
	Depth     *Image
	Pose      Mat4
}

// Intrinsics is a pinhole camera model.
type Intrinsics struct {
	Width  int
	Height int
	Fx     float64
	Fy     float64
	Cx     float64
	Cy     float64
}

func (in Intrinsics) Validate() error {
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("intrinsics size must be positive, got %dx%d", in.Width, in.Height)
	}
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("focal lengths must be positive, got fx=%g fy=%g", in.Fx, in.Fy)
	}
	return nil
}
