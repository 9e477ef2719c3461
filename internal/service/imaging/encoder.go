// Package imaging turns captured pixel buffers into the bytes written to a
// session folder.
package imaging

import (
	"errors"
	"fmt"

	"scancapture/internal/model"
)

var ErrInvalidImage = errors.New("invalid image")

// Encoder compresses color and depth images. Implementations must be safe to
// call from the tick goroutine only; they are never shared with the writer.
type Encoder interface {
	EncodeColor(img *model.Image) ([]byte, error)
	EncodeDepth(img *model.Image) ([]byte, error)
	ColorExt() string
	DepthExt() string
}

// RawEncoder writes pixel buffers unchanged. Used headless and in tests.
type RawEncoder struct{}

func (RawEncoder) EncodeColor(img *model.Image) ([]byte, error) {
	return raw(img)
}

func (RawEncoder) EncodeDepth(img *model.Image) ([]byte, error) {
	if img.Valid() && img.Format != model.FormatDepth16 {
		return nil, fmt.Errorf("%w: depth must be 16-bit", ErrInvalidImage)
	}
	return raw(img)
}

func (RawEncoder) ColorExt() string { return ".raw" }
func (RawEncoder) DepthExt() string { return ".raw" }

func raw(img *model.Image) ([]byte, error) {
	if !img.Valid() {
		return nil, ErrInvalidImage
	}
	out := make([]byte, len(img.Pix))
	copy(out, img.Pix)
	return out, nil
}

// FrameFile returns the session-relative path of a frame image, e.g. color/frame_000042.jpg.
func FrameFile(dir string, frameID uint32, ext string) string {
	return fmt.Sprintf("%s/frame_%06d%s", dir, frameID, ext)
}
