package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"scancapture/internal/model"
	"scancapture/internal/service/imaging"
)

const DefaultJPEGQuality = 90

// Encoder writes color frames as JPEG and depth frames as 16-bit PNG.
type Encoder struct {
	Quality int
}

func NewEncoder() *Encoder {
	return &Encoder{Quality: DefaultJPEGQuality}
}

func (e *Encoder) ColorExt() string { return ".jpg" }
func (e *Encoder) DepthExt() string { return ".png" }

func (e *Encoder) EncodeColor(img *model.Image) ([]byte, error) {
	if !img.Valid() || img.Format == model.FormatDepth16 {
		return nil, imaging.ErrInvalidImage
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap color image: %v", err)
	}
	defer mat.Close()

	if img.Format == model.FormatRGB24 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		if err := gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR); err != nil {
			return nil, fmt.Errorf("failed to convert color image: %v", err)
		}
		return encode(gocv.JPEGFileExt, bgr, []int{int(gocv.IMWriteJpegQuality), e.Quality})
	}
	return encode(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), e.Quality})
}

func (e *Encoder) EncodeDepth(img *model.Image) ([]byte, error) {
	if !img.Valid() || img.Format != model.FormatDepth16 {
		return nil, imaging.ErrInvalidImage
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV16UC1, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap depth image: %v", err)
	}
	defer mat.Close()

	return encode(gocv.PNGFileExt, mat, nil)
}

func encode(ext gocv.FileExt, mat gocv.Mat, params []int) ([]byte, error) {
	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if len(params) > 0 {
		buf, err = gocv.IMEncodeWithParams(ext, mat, params)
	} else {
		buf, err = gocv.IMEncode(ext, mat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %v", ext, err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
