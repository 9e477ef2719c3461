package camera

import (
	"encoding/binary"

	"scancapture/internal/model"
)

// DepthProvider supplies 16-bit depth maps. Implementations may become ready
// late or drop out at runtime.
type DepthProvider interface {
	Name() string
	Ready() bool
	Depth(width, height int) (*model.Image, bool)
}

// DepthChain asks providers in priority order (external sensor first, then the
// platform depth manager) and returns the first depth map it gets. An empty
// chain, or one with nothing ready, yields no depth and color capture goes on.
type DepthChain []DepthProvider

func (c DepthChain) Depth(width, height int) (*model.Image, bool) {
	for _, p := range c {
		if p == nil || !p.Ready() {
			continue
		}
		if img, ok := p.Depth(width, height); ok && img.Valid() {
			return img, true
		}
	}
	return nil, false
}

// Active returns the name of the provider that would answer now, or "none".
func (c DepthChain) Active() string {
	for _, p := range c {
		if p != nil && p.Ready() {
			return p.Name()
		}
	}
	return "none"
}

// SyntheticDepth reports a flat wall at a fixed distance.
type SyntheticDepth struct {
	Millimetres uint16
}

func NewSyntheticDepth() *SyntheticDepth {
	return &SyntheticDepth{Millimetres: 1000}
}

func (d *SyntheticDepth) Name() string { return "synthetic" }

func (d *SyntheticDepth) Ready() bool { return true }

func (d *SyntheticDepth) Depth(width, height int) (*model.Image, bool) {
	if width <= 0 || height <= 0 {
		return nil, false
	}
	pix := make([]byte, width*height*2)
	for i := 0; i < len(pix); i += 2 {
		binary.LittleEndian.PutUint16(pix[i:], d.Millimetres)
	}
	return &model.Image{Width: width, Height: height, Format: model.FormatDepth16, Pix: pix}, true
}
