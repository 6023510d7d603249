// Package render rasterizes text and SVG documents into binary frames and
// draws frames as PNG previews.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"github.com/golang/freetype/truetype"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Threshold is the minimum alpha (0-255) for a rasterized pixel to be lit
const Threshold = 128

// ErrEmptySVG is returned for documents without a usable viewBox
var ErrEmptySVG = errors.New("svg document has no viewBox")

var (
	// OnColor is the preview color of a lit pixel
	OnColor = color.RGBA{R: 0x4c, G: 0x6a, B: 0xee, A: 0xff}
	// OffColor is the preview color of a dark pixel
	OffColor = color.RGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff}
)

// Renderer rasterizes into frames of a fixed size
type Renderer struct {
	width  int
	height int
	font   *truetype.Font
	cache  *lru.Cache[string, []int]
}

// NewRenderer creates a renderer for width x height frames
func NewRenderer(width, height int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	cache, err := lru.New[string, []int](128)
	if err != nil {
		return nil, fmt.Errorf("failed to create text cache: %w", err)
	}

	return &Renderer{
		width:  width,
		height: height,
		font:   f,
		cache:  cache,
	}, nil
}

// Text draws text with its top-left corner at (x, y), sized to the frame
// height, and returns the thresholded frame
func (r *Renderer) Text(text string, x, y int) ([]int, error) {
	key := fmt.Sprintf("%d:%d:%s", x, y, text)
	if frame, ok := r.cache.Get(key); ok {
		return append([]int(nil), frame...), nil
	}

	face := truetype.NewFace(r.font, &truetype.Options{
		Size:    float64(r.height),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	img := image.NewAlpha(image.Rect(0, 0, r.width, r.height))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)

	frame := make([]int, r.width*r.height)
	for py := 0; py < r.height; py++ {
		for px := 0; px < r.width; px++ {
			if img.AlphaAt(px, py).A >= Threshold {
				frame[py*r.width+px] = 1
			}
		}
	}

	r.cache.Add(key, frame)
	return append([]int(nil), frame...), nil
}

// SVG scales the document's viewBox onto the frame and returns the
// thresholded frame
func (r *Renderer) SVG(doc string) ([]int, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(doc), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 ||
		math.IsNaN(icon.ViewBox.W) || math.IsNaN(icon.ViewBox.H) {
		return nil, ErrEmptySVG
	}

	icon.SetTarget(0, 0, float64(r.width), float64(r.height))
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	scanner := rasterx.NewScannerGV(r.width, r.height, img, img.Bounds())
	raster := rasterx.NewDasher(r.width, r.height, scanner)
	icon.Draw(raster, 1.0)

	frame := make([]int, r.width*r.height)
	for py := 0; py < r.height; py++ {
		for px := 0; px < r.width; px++ {
			if img.RGBAAt(px, py).A >= Threshold {
				frame[py*r.width+px] = 1
			}
		}
	}
	return frame, nil
}

// PreviewPNG draws frame as a PNG with each pixel scaled to a scale x scale
// block
func PreviewPNG(frame []int, width, height, scale int) ([]byte, error) {
	if width <= 0 || height <= 0 || len(frame) != width*height {
		return nil, fmt.Errorf("frame of %d pixels does not match %dx%d", len(frame), width, height)
	}
	if scale <= 0 {
		scale = 1
	}

	src := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, v := range frame {
		c := OffColor
		if v != 0 {
			c = OnColor
		}
		src.SetRGBA(i%width, i/width, c)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
