// Package ggrenderer provides a renderer implementation using the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/user/mjpegcap/pkg/nv12"
	"github.com/user/mjpegcap/pkg/ports"
)

// captionHeight is the height of the bar drawn below the picture.
const captionHeight = 20

var (
	captionBackground = color.RGBA{0x20, 0x20, 0x20, 0xFF}
	captionForeground = color.White
)

// Renderer implements ports.Renderer using the gg library.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Preview converts frame to RGB, scales it to fit maxWidth and draws caption
// in a bar below the picture with gg's built-in face.
func (r *Renderer) Preview(frame *ports.Frame, caption string, maxWidth int) image.Image {
	var picture image.Image = nv12.ToRGBA(frame)

	width, height := frame.Width, frame.Height
	if maxWidth > 0 && width > maxWidth {
		height = height * maxWidth / width
		width = maxWidth
		picture = scale(picture, width, height)
	}

	if caption == "" {
		return picture
	}

	dc := gg.NewContext(width, height+captionHeight)
	dc.SetColor(captionBackground)
	dc.Clear()
	dc.DrawImage(picture, 0, 0)
	dc.SetColor(captionForeground)
	dc.DrawStringAnchored(caption, 4, float64(height)+captionHeight/2, 0, 0.35)
	return dc.Image()
}

// EncodeImage encodes an image to the specified format.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		opts := &jpeg.Options{Quality: quality}
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

func scale(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

var _ ports.Renderer = (*Renderer)(nil)
