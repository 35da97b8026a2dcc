package mocks

import (
	"image"

	"github.com/user/mjpegcap/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	PreviewFunc     func(frame *ports.Frame, caption string, maxWidth int) image.Image
	EncodeImageFunc func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)

	// Recorded calls for verification
	Captions []string
}

func (m *Renderer) Preview(frame *ports.Frame, caption string, maxWidth int) image.Image {
	m.Captions = append(m.Captions, caption)
	if m.PreviewFunc != nil {
		return m.PreviewFunc(frame, caption, maxWidth)
	}
	return image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte{}, nil
}

var _ ports.Renderer = (*Renderer)(nil)
