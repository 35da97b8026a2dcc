package ports

import (
	"image"
)

// Renderer turns decoded frames into viewable images.
type Renderer interface {
	// Preview converts an NV12 frame to RGB, scales it to fit maxWidth
	// (0 keeps the original size) and draws caption in a bar below the picture.
	Preview(frame *Frame, caption string, maxWidth int) image.Image

	// EncodeImage encodes an image to the specified format.
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)
}

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatPNG
)
