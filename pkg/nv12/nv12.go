// Package nv12 converts between Go images and NV12 frame buffers.
//
// An NV12 buffer holds a full resolution luma plane of stride*height bytes
// followed by an interleaved CbCr plane of stride*((height+1)/2) bytes.
// Samples are BT.601 limited range (Y 16-235, Cb/Cr 16-240), as hardware
// decoders produce them.
package nv12

import (
	"image"
	"image/color"
	"time"

	"github.com/user/mjpegcap/pkg/ports"
)

// Stride returns the row size used for a frame of the given width.
// Rows are padded to an even number of bytes so each chroma pair is complete.
func Stride(width int) int {
	return (width + 1) &^ 1
}

// Size returns the number of bytes of an NV12 buffer.
func Size(width, height, stride int) int {
	return stride*height + stride*((height+1)/2)
}

// PackedSize returns the size of a frame without row padding: width bytes per
// luma row and width rounded up to even per chroma row.
func PackedSize(width, height int) int {
	return width*height + Stride(width)*((height+1)/2)
}

// LimitedY maps a full range (JFIF) luma value into limited range.
func LimitedY(v uint8) uint8 {
	return uint8(16 + (int(v)*219+127)/255)
}

// LimitedC maps a full range chroma value into limited range.
func LimitedC(v uint8) uint8 {
	d := (int(v) - 128) * 224
	if d >= 0 {
		d += 127
	} else {
		d -= 127
	}
	return uint8(128 + d/255)
}

// FromImage converts any decoded image into an NV12 frame.
// Decoded JPEG images are full range and are scaled into limited range.
// *image.YCbCr and *image.Gray are converted without a round trip through RGB.
func FromImage(img image.Image, timestamp time.Duration) *ports.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := Stride(w)
	frame := &ports.Frame{
		Data:      make([]byte, Size(w, h, stride)),
		Width:     w,
		Height:    h,
		Stride:    stride,
		Timestamp: timestamp,
	}

	switch src := img.(type) {
	case *image.YCbCr:
		fromYCbCr(frame, src)
	case *image.Gray:
		fromGray(frame, src)
	default:
		fromGeneric(frame, img)
	}
	return frame
}

func fromYCbCr(frame *ports.Frame, src *image.YCbCr) {
	b := src.Bounds()
	yPlane := frame.Y()
	uvPlane := frame.UV()

	for y := 0; y < frame.Height; y++ {
		row := yPlane[y*frame.Stride:]
		for x := 0; x < frame.Width; x++ {
			row[x] = LimitedY(src.Y[src.YOffset(b.Min.X+x, b.Min.Y+y)])
		}
	}

	// Each output chroma sample averages the source chroma under its 2x2 block.
	// For 4:2:0 input this degenerates to a copy.
	for cy := 0; cy < frame.ChromaHeight(); cy++ {
		row := uvPlane[cy*frame.Stride:]
		for cx := 0; cx < frame.Stride/2; cx++ {
			var cb, cr, n int
			for dy := 0; dy < 2; dy++ {
				py := cy*2 + dy
				if py >= frame.Height {
					continue
				}
				for dx := 0; dx < 2; dx++ {
					px := cx*2 + dx
					if px >= frame.Width {
						continue
					}
					off := src.COffset(b.Min.X+px, b.Min.Y+py)
					cb += int(src.Cb[off])
					cr += int(src.Cr[off])
					n++
				}
			}
			if n == 0 {
				row[cx*2] = 128
				row[cx*2+1] = 128
				continue
			}
			row[cx*2] = LimitedC(uint8((cb + n/2) / n))
			row[cx*2+1] = LimitedC(uint8((cr + n/2) / n))
		}
	}
}

func fromGray(frame *ports.Frame, src *image.Gray) {
	b := src.Bounds()
	yPlane := frame.Y()
	for y := 0; y < frame.Height; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < frame.Width; x++ {
			yPlane[y*frame.Stride+x] = LimitedY(row[x])
		}
	}
	uv := frame.UV()
	for i := range uv {
		uv[i] = 128
	}
}

func fromGeneric(frame *ports.Frame, img image.Image) {
	b := img.Bounds()
	yPlane := frame.Y()
	uvPlane := frame.UV()
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			c := color.YCbCrModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.YCbCr)
			yPlane[y*frame.Stride+x] = LimitedY(c.Y)
			if x%2 == 0 && y%2 == 0 {
				off := (y/2)*frame.Stride + x
				uvPlane[off] = LimitedC(c.Cb)
				uvPlane[off+1] = LimitedC(c.Cr)
			}
		}
	}
}

// ToRGBA converts an NV12 frame to RGBA using BT.601 limited range coefficients.
func ToRGBA(frame *ports.Frame) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	yPlane := frame.Y()
	uvPlane := frame.UV()

	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			c := int(yPlane[y*frame.Stride+x]) - 16
			uvOff := (y/2)*frame.Stride + (x/2)*2
			d := int(uvPlane[uvOff]) - 128
			e := int(uvPlane[uvOff+1]) - 128

			r := clamp((298*c + 409*e + 128) >> 8)
			g := clamp((298*c - 100*d - 208*e + 128) >> 8)
			bl := clamp((298*c + 516*d + 128) >> 8)

			i := rgba.PixOffset(x, y)
			rgba.Pix[i+0] = r
			rgba.Pix[i+1] = g
			rgba.Pix[i+2] = bl
			rgba.Pix[i+3] = 255
		}
	}
	return rgba
}

// Pack returns the frame in the layout ffmpeg reads as rawvideo nv12:
// width bytes per luma row, then (height+1)/2 chroma rows of width rounded
// up to even.
func Pack(frame *ports.Frame) []byte {
	w := frame.Width
	cw := Stride(w)
	if frame.Stride == w && cw == w {
		return frame.Data[:PackedSize(frame.Width, frame.Height)]
	}
	out := make([]byte, 0, PackedSize(frame.Width, frame.Height))
	yPlane := frame.Y()
	for y := 0; y < frame.Height; y++ {
		out = append(out, yPlane[y*frame.Stride:y*frame.Stride+w]...)
	}
	uvPlane := frame.UV()
	for y := 0; y < frame.ChromaHeight(); y++ {
		out = append(out, uvPlane[y*frame.Stride:y*frame.Stride+cw]...)
	}
	return out
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
