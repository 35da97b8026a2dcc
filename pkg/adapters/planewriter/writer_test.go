package planewriter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/user/mjpegcap/pkg/adapters/logger"
	"github.com/user/mjpegcap/pkg/mocks"
	"github.com/user/mjpegcap/pkg/ports"
)

// testFrame builds a frame whose luma bytes encode their column and whose
// chroma pairs are (Cb=40, Cr=220).
func testFrame(width, height, stride int) *ports.Frame {
	chromaHeight := (height + 1) / 2
	data := make([]byte, stride*height+stride*chromaHeight)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*stride+x] = uint8(x * 3)
		}
	}
	uv := data[stride*height:]
	for i := 0; i+1 < len(uv); i += 2 {
		uv[i], uv[i+1] = 40, 220
	}
	return &ports.Frame{Data: data, Width: width, Height: height, Stride: stride}
}

func decodeBMP(t *testing.T, data []byte) *image.Paletted {
	t.Helper()
	if len(data) < 54 || data[0] != 'B' || data[1] != 'M' {
		t.Fatal("missing BMP file header")
	}
	if bits := binary.LittleEndian.Uint16(data[28:30]); bits != 8 {
		t.Fatalf("expected 8 bits per pixel, got %d", bits)
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode BMP: %v", err)
	}
	p, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("expected a paletted image, got %T", img)
	}
	if len(p.Palette) != 256 {
		t.Fatalf("expected 256 palette entries, got %d", len(p.Palette))
	}
	return p
}

func TestWriteFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := New(fs, Options{Dir: "/out"}, logger.NewNoop())

	if err := w.WriteFrame(testFrame(32, 24, 32)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	yData, ok := fs.GetFile("/out/planeY.bmp")
	if !ok {
		t.Fatal("planeY.bmp not written")
	}
	luma := decodeBMP(t, yData)
	if b := luma.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("expected 32x24 luma plane, got %dx%d", b.Dx(), b.Dy())
	}
	if got := luma.ColorIndexAt(5, 10); got != 15 {
		t.Errorf("luma pixel (5,10) = %d, want 15", got)
	}

	uvData, ok := fs.GetFile("/out/planeUV.bmp")
	if !ok {
		t.Fatal("planeUV.bmp not written")
	}
	chroma := decodeBMP(t, uvData)
	if b := chroma.Bounds(); b.Dx() != 32 || b.Dy() != 12 {
		t.Errorf("expected 32x12 chroma plane, got %dx%d", b.Dx(), b.Dy())
	}
	if cb, cr := chroma.ColorIndexAt(4, 3), chroma.ColorIndexAt(5, 3); cb != 40 || cr != 220 {
		t.Errorf("expected interleaved Cb/Cr 40/220, got %d/%d", cb, cr)
	}

	paths := w.Paths()
	if len(paths) != 2 || paths[0] != "/out/planeY.bmp" || paths[1] != "/out/planeUV.bmp" {
		t.Errorf("unexpected paths %v", paths)
	}
}

func TestWriteFrameIgnoresStridePadding(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := New(fs, Options{Dir: "/out", YName: "y.bmp", UVName: "uv.bmp"}, logger.NewNoop())

	frame := testFrame(10, 6, 16)
	// Padding bytes must not reach the bitmap.
	for y := 0; y < frame.Height; y++ {
		for x := frame.Width; x < frame.Stride; x++ {
			frame.Data[y*frame.Stride+x] = 255
		}
	}
	if err := w.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	data, _ := fs.GetFile("/out/y.bmp")
	luma := decodeBMP(t, data)
	if b := luma.Bounds(); b.Dx() != 10 || b.Dy() != 6 {
		t.Fatalf("expected 10x6, got %dx%d", b.Dx(), b.Dy())
	}
	for y := 0; y < 6; y++ {
		if got := luma.ColorIndexAt(9, y); got != 27 {
			t.Errorf("row %d: last pixel = %d, want 27", y, got)
		}
	}
}

func TestWriteFrameShortBuffer(t *testing.T) {
	w := New(mocks.NewFileSystem(), Options{}, logger.NewNoop())
	frame := testFrame(8, 8, 8)
	frame.Data = frame.Data[:70]

	if err := w.WriteFrame(frame); !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
	if w.Paths() != nil {
		t.Error("expected no paths after a failed write")
	}
}

func TestWriteFrameFileError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFileFunc = func(path string, data []byte) error {
		return errors.New("disk full")
	}
	w := New(fs, Options{Dir: "/out"}, logger.NewNoop())
	if err := w.WriteFrame(testFrame(4, 4, 4)); err == nil {
		t.Error("expected write error")
	}
}
