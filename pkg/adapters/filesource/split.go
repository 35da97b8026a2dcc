package filesource

import (
	"bytes"
	"errors"
)

var (
	// ErrTruncated is returned when a JPEG image ends before its EOI marker.
	ErrTruncated = errors.New("filesource: truncated JPEG image")

	// ErrMalformed is returned when the marker structure of an image is invalid.
	ErrMalformed = errors.New("filesource: malformed JPEG marker stream")
)

var soi = []byte{0xFF, 0xD8}

// Split cuts a motion JPEG byte stream into individual JPEG images.
//
// Images are delimited by walking the marker segments rather than searching
// for EOI, so thumbnails embedded in APPn segments do not end an image early.
// Bytes between images are ignored. A truncated final image is dropped.
func Split(data []byte) ([][]byte, error) {
	var images [][]byte
	pos := 0
	for {
		start := bytes.Index(data[pos:], soi)
		if start < 0 {
			return images, nil
		}
		start += pos

		end, err := imageEnd(data, start)
		if errors.Is(err, ErrTruncated) && len(images) > 0 {
			return images, nil
		}
		if err != nil {
			return images, err
		}
		images = append(images, data[start:end])
		pos = end
	}
}

// imageEnd returns the offset just past the EOI marker of the image at start.
func imageEnd(data []byte, start int) (int, error) {
	p := start + len(soi)
	for {
		if p+1 >= len(data) {
			return 0, ErrTruncated
		}
		if data[p] != 0xFF {
			return 0, ErrMalformed
		}

		marker := data[p+1]
		switch {
		case marker == 0xFF:
			// Fill byte before a marker.
			p++
			continue
		case marker == 0xD9:
			return p + 2, nil
		case isStandalone(marker):
			p += 2
			continue
		}

		if p+3 >= len(data) {
			return 0, ErrTruncated
		}
		length := int(data[p+2])<<8 | int(data[p+3])
		if length < 2 {
			return 0, ErrMalformed
		}
		p += 2 + length

		if marker == 0xDA {
			// Entropy-coded data runs until a marker that is neither a stuffed
			// zero nor a restart marker.
			for {
				if p+1 >= len(data) {
					return 0, ErrTruncated
				}
				if data[p] == 0xFF && data[p+1] != 0x00 && !isRestart(data[p+1]) {
					break
				}
				p++
			}
		}
	}
}

func isRestart(marker byte) bool {
	return marker >= 0xD0 && marker <= 0xD7
}

// isStandalone reports markers that carry no length field.
func isStandalone(marker byte) bool {
	return marker == 0xD8 || marker == 0x01 || isRestart(marker)
}
