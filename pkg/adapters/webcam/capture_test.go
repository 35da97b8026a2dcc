package webcam

import (
	"errors"
	"testing"
	"time"

	"github.com/user/mjpegcap/pkg/ports"
)

func TestSortDevicePaths(t *testing.T) {
	paths := []string{"/dev/video10", "/dev/video2", "/dev/video0", "/dev/video1"}
	sortDevicePaths(paths)

	want := []string{"/dev/video0", "/dev/video1", "/dev/video2", "/dev/video10"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, paths)
		}
	}
}

func TestCheckRequest(t *testing.T) {
	tests := []struct {
		name    string
		mt      ports.MediaType
		wantErr bool
	}{
		{"mjpeg", ports.MediaType{Subtype: ports.SubtypeMJPG, Width: 320, Height: 240}, false},
		{"yuy2", ports.MediaType{Subtype: ports.SubtypeYUY2, Width: 320, Height: 240}, true},
		{"no size", ports.MediaType{Subtype: ports.SubtypeMJPG}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRequest(tt.mt)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrFormatUnsupported) {
				t.Errorf("expected ErrFormatUnsupported, got %v", err)
			}
		})
	}
}

func TestHasFormat(t *testing.T) {
	formats := []ports.MediaType{
		{Subtype: ports.SubtypeYUYV, Width: 320, Height: 240},
		{Subtype: ports.SubtypeMJPG, Width: 640, Height: 480},
	}
	if !hasFormat(formats, ports.SubtypeMJPG, 640, 480) {
		t.Error("expected MJPG 640x480 to be found")
	}
	if hasFormat(formats, ports.SubtypeMJPG, 320, 240) {
		t.Error("did not expect MJPG 320x240")
	}
}

func TestTickSample(t *testing.T) {
	s := tickSample(40 * time.Millisecond)
	if s.Flags&ports.FlagStreamTick == 0 {
		t.Error("expected the stream tick flag")
	}
	if len(s.Data) != 0 || s.Timestamp != 40*time.Millisecond {
		t.Errorf("unexpected tick sample %d bytes at %s", len(s.Data), s.Timestamp)
	}
	s.Release()
}
