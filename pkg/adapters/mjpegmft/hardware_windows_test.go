package mjpegmft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/mjpegcap/pkg/adapters/logger"
)

func newTestHardware(t *testing.T) *hardware {
	t.Helper()
	tr, err := newHardware(DefaultCLSID, logger.NewNoop())
	if err != nil {
		t.Skipf("hardware MJPEG decoder not available: %v", err)
	}
	return tr.(*hardware)
}

func TestHardwareCloseAfterCancelledWait(t *testing.T) {
	h := newTestHardware(t)

	// Nothing is streaming, so GetEvent blocks until the context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := h.NextEvent(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if h.pending == nil {
		t.Fatal("expected the event wait to be left pending")
	}

	done := make(chan error, 1)
	go func() { done <- h.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}
	case <-time.After(2 * closeWait):
		t.Fatal("Close did not return")
	}
	if h.ctx != nil || h.pending != nil {
		t.Error("expected transform state to be released")
	}
}

func TestHardwareCloseTwice(t *testing.T) {
	h := newTestHardware(t)
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
