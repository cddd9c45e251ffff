package displaycap

import (
	"testing"

	"github.com/streamcore/capture-core/internal/types"
)

func TestAllocImgMatchesMonitorShape(t *testing.T) {
	h := newHandle(Monitor{Width: 32, Height: 16})
	img, err := h.AllocImg()
	if err != nil {
		t.Fatalf("AllocImg: %v", err)
	}
	if img.Width != 32 || img.Height != 16 || img.RowPitch != 32*4 {
		t.Fatalf("unexpected image shape: %+v", img)
	}
	if len(img.Data) != img.RowPitch*img.Height {
		t.Fatalf("data length %d != rowPitch*height %d", len(img.Data), img.RowPitch*img.Height)
	}
}

func TestCaptureAdvancesFrameCounter(t *testing.T) {
	h := newHandle(Monitor{Width: 8, Height: 8})
	img, _ := h.AllocImg()

	pulled := false
	status := h.Capture(
		func(i *types.Image, captured bool) bool { return true },
		func() (*types.Image, bool) {
			pulled = true
			return img, true
		},
		types.CursorState{},
	)
	if !pulled {
		t.Fatal("expected pull to be called")
	}
	if status != types.CaptureStatusOK {
		t.Fatalf("expected OK status, got %v", status)
	}
	if h.frame != 1 {
		t.Fatalf("expected frame counter to advance, got %d", h.frame)
	}
	if img.CapturedAt == nil {
		t.Fatal("expected CapturedAt to be set")
	}
}

func TestIsHDRFalseByDefault(t *testing.T) {
	h := newHandle(Monitor{Width: 8, Height: 8})
	if h.IsHDR() {
		t.Fatal("expected non-HDR by default")
	}
	if _, ok := h.GetHDRMetadata(); ok {
		t.Fatal("expected no HDR metadata by default")
	}
}
