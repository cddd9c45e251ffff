package capturetask

import (
	"errors"
	"testing"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/controller"
	"github.com/streamcore/capture-core/internal/imagepool"
	"github.com/streamcore/capture-core/internal/types"
)

type fakeHandle struct {
	name      string
	w, h      int
	captureFn func(push types.PushFunc, pull types.PullFunc, cursor types.CursorState) types.CaptureStatus
}

func (h *fakeHandle) Name() string   { return h.name }
func (h *fakeHandle) Width() int     { return h.w }
func (h *fakeHandle) Height() int    { return h.h }
func (h *fakeHandle) EnvWidth() int  { return h.w }
func (h *fakeHandle) EnvHeight() int { return h.h }
func (h *fakeHandle) OffsetX() int   { return 0 }
func (h *fakeHandle) OffsetY() int   { return 0 }
func (h *fakeHandle) AllocImg() (*types.Image, error) {
	return &types.Image{Width: h.w, Height: h.h, RowPitch: h.w * 4, Data: make([]byte, h.w*h.h*4)}, nil
}
func (h *fakeHandle) DummyImg(*types.Image) error { return nil }
func (h *fakeHandle) IsHDR() bool                 { return false }
func (h *fakeHandle) GetHDRMetadata() (types.HDRMetadata, bool) {
	return types.HDRMetadata{}, false
}
func (h *fakeHandle) IsCodecSupported(string, types.ClientConfig) bool { return true }
func (h *fakeHandle) Capture(push types.PushFunc, pull types.PullFunc, cursor types.CursorState) types.CaptureStatus {
	return h.captureFn(push, pull, cursor)
}
func (h *fakeHandle) MakeAVCodecEncodeDevice(astiav.PixelFormat) (types.AVCodecEncodeDevice, error) {
	return nil, errors.New("unused")
}
func (h *fakeHandle) MakeNVENCEncodeDevice(astiav.PixelFormat) (types.NVENCEncodeDevice, error) {
	return nil, errors.New("unused")
}

func newTestTask(display types.DisplayHandle) *Task {
	t := &Task{Shared: &SharedDisplay{}}
	t.display = display
	t.pool = imagepool.New(display.Width(), display.Height(), display.Width()*4)
	return t
}

func TestPushDeliversToRunningContextAndDropsOnFullQueue(t *testing.T) {
	display := &fakeHandle{name: "d0", w: 64, h: 64}
	task := newTestTask(display)
	defer task.pool.Close()

	ctx := types.NewCaptureContext(types.ClientConfig{}, 1)
	task.AddContext(ctx)

	img1 := &types.Image{}
	if !task.push(img1, true) {
		t.Fatal("expected push to return true when nothing requests a stop")
	}
	select {
	case got := <-ctx.ImageEvents:
		if got != img1 {
			t.Fatal("expected to receive img1 off the queue")
		}
	default:
		t.Fatal("expected img1 to be queued")
	}

	// Fill the queue, then push a second image that must be dropped
	// rather than block.
	ctx.ImageEvents <- img1
	img2 := &types.Image{}
	task.push(img2, true)
	if img2.RefCount() != 0 {
		t.Fatalf("expected dropped image's ref to be rolled back, got %d", img2.RefCount())
	}
}

func TestPushReturnsUndeliveredImageToPool(t *testing.T) {
	display := &fakeHandle{name: "d0", w: 8, h: 8}
	task := newTestTask(display)
	defer task.pool.Close()

	img := &types.Image{Width: 8, Height: 8, RowPitch: 32}
	task.push(img, true)
	if task.pool.Len() != 1 {
		t.Fatalf("expected the unclaimed image back in the pool, Len()=%d", task.pool.Len())
	}
}

func TestReleaseReturnsToPoolOnlyAtZeroRefcount(t *testing.T) {
	display := &fakeHandle{name: "d0", w: 8, h: 8}
	task := newTestTask(display)
	defer task.pool.Close()

	img := &types.Image{Width: 8, Height: 8, RowPitch: 32}
	img.AddRef()
	img.AddRef()
	task.Release(img)
	if task.pool.Len() != 0 {
		t.Fatal("expected pool untouched while a reference is still outstanding")
	}
	task.Release(img)
	if task.pool.Len() != 1 {
		t.Fatal("expected the image back in the pool once the last reference released")
	}
}

func TestPullAllocatesFreshImageWhenPoolEmpty(t *testing.T) {
	display := &fakeHandle{name: "d0", w: 16, h: 16}
	task := newTestTask(display)
	defer task.pool.Close()

	img, ok := task.pull()
	if !ok {
		t.Fatal("expected pull to succeed")
	}
	if img.Width != 16 || img.Height != 16 {
		t.Fatalf("expected freshly allocated image sized to display, got %dx%d", img.Width, img.Height)
	}
	if task.outstanding != 1 {
		t.Fatalf("expected outstanding count of 1, got %d", task.outstanding)
	}
}

func TestPullStopsOnShutdownOncePoolAndCapExhausted(t *testing.T) {
	display := &fakeHandle{name: "d0", w: 4, h: 4}
	task := newTestTask(display)
	defer task.pool.Close()
	task.outstanding = PoolCapacity
	task.shuttingDown.Store(true)

	_, ok := task.pull()
	if ok {
		t.Fatal("expected pull to report failure once shutdown is set and the pool is exhausted")
	}
}

func TestAddAndRemoveContext(t *testing.T) {
	display := &fakeHandle{name: "d0", w: 4, h: 4}
	task := newTestTask(display)
	defer task.pool.Close()

	ctx := types.NewCaptureContext(types.ClientConfig{}, 1)
	task.AddContext(ctx)
	if len(task.contexts) != 1 {
		t.Fatal("expected one registered context")
	}
	task.RemoveContext(ctx)
	if len(task.contexts) != 0 {
		t.Fatal("expected context removed")
	}
}

func TestRunHandlesReinitThenTerminatesOnTerminalStatus(t *testing.T) {
	display := &fakeHandle{name: "d0", w: 32, h: 32}
	calls := 0
	display.captureFn = func(push types.PushFunc, pull types.PullFunc, cursor types.CursorState) types.CaptureStatus {
		calls++
		img, ok := pull()
		if !ok {
			return types.CaptureStatusError
		}
		push(img, true)
		if calls < 2 {
			return types.CaptureStatusInterrupted
		}
		return types.CaptureStatusError
	}

	enumerate := func() ([]types.DisplayHandle, error) {
		return []types.DisplayHandle{display}, nil
	}
	task := &Task{Enumerate: enumerate, OutputName: "d0", Shared: &SharedDisplay{}}

	err := task.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 capture calls (one reinit, one terminal), got %d", calls)
	}
}

func TestReinitPrefersCachedNameWhenPreviousNameVanishes(t *testing.T) {
	gone := &fakeHandle{name: "d0", w: 32, h: 32}
	other := &fakeHandle{name: "d1", w: 32, h: 32}

	cache := controller.NewNameCache(4)
	cache.Remember("test", "d1")

	task := &Task{
		Enumerate: func() ([]types.DisplayHandle, error) {
			return []types.DisplayHandle{other}, nil
		},
		Shared:       &SharedDisplay{},
		NameCache:    cache,
		HwdeviceType: "test",
	}
	task.display = gone
	task.pool = imagepool.New(gone.Width(), gone.Height(), gone.Width()*4)

	next, err := task.reinit(gone)
	if err != nil {
		t.Fatalf("reinit: %v", err)
	}
	if next.Name() != "d1" {
		t.Fatalf("expected reinit to prefer the cached name d1, got %s", next.Name())
	}
}
