package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/avenc"
	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/eventbus"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

type fakeHandle struct {
	name string
	w, h int
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
func (h *fakeHandle) DummyImg(*types.Image) error                     { return nil }
func (h *fakeHandle) IsHDR() bool                                       { return false }
func (h *fakeHandle) GetHDRMetadata() (types.HDRMetadata, bool)        { return types.HDRMetadata{}, false }
func (h *fakeHandle) IsCodecSupported(string, types.ClientConfig) bool { return true }
func (h *fakeHandle) Capture(push types.PushFunc, pull types.PullFunc, cursor types.CursorState) types.CaptureStatus {
	for {
		img, ok := pull()
		if !ok {
			return types.CaptureStatusError
		}
		if !push(img, true) {
			return types.CaptureStatusError
		}
		time.Sleep(time.Millisecond)
	}
}
func (h *fakeHandle) MakeAVCodecEncodeDevice(astiav.PixelFormat) (types.AVCodecEncodeDevice, error) {
	return nil, errors.New("unused")
}
func (h *fakeHandle) MakeNVENCEncodeDevice(astiav.PixelFormat) (types.NVENCEncodeDevice, error) {
	return nil, errors.New("unused")
}

type fakeSession struct{}

func (s *fakeSession) EncodeFrame(img *types.Image, frameIndex int64, forceIDR bool) ([]types.Packet, error) {
	return []types.Packet{{Data: []byte{1}, FrameIndex: frameIndex}}, nil
}
func (s *fakeSession) InvalidateRefFrames(first, last int64) error { return nil }
func (s *fakeSession) Close() error                                { return nil }

type fakeFactory struct{}

func (f *fakeFactory) NewSession(desc registry.EncoderDescriptor, format types.VideoFormat, display types.DisplayHandle, cfg types.ClientConfig, colorspace types.Colorspace, capabilities registry.CapabilityFlags, displayIndex int16) (avenc.Session, error) {
	return &fakeSession{}, nil
}

type fakeVDD struct {
	mu           sync.Mutex
	enableCalls  int
	disableCalls int
}

func (v *fakeVDD) Enable(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enableCalls++
	return nil
}

func (v *fakeVDD) Disable(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disableCalls++
	return nil
}

func (v *fakeVDD) Toggle(context.Context) error { return nil }
func (v *fakeVDD) Reload(context.Context) error { return nil }

func (v *fakeVDD) counts() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enableCalls, v.disableCalls
}

func testMonitors() []Monitor {
	return []Monitor{
		{OutputName: "d0", DisplayIndex: 0, ClientConfig: types.ClientConfig{Width: 64, Height: 64, Framerate: 30, VideoFormat: types.VideoFormatH264}},
		{OutputName: "d1", DisplayIndex: 1, ClientConfig: types.ClientConfig{Width: 64, Height: 64, Framerate: 30, VideoFormat: types.VideoFormatH264}},
	}
}

func TestCoordinatorHandlesCloseWindowThenShutdown(t *testing.T) {
	handles := map[string]*fakeHandle{
		"d0": {name: "d0", w: 64, h: 64},
		"d1": {name: "d1", w: 64, h: 64},
	}
	enumerate := func() ([]types.DisplayHandle, error) {
		return []types.DisplayHandle{handles["d0"], handles["d1"]}, nil
	}

	closeWindow := eventbus.New[int16]()
	shutdown := eventbus.New[bool]()
	c := &Coordinator{
		Enumerate:   enumerate,
		Factory:     &fakeFactory{},
		Descriptor:  registry.EncoderDescriptor{Name: "fake", H264: &registry.CodecVariant{}},
		VideoConfig: &config.Video{MinimumFPSTarget: 10},
		Sink:        types.PacketSinkFunc(func(types.Packet) {}),
		CloseWindow: closeWindow,
		Shutdown:    shutdown,
	}

	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(testMonitors()) }()

	time.Sleep(30 * time.Millisecond)
	closeWindow.Publish(1)
	time.Sleep(30 * time.Millisecond)

	c.mu.Lock()
	_, stillPresent := c.sessions[1]
	remaining := len(c.sessions)
	c.mu.Unlock()
	if stillPresent {
		t.Fatal("expected session 1 removed after close_window")
	}
	if remaining != 1 {
		t.Fatalf("expected exactly one remaining session, got %d", remaining)
	}

	shutdown.Publish(true)

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}

func TestCoordinatorIgnoresCloseWindowWithSingleSession(t *testing.T) {
	handle := &fakeHandle{name: "d0", w: 64, h: 64}
	enumerate := func() ([]types.DisplayHandle, error) {
		return []types.DisplayHandle{handle}, nil
	}

	closeWindow := eventbus.New[int16]()
	shutdown := eventbus.New[bool]()
	c := &Coordinator{
		Enumerate:   enumerate,
		Factory:     &fakeFactory{},
		Descriptor:  registry.EncoderDescriptor{Name: "fake", H264: &registry.CodecVariant{}},
		VideoConfig: &config.Video{MinimumFPSTarget: 10},
		Sink:        types.PacketSinkFunc(func(types.Packet) {}),
		CloseWindow: closeWindow,
		Shutdown:    shutdown,
	}

	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(testMonitors()[:1]) }()

	time.Sleep(30 * time.Millisecond)
	closeWindow.Publish(0)
	time.Sleep(30 * time.Millisecond)

	c.mu.Lock()
	_, present := c.sessions[0]
	c.mu.Unlock()
	if !present {
		t.Fatal("expected the sole session to survive close_window")
	}

	shutdown.Publish(true)
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}

func TestCoordinatorEnablesAndDisablesVDDForVirtualMonitors(t *testing.T) {
	handles := map[string]*fakeHandle{
		"d0": {name: "d0", w: 64, h: 64},
		"d1": {name: "d1", w: 64, h: 64},
	}
	enumerate := func() ([]types.DisplayHandle, error) {
		return []types.DisplayHandle{handles["d0"], handles["d1"]}, nil
	}

	closeWindow := eventbus.New[int16]()
	shutdown := eventbus.New[bool]()
	vddSvc := &fakeVDD{}
	c := &Coordinator{
		Enumerate:   enumerate,
		Factory:     &fakeFactory{},
		Descriptor:  registry.EncoderDescriptor{Name: "fake", H264: &registry.CodecVariant{}},
		VideoConfig: &config.Video{MinimumFPSTarget: 10},
		Sink:        types.PacketSinkFunc(func(types.Packet) {}),
		CloseWindow: closeWindow,
		Shutdown:    shutdown,
		VDD:         vddSvc,
	}

	monitors := testMonitors()
	monitors[1].Virtual = true

	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(monitors) }()

	time.Sleep(30 * time.Millisecond)
	if enableCalls, _ := vddSvc.counts(); enableCalls != 1 {
		t.Fatalf("expected exactly one Enable call once the virtual monitor started, got %d", enableCalls)
	}

	closeWindow.Publish(1)
	var disableCalls int
	for i := 0; i < 20; i++ {
		_, disableCalls = vddSvc.counts()
		if disableCalls == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if disableCalls != 1 {
		t.Fatalf("expected Disable once the only virtual session closed, got %d", disableCalls)
	}

	shutdown.Publish(true)
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}
