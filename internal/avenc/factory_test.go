package avenc

import (
	"errors"
	"testing"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

type fakeNVENCDevice struct {
	initErr error
	closed  bool
}

func (d *fakeNVENCDevice) Init(types.ClientConfig, types.Colorspace) error { return d.initErr }
func (d *fakeNVENCDevice) EncodeFrame(frameNr int64, forceIDR bool) ([]types.EncodedPacket, error) {
	return []types.EncodedPacket{{Data: []byte{1, 2, 3}, IDR: forceIDR, FrameIndex: frameNr}}, nil
}
func (d *fakeNVENCDevice) InvalidateRefFrames(first, last int64) error { return nil }
func (d *fakeNVENCDevice) Close() error                                { d.closed = true; return nil }

type fakeDisplayHandle struct {
	nvenc *fakeNVENCDevice
}

func (h *fakeDisplayHandle) Name() string   { return "fake-display" }
func (h *fakeDisplayHandle) Width() int     { return 1920 }
func (h *fakeDisplayHandle) Height() int    { return 1080 }
func (h *fakeDisplayHandle) EnvWidth() int  { return 1920 }
func (h *fakeDisplayHandle) EnvHeight() int { return 1080 }
func (h *fakeDisplayHandle) OffsetX() int   { return 0 }
func (h *fakeDisplayHandle) OffsetY() int   { return 0 }
func (h *fakeDisplayHandle) AllocImg() (*types.Image, error) {
	return &types.Image{Width: 1920, Height: 1080, RowPitch: 1920 * 4, Data: make([]byte, 1920*1080*4)}, nil
}
func (h *fakeDisplayHandle) DummyImg(img *types.Image) error { return nil }
func (h *fakeDisplayHandle) IsHDR() bool                      { return false }
func (h *fakeDisplayHandle) GetHDRMetadata() (types.HDRMetadata, bool) {
	return types.HDRMetadata{}, false
}
func (h *fakeDisplayHandle) IsCodecSupported(string, types.ClientConfig) bool { return true }
func (h *fakeDisplayHandle) Capture(types.PushFunc, types.PullFunc, types.CursorState) types.CaptureStatus {
	return types.CaptureStatusOK
}
func (h *fakeDisplayHandle) MakeAVCodecEncodeDevice(astiav.PixelFormat) (types.AVCodecEncodeDevice, error) {
	return nil, errors.New("fakeDisplayHandle: avcodec device unavailable in test")
}
func (h *fakeDisplayHandle) MakeNVENCEncodeDevice(astiav.PixelFormat) (types.NVENCEncodeDevice, error) {
	return h.nvenc, nil
}

func TestFactoryDispatchesNativeNVENCToDeviceDirectly(t *testing.T) {
	descs := registry.ByName("nvenc")
	var native registry.EncoderDescriptor
	found := false
	for _, d := range descs {
		if d.IsNativeNVENC() {
			native = d
			found = true
		}
	}
	if !found {
		t.Fatal("expected a native nvenc descriptor in the catalog")
	}

	display := &fakeDisplayHandle{nvenc: &fakeNVENCDevice{}}
	defaultCfg := config.Default()
	f := &Factory{VideoConfig: &defaultCfg.Video}
	session, err := f.NewSession(native, types.VideoFormatHEVC, display, types.ClientConfig{Width: 1920, Height: 1080, Framerate: 60}, types.Colorspace{}, registry.CapabilityFlags(0), 0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	packets, err := session.EncodeFrame(&types.Image{}, 1, true)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(packets) != 1 || !packets[0].IDR {
		t.Fatalf("unexpected packets: %+v", packets)
	}
}

func TestFactoryReturnsErrorForMissingVariant(t *testing.T) {
	desc := registry.EncoderDescriptor{Name: "software-h264-only", H264: &registry.CodecVariant{}}
	display := &fakeDisplayHandle{}
	defaultCfg := config.Default()
	f := &Factory{VideoConfig: &defaultCfg.Video}
	_, err := f.NewSession(desc, types.VideoFormatAV1, display, types.ClientConfig{}, types.Colorspace{}, registry.CapabilityFlags(0), 0)
	if err == nil {
		t.Fatal("expected an error for a format the descriptor doesn't offer")
	}
}
