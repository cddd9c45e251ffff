package prober

import (
	"errors"
	"testing"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/avenc"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

type fakeSession struct {
	idrSent  bool
	fail     bool
	vuiBytes []byte
}

func (s *fakeSession) EncodeFrame(img *types.Image, frameIndex int64, forceIDR bool) ([]types.Packet, error) {
	if s.fail {
		return nil, errors.New("fake session: forced failure")
	}
	idr := forceIDR || !s.idrSent
	s.idrSent = true
	return []types.Packet{{Data: s.vuiBytes, IDR: idr, FrameIndex: frameIndex}}, nil
}
func (s *fakeSession) InvalidateRefFrames(first, last int64) error { return nil }
func (s *fakeSession) Close() error                                { return nil }

type fakeFactory struct {
	// failRefLimit/failAuto mark per-format probe failures, keyed loosely
	// to keep the test table small; failDescriptors fails every probe
	// for a named encoder regardless of format.
	failRefLimit    map[types.VideoFormat]bool
	failAuto        map[types.VideoFormat]bool
	failDescriptors map[string]bool
}

func (f *fakeFactory) NewSession(desc registry.EncoderDescriptor, format types.VideoFormat, display types.DisplayHandle, cfg types.ClientConfig, colorspace types.Colorspace, capabilities registry.CapabilityFlags, displayIndex int16) (avenc.Session, error) {
	if f.failDescriptors[desc.Name] {
		return nil, errors.New("fake factory: descriptor rejected")
	}
	if cfg.NumRefFrames == 1 && f.failRefLimit[format] {
		return nil, errors.New("fake factory: ref-limit rejected")
	}
	if cfg.NumRefFrames == 0 && f.failAuto[format] {
		return nil, errors.New("fake factory: autoselect rejected")
	}
	return &fakeSession{}, nil
}

type fakeHandle struct {
	hdr bool
}

func (h *fakeHandle) Name() string   { return "fake-display" }
func (h *fakeHandle) Width() int     { return 1920 }
func (h *fakeHandle) Height() int    { return 1080 }
func (h *fakeHandle) EnvWidth() int  { return 1920 }
func (h *fakeHandle) EnvHeight() int { return 1080 }
func (h *fakeHandle) OffsetX() int   { return 0 }
func (h *fakeHandle) OffsetY() int   { return 0 }
func (h *fakeHandle) AllocImg() (*types.Image, error) {
	return &types.Image{Width: 1920, Height: 1080, RowPitch: 1920 * 4, Data: make([]byte, 1920*1080*4)}, nil
}
func (h *fakeHandle) DummyImg(*types.Image) error { return nil }
func (h *fakeHandle) IsHDR() bool                  { return h.hdr }
func (h *fakeHandle) GetHDRMetadata() (types.HDRMetadata, bool) {
	return types.HDRMetadata{}, false
}
func (h *fakeHandle) IsCodecSupported(string, types.ClientConfig) bool { return true }
func (h *fakeHandle) Capture(types.PushFunc, types.PullFunc, types.CursorState) types.CaptureStatus {
	return types.CaptureStatusOK
}
func (h *fakeHandle) MakeAVCodecEncodeDevice(astiav.PixelFormat) (types.AVCodecEncodeDevice, error) {
	return nil, errors.New("unused in this test")
}
func (h *fakeHandle) MakeNVENCEncodeDevice(astiav.PixelFormat) (types.NVENCEncodeDevice, error) {
	return nil, errors.New("unused in this test")
}

func softwareDescriptor() registry.EncoderDescriptor {
	for _, d := range registry.Catalog {
		if d.Name == "software" {
			return d
		}
	}
	panic("software descriptor missing from catalog")
}

func TestValidateEncoderPassesOnCleanFactory(t *testing.T) {
	p := New(&fakeFactory{}, registry.Catalog)
	ok, matrix := p.ValidateEncoder(softwareDescriptor(), &fakeHandle{}, false)
	if !ok {
		t.Fatal("expected validation to pass")
	}
	if !matrix[types.VideoFormatH264].Has(registry.Passed) {
		t.Fatal("expected H264 to be marked Passed")
	}
}

func TestValidateEncoderRejectsOnAutoselectFailure(t *testing.T) {
	p := New(&fakeFactory{failAuto: map[types.VideoFormat]bool{types.VideoFormatH264: true}}, registry.Catalog)
	ok, _ := p.ValidateEncoder(softwareDescriptor(), &fakeHandle{}, false)
	if ok {
		t.Fatal("expected validation to fail when H264 autoselect fails")
	}
}

func TestValidateEncoderSetsRefFramesRestrict(t *testing.T) {
	p := New(&fakeFactory{}, registry.Catalog)
	_, matrix := p.ValidateEncoder(softwareDescriptor(), &fakeHandle{}, false)
	if !matrix[types.VideoFormatH264].Has(registry.RefFramesRestrict) {
		t.Fatal("expected RefFramesRestrict when the ref-limit probe succeeds")
	}
}

func TestPrecheckDisplaysAllowsEmptyList(t *testing.T) {
	if err := PrecheckDisplays(nil); err != nil {
		t.Fatalf("expected empty enumeration to be acceptable, got %v", err)
	}
}

func TestPrecheckDisplaysRejectsAllDegenerate(t *testing.T) {
	degenerate := &fakeDegenerateHandle{}
	if err := PrecheckDisplays([]types.DisplayHandle{degenerate}); err == nil {
		t.Fatal("expected an error when no enumerated display is usable")
	}
}

type fakeDegenerateHandle struct{ fakeHandle }

func (h *fakeDegenerateHandle) Width() int  { return 0 }
func (h *fakeDegenerateHandle) Height() int { return 0 }

func TestShouldReprobeWhenNoActiveEncoder(t *testing.T) {
	if !ShouldReprobe(nil, false) {
		t.Fatal("expected reprobe with no active encoder")
	}
}

func TestShouldReprobeOnDeviceSetChange(t *testing.T) {
	active := softwareDescriptor()
	active.Flags = 0 // the catalog's software entry carries AlwaysReprobe
	if !ShouldReprobe(&active, true) {
		t.Fatal("expected reprobe when the OS reports a device set change")
	}
	if ShouldReprobe(&active, false) {
		t.Fatal("expected no reprobe for a stable software encoder with no flags")
	}
}

func TestSelectFallsThroughToNextEncoderOnFailure(t *testing.T) {
	catalog := []registry.EncoderDescriptor{
		{Name: "broken", H264: &registry.CodecVariant{Options: registry.CodecOptionSet{FFmpegName: "broken"}}},
		softwareDescriptor(),
	}
	factory := &fakeFactory{failDescriptors: map[string]bool{"broken": true}}
	p := New(factory, catalog)
	res, err := p.Select(SelectionRequest{}, &fakeHandle{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Encoder.Name != "software" {
		t.Fatalf("expected fallthrough to software, got %s", res.Encoder.Name)
	}
}

func TestSelectHonorsPreferredName(t *testing.T) {
	p := New(&fakeFactory{}, registry.Catalog)
	res, err := p.Select(SelectionRequest{PreferredName: "software"}, &fakeHandle{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Encoder.Name != "software" {
		t.Fatalf("expected software encoder, got %s", res.Encoder.Name)
	}
}
