package displaycap

import (
	"fmt"
	"time"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/types"
)

// Monitor is the geometry and capability info a platform enumerator
// produces for one physical display.
type Monitor struct {
	Name                string
	Width, Height       int
	OffsetX, OffsetY    int
	HDRCapable          bool
}

// handle is the shared DisplayHandle implementation every platform
// backend in this package builds on. It owns no GPU resources: frames
// are synthesized, so Capture/AllocImg/DummyImg never fail for
// hardware reasons. Platform files differ only in how they discover
// Monitor values, not in how capture or encode-device wiring behaves.
type handle struct {
	mon   Monitor
	frame int64
}

func newHandle(mon Monitor) *handle {
	return &handle{mon: mon}
}

func (h *handle) Name() string   { return h.mon.Name }
func (h *handle) Width() int     { return h.mon.Width }
func (h *handle) Height() int    { return h.mon.Height }
func (h *handle) EnvWidth() int  { return h.mon.Width }
func (h *handle) EnvHeight() int { return h.mon.Height }
func (h *handle) OffsetX() int   { return h.mon.OffsetX }
func (h *handle) OffsetY() int   { return h.mon.OffsetY }

func (h *handle) rowPitch() int { return h.mon.Width * 4 }

func (h *handle) AllocImg() (*types.Image, error) {
	pitch := h.rowPitch()
	return &types.Image{
		Width:    h.mon.Width,
		Height:   h.mon.Height,
		RowPitch: pitch,
		Data:     make([]byte, pitch*h.mon.Height),
	}, nil
}

func (h *handle) DummyImg(img *types.Image) error {
	if img == nil {
		return fmt.Errorf("displaycap: nil dummy image")
	}
	for i := range img.Data {
		img.Data[i] = 0
	}
	return nil
}

func (h *handle) IsHDR() bool { return h.mon.HDRCapable }

func (h *handle) GetHDRMetadata() (types.HDRMetadata, bool) {
	if !h.mon.HDRCapable {
		return types.HDRMetadata{}, false
	}
	return types.HDRMetadata{
		DisplayPrimariesX:   [3]uint16{34000, 13250, 7500},
		DisplayPrimariesY:   [3]uint16{16000, 34500, 3000},
		WhitePointX:         15635,
		WhitePointY:         16450,
		MaxDisplayLuminance: 1000,
		MinDisplayLuminance: 1,
		MaxCLL:              1000,
		MaxFALL:             400,
	}
}

func (h *handle) IsCodecSupported(codecName string, cfg types.ClientConfig) bool {
	// Synthetic backends impose no codec restrictions of their own;
	// the registry/prober decide what's actually usable.
	return true
}

// Capture produces a deterministic animated test pattern: a
// horizontal gradient bar that advances one pixel per frame, cheap
// enough to run in the fan-out loop without a real GPU.
func (h *handle) Capture(push types.PushFunc, pull types.PullFunc, cursor types.CursorState) types.CaptureStatus {
	img, ok := pull()
	if !ok {
		return types.CaptureStatusInterrupted
	}
	h.paintTestPattern(img)
	now := time.Now()
	img.CapturedAt = &now
	h.frame++
	if !push(img, true) {
		return types.CaptureStatusInterrupted
	}
	return types.CaptureStatusOK
}

func (h *handle) paintTestPattern(img *types.Image) {
	shift := int(h.frame) % h.mon.Width
	for y := 0; y < img.Height; y++ {
		row := img.Data[y*img.RowPitch : y*img.RowPitch+img.Width*4]
		for x := 0; x < img.Width; x++ {
			v := byte(((x + shift) * 255 / maxInt(img.Width, 1)) % 256)
			off := x * 4
			row[off+0] = v       // B
			row[off+1] = byte(y * 255 / maxInt(img.Height, 1)) // G
			row[off+2] = 255 - v // R
			row[off+3] = 255     // A
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (h *handle) MakeAVCodecEncodeDevice(pixFmt astiav.PixelFormat) (types.AVCodecEncodeDevice, error) {
	return &softwareEncodeDevice{}, nil
}

func (h *handle) MakeNVENCEncodeDevice(pixFmt astiav.PixelFormat) (types.NVENCEncodeDevice, error) {
	return nil, fmt.Errorf("displaycap: native NVENC device unavailable on this synthetic backend")
}

// softwareEncodeDevice is the no-hardware AVCodecEncodeDevice every
// synthetic Monitor hands to the software catalog entry: there is no
// derived device, no native hardware frame, and option overrides are
// a no-op, matching encoder_platform_formats_avcodec's software
// instantiation in the original (AV_HWDEVICE_TYPE_NONE throughout).
type softwareEncodeDevice struct{}

func (softwareEncodeDevice) HasNativeFrame() bool { return false }
func (softwareEncodeDevice) DerivedHardwareDeviceType() astiav.HardwareDeviceType {
	return astiav.HardwareDeviceTypeNone
}
func (softwareEncodeDevice) PreStageDerivedDevice(base *astiav.HardwareDeviceContext) error { return nil }
func (softwareEncodeDevice) ConfigureHWFramesContext(frames *astiav.HardwareFramesContext)  {}
func (softwareEncodeDevice) OverrideOptions(opts *astiav.Dictionary)                        {}
func (softwareEncodeDevice) Transfer(dst, src *astiav.Frame) error {
	return fmt.Errorf("displaycap: software device has no hardware frame to transfer")
}
func (softwareEncodeDevice) Close() error { return nil }
