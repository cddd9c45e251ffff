package types

import (
	"time"

	astiav "github.com/asticode/go-astiav"
)

// CaptureStatus is the result of one DisplayHandle.Capture call.
type CaptureStatus int

const (
	CaptureStatusOK CaptureStatus = iota
	CaptureStatusReinit
	CaptureStatusTimeout
	CaptureStatusInterrupted
	CaptureStatusError
)

func (s CaptureStatus) String() string {
	switch s {
	case CaptureStatusOK:
		return "ok"
	case CaptureStatusReinit:
		return "reinit"
	case CaptureStatusTimeout:
		return "timeout"
	case CaptureStatusInterrupted:
		return "interrupted"
	case CaptureStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// CursorState tells the backend whether to composite the hardware cursor
// into captured frames.
type CursorState struct {
	Visible bool
}

// HDRMetadata carries mastering-display and content-light-level data, as
// reported by the platform backend.
type HDRMetadata struct {
	DisplayPrimariesX   [3]uint16
	DisplayPrimariesY   [3]uint16
	WhitePointX         uint16
	WhitePointY         uint16
	MaxDisplayLuminance uint32
	MinDisplayLuminance uint32
	MaxCLL              uint16
	MaxFALL             uint16
}

// PushFunc is called by the backend for each captured frame. It returns
// false to request the capture loop stop.
type PushFunc func(img *Image, captured bool) bool

// PullFunc is called by the backend to obtain a free Image to capture
// into. It blocks (cooperatively, via the backend's own polling) until
// one is available or the caller gives up.
type PullFunc func() (*Image, bool)

// DisplayHandle is the platform capture collaborator consumed by the
// capture task and encode task (spec.md §6). Implementations live behind
// build tags in internal/displaycap; this core never implements the real
// DXGI/VAAPI/CUDA/VideoToolbox backends, only the interface and stubs.
type DisplayHandle interface {
	// Name is the stable identifier refreshDisplays/resetDisplay match
	// against config.output_name (spec.md §4.6).
	Name() string

	Width() int
	Height() int
	EnvWidth() int
	EnvHeight() int
	OffsetX() int
	OffsetY() int

	AllocImg() (*Image, error)
	DummyImg(img *Image) error

	IsHDR() bool
	GetHDRMetadata() (HDRMetadata, bool)

	IsCodecSupported(codecName string, cfg ClientConfig) bool

	Capture(push PushFunc, pull PullFunc, cursor CursorState) CaptureStatus

	MakeAVCodecEncodeDevice(pixFmt astiav.PixelFormat) (AVCodecEncodeDevice, error)
	MakeNVENCEncodeDevice(pixFmt astiav.PixelFormat) (NVENCEncodeDevice, error)
}

// AVCodecEncodeDevice is the hook set an AVCODEC-style encode session
// construction gives the platform backend: a chance to pre-stage and
// derive hardware devices, mutate the hw frame pool before init, and
// apply a final options override (spec.md §4.2 steps 7-8).
type AVCodecEncodeDevice interface {
	// HasNativeFrame reports whether the device can hand the session a
	// frame already resident in the right memory (hardware path). When
	// false, the session builds its own software converter (§4.2 step 10).
	HasNativeFrame() bool

	// DerivedHardwareDeviceType returns the device type the base hwdevice
	// context should be derived into, or astiav.HardwareDeviceTypeNone if
	// no derivation is needed.
	DerivedHardwareDeviceType() astiav.HardwareDeviceType

	// PreStageDerivedDevice runs before deriving the hwdevice context
	// (e.g. VAAPI-on-DRM needs to open a render node first).
	PreStageDerivedDevice(base *astiav.HardwareDeviceContext) error

	// ConfigureHWFramesContext lets the device mutate pool parameters
	// (e.g. initial_pool_size) before astiav.HardwareFramesContext.Initialize.
	ConfigureHWFramesContext(frames *astiav.HardwareFramesContext)

	// OverrideOptions runs after the codec's own option maps are applied,
	// giving the device the final word (spec.md §4.2 step 8).
	OverrideOptions(opts *astiav.Dictionary)

	// Transfer moves a software frame into hardware frame memory, used
	// only when HasNativeFrame() is false but the codec wants hw frames.
	Transfer(dst, src *astiav.Frame) error

	Close() error
}

// NVENCEncodeDevice is the native NVENC encode device handed to the
// NVENC-variant EncodeSession (spec.md §4.2 NVENC path, §4.3).
type NVENCEncodeDevice interface {
	Init(cfg ClientConfig, colorspace Colorspace) error
	EncodeFrame(frameNr int64, forceIDR bool) ([]EncodedPacket, error)
	InvalidateRefFrames(first, last int64) error
	Close() error
}

// EncodedPacket is the raw bitstream unit the NVENC device hands back;
// the EncodeSession stamps routing metadata onto it before it becomes a
// Packet (spec.md §4.3).
type EncodedPacket struct {
	Data                       []byte
	IDR                        bool
	AfterRefFrameInvalidation  bool
	FrameIndex                 int64
}

// Image is a single raw captured frame, owned by the capture task's
// image pool and shared by reference with subscribers (spec.md §3).
type Image struct {
	Width     int
	Height    int
	RowPitch  int
	Data      []byte
	CapturedAt *time.Time

	refs int32
}

// AddRef increments the subscriber refcount; used by the image pool and
// by fan-out to capture contexts.
func (img *Image) AddRef() { img.refs++ }

// Release decrements the refcount and reports the new value.
func (img *Image) Release() int32 {
	img.refs--
	return img.refs
}

// RefCount reports the current refcount (1 means only the pool holds it).
func (img *Image) RefCount() int32 { return img.refs }
