package avenc

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

// Factory builds a Session for one (encoder, format) pair from the
// catalog, dispatching to the native NVENC path or the generic
// AVCODEC path per registry.EncoderDescriptor.IsNativeNVENC (spec.md
// §4.2).
type Factory struct {
	VideoConfig *config.Video
}

// NewSession opens a session against desc/format for display, following
// the two-attempt colorspace-then-fallback option retry for AVCODEC
// backends (spec.md §4.4). displayIndex is stamped onto every packet
// this session produces.
func (f *Factory) NewSession(
	desc registry.EncoderDescriptor,
	format types.VideoFormat,
	display types.DisplayHandle,
	cfg types.ClientConfig,
	colorspace types.Colorspace,
	capabilities registry.CapabilityFlags,
	displayIndex int16,
) (Session, error) {
	variant := desc.VariantFor(format)
	if variant == nil {
		return nil, fmt.Errorf("avenc: encoder %q has no %s variant", desc.Name, format)
	}

	if cfg.ChromaSamplingType == types.ChromaSampling444 && !desc.Flags.Has(registry.YUV444Support) {
		return nil, fmt.Errorf("avenc: encoder %q does not support 4:4:4 chroma sampling", desc.Name)
	}

	if desc.IsNativeNVENC() {
		pixFmt := colorspaceToNativePixFmt(colorspace)
		device, err := display.MakeNVENCEncodeDevice(pixFmt)
		if err != nil {
			return nil, fmt.Errorf("avenc: MakeNVENCEncodeDevice: %w", err)
		}
		return newNVENCSession(device, cfg, colorspace, displayIndex)
	}

	pixFmt := desc.Formats.DeviceFormat
	device, err := display.MakeAVCodecEncodeDevice(pixFmt)
	if err != nil {
		return nil, fmt.Errorf("avenc: MakeAVCodecEncodeDevice: %w", err)
	}
	session, err := newAVCodecSession(desc, variant, device, desc.Formats, cfg, colorspace, capabilities, display, f.VideoConfig, displayIndex)
	if err != nil {
		_ = device.Close()
		return nil, err
	}
	return session, nil
}

// colorspaceToNativePixFmt picks the pixel format the native NVENC
// device is told to expect; the device itself owns the real DXGI
// format negotiation, this is only advisory metadata (spec.md §4.2).
func colorspaceToNativePixFmt(cs types.Colorspace) astiav.PixelFormat {
	if cs.IsHDR() {
		return astiav.PixelFormatP010Le
	}
	return astiav.PixelFormatNv12
}
