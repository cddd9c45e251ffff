// Package prober drives the registry's catalog through trial encode
// sessions to build each encoder's capability matrix and select the
// one active encoder for a display (spec.md §4.1).
//
// Grounded on the teacher's startup probing sequence in main.go (try a
// device, fall back to the next, log and continue) generalized from a
// single linear fallback into the registry's full per-codec/HDR/YUV444
// capability matrix.
package prober

import (
	"errors"
	"fmt"

	"github.com/streamcore/capture-core/internal/avenc"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

// SessionFactory is the narrow interface the prober needs from
// internal/avenc; *avenc.Factory satisfies it.
type SessionFactory interface {
	NewSession(desc registry.EncoderDescriptor, format types.VideoFormat, display types.DisplayHandle, cfg types.ClientConfig, colorspace types.Colorspace, capabilities registry.CapabilityFlags, displayIndex int16) (avenc.Session, error)
}

// Matrix is one encoder's per-format probe result.
type Matrix map[types.VideoFormat]registry.CapabilityFlags

// Prober holds the mutable capability matrix built up across probe
// runs; spec.md §3 notes this is the one place the otherwise-immutable
// registry gets written, and only single-threaded during a probe.
type Prober struct {
	Factory SessionFactory
	Catalog []registry.EncoderDescriptor

	// ForceVideoHeaderReplace mirrors the global config flag of the same
	// name: when set, VUIParameters is always cleared so the SPS/VPS
	// rewriter runs regardless of what the probe detected.
	ForceVideoHeaderReplace bool

	Results map[string]Matrix
}

// New builds a Prober over catalog, driving sessions through factory.
func New(factory SessionFactory, catalog []registry.EncoderDescriptor) *Prober {
	return &Prober{
		Factory: factory,
		Catalog: catalog,
		Results: make(map[string]Matrix),
	}
}

// ErrNoActiveDisplay is returned by PrecheckDisplays when enumeration
// finds devices but none report usable geometry (spec.md §4.1's
// probe pre-check: "non-empty list where no device is active").
var ErrNoActiveDisplay = errors.New("prober: display enumeration returned devices but none are usable")

// PrecheckDisplays implements the probe pre-check: an empty list means
// the OS layer may simply be unsupported here and probing proceeds; a
// non-empty list where every entry reports a degenerate size is fatal.
func PrecheckDisplays(displays []types.DisplayHandle) error {
	if len(displays) == 0 {
		return nil
	}
	for _, d := range displays {
		if d.Width() > 0 && d.Height() > 0 {
			return nil
		}
	}
	return ErrNoActiveDisplay
}

// ShouldReprobe implements the reprobe trigger: no active encoder, the
// active encoder demands AlwaysReprobe, or the OS reports a device set
// change.
func ShouldReprobe(active *registry.EncoderDescriptor, deviceSetChanged bool) bool {
	if active == nil {
		return true
	}
	if active.Flags.Has(registry.AlwaysReprobe) {
		return true
	}
	return deviceSetChanged
}

// baselineConfig is the fixed 1080p60 SDR H.264 config every
// validateEncoder run starts from (spec.md §4.1 step 1).
func baselineConfig(numRefFrames int) types.ClientConfig {
	return types.ClientConfig{
		Width:        1920,
		Height:       1080,
		Framerate:    60,
		BitrateKbps:  10000,
		VideoFormat:  types.VideoFormatH264,
		DynamicRange: types.DynamicRangeSDR,
		NumRefFrames: numRefFrames,
	}
}

// hdrYUV444Config is the 1920x1080x60 10-bit config the HDR/YUV444
// suite probes against (spec.md §4.1 step 5).
func hdrYUV444Config(format types.VideoFormat, yuv444 bool) types.ClientConfig {
	cfg := baselineConfig(0)
	cfg.VideoFormat = format
	cfg.DynamicRange = types.DynamicRangeHDR
	if yuv444 {
		cfg.ChromaSamplingType = types.ChromaSampling444
	}
	return cfg
}

// probeConfig is validate_config (spec.md §4.1): build a session,
// convert a dummy image, request IDR, and encode until a packet comes
// out. The first packet produced must be IDR.
func (p *Prober) probeConfig(desc registry.EncoderDescriptor, format types.VideoFormat, display types.DisplayHandle, cfg types.ClientConfig) error {
	colorspace := types.FromClientConfig(cfg, display.IsHDR())
	// Capabilities aren't known yet during probing; VUI detection here
	// reads the encoded packet's raw SPS bytes directly rather than
	// going through the inject/replacement path, so the zero value is
	// harmless (spec.md §4.1).
	session, err := p.Factory.NewSession(desc, format, display, cfg, colorspace, registry.CapabilityFlags(0), cfg.DisplayIndex)
	if err != nil {
		return err
	}
	defer session.Close()

	img, err := display.AllocImg()
	if err != nil {
		return fmt.Errorf("prober: AllocImg: %w", err)
	}
	if err := display.DummyImg(img); err != nil {
		return fmt.Errorf("prober: DummyImg: %w", err)
	}

	const maxAttempts = 8
	for attempt := 0; attempt < maxAttempts; attempt++ {
		packets, err := session.EncodeFrame(img, 1, attempt == 0)
		if err != nil {
			return fmt.Errorf("prober: EncodeFrame: %w", err)
		}
		if len(packets) == 0 {
			continue
		}
		if !packets[0].IDR {
			return fmt.Errorf("prober: first packet from %s/%s was not IDR", desc.Name, format)
		}
		return nil
	}
	return fmt.Errorf("prober: %s/%s produced no packet after %d attempts", desc.Name, format, maxAttempts)
}

// probeVUIParameters re-derives the VUI capability bit for an
// AVCODEC H.264/HEVC probe by encoding one more IDR frame and
// inspecting its SPS; native NVENC and AV1 implicitly carry it.
func (p *Prober) probeVUIParameters(desc registry.EncoderDescriptor, format types.VideoFormat, display types.DisplayHandle, cfg types.ClientConfig) bool {
	if desc.IsNativeNVENC() || format == types.VideoFormatAV1 {
		return true
	}
	colorspace := types.FromClientConfig(cfg, display.IsHDR())
	session, err := p.Factory.NewSession(desc, format, display, cfg, colorspace, registry.CapabilityFlags(0), cfg.DisplayIndex)
	if err != nil {
		return false
	}
	defer session.Close()

	img, err := display.AllocImg()
	if err != nil {
		return false
	}
	_ = display.DummyImg(img)

	for attempt := 0; attempt < 8; attempt++ {
		packets, err := session.EncodeFrame(img, 1, attempt == 0)
		if err != nil {
			return false
		}
		if len(packets) == 0 {
			continue
		}
		return avenc.HasVUIParameters(packets[0].Data, format)
	}
	return false
}
