package avenc

import (
	"errors"
	"fmt"
	"log"
	"math"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/swscale"
	"github.com/streamcore/capture-core/internal/types"
)

// nvencVBVInflationPercent inflates the VBV buffer size computed for
// NVENC's avcodec path (spec.md §4.2 step 6's "encoder-specific VBV
// percentage"); NVENC's rate controller otherwise stalls visibly at
// the exact buffer size a software encoder would be happy with.
const nvencVBVInflationPercent = 150

// avcodecSession drives one avcodec CodecContext for every catalog
// entry except native NVENC (spec.md §4.2 steps 1-10). Construction
// mirrors the teacher's AAC encoder setup in video.go: AllocCodecContext,
// field setters, Open(codec, dict); the send/receive drain loop in
// EncodeFrame mirrors the same file's audio encode loop.
type avcodecSession struct {
	ctx    *astiav.CodecContext
	device types.AVCodecEncodeDevice
	conv   *swscale.Converter // nil when device.HasNativeFrame()

	srcFrame *astiav.Frame // BGRA wrapper around the incoming Image, reused
	dstFrame *astiav.Frame // device's native hw frame, when HasNativeFrame()

	colorspace types.Colorspace
	hdr        *types.HDRMetadata // non-nil only for an HDR colorspace with display-reported metadata

	format         types.VideoFormat
	inject         int
	headerInjected bool

	displayIndex int16
	flags        registry.EncoderFlags
	pendingIDR   bool
}

// newAVCodecSession opens codecCtx for variant against device,
// applying the colorspace-appropriate option overlay with one relaxed
// retry using Fallback on open failure (spec.md §4.4).
func newAVCodecSession(
	desc registry.EncoderDescriptor,
	variant *registry.CodecVariant,
	device types.AVCodecEncodeDevice,
	bundle registry.PlatformFormatBundle,
	cfg types.ClientConfig,
	colorspace types.Colorspace,
	capabilities registry.CapabilityFlags,
	display types.DisplayHandle,
	videoCfg *config.Video,
	displayIndex int16,
) (*avcodecSession, error) {
	codec := astiav.FindEncoderByName(variant.Options.FFmpegName)
	if codec == nil {
		return nil, fmt.Errorf("avenc: encoder %q not available in this avcodec build", variant.Options.FFmpegName)
	}
	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, fmt.Errorf("avenc: AllocCodecContext(%s) failed", variant.Options.FFmpegName)
	}

	fps := cfg.EffectiveFramerateX100()
	ctx.SetWidth(cfg.Width)
	ctx.SetHeight(cfg.Height)
	ctx.SetTimeBase(astiav.NewRational(100, fps))
	ctx.SetFramerate(astiav.NewRational(fps, 100))
	ctx.SetMaxBFrames(0)
	ctx.SetGopSize(gopSize(desc.Flags))
	ctx.SetKeyintMin(math.MaxInt32)
	ctx.SetFlags(astiav.NewCodecContextFlags(astiav.CodecContextFlagClosedGop, astiav.CodecContextFlagLowDelay))
	ctx.SetFlags2(astiav.NewCodecContextFlags2(astiav.CodecContextFlag2Fast))

	if profile, ok := selectProfile(cfg.VideoFormat, cfg, colorspace); ok {
		ctx.SetProfile(profile)
	}
	if capabilities.Has(registry.RefFramesRestrict) && cfg.NumRefFrames > 0 {
		ctx.SetRefs(cfg.NumRefFrames)
	}

	isSoftware := bundle.DeviceType == astiav.HardwareDeviceTypeNone
	ctx.SetThreadType(astiav.ThreadTypeSlice)
	ctx.SetThreadCount(sliceCount(desc.Flags, cfg, videoCfg, isSoftware))

	applyRateControl(ctx, desc, cfg, isSoftware)
	applyColorspaceToContext(ctx, colorspace)

	pixFmt := swscale.ColorspaceFromClientConfig(colorspace, cfg.ChromaSamplingType,
		bundle.SDRFormat, bundle.SDR10Format, bundle.YUV444Format, bundle.YUV444_10Format)
	if device.HasNativeFrame() {
		ctx.SetPixelFormat(bundle.DeviceFormat)
	} else {
		ctx.SetPixelFormat(pixFmt)
	}

	if err := setupHardwareFrames(ctx, device, bundle, pixFmt, cfg.Width, cfg.Height); err != nil {
		ctx.Free()
		return nil, err
	}

	maps := variant.Options.SelectColorspaceOptions(colorspace.IsHDR(), cfg.ChromaSamplingType == types.ChromaSampling444)

	dict := astiav.NewDictionary()
	defer dict.Free()
	applyOptionMaps(dict, maps, videoCfg, cfg)
	device.OverrideOptions(dict)

	if err := ctx.Open(codec, dict); err != nil {
		log.Printf("avenc: open %s failed with options [%s]: %v; retrying with fallback options", variant.Options.FFmpegName, joinDict(dict), err)
		// Relaxed retry: drop straight to Fallback on top of Common only,
		// matching the original's "apply the optional set, probe, retry
		// without it" pattern (spec.md §4.4).
		fallbackDict := astiav.NewDictionary()
		defer fallbackDict.Free()
		applyOptionMaps(fallbackDict, []registry.OptionMap{variant.Options.Common, variant.Options.Fallback}, videoCfg, cfg)
		device.OverrideOptions(fallbackDict)
		if err2 := ctx.Open(codec, fallbackDict); err2 != nil {
			ctx.Free()
			log.Printf("avenc: fallback open %s also failed with options [%s]: %v", variant.Options.FFmpegName, joinDict(fallbackDict), err2)
			return nil, fmt.Errorf("avenc: open %s failed (%w), fallback also failed: %w", variant.Options.FFmpegName, err, err2)
		}
	}

	s := &avcodecSession{
		ctx:          ctx,
		device:       device,
		colorspace:   colorspace,
		format:       cfg.VideoFormat,
		inject:       computeInject(cfg.VideoFormat, capabilities),
		displayIndex: displayIndex,
		flags:        desc.Flags,
	}

	if colorspace.IsHDR() && display != nil {
		if metadata, ok := display.GetHDRMetadata(); ok {
			s.hdr = &metadata
		}
	}

	if !device.HasNativeFrame() {
		s.conv = swscale.NewConverter(cfg.Width, cfg.Height, pixFmt)
	}

	return s, nil
}

// selectProfile implements spec.md §4.2 step 4's profile table.
func selectProfile(format types.VideoFormat, cfg types.ClientConfig, cs types.Colorspace) (astiav.Profile, bool) {
	yuv444 := cfg.ChromaSamplingType == types.ChromaSampling444
	switch format {
	case types.VideoFormatH264:
		if yuv444 {
			return astiav.ProfileH264High444Predictive, true
		}
		return astiav.ProfileH264High, true
	case types.VideoFormatHEVC:
		if yuv444 {
			return astiav.ProfileHevcRext, true
		}
		if cs.IsHDR() {
			return astiav.ProfileHevcMain10, true
		}
		return astiav.ProfileHevcMain, true
	case types.VideoFormatAV1:
		if yuv444 {
			return astiav.ProfileAv1High, true
		}
		return astiav.ProfileAv1Main, true
	default:
		return 0, false
	}
}

// sliceCount implements spec.md §4.2 step 5.
func sliceCount(flags registry.EncoderFlags, cfg types.ClientConfig, videoCfg *config.Video, isSoftware bool) int {
	slices := cfg.SlicesPerFrame
	if slices < 1 {
		slices = 1
	}
	if isSoftware && videoCfg.MinThreads > slices {
		slices = videoCfg.MinThreads
	}
	if flags.Has(registry.SingleSliceOnly) {
		slices = 1
	}
	return slices
}

// applyRateControl implements spec.md §4.2 step 6.
func applyRateControl(ctx *astiav.CodecContext, desc registry.EncoderDescriptor, cfg types.ClientConfig, isSoftware bool) {
	bitrate := int64(cfg.BitrateKbps) * 1000
	ctx.SetRcMaxRate(bitrate)
	if desc.Flags.Has(registry.CBRWithVBR) {
		// Setting bit_rate one below rc_max_rate forces the library into
		// its VBR mode, which this driver implements CBR on top of.
		ctx.SetBitRate(bitrate - 1)
	} else {
		ctx.SetBitRate(bitrate)
		ctx.SetRcMinRate(bitrate)
	}
	if desc.Flags.Has(registry.RelaxedCompliance) {
		ctx.SetStrictStdCompliance(astiav.StrictStdComplianceUnofficial)
	}
	if desc.Flags.Has(registry.NoRCBufLimit) {
		return
	}

	fps := cfg.Framerate
	if fps <= 0 {
		fps = cfg.EffectiveFramerateX100() / 100
	}
	if fps <= 0 {
		fps = 1
	}
	bufSize := bitrate / int64(fps)
	slices := cfg.SlicesPerFrame
	if isSoftware && (slices > 1 || cfg.VideoFormat == types.VideoFormatHEVC) {
		// ~1.5x headroom: divide by framerate*10/15 instead of framerate.
		denom := fps * 10 / 15
		if denom < 1 {
			denom = 1
		}
		bufSize = bitrate / int64(denom)
	}
	if desc.Name == "nvenc" {
		bufSize = bufSize * nvencVBVInflationPercent / 100
	}
	ctx.SetRcBufferSize(int(bufSize))
}

// gopSize implements spec.md §4.2 step 4's gop_size rule.
func gopSize(flags registry.EncoderFlags) int {
	if flags.Has(registry.LimitedGOPSize) {
		return math.MaxInt16
	}
	return math.MaxInt32
}

// setupHardwareFrames implements spec.md §4.2 step 7: build the base
// hwdevice context, optionally derive a second device layer through
// the encode device's hooks, then allocate and initialize an hwframe
// pool the codec context pulls its hardware frames from. A no-op for
// software-only encoders (bundle.DeviceType == HardwareDeviceTypeNone).
func setupHardwareFrames(ctx *astiav.CodecContext, device types.AVCodecEncodeDevice, bundle registry.PlatformFormatBundle, swFmt astiav.PixelFormat, width, height int) error {
	if bundle.DeviceType == astiav.HardwareDeviceTypeNone {
		return nil
	}

	base, err := astiav.CreateHardwareDeviceContext(bundle.DeviceType, "", nil, astiav.NewHardwareDeviceContextFlags())
	if err != nil {
		return fmt.Errorf("avenc: create hwdevice context (%v): %w", bundle.DeviceType, err)
	}

	hwDeviceCtx := base
	if derivedType := device.DerivedHardwareDeviceType(); derivedType != astiav.HardwareDeviceTypeNone {
		if err := device.PreStageDerivedDevice(base); err != nil {
			return fmt.Errorf("avenc: pre-stage derived hwdevice: %w", err)
		}
		derived, err := base.DeriveHardwareDeviceContext(derivedType)
		if err != nil {
			return fmt.Errorf("avenc: derive hwdevice context (%v): %w", derivedType, err)
		}
		hwDeviceCtx = derived
	}
	ctx.SetHardwareDeviceContext(hwDeviceCtx)

	frames, err := astiav.AllocHardwareFramesContext(hwDeviceCtx)
	if err != nil {
		return fmt.Errorf("avenc: alloc hwframes context: %w", err)
	}
	frames.SetFormat(ctx.PixelFormat())
	frames.SetSoftwareFormat(swFmt)
	frames.SetWidth(width)
	frames.SetHeight(height)
	frames.SetInitialPoolSize(0)
	device.ConfigureHWFramesContext(frames)
	if err := frames.Initialize(); err != nil {
		return fmt.Errorf("avenc: initialize hwframes context: %w", err)
	}
	ctx.SetHardwareFramesContext(frames)
	return nil
}

// wrapImage builds (or reuses) an astiav.Frame around img's BGRA
// bytes, the same buffer-ownership shape the teacher's bgraScaler
// destination frame uses in reverse (ImageCopyFromBuffer mirrors its
// ImageCopyToBuffer).
func (s *avcodecSession) wrapImage(img *types.Image) (*astiav.Frame, error) {
	if s.srcFrame == nil {
		s.srcFrame = astiav.AllocFrame()
		s.srcFrame.SetWidth(img.Width)
		s.srcFrame.SetHeight(img.Height)
		s.srcFrame.SetPixelFormat(astiav.PixelFormatBgra)
		if err := s.srcFrame.AllocBuffer(1); err != nil {
			return nil, fmt.Errorf("avenc: alloc source frame buffer: %w", err)
		}
	}
	if err := s.srcFrame.ImageCopyFromBuffer(img.Data, 1); err != nil {
		return nil, fmt.Errorf("avenc: copy image into source frame: %w", err)
	}
	return s.srcFrame, nil
}

func (s *avcodecSession) EncodeFrame(img *types.Image, frameIndex int64, forceIDR bool) ([]types.Packet, error) {
	src, err := s.wrapImage(img)
	if err != nil {
		return nil, err
	}

	var encFrame *astiav.Frame
	if s.device.HasNativeFrame() {
		if s.dstFrame == nil {
			s.dstFrame = astiav.AllocFrame()
		}
		if err := s.device.Transfer(s.dstFrame, src); err != nil {
			return nil, fmt.Errorf("avenc: transfer to hardware frame: %w", err)
		}
		encFrame = s.dstFrame
	} else {
		dst, err := s.conv.Convert(src)
		if err != nil {
			return nil, err
		}
		encFrame = dst
	}

	applyColorspaceToFrame(encFrame, s.colorspace)
	if s.hdr != nil {
		attachHDRSideData(encFrame, *s.hdr)
	}

	encFrame.SetPts(frameIndex)
	if forceIDR || s.pendingIDR {
		encFrame.SetKeyFrame(true)
	}
	afterInvalidate := s.pendingIDR
	s.pendingIDR = false

	if err := s.ctx.SendFrame(encFrame); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return nil, fmt.Errorf("avenc: SendFrame: %w", err)
	}

	var packets []types.Packet
	for {
		pkt := astiav.AllocPacket()
		if err := s.ctx.ReceivePacket(pkt); err != nil {
			pkt.Free()
			break
		}
		data := append([]byte(nil), pkt.Data()...)
		idr := pkt.IsKeyFrame()
		pkt.Free()

		packet := stampPacket(data, idr, afterInvalidate, frameIndex, s.displayIndex)
		if idr && !s.headerInjected {
			if replacements := stageReplacements(data, s.format, s.inject); replacements != nil {
				packet.Replacements = &replacements
			}
			s.headerInjected = true
		}
		packets = append(packets, packet)
		afterInvalidate = false
	}
	return packets, nil
}

// InvalidateRefFrames has no avcodec-level equivalent outside native
// NVENC (spec.md §4.3): every avcodec-backed session falls back to
// forcing a full IDR on the next EncodeFrame call instead.
func (s *avcodecSession) InvalidateRefFrames(first, last int64) error {
	s.pendingIDR = true
	return nil
}

func (s *avcodecSession) Close() error {
	if s.conv != nil {
		s.conv.Close()
	}
	if s.srcFrame != nil {
		s.srcFrame.Free()
	}
	if s.dstFrame != nil {
		s.dstFrame.Free()
	}
	if s.ctx != nil {
		s.ctx.Free()
	}
	closeErr := s.device.Close()
	if s.flags.Has(registry.AsyncTeardown) {
		// The caller is expected to have already detached this Close
		// call onto its own goroutine for async-teardown encoders; we
		// don't spawn one here ourselves to keep Close's error return
		// meaningful to a synchronous caller too.
		return nil
	}
	return closeErr
}
