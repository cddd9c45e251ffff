package registry

import (
	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/types"
)

// PlatformFormatBundle is the hwdevice/pixel-format wiring for one
// encoder, mirroring encoder_platform_formats_avcodec in video.cpp:
// which hwdevice type backs it, an optional derived device type for
// encoders that need a second hwdevice layered on the first (QSV's
// derived QSV device on top of a base D3D11VA device), and the pixel
// formats used for the hardware frame, SDR 8-bit, SDR 10-bit, and the
// two 4:4:4 variants.
type PlatformFormatBundle struct {
	DeviceType        astiav.HardwareDeviceType
	DerivedDeviceType astiav.HardwareDeviceType
	DeviceFormat      astiav.PixelFormat
	SDRFormat         astiav.PixelFormat
	SDR10Format       astiav.PixelFormat
	YUV444Format      astiav.PixelFormat
	YUV444_10Format   astiav.PixelFormat
}

// CodecVariant binds one avcodec encoder name (e.g. "hevc_nvenc") to
// its option table. A CodecVariant with an empty FFmpegName (the
// native NVENC SDK path) carries no avcodec dictionary options at all;
// its encode session is built through types.NVENCEncodeDevice instead.
type CodecVariant struct {
	Options CodecOptionSet
}

// EncoderDescriptor is one entry of the fixed ordered catalog
// (spec.md §4.1): a vendor/software backend offering up to three
// codec variants, each with its own option table, sharing one
// PlatformFormatBundle and one EncoderFlags bitset.
type EncoderDescriptor struct {
	Name      string
	Platforms []string // empty means all platforms
	Formats   PlatformFormatBundle
	AV1       *CodecVariant
	HEVC      *CodecVariant
	H264      *CodecVariant
	Flags     EncoderFlags
}

// Variants returns the descriptor's non-nil codec variants in the
// fixed av1/hevc/h264 probe order (spec.md §4.3: "AV1, then HEVC, then
// H264, stopping at the client's requested format or better").
func (e EncoderDescriptor) Variants() []*CodecVariant {
	out := make([]*CodecVariant, 0, 3)
	for _, v := range []*CodecVariant{e.AV1, e.HEVC, e.H264} {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// nvencNative is the Windows-only native NVENC SDK path: no avcodec
// dictionary at all, built through types.NVENCEncodeDevice. Kept as a
// catalog entry (rather than folded into the avcodec path) because its
// capability flags genuinely differ: it alone offers reference-frame
// invalidation and async teardown.
var nvencNative = EncoderDescriptor{
	Name:      "nvenc",
	Platforms: []string{"windows"},
	AV1:       &CodecVariant{},
	HEVC:      &CodecVariant{},
	H264:      &CodecVariant{},
	Flags:     ParallelEncoding | RefFramesInvalidation | YUV444Support | AsyncTeardown,
}

// nvencAVCodec is the avcodec/CUDA fallback path used when the native
// NVENC SDK binding isn't available — practically, Linux.
var nvencAVCodec = EncoderDescriptor{
	Name:      "nvenc",
	Platforms: []string{"linux"},
	Formats: PlatformFormatBundle{
		DeviceType:  astiav.HardwareDeviceTypeCuda,
		DeviceFormat: astiav.PixelFormatCuda,
		SDRFormat:   astiav.PixelFormatNv12,
		SDR10Format: astiav.PixelFormatP010Le,
	},
	AV1: &CodecVariant{Options: nvencCommonOptions("av1_nvenc")},
	HEVC: &CodecVariant{Options: func() CodecOptionSet {
		opts := nvencCommonOptions("hevc_nvenc")
		opts.SDR = OptionMap{Opt("profile", Int(1))} // nv::profile_hevc_e::main
		opts.HDR = OptionMap{Opt("profile", Int(2))} // nv::profile_hevc_e::main_10
		return opts
	}()},
	H264: &CodecVariant{Options: func() CodecOptionSet {
		opts := nvencCommonOptions("h264_nvenc")
		opts.Common = append(opts.Common, Opt("coder", StringRef(func(v *config.Video) string { return v.NVLegacy.H264Coder })))
		opts.SDR = OptionMap{Opt("profile", Int(100))} // nv::profile_h264_e::high
		return opts
	}()},
	Flags: ParallelEncoding,
}

func nvencCommonOptions(name string) CodecOptionSet {
	return CodecOptionSet{
		FFmpegName: name,
		Common: OptionMap{
			Opt("delay", Int(0)),
			Opt("forced-idr", Int(1)),
			Opt("zerolatency", Int(1)),
			Opt("surfaces", Int(1)),
			Opt("cbr_padding", Bool(false)),
			Opt("preset", StringRef(func(v *config.Video) string { return v.NVLegacy.Preset })),
			Opt("tune", Str("ull")),
			Opt("rc", Str("cbr")),
			Opt("multipass", StringRef(func(v *config.Video) string { return v.NVLegacy.Multipass })),
			Opt("aq", IntRef(func(v *config.Video) int { return v.NVLegacy.AQ })),
		},
	}
}

// quicksync is the Windows-only D3D11VA-derived QSV path (this
// original only wires Quick Sync under Windows).
var quicksync = EncoderDescriptor{
	Name:      "quicksync",
	Platforms: []string{"windows"},
	Formats: PlatformFormatBundle{
		DeviceType:        astiav.HardwareDeviceTypeD3D11Va,
		DerivedDeviceType: astiav.HardwareDeviceTypeQsv,
		DeviceFormat:      astiav.PixelFormatQsv,
		SDRFormat:         astiav.PixelFormatNv12,
		SDR10Format:       astiav.PixelFormatP010Le,
		YUV444Format:      astiav.PixelFormatVuyx,
		YUV444_10Format:   astiav.PixelFormatXv30Le,
	},
	AV1: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "av1_qsv",
		Common: OptionMap{
			Opt("preset", StringRef(func(v *config.Video) string { return v.QSV.Preset })),
			Opt("forced_idr", Int(1)),
			Opt("async_depth", Int(1)),
			Opt("low_delay_brc", Int(1)),
			Opt("low_power", Int(1)),
		},
		SDR:       OptionMap{Opt("profile", Int(1))}, // qsv::profile_av1_e::main
		HDR:       OptionMap{Opt("profile", Int(1))}, // qsv::profile_av1_e::main
		YUV444SDR: OptionMap{Opt("profile", Int(2))}, // qsv::profile_av1_e::high
		YUV444HDR: OptionMap{Opt("profile", Int(2))}, // qsv::profile_av1_e::high
	}},
	HEVC: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "hevc_qsv",
		Common: OptionMap{
			Opt("preset", StringRef(func(v *config.Video) string { return v.QSV.Preset })),
			Opt("forced_idr", Int(1)),
			Opt("async_depth", Int(1)),
			Opt("low_delay_brc", Int(1)),
			Opt("low_power", Int(1)),
			Opt("recovery_point_sei", Int(0)),
			Opt("pic_timing_sei", Int(0)),
		},
		SDR:       OptionMap{Opt("profile", Int(1))}, // qsv::profile_hevc_e::main
		HDR:       OptionMap{Opt("profile", Int(2))}, // qsv::profile_hevc_e::main_10
		YUV444SDR: OptionMap{Opt("profile", Int(3))}, // qsv::profile_hevc_e::rext
		YUV444HDR: OptionMap{Opt("profile", Int(3))}, // qsv::profile_hevc_e::rext
		Fallback: OptionMap{
			Opt("low_power", Dynamic(func(v *config.Video, _ types.ClientConfig) OptionValue {
				if v.QSV.SlowHEVC {
					return Int(0)
				}
				return Int(1)
			})),
		},
	}},
	H264: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "h264_qsv",
		Common: OptionMap{
			Opt("preset", StringRef(func(v *config.Video) string { return v.QSV.Preset })),
			Opt("cavlc", BoolRef(func(v *config.Video) bool { return v.QSV.CAVLC })),
			Opt("forced_idr", Int(1)),
			Opt("async_depth", Int(1)),
			Opt("low_delay_brc", Int(1)),
			Opt("low_power", Int(1)),
			Opt("recovery_point_sei", Int(0)),
			Opt("vcm", Int(1)),
			Opt("pic_timing_sei", Int(0)),
			Opt("max_dec_frame_buffering", Int(1)),
		},
		SDR:       OptionMap{Opt("profile", Int(100))}, // qsv::profile_h264_e::high
		YUV444SDR: OptionMap{Opt("profile", Int(244))}, // qsv::profile_h264_e::high_444p
		Fallback: OptionMap{
			// Some old/low-end Intel GPUs don't support low power encoding.
			Opt("low_power", Int(0)),
		},
	}},
	Flags: ParallelEncoding | CBRWithVBR | RelaxedCompliance | NoRCBufLimit | YUV444Support,
}

var amdvce = EncoderDescriptor{
	Name:      "amdvce",
	Platforms: []string{"windows"},
	Formats: PlatformFormatBundle{
		DeviceType:   astiav.HardwareDeviceTypeD3D11Va,
		DeviceFormat: astiav.PixelFormatD3D11,
		SDRFormat:    astiav.PixelFormatNv12,
		SDR10Format:  astiav.PixelFormatP010Le,
	},
	AV1: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "av1_amf",
		Common: OptionMap{
			Opt("filler_data", Bool(false)),
			Opt("forced_idr", Int(1)),
			Opt("latency", Str("lowest_latency")),
			Opt("async_depth", Int(1)),
			Opt("skip_frame", Int(0)),
			Opt("log_to_dbg", logToDbg()),
			Opt("preencode", BoolRef(func(v *config.Video) bool { return v.AMD.Preanalysis })),
			Opt("quality", StringRef(func(v *config.Video) string { return v.AMD.QualityAV1 })),
			Opt("rc", StringRef(func(v *config.Video) string { return v.AMD.RCAV1 })),
			Opt("usage", StringRef(func(v *config.Video) string { return v.AMD.UsageAV1 })),
			Opt("enforce_hrd", BoolRef(func(v *config.Video) bool { return v.AMD.EnforceHRD })),
		},
	}},
	HEVC: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "hevc_amf",
		Common: OptionMap{
			Opt("filler_data", Bool(false)),
			Opt("forced_idr", Int(1)),
			Opt("latency", Int(1)),
			Opt("async_depth", Int(1)),
			Opt("skip_frame", Int(0)),
			Opt("log_to_dbg", logToDbg()),
			Opt("gops_per_idr", Int(1)),
			Opt("header_insertion_mode", Str("idr")),
			Opt("preencode", BoolRef(func(v *config.Video) bool { return v.AMD.Preanalysis })),
			Opt("quality", StringRef(func(v *config.Video) string { return v.AMD.QualityHEVC })),
			Opt("rc", StringRef(func(v *config.Video) string { return v.AMD.RCHEVC })),
			Opt("usage", StringRef(func(v *config.Video) string { return v.AMD.UsageHEVC })),
			Opt("vbaq", BoolRef(func(v *config.Video) bool { return v.AMD.VBAQ })),
			Opt("enforce_hrd", BoolRef(func(v *config.Video) bool { return v.AMD.EnforceHRD })),
			Opt("level", amdHEVCLevel()),
		},
	}},
	H264: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "h264_amf",
		Common: OptionMap{
			Opt("filler_data", Bool(false)),
			Opt("forced_idr", Int(1)),
			Opt("latency", Int(1)),
			Opt("async_depth", Int(1)),
			Opt("frame_skipping", Int(0)),
			Opt("log_to_dbg", logToDbg()),
			Opt("preencode", BoolRef(func(v *config.Video) bool { return v.AMD.Preanalysis })),
			Opt("quality", StringRef(func(v *config.Video) string { return v.AMD.QualityH264 })),
			Opt("rc", StringRef(func(v *config.Video) string { return v.AMD.RCH264 })),
			Opt("usage", StringRef(func(v *config.Video) string { return v.AMD.UsageH264 })),
			Opt("vbaq", BoolRef(func(v *config.Video) bool { return v.AMD.VBAQ })),
			Opt("enforce_hrd", BoolRef(func(v *config.Video) bool { return v.AMD.EnforceHRD })),
		},
	}},
	Flags: ParallelEncoding,
}

// logToDbg stands in for the [](){ return min_log_level < 2 ? 1 : 0; }
// lambda shared by every amdvce variant. It always yields 0, the
// lambda's value at the default min_log_level of 2; config.MinLogLevel
// is not consulted.
func logToDbg() OptionValue {
	return Dynamic(func(v *config.Video, _ types.ClientConfig) OptionValue {
		return Int(0)
	})
}

// amdHEVCLevel mirrors amdvce's [](const config_t &cfg){ ... } level
// selector, which picks "5.1"/"5.2"/"auto" from the client's requested
// resolution and framerate.
func amdHEVCLevel() OptionValue {
	return Dynamic(func(_ *config.Video, client types.ClientConfig) OptionValue {
		size := client.Width * client.Height
		if size <= 8912896 {
			switch {
			case size*client.Framerate <= 534773760:
				return Str("5.1")
			case size*client.Framerate <= 1069547520:
				return Str("5.2")
			}
		}
		return Str("auto")
	})
}

var software = EncoderDescriptor{
	Name:      "software",
	Platforms: nil,
	Formats: PlatformFormatBundle{
		DeviceType:      astiav.HardwareDeviceTypeNone,
		SDRFormat:       astiav.PixelFormatYuv420P,
		SDR10Format:     astiav.PixelFormatYuv420P10Le,
		YUV444Format:    astiav.PixelFormatYuv444P,
		YUV444_10Format: astiav.PixelFormatYuv444P10Le,
	},
	AV1: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "libsvtav1",
		Common: OptionMap{
			// An infinite GOP length with a low-delay prediction
			// structure, forcing key frames on every I frame, and a
			// zero max bitrate to sidestep an FFmpeg CBR bug.
			Opt("svtav1-params", Str("keyint=-1:pred-struct=1:force-key-frames=1:mbr=0")),
			Opt("preset", StringRef(func(v *config.Video) string { return v.SW.SVTAV1Preset })),
		},
	}},
	HEVC: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "libx265",
		Common: OptionMap{
			// x265's Info SEI is long enough to push the IDR picture
			// data into the 2nd packet, which breaks strict parsers
			// that assume it's in the first; keyint is passed through
			// x265-params since avcodec's gop_size isn't honored here.
			Opt("forced-idr", Int(1)),
			Opt("x265-params", Str("info=0:keyint=-1")),
			Opt("preset", StringRef(func(v *config.Video) string { return v.SW.SWPreset })),
			Opt("tune", StringRef(func(v *config.Video) string { return v.SW.SWTune })),
		},
	}},
	H264: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "libx264",
		Common: OptionMap{
			Opt("preset", StringRef(func(v *config.Video) string { return v.SW.SWPreset })),
			Opt("tune", StringRef(func(v *config.Video) string { return v.SW.SWTune })),
		},
	}},
	Flags: H264Only | ParallelEncoding | AlwaysReprobe | YUV444Support,
}

var vaapi = EncoderDescriptor{
	Name:      "vaapi",
	Platforms: []string{"linux"},
	Formats: PlatformFormatBundle{
		DeviceType:  astiav.HardwareDeviceTypeVaapi,
		DeviceFormat: astiav.PixelFormatVaapi,
		SDRFormat:   astiav.PixelFormatNv12,
		SDR10Format: astiav.PixelFormatP010Le,
	},
	AV1: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "av1_vaapi",
		Common: OptionMap{
			Opt("async_depth", Int(1)),
			Opt("idr_interval", Int(maxInt)),
		},
	}},
	HEVC: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "hevc_vaapi",
		Common: OptionMap{
			Opt("async_depth", Int(1)),
			Opt("sei", Int(0)),
			Opt("idr_interval", Int(maxInt)),
		},
	}},
	H264: &CodecVariant{Options: CodecOptionSet{
		FFmpegName: "h264_vaapi",
		Common: OptionMap{
			Opt("async_depth", Int(1)),
			Opt("sei", Int(0)),
			Opt("idr_interval", Int(maxInt)),
		},
	}},
	// RC buffer size is set in platform device setup code when supported.
	Flags: LimitedGOPSize | ParallelEncoding | NoRCBufLimit,
}

var videotoolbox = EncoderDescriptor{
	Name:      "videotoolbox",
	Platforms: []string{"darwin"},
	Formats: PlatformFormatBundle{
		DeviceType:   astiav.HardwareDeviceTypeVideotoolbox,
		DeviceFormat: astiav.PixelFormatVideotoolbox,
		SDRFormat:    astiav.PixelFormatNv12,
		SDR10Format:  astiav.PixelFormatP010Le,
	},
	AV1:  &CodecVariant{Options: vtCommonOptions("av1_videotoolbox")},
	HEVC: &CodecVariant{Options: vtCommonOptions("hevc_videotoolbox")},
	H264: &CodecVariant{Options: func() CodecOptionSet {
		opts := vtCommonOptions("h264_videotoolbox")
		opts.Fallback = OptionMap{Opt("flags", Str("-low_delay"))}
		return opts
	}()},
	Flags: 0, // matches the original's DEFAULT: no special flags
}

func vtCommonOptions(name string) CodecOptionSet {
	return CodecOptionSet{
		FFmpegName: name,
		Common: OptionMap{
			Opt("allow_sw", BoolRef(func(v *config.Video) bool { return v.VT.AllowSW })),
			Opt("require_sw", BoolRef(func(v *config.Video) bool { return v.VT.RequireSW })),
			Opt("realtime", BoolRef(func(v *config.Video) bool { return v.VT.Realtime })),
			Opt("prio_speed", Int(1)),
			Opt("max_ref_frames", Int(1)),
		},
	}
}

const maxInt = int(^uint(0) >> 1)

// Catalog is the fixed ordered list of encoder backends the prober
// walks, matching the original's encoders vector: hardware vendors in
// vendor-preference order, software always last (spec.md §4.1).
var Catalog = []EncoderDescriptor{
	nvencNative,
	nvencAVCodec,
	quicksync,
	amdvce,
	vaapi,
	videotoolbox,
	software,
}

// ForPlatform returns the catalog entries applicable to goos (as
// reported by runtime.GOOS), preserving catalog order.
func ForPlatform(goos string) []EncoderDescriptor {
	out := make([]EncoderDescriptor, 0, len(Catalog))
	for _, e := range Catalog {
		if len(e.Platforms) == 0 {
			out = append(out, e)
			continue
		}
		for _, p := range e.Platforms {
			if p == goos {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
