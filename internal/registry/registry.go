// Package registry holds the fixed, ordered catalog of encoder
// backends the prober walks to find a working hardware or software
// encoder for a display (spec.md §4.1-§4.4), and the discriminated
// option-value model used to build each backend's avcodec dictionary.
package registry

import "github.com/streamcore/capture-core/internal/types"

// VariantFor returns the descriptor's CodecVariant for the requested
// video format, or nil if this encoder doesn't offer that codec.
func (e EncoderDescriptor) VariantFor(format types.VideoFormat) *CodecVariant {
	switch format {
	case types.VideoFormatAV1:
		return e.AV1
	case types.VideoFormatHEVC:
		return e.HEVC
	case types.VideoFormatH264:
		return e.H264
	default:
		return nil
	}
}

// IsNativeNVENC reports whether e is the native-SDK NVENC path, which
// carries no avcodec option tables and is driven entirely through
// types.NVENCEncodeDevice.
func (e EncoderDescriptor) IsNativeNVENC() bool {
	return e.Name == "nvenc" && e.Formats.DeviceType == 0 && e.Formats.SDRFormat == 0
}

// ByName returns every catalog entry with the given backend name
// (there may be more than one, split by platform, as with nvenc).
func ByName(name string) []EncoderDescriptor {
	var out []EncoderDescriptor
	for _, e := range Catalog {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// OrderedFormats ranks the video formats from most to least capable:
// AV1, then HEVC, then H264 (spec.md §4.3). Rank is its only user; the
// prober does not walk it (ValidateEncoder probes H264 first).
var OrderedFormats = []types.VideoFormat{
	types.VideoFormatAV1,
	types.VideoFormatHEVC,
	types.VideoFormatH264,
}

// Rank returns f's position in OrderedFormats, used to compare whether
// one negotiated format is "at least as good as" the client's request.
func Rank(f types.VideoFormat) int {
	for i, of := range OrderedFormats {
		if of == f {
			return i
		}
	}
	return len(OrderedFormats)
}
