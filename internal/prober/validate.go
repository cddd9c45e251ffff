package prober

import (
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

// ValidateEncoder implements validateEncoder(enc, expectFailure) from
// spec.md §4.1: builds the per-format capability matrix for desc
// against display, returning false the moment H.264 itself is
// rejected.
func (p *Prober) ValidateEncoder(desc registry.EncoderDescriptor, display types.DisplayHandle, expectFailure bool) (bool, Matrix) {
	matrix := make(Matrix)

	if !display.IsCodecSupported("h264", baselineConfig(0)) {
		return false, matrix
	}

	refLimitCfg := baselineConfig(1)
	autoCfg := baselineConfig(0)

	var refLimitErr, autoErr error
	if expectFailure {
		autoErr = p.probeConfig(desc, types.VideoFormatH264, display, autoCfg)
		refLimitErr = p.probeConfig(desc, types.VideoFormatH264, display, refLimitCfg)
	} else {
		refLimitErr = p.probeConfig(desc, types.VideoFormatH264, display, refLimitCfg)
		autoErr = p.probeConfig(desc, types.VideoFormatH264, display, autoCfg)
	}
	if autoErr != nil {
		return false, matrix
	}

	h264Flags := registry.Passed
	refFramesRestrict := refLimitErr == nil
	if refFramesRestrict {
		h264Flags |= registry.RefFramesRestrict
	}
	if p.probeVUIParameters(desc, types.VideoFormatH264, display, autoCfg) {
		h264Flags |= registry.VUIParameters
	}
	matrix[types.VideoFormatH264] = h264Flags

	for _, format := range []types.VideoFormat{types.VideoFormatHEVC, types.VideoFormatAV1} {
		if desc.Flags.Has(registry.H264Only) {
			continue
		}
		variant := desc.VariantFor(format)
		if variant == nil || !display.IsCodecSupported(codecName(format), baselineConfig(0)) {
			continue
		}

		flags := registry.Passed
		refCfg := baselineConfig(1)
		refCfg.VideoFormat = format
		if err := p.probeConfig(desc, format, display, refCfg); err == nil {
			flags |= registry.RefFramesRestrict
		} else if !refFramesRestrict {
			// H.264 ref-limit failed too, so we can't assume autoselect
			// works here; it has to actually be probed.
			autoFmtCfg := baselineConfig(0)
			autoFmtCfg.VideoFormat = format
			if err := p.probeConfig(desc, format, display, autoFmtCfg); err != nil {
				continue
			}
		}
		// else: H.264 ref-limit already succeeded on this encoder, so
		// autoselect is assumed to work here too without spending another
		// probe (spec.md §4.1 step 4).
		if p.probeVUIParameters(desc, format, display, refCfg) {
			flags |= registry.VUIParameters
		}
		matrix[format] = flags
	}

	p.runHDRYUV444Suite(desc, display, matrix)

	if p.ForceVideoHeaderReplace {
		for format, flags := range matrix {
			matrix[format] = flags &^ registry.VUIParameters
		}
	}

	if p.Results == nil {
		p.Results = make(map[string]Matrix)
	}
	p.Results[desc.Name] = matrix
	return true, matrix
}

// runHDRYUV444Suite implements spec.md §4.1 step 5: H.264 only ever
// gets a 4:4:4 SDR trial (it never advertises HDR); HEVC and AV1 try
// 4:4:4 HDR first, falling back to 4:2:0 HDR.
func (p *Prober) runHDRYUV444Suite(desc registry.EncoderDescriptor, display types.DisplayHandle, matrix Matrix) {
	if !display.IsHDR() && !desc.Flags.Has(registry.YUV444Support) {
		return
	}

	if flags, ok := matrix[types.VideoFormatH264]; ok && desc.Flags.Has(registry.YUV444Support) {
		cfg := baselineConfig(0)
		cfg.ChromaSamplingType = types.ChromaSampling444
		if p.probeConfig(desc, types.VideoFormatH264, display, cfg) == nil {
			matrix[types.VideoFormatH264] = flags | registry.YUV444
		}
	}

	for _, format := range []types.VideoFormat{types.VideoFormatHEVC, types.VideoFormatAV1} {
		flags, ok := matrix[format]
		if !ok {
			continue
		}
		if desc.Flags.Has(registry.YUV444Support) {
			if p.probeConfig(desc, format, display, hdrYUV444Config(format, true)) == nil {
				matrix[format] = flags | registry.YUV444 | registry.DynamicRange
				continue
			}
		}
		if p.probeConfig(desc, format, display, hdrYUV444Config(format, false)) == nil {
			matrix[format] = flags | registry.DynamicRange
		}
	}
}

func codecName(f types.VideoFormat) string {
	switch f {
	case types.VideoFormatH264:
		return "h264"
	case types.VideoFormatHEVC:
		return "hevc"
	case types.VideoFormatAV1:
		return "av1"
	default:
		return "unknown"
	}
}
