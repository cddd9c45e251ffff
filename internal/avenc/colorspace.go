package avenc

import (
	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/types"
)

// avColorspace is the AVColor*/AVColorRange tuple a types.Colorspace
// maps onto, grounded on the real-world FFmpeg enum values for Rec.
// 709 SDR and BT.2020 PQ HDR (spec.md §8's colorspace round-trip
// property: whatever Colorspace the session was built with must come
// back out of the encoded bitstream's VUI/color-description fields).
type avColorspace struct {
	primaries astiav.ColorPrimaries
	transfer  astiav.ColorTransferCharacteristic
	space     astiav.ColorSpace
	fullRange bool
}

// colorspaceToAVColor maps types.Colorspace onto the AVColor* triple.
// types.Colorspace.FromClientConfig only ever produces Rec709-SDR or
// BT2020PQ-HDR today, but the table covers the full ColorspaceKind
// enum so a future producer doesn't silently fall through to a wrong
// default.
func colorspaceToAVColor(cs types.Colorspace) avColorspace {
	out := avColorspace{fullRange: cs.FullRange}
	switch cs.Kind {
	case types.ColorspaceRec601:
		out.primaries = astiav.ColorPrimariesSmpte170M
		out.transfer = astiav.ColorTransferCharacteristicSmpte170M
		out.space = astiav.ColorSpaceSmpte170M
	case types.ColorspaceBT2020SDR:
		out.primaries = astiav.ColorPrimariesBt2020
		out.transfer = astiav.ColorTransferCharacteristicBt709
		out.space = astiav.ColorSpaceBt2020Ncl
	case types.ColorspaceBT2020PQ:
		out.primaries = astiav.ColorPrimariesBt2020
		out.transfer = astiav.ColorTransferCharacteristicSmpte2084
		out.space = astiav.ColorSpaceBt2020Ncl
	case types.ColorspaceRec709:
		fallthrough
	default:
		out.primaries = astiav.ColorPrimariesBt709
		out.transfer = astiav.ColorTransferCharacteristicBt709
		out.space = astiav.ColorSpaceBt709
	}
	return out
}

func colorRange(fullRange bool) astiav.ColorRange {
	if fullRange {
		return astiav.ColorRangeJpeg
	}
	return astiav.ColorRangeMpeg
}

// applyColorspaceToContext stamps cs onto ctx's color-description
// fields (spec.md §4.2 step 4's "colorspace derived from Colorspace").
func applyColorspaceToContext(ctx *astiav.CodecContext, cs types.Colorspace) {
	av := colorspaceToAVColor(cs)
	ctx.SetColorPrimaries(av.primaries)
	ctx.SetColorTransferCharacteristic(av.transfer)
	ctx.SetColorSpace(av.space)
	ctx.SetColorRange(colorRange(av.fullRange))
}

// applyColorspaceToFrame mirrors the same fields onto every frame
// handed to the encoder, since several encoders (libx264/libx265) read
// color description off the frame rather than the codec context when
// both are present.
func applyColorspaceToFrame(frame *astiav.Frame, cs types.Colorspace) {
	av := colorspaceToAVColor(cs)
	frame.SetColorPrimaries(av.primaries)
	frame.SetColorTransferCharacteristic(av.transfer)
	frame.SetColorSpace(av.space)
	frame.SetColorRange(colorRange(av.fullRange))
}
