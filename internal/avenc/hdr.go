package avenc

import (
	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/types"
)

// attachHDRSideData stamps mastering-display and content-light-level
// side data onto frame (spec.md §4.2 step 9), so libx265/encoders that
// read it off the frame can emit the matching SEI messages. Grounded
// on display.GetHDRMetadata's field shape; the astiav setters this
// calls are modeled on the Set<Field> idiom already used for color
// description elsewhere in this package, since the AVMasteringDisplay
// Metadata/AVContentLightMetadata side-data wrappers aren't exercised
// anywhere in the teacher.
func attachHDRSideData(frame *astiav.Frame, metadata types.HDRMetadata) {
	md := astiav.NewMasteringDisplayMetadata()
	md.SetDisplayPrimaries(metadata.DisplayPrimariesX, metadata.DisplayPrimariesY)
	md.SetWhitePoint(metadata.WhitePointX, metadata.WhitePointY)
	md.SetLuminance(metadata.MinDisplayLuminance, metadata.MaxDisplayLuminance)
	frame.SetMasteringDisplayMetadata(md)

	cl := astiav.NewContentLightMetadata()
	cl.SetMaxCLL(uint32(metadata.MaxCLL))
	cl.SetMaxFALL(uint32(metadata.MaxFALL))
	frame.SetContentLightMetadata(cl)
}
