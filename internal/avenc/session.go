// Package avenc builds and drives encode sessions against the
// registry's catalog (spec.md §4.2-§4.4): opening an avcodec
// CodecContext with the right hwdevice/hwframe wiring and option
// dictionary for AVCODEC-backed encoders, or driving a native
// types.NVENCEncodeDevice directly for the native-SDK NVENC path.
//
// Grounded on the teacher's AAC encode setup in video.go (the only
// place in the teacher that opens an avcodec encoder end to end:
// AllocCodecContext -> field setters -> Open -> SendFrame/
// ReceivePacket drain loop), generalized from audio to video and from
// a fixed codec to the registry's per-variant option tables.
package avenc

import (
	"time"

	"github.com/streamcore/capture-core/internal/types"
)

// Session is the codec-agnostic interface both the AVCODEC and NVENC
// variants implement; the encode task only ever talks to a Session
// (spec.md §4.3).
type Session interface {
	// EncodeFrame drives img through the encoder and returns zero or
	// more ready packets (an encoder may buffer internally).
	EncodeFrame(img *types.Image, frameIndex int64, forceIDR bool) ([]types.Packet, error)

	// InvalidateRefFrames tells the encoder the given reference-frame
	// range is no longer valid downstream (client packet loss) without
	// forcing a full IDR, when the encoder's flags advertise support.
	InvalidateRefFrames(first, last int64) error

	Close() error
}

// stampPacket fills in the routing metadata the core, not the codec,
// is responsible for (spec.md §4.3, §6).
func stampPacket(data []byte, idr bool, afterInvalidate bool, frameIndex int64, displayIndex int16) types.Packet {
	now := time.Now()
	return types.Packet{
		Data:                      data,
		FrameIndex:                frameIndex,
		IDR:                       idr,
		AfterRefFrameInvalidation: afterInvalidate,
		FrameTimestamp:            &now,
		DisplayIndex:              displayIndex,
	}
}
