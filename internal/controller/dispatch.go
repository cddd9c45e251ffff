package controller

import (
	"github.com/streamcore/capture-core/internal/avenc"
	"github.com/streamcore/capture-core/internal/prober"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

// ValidateEncoder is the controller-facing wrapper around the
// prober's per-encoder validation (spec.md §4.6's "validate_encoder"
// facade entry), kept here so capture/encode tasks depend on
// controller rather than reaching into internal/prober directly.
func ValidateEncoder(p *prober.Prober, desc registry.EncoderDescriptor, display types.DisplayHandle, expectFailure bool) (bool, prober.Matrix) {
	return p.ValidateEncoder(desc, display, expectFailure)
}

// Encode is the controller-facing encode dispatcher (spec.md §4.6):
// drives one frame through session and pushes every resulting packet
// into sink, stamping channelData through untouched.
func Encode(session avenc.Session, img *types.Image, frameIndex int64, forceIDR bool, channelData types.ChannelData, sink types.PacketSink) error {
	packets, err := session.EncodeFrame(img, frameIndex, forceIDR)
	if err != nil {
		return err
	}
	for _, pkt := range packets {
		pkt.ChannelData = channelData
		sink.Push(pkt)
	}
	return nil
}
