package avenc

import (
	"time"

	"github.com/streamcore/capture-core/internal/types"
)

// nvencSession drives a types.NVENCEncodeDevice directly, with no
// avcodec CodecContext at all (spec.md §4.2 native NVENC path). This
// is the only encoder in the catalog for which that's true, per
// registry.EncoderDescriptor.IsNativeNVENC.
type nvencSession struct {
	device       types.NVENCEncodeDevice
	displayIndex int16
}

func newNVENCSession(device types.NVENCEncodeDevice, cfg types.ClientConfig, colorspace types.Colorspace, displayIndex int16) (*nvencSession, error) {
	if err := device.Init(cfg, colorspace); err != nil {
		return nil, err
	}
	return &nvencSession{device: device, displayIndex: displayIndex}, nil
}

func (s *nvencSession) EncodeFrame(img *types.Image, frameIndex int64, forceIDR bool) ([]types.Packet, error) {
	raw, err := s.device.EncodeFrame(frameIndex, forceIDR)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	packets := make([]types.Packet, 0, len(raw))
	for _, p := range raw {
		packets = append(packets, types.Packet{
			Data:                      p.Data,
			FrameIndex:                p.FrameIndex,
			IDR:                       p.IDR,
			AfterRefFrameInvalidation: p.AfterRefFrameInvalidation,
			FrameTimestamp:            &now,
			DisplayIndex:              s.displayIndex,
		})
	}
	return packets, nil
}

func (s *nvencSession) InvalidateRefFrames(first, last int64) error {
	return s.device.InvalidateRefFrames(first, last)
}

func (s *nvencSession) Close() error {
	return s.device.Close()
}
