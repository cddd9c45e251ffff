// Package types holds the data model shared across the capture/encode
// core: client configuration, colorspace, packets, images and the
// interfaces the core consumes from the platform and codec layers.
package types

import "fmt"

// VideoFormat selects the codec family requested by a client.
type VideoFormat int

const (
	VideoFormatH264 VideoFormat = 0
	VideoFormatHEVC VideoFormat = 1
	VideoFormatAV1  VideoFormat = 2
)

func (f VideoFormat) String() string {
	switch f {
	case VideoFormatH264:
		return "h264"
	case VideoFormatHEVC:
		return "hevc"
	case VideoFormatAV1:
		return "av1"
	default:
		return fmt.Sprintf("videoformat(%d)", int(f))
	}
}

// DynamicRange selects SDR vs HDR.
type DynamicRange int

const (
	DynamicRangeSDR DynamicRange = 0
	DynamicRangeHDR DynamicRange = 1
)

// ChromaSamplingType selects 4:2:0 vs 4:4:4 chroma subsampling.
type ChromaSamplingType int

const (
	ChromaSampling420 ChromaSamplingType = 0
	ChromaSampling444 ChromaSamplingType = 1
)

// ClientConfig is the per-display encode request from the client.
type ClientConfig struct {
	Width               int
	Height              int
	Framerate           int // whole fps
	FramerateX100       int // optional high-precision fps * 100; preferred over Framerate when > 0
	BitrateKbps         int
	SlicesPerFrame      int
	VideoFormat         VideoFormat
	DynamicRange        DynamicRange
	ChromaSamplingType  ChromaSamplingType
	NumRefFrames        int
	DisplayIndex        int16
}

// EffectiveFramerateX100 resolves the framerate*100 vs framerate precedence
// documented in spec.md §9: framerateX100 wins whenever it is positive.
func (c ClientConfig) EffectiveFramerateX100() int {
	if c.FramerateX100 > 0 {
		return c.FramerateX100
	}
	return c.Framerate * 100
}

// Validate enforces the ClientConfig invariants from spec.md §3.
func (c ClientConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("clientconfig: width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Framerate <= 0 && c.FramerateX100 <= 0 {
		return fmt.Errorf("clientconfig: framerate must be positive")
	}
	switch c.VideoFormat {
	case VideoFormatH264, VideoFormatHEVC, VideoFormatAV1:
	default:
		return fmt.Errorf("clientconfig: invalid video format %d", int(c.VideoFormat))
	}
	if c.VideoFormat == VideoFormatH264 && c.DynamicRange == DynamicRangeHDR {
		return fmt.Errorf("clientconfig: H.264 does not support HDR")
	}
	return nil
}
