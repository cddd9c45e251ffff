package registry

// EncoderFlags are static, per-encoder properties that never change
// across probes (spec.md §4.2). Bitset over a single encoder, as
// opposed to CapabilityFlags which are per-probe-result.
type EncoderFlags uint32

const (
	// ParallelEncoding means multiple encode sessions against this
	// encoder may run concurrently (separate displays).
	ParallelEncoding EncoderFlags = 1 << iota
	// H264Only restricts the encoder to the H264 codec regardless of
	// what the catalog otherwise lists (software libx264/libx265/
	// libsvtav1 bundle, where only libx264 is considered default-safe).
	H264Only
	// LimitedGOPSize caps the configurable GOP length (vaapi driver
	// restriction).
	LimitedGOPSize
	// SingleSliceOnly means the slice count is clamped to 1 when an
	// AVCODEC session is built, whatever slicesPerFrame asks for.
	SingleSliceOnly
	// CBRWithVBR means CBR is implemented by clamping a VBR-style
	// rate controller rather than a true constant-bitrate mode.
	CBRWithVBR
	// RelaxedCompliance loosens avcodec strict-compliance checks
	// because the driver emits technically-nonconformant streams.
	RelaxedCompliance
	// NoRCBufLimit means the rc_buffer_size option has no effect and
	// must not be relied on for VBV sizing.
	NoRCBufLimit
	// RefFramesInvalidation means the encoder supports the
	// invalidate_ref_frames protocol instead of requiring a full IDR
	// on reference-frame loss.
	RefFramesInvalidation
	// AlwaysReprobe makes prober.ShouldReprobe report true whenever this
	// encoder is the active one.
	AlwaysReprobe
	// YUV444Support means the encoder can be probed in 4:4:4 chroma
	// mode in addition to 4:2:0.
	YUV444Support
	// AsyncTeardown means Close may be run on a detached goroutine
	// instead of blocking the encode task's shutdown path.
	AsyncTeardown
)

func (f EncoderFlags) Has(bit EncoderFlags) bool { return f&bit != 0 }

// CapabilityFlags are the result of successfully probing one encoder
// variant (spec.md §4.3): which of the optional paths it actually
// accepted.
type CapabilityFlags uint32

const (
	// Passed means the probe's baseline single-frame trial succeeded.
	Passed CapabilityFlags = 1 << iota
	// RefFramesRestrict means the probe with NumRefFrames pinned to 1
	// succeeded, so sessions apply the client's reference-frame count.
	RefFramesRestrict
	// DynamicRange means the HDR probe variant succeeded.
	DynamicRange
	// YUV444 means the 4:4:4 probe variant succeeded.
	YUV444
	// VUIParameters means the probe found VUI parameters already present
	// in the encoder's SPS, so the session needs no header rewrite.
	VUIParameters
)

func (c CapabilityFlags) Has(bit CapabilityFlags) bool { return c&bit != 0 }
