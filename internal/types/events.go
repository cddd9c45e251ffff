package types

// CaptureContext is one subscriber of a capture task's image fan-out
// (spec.md §3): it carries the consumer's own frame counter, a bounded
// image event queue, and the client config that shaped the request.
type CaptureContext struct {
	FrameIndex   int64
	ImageEvents  chan *Image
	ClientConfig ClientConfig
	Running      bool
}

// NewCaptureContext allocates a CaptureContext with the given bounded
// fan-out queue depth.
func NewCaptureContext(cfg ClientConfig, queueDepth int) *CaptureContext {
	return &CaptureContext{
		ImageEvents:  make(chan *Image, queueDepth),
		ClientConfig: cfg,
		Running:      true,
	}
}

// HDRInfo is the payload of the "hdr" event (spec.md §6): a snapshot of
// the display's current HDR capability for one display.
type HDRInfo struct {
	DisplayIndex int16
	Enabled      bool
	Metadata     HDRMetadata
}

// RefFrameRange is the payload of "invalidate_ref_frames" (spec.md §6).
type RefFrameRange struct {
	First int64
	Last  int64
}
