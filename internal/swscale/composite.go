package swscale

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// chromaLayout describes how a pixel format arranges its chroma planes,
// enough to black-fill and composite it without needing per-plane
// pointer access (astiav only exposes whole packed buffers).
type chromaLayout int

const (
	layoutPlanar420 chromaLayout = iota // separate U, V planes, half res both axes
	layoutPlanar444                     // separate U, V planes, full res
	layoutSemiPlanar420                 // interleaved UV plane, half res both axes
)

// pixFormatInfo captures what blackFillFrame and compositeInto need to
// know about a destination pixel format's byte layout.
type pixFormatInfo struct {
	layout         chromaLayout
	bytesPerSample int  // 1 for 8-bit, 2 for 10-bit-in-16
	shifted        bool // true when the sample occupies the high bits of a 16-bit word (P010Le), false when it's right-justified (Yuv420P10Le/Yuv444P10Le)
}

// pixFormatTable covers the formats the registry's PlatformFormatBundle
// actually targets (catalog.go). Packed/opaque formats outside this
// table (QSV's Vuyx/Xv30Le, or any hardware-opaque surface) keep the
// unfixed zero-fill/no-offset behavior; their exact byte layout isn't
// confirmable from anything in the pack, so guessing at it risks
// corrupting the image worse than a stretched picture would.
var pixFormatTable = map[astiav.PixelFormat]pixFormatInfo{
	astiav.PixelFormatYuv420P:    {layout: layoutPlanar420, bytesPerSample: 1},
	astiav.PixelFormatYuv420P10Le: {layout: layoutPlanar420, bytesPerSample: 2, shifted: false},
	astiav.PixelFormatYuv444P:    {layout: layoutPlanar444, bytesPerSample: 1},
	astiav.PixelFormatYuv444P10Le: {layout: layoutPlanar444, bytesPerSample: 2, shifted: false},
	astiav.PixelFormatNv12:       {layout: layoutSemiPlanar420, bytesPerSample: 1},
	astiav.PixelFormatP010Le:     {layout: layoutSemiPlanar420, bytesPerSample: 2, shifted: true},
}

// planeDims describes one plane's dimensions in samples, where a
// semi-planar UV plane has samplesPerPixel 2 (interleaved U and V).
type planeDims struct {
	w, h, samplesPerPixel int
	isChroma               bool
	subX, subY             int // chroma subsampling factors vs. the luma plane
}

func planesFor(info pixFormatInfo, w, h int) []planeDims {
	switch info.layout {
	case layoutPlanar420:
		cw, ch := (w+1)/2, (h+1)/2
		return []planeDims{
			{w: w, h: h, samplesPerPixel: 1, subX: 1, subY: 1},
			{w: cw, h: ch, samplesPerPixel: 1, isChroma: true, subX: 2, subY: 2},
			{w: cw, h: ch, samplesPerPixel: 1, isChroma: true, subX: 2, subY: 2},
		}
	case layoutPlanar444:
		return []planeDims{
			{w: w, h: h, samplesPerPixel: 1, subX: 1, subY: 1},
			{w: w, h: h, samplesPerPixel: 1, isChroma: true, subX: 1, subY: 1},
			{w: w, h: h, samplesPerPixel: 1, isChroma: true, subX: 1, subY: 1},
		}
	case layoutSemiPlanar420:
		cw, ch := (w+1)/2, (h+1)/2
		return []planeDims{
			{w: w, h: h, samplesPerPixel: 1, subX: 1, subY: 1},
			{w: cw, h: ch, samplesPerPixel: 2, isChroma: true, subX: 2, subY: 2},
		}
	}
	return nil
}

func imageSize(info pixFormatInfo, w, h int) int {
	total := 0
	for _, p := range planesFor(info, w, h) {
		total += p.w * p.h * p.samplesPerPixel * info.bytesPerSample
	}
	return total
}

// neutralChromaValue returns the mid-gray sample value for info's
// sample layout: 128 for 8-bit, 512 for unshifted 10-bit
// (Yuv420P10Le/Yuv444P10Le store the sample right-justified in the low
// 10 bits of a 16-bit word), 512<<6 for shifted 10-bit (P010Le stores
// it left-justified in the high 10 bits).
func neutralChromaValue(info pixFormatInfo) uint16 {
	if info.bytesPerSample == 1 {
		return 128
	}
	if info.shifted {
		return 512 << 6
	}
	return 512
}

func fillValue(buf []byte, value uint16, bytesPerSample int) {
	if bytesPerSample == 1 {
		v := byte(value)
		for i := range buf {
			buf[i] = v
		}
		return
	}
	lo, hi := byte(value), byte(value>>8)
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = lo
		buf[i+1] = hi
	}
}

// blackFillFrame fills dst, already buffer-allocated at its current
// width/height, with black: luma left at AllocBuffer's own zero fill
// (0 is black/minimum luma for all formats here) and chroma planes
// explicitly set to their neutral mid-point value, since zero chroma
// reads as a visible color cast rather than black (review comment on
// the letterboxed border).
func blackFillFrame(dst *astiav.Frame, pix astiav.PixelFormat) error {
	info, ok := pixFormatTable[pix]
	if !ok {
		return nil // unrecognized/packed format: leave AllocBuffer's zero fill as-is
	}

	size, err := dst.ImageBufferSize(1)
	if err != nil {
		return fmt.Errorf("swscale: image buffer size: %w", err)
	}
	buf := make([]byte, size)
	if _, err := dst.ImageCopyToBuffer(buf, 1); err != nil {
		return fmt.Errorf("swscale: copy frame to buffer: %w", err)
	}

	neutral := neutralChromaValue(info)
	offset := 0
	for _, p := range planesFor(info, dst.Width(), dst.Height()) {
		planeLen := p.w * p.h * p.samplesPerPixel * info.bytesPerSample
		if p.isChroma {
			fillValue(buf[offset:offset+planeLen], neutral, info.bytesPerSample)
		}
		offset += planeLen
	}

	if err := dst.ImageCopyFromBuffer(buf, 1); err != nil {
		return fmt.Errorf("swscale: copy buffer to frame: %w", err)
	}
	return nil
}

// compositeInto copies pad's image data into dst's buffer at (offX,
// offY), row by row per plane with chroma-subsampling-aware offsets,
// leaving the rest of dst (the letterbox border, already black-filled)
// untouched. dst and pad must share pix; pad must fit within dst at
// the given offset.
func compositeInto(dst, pad *astiav.Frame, pix astiav.PixelFormat, offX, offY int) error {
	info, ok := pixFormatTable[pix]
	if !ok {
		// Unrecognized/packed format: fall back to the old behavior of
		// just returning the unpositioned scaled image untouched by
		// letterbox offsets, a documented limitation (DESIGN.md).
		return nil
	}

	dstSize, err := dst.ImageBufferSize(1)
	if err != nil {
		return fmt.Errorf("swscale: dst image buffer size: %w", err)
	}
	dstBuf := make([]byte, dstSize)
	if _, err := dst.ImageCopyToBuffer(dstBuf, 1); err != nil {
		return fmt.Errorf("swscale: copy dst frame to buffer: %w", err)
	}

	padSize, err := pad.ImageBufferSize(1)
	if err != nil {
		return fmt.Errorf("swscale: pad image buffer size: %w", err)
	}
	padBuf := make([]byte, padSize)
	if _, err := pad.ImageCopyToBuffer(padBuf, 1); err != nil {
		return fmt.Errorf("swscale: copy pad frame to buffer: %w", err)
	}

	dstPlanes := planesFor(info, dst.Width(), dst.Height())
	padPlanes := planesFor(info, pad.Width(), pad.Height())

	dstOff, padOff := 0, 0
	for i := range dstPlanes {
		dp, pp := dstPlanes[i], padPlanes[i]
		rowBytes := pp.w * pp.samplesPerPixel * info.bytesPerSample
		dstStride := dp.w * dp.samplesPerPixel * info.bytesPerSample
		dstRowOffX := (offX / dp.subX) * dp.samplesPerPixel * info.bytesPerSample
		dstRowOffY := offY / dp.subY

		for row := 0; row < pp.h; row++ {
			srcStart := padOff + row*rowBytes
			dstStart := dstOff + (dstRowOffY+row)*dstStride + dstRowOffX
			copy(dstBuf[dstStart:dstStart+rowBytes], padBuf[srcStart:srcStart+rowBytes])
		}

		dstOff += dp.w * dp.h * dp.samplesPerPixel * info.bytesPerSample
		padOff += pp.w * pp.h * pp.samplesPerPixel * info.bytesPerSample
	}

	if err := dst.ImageCopyFromBuffer(dstBuf, 1); err != nil {
		return fmt.Errorf("swscale: copy buffer to dst frame: %w", err)
	}
	return nil
}
