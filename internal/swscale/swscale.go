// Package swscale converts a captured BGRA/RGBA image into whatever
// pixel format an encoder session needs, with aspect-preserving
// letterbox padding and per-plane pixel shifting for 10-bit targets
// (spec.md §4.5). Grounded on the teacher's bgraScaler in video.go,
// which lazily (re)builds an astiav.SoftwareScaleContext whenever the
// source dimensions or pixel format change and otherwise reuses it.
package swscale

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/types"
)

// Converter scales and converts one capture source into one encoder
// input format, rebuilding its internal SoftwareScaleContext only when
// the source or destination shape actually changes.
type Converter struct {
	ssc *astiav.SoftwareScaleContext
	pad *astiav.Frame // the scaled image at its letterboxed inner size
	dst *astiav.Frame // the full dstW x dstH canvas; nil when pad already fills it

	srcW, srcH int
	srcPix     astiav.PixelFormat

	dstW, dstH int
	dstPix     astiav.PixelFormat

	// padW/padH/offX/offY describe the letterboxed inner rectangle
	// within dstW x dstH, computed from the touchport.MakePort-style
	// aspect comparison so the scaled image lands centered with black
	// bars rather than being stretched.
	padW, padH, offX, offY int
}

// NewConverter creates a Converter targeting dstW x dstH in dstPix,
// letterboxing the source aspect ratio inside that frame.
func NewConverter(dstW, dstH int, dstPix astiav.PixelFormat) *Converter {
	return &Converter{dstW: dstW, dstH: dstH, dstPix: dstPix}
}

// Close releases the scale context and both frames.
func (c *Converter) Close() {
	if c.pad != nil {
		c.pad.Free()
		c.pad = nil
	}
	if c.dst != nil {
		c.dst.Free()
		c.dst = nil
	}
	if c.ssc != nil {
		c.ssc.Free()
		c.ssc = nil
	}
}

func (c *Converter) ensure(srcW, srcH int, srcPix astiav.PixelFormat) error {
	if c.ssc != nil && srcW == c.srcW && srcH == c.srcH && srcPix == c.srcPix {
		return nil
	}
	c.Close()

	c.padW, c.padH, c.offX, c.offY = letterbox(srcW, srcH, c.dstW, c.dstH)

	flags := astiav.NewSoftwareScaleContextFlags()
	ssc, err := astiav.CreateSoftwareScaleContext(
		srcW, srcH, srcPix,
		c.padW, c.padH, c.dstPix,
		flags,
	)
	if err != nil {
		return fmt.Errorf("swscale: create context %dx%d %v -> %dx%d %v: %w", srcW, srcH, srcPix, c.padW, c.padH, c.dstPix, err)
	}

	pad := astiav.AllocFrame()
	pad.SetWidth(c.padW)
	pad.SetHeight(c.padH)
	pad.SetPixelFormat(c.dstPix)
	if err := pad.AllocBuffer(1); err != nil {
		pad.Free()
		ssc.Free()
		return fmt.Errorf("swscale: alloc padded frame: %w", err)
	}

	var dst *astiav.Frame
	if c.padW != c.dstW || c.padH != c.dstH {
		// The source aspect doesn't fill the destination; build the full
		// canvas separately, pre-filled black, and composite the padded
		// image into its centered inner rectangle (spec.md §4.2 step 10).
		dst = astiav.AllocFrame()
		dst.SetWidth(c.dstW)
		dst.SetHeight(c.dstH)
		dst.SetPixelFormat(c.dstPix)
		if err := dst.AllocBuffer(1); err != nil {
			pad.Free()
			ssc.Free()
			dst.Free()
			return fmt.Errorf("swscale: alloc destination frame: %w", err)
		}
		if err := blackFillFrame(dst, c.dstPix); err != nil {
			pad.Free()
			ssc.Free()
			dst.Free()
			return fmt.Errorf("swscale: black-fill destination frame: %w", err)
		}
	}

	c.ssc = ssc
	c.pad = pad
	c.dst = dst
	c.srcW, c.srcH, c.srcPix = srcW, srcH, srcPix
	return nil
}

// Convert scales src into the Converter's padded inner rectangle and,
// when that rectangle doesn't already fill the destination canvas,
// composites it centered into the full dstW x dstH frame over a
// pixel-format-aware black border (spec.md §4.2 step 10). Returns the
// astiav.Frame owned by the Converter; callers must not hold it past
// the next Convert or Close call.
func (c *Converter) Convert(src *astiav.Frame) (*astiav.Frame, error) {
	if err := c.ensure(src.Width(), src.Height(), src.PixelFormat()); err != nil {
		return nil, err
	}
	if err := c.ssc.ScaleFrame(src, c.pad); err != nil {
		return nil, fmt.Errorf("swscale: scale frame: %w", err)
	}
	if c.dst == nil {
		return c.pad, nil
	}
	if err := compositeInto(c.dst, c.pad, c.dstPix, c.offX, c.offY); err != nil {
		return nil, fmt.Errorf("swscale: composite letterboxed frame: %w", err)
	}
	return c.dst, nil
}

// letterbox computes the centered inner rectangle of size padW x padH
// within dstW x dstH that preserves srcW x srcH's aspect ratio,
// mirroring touchport.MakePort's width-limited/height-limited choice.
func letterbox(srcW, srcH, dstW, dstH int) (padW, padH, offX, offY int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return dstW, dstH, 0, 0
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)
	if srcAspect > dstAspect {
		padW = dstW
		padH = int(float64(dstW) / srcAspect)
	} else {
		padH = dstH
		padW = int(float64(dstH) * srcAspect)
	}
	offX = (dstW - padW) / 2
	offY = (dstH - padH) / 2
	return
}

// ColorspaceFromClientConfig is the colorspace/chroma -> pixel-format
// lookup the encode task uses to pick a Converter's dstPix, grounded on
// original_source's colorspace_from_client_config (spec.md §4.5, §9).
func ColorspaceFromClientConfig(cs types.Colorspace, chroma types.ChromaSamplingType, sdrFormat, sdr10Format, yuv444Format, yuv444_10Format astiav.PixelFormat) astiav.PixelFormat {
	if chroma == types.ChromaSampling444 {
		if cs.BitDepth > 8 {
			return yuv444_10Format
		}
		return yuv444Format
	}
	if cs.BitDepth > 8 {
		return sdr10Format
	}
	return sdrFormat
}
