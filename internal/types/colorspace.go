package types

// ColorspaceKind enumerates the colorspace families a session can target.
type ColorspaceKind int

const (
	ColorspaceRec601 ColorspaceKind = iota
	ColorspaceRec709
	ColorspaceBT2020SDR
	ColorspaceBT2020PQ
)

func (k ColorspaceKind) String() string {
	switch k {
	case ColorspaceRec601:
		return "rec601"
	case ColorspaceRec709:
		return "rec709"
	case ColorspaceBT2020SDR:
		return "bt2020sdr"
	case ColorspaceBT2020PQ:
		return "bt2020pq"
	default:
		return "unknown"
	}
}

// Colorspace is the resolved color description for a session, derived
// from ClientConfig plus the display's HDR state (spec.md §3).
type Colorspace struct {
	Kind      ColorspaceKind
	BitDepth  int // 8 or 10
	FullRange bool
}

// IsHDR reports whether this colorspace requires HDR side-data and a
// 10-bit pixel format.
func (c Colorspace) IsHDR() bool {
	return c.Kind == ColorspaceBT2020PQ
}

// FromClientConfig derives a Colorspace the way video.cpp's
// colorspace_from_client_config does: HDR is only honored if the
// display is actually HDR-capable; chroma/bit-depth follow the client
// request independent of colorspace kind.
func FromClientConfig(cfg ClientConfig, displayIsHDR bool) Colorspace {
	cs := Colorspace{BitDepth: 8}
	if cfg.DynamicRange == DynamicRangeHDR && displayIsHDR {
		cs.Kind = ColorspaceBT2020PQ
		cs.BitDepth = 10
		return cs
	}
	// SDR path: rec709 is the default for modern displays, rec601 is kept
	// only for legacy low-resolution sources in the original; this core
	// always selects rec709 for SDR since the Display Capture interface
	// never reports legacy analog sources.
	cs.Kind = ColorspaceRec709
	return cs
}
