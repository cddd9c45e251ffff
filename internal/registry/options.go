package registry

import (
	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/types"
)

// ValueKind discriminates the literal forms an OptionValue can resolve
// to once applied to an astiav.Dictionary.
type ValueKind int

const (
	ValueInt ValueKind = iota
	ValueString
	ValueBool
)

// OptionValue models the catalog's option-value variant: a literal, or
// something resolved at apply time from the running Video config and
// the client's requested ClientConfig. The original expresses this as
// int | int_ref | string | string_ref | producer-lambda; Go has no
// member-pointer equivalent, so every non-literal form collapses to a
// single Resolve closure capturing whatever config field or arithmetic
// it needs.
type OptionValue struct {
	Kind ValueKind

	IntVal    int
	StringVal string
	BoolVal   bool

	// Resolve is non-nil for dynamic values (config refs and producer
	// lambdas). It is called once per session setup and must return a
	// literal OptionValue (Resolve itself must be nil on the result).
	Resolve func(v *config.Video, client types.ClientConfig) OptionValue
}

func Int(v int) OptionValue       { return OptionValue{Kind: ValueInt, IntVal: v} }
func Str(v string) OptionValue    { return OptionValue{Kind: ValueString, StringVal: v} }
func Bool(v bool) OptionValue     { return OptionValue{Kind: ValueBool, BoolVal: v} }

// Dynamic wraps a resolver that may read the current Video config, the
// client's requested ClientConfig, or both, mirroring the original's
// config-field pointers and zero/one-arg lambdas interchangeably.
func Dynamic(f func(v *config.Video, client types.ClientConfig) OptionValue) OptionValue {
	return OptionValue{Resolve: f}
}

// IntRef is a Dynamic value that reads an int out of the Video config.
func IntRef(get func(v *config.Video) int) OptionValue {
	return Dynamic(func(v *config.Video, _ types.ClientConfig) OptionValue { return Int(get(v)) })
}

// StringRef is a Dynamic value that reads a string out of the Video config.
func StringRef(get func(v *config.Video) string) OptionValue {
	return Dynamic(func(v *config.Video, _ types.ClientConfig) OptionValue { return Str(get(v)) })
}

// BoolRef is a Dynamic value that reads a bool out of the Video config.
func BoolRef(get func(v *config.Video) bool) OptionValue {
	return Dynamic(func(v *config.Video, _ types.ClientConfig) OptionValue { return Bool(get(v)) })
}

// resolved returns the literal form of ov, invoking Resolve if present.
func (ov OptionValue) resolved(v *config.Video, client types.ClientConfig) OptionValue {
	if ov.Resolve == nil {
		return ov
	}
	r := ov.Resolve(v, client)
	if r.Resolve != nil {
		panic("registry: OptionValue.Resolve returned a non-literal value")
	}
	return r
}

// OptionMap is an ordered set of named option values applied to one
// avcodec dictionary. Order matters for a couple of entries (qsv's
// low_power fallback must run after the common low_power=1), so it is
// a slice, not a map.
type OptionMap []NamedOption

// NamedOption is one entry of an OptionMap.
type NamedOption struct {
	Name  string
	Value OptionValue
}

// Opt is shorthand for building a NamedOption.
func Opt(name string, v OptionValue) NamedOption { return NamedOption{Name: name, Value: v} }

// CodecOptionSet is the per-encoder-variant option table: a Common set
// applied unconditionally, then exactly one of SDR/HDR/YUV444SDR/
// YUV444HDR layered on top depending on the negotiated colorspace and
// chroma sampling, with Fallback applied only on the encoder's second,
// relaxed attempt (spec.md §4.4 "apply options, probe, retry without
// the optional set on failure").
type CodecOptionSet struct {
	Common     OptionMap
	SDR        OptionMap
	HDR        OptionMap
	YUV444SDR  OptionMap
	YUV444HDR  OptionMap
	Fallback   OptionMap

	// FFmpegName is the avcodec encoder name this option set targets,
	// e.g. "hevc_nvenc", "h264_qsv".
	FFmpegName string
}

// SelectColorspaceOptions returns the Common set plus the one
// colorspace/chroma-specific overlay that applies, in application
// order (spec.md §4.4).
func (c CodecOptionSet) SelectColorspaceOptions(hdr, yuv444 bool) []OptionMap {
	maps := []OptionMap{c.Common}
	switch {
	case hdr && yuv444:
		maps = append(maps, c.YUV444HDR)
	case hdr:
		maps = append(maps, c.HDR)
	case yuv444:
		maps = append(maps, c.YUV444SDR)
	default:
		maps = append(maps, c.SDR)
	}
	return maps
}

// Apply resolves every option in the given maps against v/client and
// calls set(name, literal) for each, in order. set is expected to
// write into an astiav.Dictionary; kept as a callback here so this
// package has no direct astiav dependency.
func Apply(maps []OptionMap, v *config.Video, client types.ClientConfig, set func(name string, val OptionValue)) {
	for _, m := range maps {
		for _, opt := range m {
			set(opt.Name, opt.Value.resolved(v, client))
		}
	}
}
