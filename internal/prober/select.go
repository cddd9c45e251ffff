package prober

import (
	"fmt"

	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

// ErrNoEncoder is returned when no catalog entry survives validation;
// spec.md §4.1 treats this as fatal and expects the caller to ask the
// user to check their adapter/display configuration.
var ErrNoEncoder = fmt.Errorf("prober: no usable encoder found for this display")

// SelectionRequest carries the client-visible knobs that affect active-
// encoder selection (spec.md §4.1's active-hevc/av1 mode check).
type SelectionRequest struct {
	// PreferredName, when non-empty, is config.encoder: try this
	// encoder first and only this one.
	PreferredName string
	ActiveHEVCMode int
	ActiveAV1Mode  int
}

// SelectionResult is the outcome of Select: the chosen encoder, its
// matrix, and any mode downgrades applied.
type SelectionResult struct {
	Encoder           registry.EncoderDescriptor
	Matrix            Matrix
	HEVCModeDowngraded bool
	AV1ModeDowngraded  bool
}

// Select implements spec.md §4.1's active-encoder selection.
func (p *Prober) Select(req SelectionRequest, display types.DisplayHandle) (*SelectionResult, error) {
	if req.PreferredName != "" {
		for _, desc := range p.Catalog {
			if desc.Name != req.PreferredName {
				continue
			}
			if ok, matrix := p.ValidateEncoder(desc, display, false); ok {
				return p.finalize(desc, matrix, req), nil
			}
		}
		return nil, fmt.Errorf("%w: %q failed validation", ErrNoEncoder, req.PreferredName)
	}

	wantsCodecConstraints := req.ActiveHEVCMode >= 2 || req.ActiveAV1Mode >= 2
	for _, desc := range p.Catalog {
		ok, matrix := p.ValidateEncoder(desc, display, false)
		if !ok {
			continue
		}
		if wantsCodecConstraints && !satisfiesCodecConstraints(matrix, req) {
			continue
		}
		return p.finalize(desc, matrix, req), nil
	}
	return nil, ErrNoEncoder
}

func satisfiesCodecConstraints(matrix Matrix, req SelectionRequest) bool {
	if req.ActiveHEVCMode >= 2 {
		if flags, ok := matrix[types.VideoFormatHEVC]; !ok || !flags.Has(registry.Passed) {
			return false
		}
	}
	if req.ActiveAV1Mode >= 2 {
		if flags, ok := matrix[types.VideoFormatAV1]; !ok || !flags.Has(registry.Passed) {
			return false
		}
	}
	return true
}

// finalize applies the HEVC Main10/AV1 mode-3 downgrade rule: if the
// selected encoder doesn't support the dynamic-range-capable variant
// of a codec but the client asked to require it (mode 3), downgrade
// that codec to disabled (mode 0) with a warning left for the caller
// to log.
func (p *Prober) finalize(desc registry.EncoderDescriptor, matrix Matrix, req SelectionRequest) *SelectionResult {
	res := &SelectionResult{Encoder: desc, Matrix: matrix}
	if req.ActiveHEVCMode == 3 {
		flags, ok := matrix[types.VideoFormatHEVC]
		if !ok || !flags.Has(registry.DynamicRange) {
			res.HEVCModeDowngraded = true
		}
	}
	if req.ActiveAV1Mode == 3 {
		flags, ok := matrix[types.VideoFormatAV1]
		if !ok || !flags.Has(registry.DynamicRange) {
			res.AV1ModeDowngraded = true
		}
	}
	return res
}
