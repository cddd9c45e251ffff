// Package touchport maintains the shared, non-overlapping touch/input
// geometry union across all active displays (spec.md §3, §4.6, §9).
package touchport

// Port is the rectangle in display-environment coordinates used to
// translate absolute pointer input into per-display coordinates.
type Port struct {
	OffsetX, OffsetY int
	Width, Height    int
	EnvWidth, EnvHeight int
	ScaleOffsetX, ScaleOffsetY float64
	InverseScalar              float64
}

// Set is the full TouchPorts state: one Port per active display plus
// the bounding rectangle over all of them (spec.md §3).
type Set struct {
	Ports         map[int16]Port
	FullTouchPort Port
}

// NewSet returns an empty TouchPorts state.
func NewSet() *Set {
	return &Set{Ports: make(map[int16]Port)}
}

// Clone returns a deep-enough copy safe to publish as an immutable
// snapshot on the touch_port event bus (spec.md §9: "avoid cross-thread
// locking by publishing the entire TouchPorts value on every change").
func (s *Set) Clone() *Set {
	out := &Set{Ports: make(map[int16]Port, len(s.Ports)), FullTouchPort: s.FullTouchPort}
	for k, v := range s.Ports {
		out.Ports[k] = v
	}
	return out
}

// Insert adds or replaces the Port for idx and recomputes the bounding
// rectangle.
func (s *Set) Insert(idx int16, p Port) {
	s.Ports[idx] = p
	s.recompute()
}

// Remove deletes idx's Port and recomputes the bounding rectangle.
func (s *Set) Remove(idx int16) {
	delete(s.Ports, idx)
	s.recompute()
}

func (s *Set) recompute() {
	if len(s.Ports) == 0 {
		s.FullTouchPort = Port{}
		return
	}
	first := true
	var minX, minY, maxX, maxY int
	for _, p := range s.Ports {
		x0, y0 := p.OffsetX, p.OffsetY
		x1, y1 := p.OffsetX+p.Width, p.OffsetY+p.Height
		if first {
			minX, minY, maxX, maxY = x0, y0, x1, y1
			first = false
			continue
		}
		if x0 < minX {
			minX = x0
		}
		if y0 < minY {
			minY = y0
		}
		if x1 > maxX {
			maxX = x1
		}
		if y1 > maxY {
			maxY = y1
		}
	}
	s.FullTouchPort = Port{
		OffsetX: minX,
		OffsetY: minY,
		Width:   maxX - minX,
		Height:  maxY - minY,
	}
}

// MakePort computes the letterboxed, aspect-preserving inner rectangle
// for a (configWidth, configHeight) client request against a
// (displayWidth, displayHeight) display, as Display Controller's
// makePort does (spec.md §4.6).
func MakePort(configWidth, configHeight, displayWidth, displayHeight, envOffsetX, envOffsetY, envWidth, envHeight int) Port {
	if displayWidth <= 0 || displayHeight <= 0 || configWidth <= 0 || configHeight <= 0 {
		return Port{}
	}
	srcAspect := float64(configWidth) / float64(configHeight)
	dstAspect := float64(displayWidth) / float64(displayHeight)

	var innerW, innerH int
	if srcAspect > dstAspect {
		innerW = displayWidth
		innerH = int(float64(displayWidth) / srcAspect)
	} else {
		innerH = displayHeight
		innerW = int(float64(displayHeight) * srcAspect)
	}
	offX := envOffsetX + (displayWidth-innerW)/2
	offY := envOffsetY + (displayHeight-innerH)/2

	p := Port{
		OffsetX:   offX,
		OffsetY:   offY,
		Width:     innerW,
		Height:    innerH,
		EnvWidth:  envWidth,
		EnvHeight: envHeight,
	}
	if innerW > 0 {
		p.ScaleOffsetX = float64(offX) / float64(envWidth)
		p.InverseScalar = float64(configWidth) / float64(innerW)
	}
	if innerH > 0 {
		p.ScaleOffsetY = float64(offY) / float64(envHeight)
	}
	return p
}
