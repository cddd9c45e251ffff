// Package controller implements the Display Controller (spec.md §4.6):
// a set of stateless orchestration functions the capture and encode
// tasks call into rather than owning this logic themselves, grounded
// on the teacher's own preference for free functions over a God object
// (video.go's package-level helpers around the RTSP/demux/encode
// setup, none of which live on a receiver).
package controller

import (
	"sync"
	"time"

	"github.com/streamcore/capture-core/internal/touchport"
	"github.com/streamcore/capture-core/internal/types"
)

// Enumerator discovers the available displays for one hwdevice type;
// internal/displaycap.Enumerate satisfies this.
type Enumerator func() ([]types.DisplayHandle, error)

// ResetDisplay implements resetDisplay (spec.md §4.6): enumerate,
// find name among the results (or fall back to the first), and return
// it. Retries once after 200ms on enumeration failure or an empty
// result.
func ResetDisplay(enumerate Enumerator, name string) (types.DisplayHandle, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(200 * time.Millisecond)
		}
		displays, err := enumerate()
		if err != nil {
			lastErr = err
			continue
		}
		if len(displays) == 0 {
			lastErr = errNoDisplays
			continue
		}
		if name != "" {
			for _, d := range displays {
				if d.Name() == name {
					return d, nil
				}
			}
		}
		return displays[0], nil
	}
	return nil, lastErr
}

var errNoDisplays = displayError("controller: display enumeration returned no devices")

type displayError string

func (e displayError) Error() string { return string(e) }

// RefreshResult is the outcome of RefreshDisplays: the reenumerated
// names in order and the index selected for the caller's previous
// name/index preference.
type RefreshResult struct {
	Names        []string
	SelectedIdx  int
	PreviousLost bool
}

// RefreshDisplays implements refreshDisplays (spec.md §4.6): preserve
// selection by name if the previously-selected display is still
// present; otherwise fall back to idx, then to 0; an empty
// reenumeration keeps the caller's old list untouched (signaled via a
// nil return) rather than clobbering a transient enumeration hiccup.
func RefreshDisplays(enumerate Enumerator, previousName string, previousIdx int) (*RefreshResult, error) {
	return refreshDisplays(enumerate, previousName, previousIdx, nil, "")
}

// RefreshDisplaysWithCache is RefreshDisplays plus the original's
// small per-hwdevice-type name LRU (SPEC_FULL.md §L.4): when the
// previously-selected name has vanished, a name recently seen for this
// hwdevice type that is still present in the fresh list is preferred
// over a blind index fallback, so one transient enumeration gap
// doesn't immediately reassign the capture to an unrelated monitor.
func RefreshDisplaysWithCache(enumerate Enumerator, previousName string, previousIdx int, cache *NameCache, hwdeviceType string) (*RefreshResult, error) {
	return refreshDisplays(enumerate, previousName, previousIdx, cache, hwdeviceType)
}

func refreshDisplays(enumerate Enumerator, previousName string, previousIdx int, cache *NameCache, hwdeviceType string) (*RefreshResult, error) {
	displays, err := enumerate()
	if err != nil {
		return nil, err
	}
	if len(displays) == 0 {
		return nil, nil
	}

	names := make([]string, len(displays))
	for i, d := range displays {
		names[i] = d.Name()
	}

	if previousName != "" {
		for i, n := range names {
			if n == previousName {
				if cache != nil {
					cache.Remember(hwdeviceType, n)
				}
				return &RefreshResult{Names: names, SelectedIdx: i}, nil
			}
		}
	}

	if cache != nil {
		for _, recent := range cache.Recent(hwdeviceType) {
			for i, n := range names {
				if n == recent {
					return &RefreshResult{Names: names, SelectedIdx: i, PreviousLost: previousName != ""}, nil
				}
			}
		}
	}

	idx := previousIdx
	if idx < 0 || idx >= len(names) {
		idx = 0
	}
	return &RefreshResult{Names: names, SelectedIdx: idx, PreviousLost: previousName != ""}, nil
}

// NameCache keeps the last few successfully-resolved display names
// per hwdevice type (SPEC_FULL.md §L.4), most-recently-seen first.
type NameCache struct {
	mu     sync.Mutex
	depth  int
	recent map[string][]string
}

// NewNameCache returns an empty NameCache retaining up to depth names
// per hwdevice type (the original keeps 4).
func NewNameCache(depth int) *NameCache {
	if depth <= 0 {
		depth = 4
	}
	return &NameCache{depth: depth, recent: make(map[string][]string)}
}

// Remember records name as the most recently resolved for hwdeviceType,
// deduplicating and capping at the cache's depth.
func (c *NameCache) Remember(hwdeviceType, name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.recent[hwdeviceType]
	filtered := list[:0:0]
	for _, n := range list {
		if n != name {
			filtered = append(filtered, n)
		}
	}
	filtered = append([]string{name}, filtered...)
	if len(filtered) > c.depth {
		filtered = filtered[:c.depth]
	}
	c.recent[hwdeviceType] = filtered
}

// Recent returns a copy of the remembered names for hwdeviceType,
// most-recent first.
func (c *NameCache) Recent(hwdeviceType string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.recent[hwdeviceType]))
	copy(out, c.recent[hwdeviceType])
	return out
}

// MakePort implements makePort (spec.md §4.6): compute the letterboxed
// inner rectangle for cfg against display and insert it into ports,
// recomputing the bounding rectangle.
func MakePort(ports *touchport.Set, idx int16, display types.DisplayHandle, cfg types.ClientConfig) touchport.Port {
	p := touchport.MakePort(cfg.Width, cfg.Height, display.Width(), display.Height(), display.OffsetX(), display.OffsetY(), display.EnvWidth(), display.EnvHeight())
	ports.Insert(idx, p)
	return p
}

// RemovePort implements removePort (spec.md §4.6).
func RemovePort(ports *touchport.Set, idx int16) {
	ports.Remove(idx)
}
