package controller

import (
	"errors"
	"testing"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/touchport"
	"github.com/streamcore/capture-core/internal/types"
)

type stubHandle struct {
	name                   string
	w, h, ox, oy, ew, eh   int
}

func (s *stubHandle) Name() string   { return s.name }
func (s *stubHandle) Width() int     { return s.w }
func (s *stubHandle) Height() int    { return s.h }
func (s *stubHandle) EnvWidth() int  { return s.ew }
func (s *stubHandle) EnvHeight() int { return s.eh }
func (s *stubHandle) OffsetX() int   { return s.ox }
func (s *stubHandle) OffsetY() int   { return s.oy }
func (s *stubHandle) AllocImg() (*types.Image, error)            { return &types.Image{}, nil }
func (s *stubHandle) DummyImg(*types.Image) error                { return nil }
func (s *stubHandle) IsHDR() bool                                  { return false }
func (s *stubHandle) GetHDRMetadata() (types.HDRMetadata, bool)   { return types.HDRMetadata{}, false }
func (s *stubHandle) IsCodecSupported(string, types.ClientConfig) bool { return true }
func (s *stubHandle) Capture(types.PushFunc, types.PullFunc, types.CursorState) types.CaptureStatus {
	return types.CaptureStatusOK
}
func (s *stubHandle) MakeAVCodecEncodeDevice(astiav.PixelFormat) (types.AVCodecEncodeDevice, error) {
	return nil, errors.New("unused")
}
func (s *stubHandle) MakeNVENCEncodeDevice(astiav.PixelFormat) (types.NVENCEncodeDevice, error) {
	return nil, errors.New("unused")
}

func TestResetDisplayPrefersMatchingName(t *testing.T) {
	displays := []types.DisplayHandle{
		&stubHandle{name: "display-0"},
		&stubHandle{name: "display-1"},
	}
	enumerate := func() ([]types.DisplayHandle, error) { return displays, nil }

	got, err := ResetDisplay(enumerate, "display-1")
	if err != nil {
		t.Fatalf("ResetDisplay: %v", err)
	}
	if got.Name() != "display-1" {
		t.Fatalf("expected display-1, got %s", got.Name())
	}
}

func TestResetDisplayFallsBackToFirstWhenNameMissing(t *testing.T) {
	displays := []types.DisplayHandle{&stubHandle{name: "display-0"}}
	enumerate := func() ([]types.DisplayHandle, error) { return displays, nil }

	got, err := ResetDisplay(enumerate, "nonexistent")
	if err != nil {
		t.Fatalf("ResetDisplay: %v", err)
	}
	if got.Name() != "display-0" {
		t.Fatalf("expected fallback to display-0, got %s", got.Name())
	}
}

func TestResetDisplayRetriesOnceOnFailure(t *testing.T) {
	calls := 0
	enumerate := func() ([]types.DisplayHandle, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient enumeration failure")
		}
		return []types.DisplayHandle{&stubHandle{name: "display-0"}}, nil
	}
	got, err := ResetDisplay(enumerate, "")
	if err != nil {
		t.Fatalf("ResetDisplay: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry (2 calls), got %d", calls)
	}
	if got.Name() != "display-0" {
		t.Fatalf("unexpected display: %s", got.Name())
	}
}

func TestRefreshDisplaysPreservesSelectionByName(t *testing.T) {
	enumerate := func() ([]types.DisplayHandle, error) {
		return []types.DisplayHandle{&stubHandle{name: "a"}, &stubHandle{name: "b"}}, nil
	}
	res, err := RefreshDisplays(enumerate, "b", 0)
	if err != nil {
		t.Fatalf("RefreshDisplays: %v", err)
	}
	if res.SelectedIdx != 1 {
		t.Fatalf("expected index 1 for name b, got %d", res.SelectedIdx)
	}
	if res.PreviousLost {
		t.Fatal("expected PreviousLost false when the name is still present")
	}
}

func TestRefreshDisplaysFallsBackToIndexWhenNameGone(t *testing.T) {
	enumerate := func() ([]types.DisplayHandle, error) {
		return []types.DisplayHandle{&stubHandle{name: "a"}}, nil
	}
	res, err := RefreshDisplays(enumerate, "gone", 5)
	if err != nil {
		t.Fatalf("RefreshDisplays: %v", err)
	}
	if res.SelectedIdx != 0 {
		t.Fatalf("expected clamp to 0, got %d", res.SelectedIdx)
	}
	if !res.PreviousLost {
		t.Fatal("expected PreviousLost true when the configured name vanished")
	}
}

func TestRefreshDisplaysKeepsOldListOnEmptyEnumeration(t *testing.T) {
	enumerate := func() ([]types.DisplayHandle, error) { return nil, nil }
	res, err := RefreshDisplays(enumerate, "a", 0)
	if err != nil {
		t.Fatalf("RefreshDisplays: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result signaling 'keep old list', got %+v", res)
	}
}

func TestRefreshDisplaysWithCachePrefersRecentNameOverIndexFallback(t *testing.T) {
	enumerate := func() ([]types.DisplayHandle, error) {
		return []types.DisplayHandle{&stubHandle{name: "a"}, &stubHandle{name: "b"}}, nil
	}
	cache := NewNameCache(4)
	cache.Remember("dxgi", "b")

	res, err := RefreshDisplaysWithCache(enumerate, "gone", 0, cache, "dxgi")
	if err != nil {
		t.Fatalf("RefreshDisplaysWithCache: %v", err)
	}
	if res.SelectedIdx != 1 {
		t.Fatalf("expected the recently-seen name b at index 1, got %d", res.SelectedIdx)
	}
	if !res.PreviousLost {
		t.Fatal("expected PreviousLost true since the configured name itself vanished")
	}
}

func TestNameCacheCapsAtDepthAndDedupes(t *testing.T) {
	cache := NewNameCache(2)
	cache.Remember("dxgi", "a")
	cache.Remember("dxgi", "b")
	cache.Remember("dxgi", "a")
	got := cache.Recent("dxgi")
	if len(got) != 2 {
		t.Fatalf("expected cache capped at depth 2, got %v", got)
	}
	if got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b] most-recent-first, got %v", got)
	}
}

func TestMakePortAndRemovePortRecomputeBoundingRect(t *testing.T) {
	ports := touchport.NewSet()
	d0 := &stubHandle{w: 1920, h: 1080, ew: 1920, eh: 1080}
	MakePort(ports, 0, d0, types.ClientConfig{Width: 1920, Height: 1080})
	if ports.FullTouchPort.Width != 1920 {
		t.Fatalf("expected full width 1920, got %d", ports.FullTouchPort.Width)
	}
	RemovePort(ports, 0)
	if ports.FullTouchPort != (touchport.Port{}) {
		t.Fatal("expected zeroed full touch port after removing the only port")
	}
}
