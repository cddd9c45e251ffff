package touchport

import "testing"

func TestEmptySetIsZeroed(t *testing.T) {
	s := NewSet()
	if s.FullTouchPort != (Port{}) {
		t.Fatalf("expected zeroed full touch port, got %+v", s.FullTouchPort)
	}
}

func TestInsertRemoveBoundingRect(t *testing.T) {
	s := NewSet()
	s.Insert(0, Port{OffsetX: 0, OffsetY: 0, Width: 100, Height: 50})
	s.Insert(1, Port{OffsetX: 100, OffsetY: 10, Width: 80, Height: 60})

	want := Port{OffsetX: 0, OffsetY: 0, Width: 180, Height: 70}
	if s.FullTouchPort != want {
		t.Fatalf("got %+v, want %+v", s.FullTouchPort, want)
	}

	s.Remove(1)
	want = Port{OffsetX: 0, OffsetY: 0, Width: 100, Height: 50}
	if s.FullTouchPort != want {
		t.Fatalf("after remove: got %+v, want %+v", s.FullTouchPort, want)
	}

	s.Remove(0)
	if s.FullTouchPort != (Port{}) {
		t.Fatalf("expected zeroed full touch port after removing all ports, got %+v", s.FullTouchPort)
	}
}

func TestMakePortLetterboxesAspect(t *testing.T) {
	// 16:9 client into a 4:3 display: width-limited, vertical letterboxing.
	p := MakePort(1920, 1080, 1024, 768, 0, 0, 1024, 768)
	if p.Width != 1024 {
		t.Fatalf("expected full width 1024, got %d", p.Width)
	}
	if p.Height >= 768 {
		t.Fatalf("expected letterboxed height < 768, got %d", p.Height)
	}
	if p.OffsetY <= 0 {
		t.Fatalf("expected positive vertical offset, got %d", p.OffsetY)
	}
}
