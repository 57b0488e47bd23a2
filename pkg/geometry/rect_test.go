package geometry

import "testing"

func TestRectInt(t *testing.T) {
	r := RectInt{X: 2, Y: 1, Width: 3, Height: 2}
	if r.Area() != 6 || r.Empty() {
		t.Errorf("Area() = %d, Empty() = %v", r.Area(), r.Empty())
	}
	if !r.Contains(1, 2) || !r.Contains(2, 4) {
		t.Error("corner pixels not contained")
	}
	if r.Contains(3, 2) || r.Contains(1, 5) || r.Contains(0, 2) {
		t.Error("outside pixel contained")
	}
	if (RectInt{Width: -1, Height: 4}).Area() != 0 {
		t.Error("negative width should have no area")
	}
}

func TestSize_Pixels(t *testing.T) {
	if got := (Size{Rows: 2048, Cols: 1024}).Pixels(); got != 2048*1024 {
		t.Errorf("Pixels() = %d", got)
	}
}
