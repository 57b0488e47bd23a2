// Package geometry provides basic geometric types shared by the mask and image packages.
package geometry

// RectInt represents a rectangle with integer pixel coordinates.
// X and Y are the column and row of the top-left corner.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle covers no pixels.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the number of pixels covered by the rectangle.
func (r RectInt) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Contains returns true if the pixel at (row, col) lies inside the rectangle.
func (r RectInt) Contains(row, col int) bool {
	return col >= r.X && col < r.X+r.Width && row >= r.Y && row < r.Y+r.Height
}

// Size represents grid dimensions in pixels.
type Size struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Pixels returns Rows*Cols.
func (s Size) Pixels() int {
	return s.Rows * s.Cols
}
