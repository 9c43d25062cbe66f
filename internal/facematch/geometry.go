package facematch

// Rect is a face bounding box with its origin at the top-left corner.
type Rect struct {
	Origin        Point
	Width, Height float64
}

// RectFromCorners builds a Rect from a pixel bbox [x1, y1, x2, y2].
// Returns false if the bbox does not have four coordinates or has no area.
func RectFromCorners(bbox []float64) (Rect, bool) {
	if len(bbox) != 4 {
		return Rect{}, false
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return Rect{}, false
	}
	return Rect{Origin: Point{X: bbox[0], Y: bbox[1]}, Width: w, Height: h}, true
}

// Project maps a box-relative point into absolute image coordinates: origin + point * size.
func (r Rect) Project(p Point) Point {
	return Point{
		X: r.Origin.X + p.X*r.Width,
		Y: r.Origin.Y + p.Y*r.Height,
	}
}

// Relative is the inverse of Project. A zero-sized box yields the zero point.
func (r Rect) Relative(p Point) Point {
	if r.Width == 0 || r.Height == 0 {
		return Point{}
	}
	return Point{
		X: (p.X - r.Origin.X) / r.Width,
		Y: (p.Y - r.Origin.Y) / r.Height,
	}
}

// ProjectLandmarks projects box-relative landmarks into absolute coordinates, preserving order.
func ProjectLandmarks(box Rect, landmarks []Point) []Point {
	out := make([]Point, len(landmarks))
	for i, p := range landmarks {
		out[i] = box.Project(p)
	}
	return out
}
