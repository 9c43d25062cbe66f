package facematch

import (
	"math"
	"testing"
)

func TestRectFromCorners(t *testing.T) {
	tests := []struct {
		name   string
		bbox   []float64
		want   Rect
		wantOK bool
	}{
		{
			name:   "simple box",
			bbox:   []float64{10, 20, 110, 220},
			want:   Rect{Origin: Point{X: 10, Y: 20}, Width: 100, Height: 200},
			wantOK: true,
		},
		{
			name:   "too few coordinates",
			bbox:   []float64{10, 20, 110},
			wantOK: false,
		},
		{
			name:   "zero width",
			bbox:   []float64{10, 20, 10, 220},
			wantOK: false,
		},
		{
			name:   "inverted box",
			bbox:   []float64{110, 220, 10, 20},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RectFromCorners(tt.bbox)
			if ok != tt.wantOK {
				t.Fatalf("RectFromCorners(%v) ok = %v, want %v", tt.bbox, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("RectFromCorners(%v) = %+v, want %+v", tt.bbox, got, tt.want)
			}
		})
	}
}

func TestRectProjectAndRelative(t *testing.T) {
	box := Rect{Origin: Point{X: 100, Y: 50}, Width: 200, Height: 100}

	tests := []struct {
		name     string
		relative Point
		absolute Point
	}{
		{"origin", Point{0, 0}, Point{100, 50}},
		{"far corner", Point{1, 1}, Point{300, 150}},
		{"center", Point{0.5, 0.5}, Point{200, 100}},
		{"outside box", Point{-0.25, 1.5}, Point{50, 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := box.Project(tt.relative)
			if math.Abs(got.X-tt.absolute.X) > 1e-9 || math.Abs(got.Y-tt.absolute.Y) > 1e-9 {
				t.Errorf("Project(%v) = %v, want %v", tt.relative, got, tt.absolute)
			}
			back := box.Relative(got)
			if math.Abs(back.X-tt.relative.X) > 1e-9 || math.Abs(back.Y-tt.relative.Y) > 1e-9 {
				t.Errorf("Relative(%v) = %v, want %v", got, back, tt.relative)
			}
		})
	}
}

func TestRectRelative_ZeroSize(t *testing.T) {
	box := Rect{Origin: Point{X: 5, Y: 5}}
	if got := box.Relative(Point{X: 10, Y: 10}); got != (Point{}) {
		t.Errorf("Relative on zero-size box = %v, want zero point", got)
	}
}

func TestProjectLandmarks_PreservesOrder(t *testing.T) {
	box := Rect{Origin: Point{X: 10, Y: 10}, Width: 10, Height: 20}
	landmarks := []Point{{0.9, 0.1}, {0.1, 0.9}, {0.5, 0.5}}

	got := ProjectLandmarks(box, landmarks)
	want := []Point{{19, 12}, {11, 28}, {15, 20}}

	if len(got) != len(want) {
		t.Fatalf("ProjectLandmarks() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i].X-want[i].X) > 1e-9 || math.Abs(got[i].Y-want[i].Y) > 1e-9 {
			t.Errorf("ProjectLandmarks()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
