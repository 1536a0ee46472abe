package trend

import (
	"encoding/json"

	"TrendChannel/internal/model"
)

// Point is one chart coordinate. A Gap point breaks the polyline and
// marshals as [null,null].
type Point struct {
	X   int64
	Y   float64
	Gap bool
}

func (p Point) MarshalJSON() ([]byte, error) {
	if p.Gap {
		return []byte("[null,null]"), nil
	}
	return json.Marshal([2]any{p.X, p.Y})
}

// Rectangle returns the closed 5-point outline of w.
func Rectangle(w model.Window) []Point {
	return []Point{
		{X: w.XStart, Y: w.YStart},
		{X: w.XStart, Y: w.YEnd},
		{X: w.XEnd, Y: w.YEnd},
		{X: w.XEnd, Y: w.YStart},
		{X: w.XStart, Y: w.YStart},
	}
}

// LineSeries flattens the lines of every band into start, end, gap triples.
func LineSeries(bands ...model.TrendBand) []Point {
	var points []Point
	for _, b := range bands {
		for _, l := range b.Lines() {
			points = append(points,
				Point{X: l.XStart, Y: l.YStart},
				Point{X: l.XEnd, Y: l.YEnd},
				Point{Gap: true},
			)
		}
	}
	return points
}

// Bands collects the bands of the outputs that succeeded.
func Bands(outputs []Output) []model.TrendBand {
	bands := make([]model.TrendBand, 0, len(outputs))
	for _, o := range outputs {
		if o.Err == nil {
			bands = append(bands, o.Band)
		}
	}
	return bands
}
