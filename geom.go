package dngopcode

import "math"

// Point is a pixel position.
type Point struct {
	X int
	Y int
}

// Dim is the size of a two-dimensional area.
type Dim struct {
	Width  int
	Height int
}

// IsZero reports whether the area is empty.
func (d Dim) IsZero() bool {
	return d.Width == 0 && d.Height == 0
}

// Rect is a rectangular area given by its origin and size.
type Rect struct {
	Origin Point
	Size   Dim
}

func (r Rect) Left() int   { return r.Origin.X }
func (r Rect) Top() int    { return r.Origin.Y }
func (r Rect) Right() int  { return r.Origin.X + r.Size.Width }
func (r Rect) Bottom() int { return r.Origin.Y + r.Size.Height }

// IsZero reports whether the rectangle is empty.
func (r Rect) IsZero() bool {
	return r.Size.IsZero()
}

// LTRB returns the rectangle as [left, top, right, bottom].
func (r Rect) LTRB() [4]int {
	return [4]int{r.Left(), r.Top(), r.Right(), r.Bottom()}
}

// TLBR returns the rectangle as [top, left, bottom, right], the field
// order used by TrimBounds and Region.
func (r Rect) TLBR() [4]int {
	return [4]int{r.Top(), r.Left(), r.Bottom(), r.Right()}
}

// Crop returns the area sub-rectangle of a row-major buffer with
// dimensions dim, as a new row-major buffer of the same element type.
func Crop[T any](input []T, dim Dim, area Rect) []T {
	output := make([]T, 0, area.Size.Width*area.Size.Height)
	for y := area.Top(); y < area.Bottom(); y++ {
		row := input[y*dim.Width : (y+1)*dim.Width]
		output = append(output, row[area.Left():area.Right()]...)
	}
	return output
}

// Clip clamps v to [min, max]. NaN maps to min.
func Clip(v, min, max float32) float32 {
	switch {
	case v > max:
		return max
	case v < min:
		return min
	case math.IsNaN(float64(v)):
		return min
	default:
		return v
	}
}

// Rescale linearly remaps normalized float samples to [black, white],
// or [0, white] when black is zero, one output sample per input sample.
func Rescale[T uint8 | uint16](input []float32, black, white T) []T {
	output := make([]T, len(input))
	if black == 0 {
		for i, p := range input {
			output[i] = T(p * float32(white))
		}
		return output
	}
	for i, p := range input {
		output[i] = T(p*float32(white-black)) + black
	}
	return output
}
