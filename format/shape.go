package format

import (
	"fmt"
	"math"
)

// MaxElements caps the element count of one array so that outlier
// positions, which may range over twice the element count, fit in uint32.
const MaxElements = math.MaxUint32 / 2

// Shape describes a dense array of up to three dimensions. X varies fastest;
// unused trailing dimensions are 1.
type Shape struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// Shape1D returns a one-dimensional shape of n elements.
func Shape1D(n int) Shape { return Shape{X: n, Y: 1, Z: 1} }

// Shape2D returns an x by y shape.
func Shape2D(x, y int) Shape { return Shape{X: x, Y: y, Z: 1} }

// Shape3D returns an x by y by z shape.
func Shape3D(x, y, z int) Shape { return Shape{X: x, Y: y, Z: z} }

// Normalize replaces zero trailing dimensions with 1.
func (s Shape) Normalize() Shape {
	if s.Y == 0 {
		s.Y = 1
	}
	if s.Z == 0 {
		s.Z = 1
	}

	return s
}

// Len returns the element count.
func (s Shape) Len() int {
	return s.X * s.Y * s.Z
}

// NDim returns the number of dimensions whose extent exceeds one, minimum 1.
func (s Shape) NDim() int {
	switch {
	case s.Z > 1:
		return 3
	case s.Y > 1:
		return 2
	default:
		return 1
	}
}

// Dims returns the extents as an array indexed by axis.
func (s Shape) Dims() [3]int {
	return [3]int{s.X, s.Y, s.Z}
}

// Strides returns the element stride of each axis.
func (s Shape) Strides() [3]int {
	return [3]int{1, s.X, s.X * s.Y}
}

// Index returns the linear position of (x, y, z).
func (s Shape) Index(x, y, z int) int {
	return x + s.X*(y+s.Y*z)
}

// Validate checks that every extent is positive and the element count fits.
func (s Shape) Validate() error {
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return fmt.Errorf("shape %s: extents must be positive", s)
	}

	n := uint64(s.X) * uint64(s.Y)
	if n > MaxElements || uint64(s.Z) > MaxElements/n {
		return fmt.Errorf("shape %s: more than %d elements", s, uint64(MaxElements))
	}

	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.X, s.Y, s.Z)
}
