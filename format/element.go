package format

import "sort"

// Float is the set of origin element types a compressor can be instantiated
// for.
type Float interface {
	float32 | float64
}

// ElementTypeOf returns the ElementType tag of T.
func ElementTypeOf[T Float]() ElementType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return TypeFloat32
	default:
		return TypeFloat64
	}
}

// OutlierSet holds the elements a predictor could not express within the
// error-control alphabet. Values are stored exactly.
type OutlierSet struct {
	Index []uint32
	Value []float64
}

// Len returns the number of outliers.
func (o *OutlierSet) Len() int {
	return len(o.Index)
}

// Append adds one outlier.
func (o *OutlierSet) Append(idx uint32, val float64) {
	o.Index = append(o.Index, idx)
	o.Value = append(o.Value, val)
}

// Reset empties the set but keeps its capacity.
func (o *OutlierSet) Reset() {
	o.Index = o.Index[:0]
	o.Value = o.Value[:0]
}

// Sort orders the outliers by position.
func (o *OutlierSet) Sort() {
	if sort.IsSorted(byIndex{o}) {
		return
	}
	sort.Sort(byIndex{o})
}

type byIndex struct{ o *OutlierSet }

func (b byIndex) Len() int           { return len(b.o.Index) }
func (b byIndex) Less(i, j int) bool { return b.o.Index[i] < b.o.Index[j] }
func (b byIndex) Swap(i, j int) {
	b.o.Index[i], b.o.Index[j] = b.o.Index[j], b.o.Index[i]
	b.o.Value[i], b.o.Value[j] = b.o.Value[j], b.o.Value[i]
}
