package eikonal

import (
	"math"

	"github.com/soypat/eikonal/internal/stencil"
	"gonum.org/v1/gonum/floats"
)

// VectorField is a dense vector grid of shape (batch, chans, comps,
// spatial...): one vector component axis inserted after the channel axis.
type VectorField struct {
	batch, chans, comps int
	size                []int
	data                []float64
}

// Batch returns the batch extent.
func (f *VectorField) Batch() int { return f.batch }

// Chans returns the channel extent.
func (f *VectorField) Chans() int { return f.chans }

// Comps returns the number of vector components, equal to the spatial rank.
func (f *VectorField) Comps() int { return f.comps }

// Size returns a copy of the spatial extents, slowest axis first.
func (f *VectorField) Size() []int { return append([]int{}, f.size...) }

// RawData returns the backing slice in (batch, chans, comps, spatial...)
// order. Mutating it mutates the field.
func (f *VectorField) RawData() []float64 { return f.data }

// Slab returns the spatial slab of one vector component of one
// (batch, channel) image as a mutable view.
func (f *VectorField) Slab(b, c, comp int) []float64 {
	spat := 1
	for _, d := range f.size {
		spat *= d
	}
	start := ((b*f.chans+c)*f.comps + comp) * spat
	return f.data[start : start+spat]
}

// At returns component comp of the vector at spatial index idx. Component
// i points along spatial axis i, so component 0 follows the row (slowest)
// axis.
func (f *VectorField) At(b, c, comp int, idx ...int) float64 {
	if len(idx) != len(f.size) {
		panic("wrong number of spatial indices")
	}
	n := 0
	for ax, i := range idx {
		if i < 0 || i >= f.size[ax] {
			panic("spatial index out of range")
		}
		n = n*f.size[ax] + i
	}
	return f.Slab(b, c, comp)[n]
}

// Gradient reconstructs the spatial gradient of a distance field computed
// by Solve. Every lattice direction contributes its central difference
// weighted by the signed unit offset over (2×step length)²; the zero
// offset's step length is forced to +Inf so its term vanishes exactly.
// Component i of the result points along spatial axis i of the input.
func Gradient(t *Field) (*VectorField, error) {
	if t == nil {
		panic("nil field argument")
	}
	rank := t.Rank()
	if rank != 2 && rank != 3 {
		return nil, ErrUnsupportedDimension
	}
	offs := stencil.Offsets(rank)
	weights := make([]float64, len(offs))
	for n, off := range offs {
		mag := stencil.Norm(off)
		if mag == 0 {
			mag = math.Inf(1)
		}
		weights[n] = 1 / ((2 * mag) * (2 * mag))
	}

	stack, err := stencil.Sample(t.data, t.batch, t.chans, t.size, stencil.Replicate)
	if err != nil {
		return nil, err
	}
	spat := t.SpatialLen()
	g := &VectorField{
		batch: t.batch,
		chans: t.chans,
		comps: rank,
		size:  t.Size(),
		data:  make([]float64, t.batch*t.chans*rank*spat),
	}
	diff := make([]float64, spat)
	for b := 0; b < t.batch; b++ {
		for c := 0; c < t.chans; c++ {
			center := t.Slab(b, c)
			for n, off := range offs {
				copy(diff, stack.Slab(b, c, n))
				floats.Sub(diff, center)
				for ax := 0; ax < rank; ax++ {
					if off[ax] == 0 {
						continue
					}
					floats.AddScaled(g.Slab(b, c, ax), float64(off[ax])*weights[n], diff)
				}
			}
		}
	}
	return g, nil
}
