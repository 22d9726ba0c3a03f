package eikonal

import (
	"errors"
	"image"
)

// Field is a dense scalar grid of shape (batch, chans, spatial...) with
// spatial rank 2 or 3. It stores either an instance-label mask (integer
// values, zero meaning background) or a per-pixel distance value.
type Field struct {
	batch, chans int
	size         []int
	data         []float64
}

// NewField returns a zero-filled field. The spatial size is given slowest
// axis first (rows before columns).
func NewField(batch, chans int, size ...int) (*Field, error) {
	if batch < 1 || chans < 1 {
		return nil, errors.New("batch and chans must be at least 1")
	}
	if len(size) != 2 && len(size) != 3 {
		return nil, ErrUnsupportedDimension
	}
	spat := 1
	for _, d := range size {
		if d < 1 {
			return nil, errors.New("bad grid dimensions")
		}
		spat *= d
	}
	return &Field{
		batch: batch,
		chans: chans,
		size:  append([]int{}, size...),
		data:  make([]float64, batch*chans*spat),
	}, nil
}

// Batch returns the batch extent.
func (f *Field) Batch() int { return f.batch }

// Chans returns the channel extent.
func (f *Field) Chans() int { return f.chans }

// Rank returns the spatial rank, 2 or 3.
func (f *Field) Rank() int { return len(f.size) }

// Size returns a copy of the spatial extents, slowest axis first.
func (f *Field) Size() []int { return append([]int{}, f.size...) }

// SpatialLen returns the number of pixels of one (batch, channel) image.
func (f *Field) SpatialLen() int {
	spat := 1
	for _, d := range f.size {
		spat *= d
	}
	return spat
}

// RawData returns the backing slice in (batch, chans, spatial...) order
// with the last spatial axis fastest. Mutating it mutates the field.
func (f *Field) RawData() []float64 { return f.data }

// Slab returns the spatial slab of one (batch, channel) image as a
// mutable view.
func (f *Field) Slab(b, c int) []float64 {
	spat := f.SpatialLen()
	start := (b*f.chans + c) * spat
	return f.data[start : start+spat]
}

// At returns the value at spatial index idx (same axis order as Size).
func (f *Field) At(b, c int, idx ...int) float64 {
	return f.Slab(b, c)[f.spatialIndex(idx)]
}

// Set stores v at spatial index idx.
func (f *Field) Set(v float64, b, c int, idx ...int) {
	f.Slab(b, c)[f.spatialIndex(idx)] = v
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	g := &Field{
		batch: f.batch,
		chans: f.chans,
		size:  append([]int{}, f.size...),
		data:  make([]float64, len(f.data)),
	}
	copy(g.data, f.data)
	return g
}

func (f *Field) spatialIndex(idx []int) int {
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
	return n
}

func onesLike(f *Field) *Field {
	g := f.Clone()
	for i := range g.data {
		g.data[i] = 1
	}
	return g
}

// FromImage thresholds an image into a binary (1, 1, height, width) field:
// pixels whose luminance exceeds threshold (normalized to [0,1]) become 1,
// all others 0. Feed the result to Label to obtain an instance mask.
func FromImage(img image.Image, threshold float64) *Field {
	bounds := img.Bounds()
	f, err := NewField(1, 1, bounds.Dy(), bounds.Dx())
	if err != nil {
		panic(err)
	}
	slab := f.Slab(0, 0)
	nx := bounds.Dx()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 0xffff
			if lum > threshold {
				slab[(y-bounds.Min.Y)*nx+(x-bounds.Min.X)] = 1
			}
		}
	}
	return f
}
