// Package stencil implements the 3^d lattice neighborhood shared by the
// eikonal solver and the gradient reconstructor. Both consumers must agree
// on the offset-to-index mapping, so the offset tables, the direction
// classes and the replicate-boundary sampler live here and nowhere else.
package stencil

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrBadRank is returned for fields whose spatial rank is not 2 or 3.
var ErrBadRank = errors.New("spatial rank must be 2 or 3")

// Boundary selects what out-of-grid reads return during sampling.
type Boundary int

const (
	// Replicate returns the nearest in-grid value.
	Replicate Boundary = iota
	// Zero returns 0, so the world outside the grid reads as background.
	Zero
)

// K returns the neighborhood size 3^rank (9 in 2D, 27 in 3D).
func K(rank int) int {
	k := 1
	for i := 0; i < rank; i++ {
		k *= 3
	}
	return k
}

// Center returns the index of the zero offset, (K-1)/2.
func Center(rank int) int { return (K(rank) - 1) / 2 }

// Offsets returns the K(rank) lattice offsets in raster order: the last
// (fastest-in-memory) spatial axis varies first as the index increments.
// Offset Center(rank) is the zero offset and the antipode of offset n is
// offset K-1-n. Callers must not mutate the returned table.
func Offsets(rank int) [][]int {
	switch rank {
	case 2:
		return offsets2
	case 3:
		return offsets3
	}
	panic("spatial rank must be 2 or 3")
}

// Norm returns the Euclidean length of a lattice offset.
func Norm(off []int) float64 {
	if len(off) == 2 {
		return r2.Norm(r2.Vec{X: float64(off[0]), Y: float64(off[1])})
	}
	return r3.Norm(r3.Vec{X: float64(off[0]), Y: float64(off[1]), Z: float64(off[2])})
}

// Class is one family of antipodal offset pairs sharing the same step
// length from the center pixel: 1 for axis neighbors, √2 for planar
// diagonals, √3 for the 3D corner diagonals.
type Class struct {
	// Step is the Euclidean distance of the class offsets from the center.
	Step float64
	// Pairs holds antipodal offset index pairs, low index first.
	Pairs [][2]int
}

// Classes returns the direction classes of a rank in increasing step
// order. Callers must not mutate the returned table.
func Classes(rank int) []Class {
	switch rank {
	case 2:
		return classes2
	case 3:
		return classes3
	}
	panic("spatial rank must be 2 or 3")
}

var (
	offsets2 = buildOffsets(2)
	offsets3 = buildOffsets(3)
	classes2 = buildClasses(2)
	classes3 = buildClasses(3)
)

func buildOffsets(rank int) [][]int {
	k := K(rank)
	offs := make([][]int, k)
	for n := 0; n < k; n++ {
		o := make([]int, rank)
		rem := n
		for ax := rank - 1; ax >= 0; ax-- {
			o[ax] = rem%3 - 1
			rem /= 3
		}
		offs[n] = o
	}
	return offs
}

func buildClasses(rank int) []Class {
	offs := buildOffsets(rank)
	k := len(offs)
	// Squared length 1, 2 or 3 indexes the class directly.
	cls := make([]Class, rank)
	for i := range cls {
		cls[i].Step = math.Sqrt(float64(i + 1))
	}
	for n := 0; n < Center(rank); n++ {
		sq := 0
		for _, o := range offs[n] {
			sq += o * o
		}
		c := &cls[sq-1]
		c.Pairs = append(c.Pairs, [2]int{n, k - 1 - n})
	}
	return cls
}

// Stack holds the neighborhood of every pixel of a field: the value of
// each of the K lattice offsets (the zero offset included) sampled at
// every pixel, laid out as (batch, chans, K, spatial...).
type Stack struct {
	Batch, Chans, K int
	Size            []int
	Data            []float64
}

// Slab returns the spatial slab of one offset of one (batch, channel)
// image as a mutable view into the stack.
func (s *Stack) Slab(b, c, n int) []float64 {
	spat := 1
	for _, d := range s.Size {
		spat *= d
	}
	start := ((b*s.Chans+c)*s.K + n) * spat
	return s.Data[start : start+spat]
}

// Sample gathers the 3^rank neighborhood of every pixel of a
// (batch, chans, spatial...) field, resolving out-of-grid reads per the
// boundary mode.
func Sample(data []float64, batch, chans int, size []int, mode Boundary) (*Stack, error) {
	rank := len(size)
	if rank != 2 && rank != 3 {
		return nil, ErrBadRank
	}
	spat := 1
	for _, d := range size {
		spat *= d
	}
	if len(data) != batch*chans*spat {
		return nil, errors.New("field data length does not match shape")
	}
	offs := Offsets(rank)
	k := len(offs)
	st := &Stack{
		Batch: batch,
		Chans: chans,
		K:     k,
		Size:  size,
		Data:  make([]float64, batch*chans*k*spat),
	}
	for b := 0; b < batch; b++ {
		for c := 0; c < chans; c++ {
			src := data[(b*chans+c)*spat : (b*chans+c+1)*spat]
			for n, off := range offs {
				dst := st.Slab(b, c, n)
				if rank == 2 {
					sample2(dst, src, size[0], size[1], off[0], off[1], mode)
				} else {
					sample3(dst, src, size[0], size[1], size[2], off[0], off[1], off[2], mode)
				}
			}
		}
	}
	return st, nil
}

func sample2(dst, src []float64, ny, nx, dy, dx int, mode Boundary) {
	for y := 0; y < ny; y++ {
		out := dst[y*nx : (y+1)*nx]
		yy := y + dy
		if yy < 0 || yy >= ny {
			if mode == Zero {
				zeroFill(out)
				continue
			}
			yy = clampIdx(yy, ny)
		}
		row := src[yy*nx : (yy+1)*nx]
		for x := 0; x < nx; x++ {
			xx := x + dx
			if xx < 0 || xx >= nx {
				if mode == Zero {
					out[x] = 0
					continue
				}
				xx = clampIdx(xx, nx)
			}
			out[x] = row[xx]
		}
	}
}

func sample3(dst, src []float64, nz, ny, nx, dz, dy, dx int, mode Boundary) {
	for z := 0; z < nz; z++ {
		zz := z + dz
		if zz < 0 || zz >= nz {
			if mode == Zero {
				zeroFill(dst[z*ny*nx : (z+1)*ny*nx])
				continue
			}
			zz = clampIdx(zz, nz)
		}
		plane := src[zz*ny*nx:]
		for y := 0; y < ny; y++ {
			out := dst[(z*ny+y)*nx : (z*ny+y+1)*nx]
			yy := y + dy
			if yy < 0 || yy >= ny {
				if mode == Zero {
					zeroFill(out)
					continue
				}
				yy = clampIdx(yy, ny)
			}
			row := plane[yy*nx : (yy+1)*nx]
			for x := 0; x < nx; x++ {
				xx := x + dx
				if xx < 0 || xx >= nx {
					if mode == Zero {
						out[x] = 0
						continue
					}
					xx = clampIdx(xx, nx)
				}
				out[x] = row[xx]
			}
		}
	}
}

func zeroFill(s []float64) {
	for i := range s {
		s[i] = 0
	}
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
