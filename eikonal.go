// Package eikonal computes smooth geodesic distance fields over labeled
// regions of 2D and 3D grids by iterating a discretized eikonal equation
// |∇T| = 1 to a fixed point, and reconstructs the gradient of the
// converged field. The distance transform and its gradient are the usual
// inputs to flow-based instance separation of segmentation masks.
package eikonal

import (
	"errors"
	"math"

	"github.com/soypat/eikonal/internal/stencil"
	"gonum.org/v1/gonum/floats"
)

// ErrUnsupportedDimension is returned when a field's spatial rank is
// outside {2,3}.
var ErrUnsupportedDimension = errors.New("spatial rank must be 2 or 3")

// Defaults of the package-level Solve.
const (
	DefaultEps      = 1e-3
	DefaultMinSteps = 51
)

// Solve computes the geodesic distance field of an instance mask with the
// default tolerance and iteration count. The mask holds a positive integer
// label per instance and zero for background; the result has the mask's
// shape, is strictly positive inside instances and exactly zero outside.
func Solve(mask *Field) (*Field, error) {
	var s Solver
	return s.Solve(mask)
}

// Solver runs the fixed-point iteration of the discretized eikonal
// equation. The zero value uses DefaultEps and DefaultMinSteps.
type Solver struct {
	// Eps is the mean squared change between iterations below which the
	// solve counts as converged.
	Eps float64
	// MinSteps is the number of iterations run. The driver neither stops
	// early on tolerance alone nor iterates past this count; it reports
	// an unconverged result through Converged instead of failing.
	MinSteps int

	converged bool
	steps     int
	lastErr   float64
}

// Converged reports whether the last Solve met the tolerance.
func (s *Solver) Converged() bool { return s.converged }

// Steps returns the iteration count of the last Solve.
func (s *Solver) Steps() int { return s.steps }

// Err returns the final mean squared change of the last Solve.
func (s *Solver) Err() float64 { return s.lastErr }

// Solve computes the geodesic distance field of an instance mask.
func (s *Solver) Solve(mask *Field) (*Field, error) {
	if mask == nil {
		panic("nil field argument")
	}
	rank := mask.Rank()
	if rank != 2 && rank != 3 {
		return nil, ErrUnsupportedDimension
	}
	eps := s.Eps
	if eps == 0 {
		eps = DefaultEps
	}
	minSteps := s.MinSteps
	if minSteps == 0 {
		minSteps = DefaultMinSteps
	}

	affinity, semantic, err := deriveMasks(mask)
	if err != nil {
		return nil, err
	}

	// Rolling buffer pair, swapped each iteration. cur doubles as the
	// previous-iteration field for the convergence check.
	cur, nxt := onesLike(mask), onesLike(mask)
	errVal := math.Inf(1)
	for t := 0; t < minSteps; t++ {
		stack, err := stencil.Sample(cur.data, cur.batch, cur.chans, cur.size, stencil.Replicate)
		if err != nil {
			return nil, err
		}
		maskStack(stack, affinity)
		if err := singleStep(nxt, stack); err != nil {
			return nil, err
		}
		for i, inside := range semantic {
			if !inside {
				nxt.data[i] = 0
			}
		}
		d := floats.Distance(nxt.data, cur.data, 2)
		errVal = d * d / float64(len(nxt.data))
		if t == 0 {
			// One-time smoothing of the first update suppresses a small
			// systematic artifact near instance boundaries.
			if err := smooth(nxt, affinity); err != nil {
				return nil, err
			}
		}
		cur, nxt = nxt, cur
	}
	s.steps = minSteps
	s.lastErr = errVal
	s.converged = errVal <= eps
	return cur, nil
}

// deriveMasks freezes the affinity and semantic masks of an instance
// mask: affinity is true where a pixel and its neighbor carry the same
// nonzero label, semantic where the pixel itself is labeled. Labels are
// sampled with zero padding, so the world past the grid edge is
// background and anchors instances that touch it. The masks share the
// stack's (batch, chans, K, spatial) respectively the field's
// (batch, chans, spatial) layout.
func deriveMasks(mask *Field) (affinity, semantic []bool, err error) {
	labels, err := stencil.Sample(mask.data, mask.batch, mask.chans, mask.size, stencil.Zero)
	if err != nil {
		return nil, nil, err
	}
	affinity = make([]bool, len(labels.Data))
	spat := mask.SpatialLen()
	for b := 0; b < mask.batch; b++ {
		for c := 0; c < mask.chans; c++ {
			center := mask.Slab(b, c)
			for n := 0; n < labels.K; n++ {
				slab := labels.Slab(b, c, n)
				aff := affinity[((b*mask.chans+c)*labels.K+n)*spat:]
				for e, v := range slab {
					aff[e] = v > 0 && v == center[e]
				}
			}
		}
	}
	semantic = make([]bool, len(mask.data))
	for i, v := range mask.data {
		semantic[i] = v > 0
	}
	return affinity, semantic, nil
}

// maskStack zeroes every stack entry whose affinity bit is unset.
func maskStack(stack *stencil.Stack, affinity []bool) {
	for i, ok := range affinity {
		if !ok {
			stack.Data[i] = 0
		}
	}
}

// singleStep writes one update of the distance field into dst from an
// affinity-masked neighbor stack. For each direction class the antipodal
// pair minima feed the local closed-form solution applyUpdate; the class
// solutions combine multiplicatively and the square root of the product
// is the new central value. The multiplicative fold is what generalizes
// the one-family quadratic to the full anisotropic neighborhood.
func singleStep(dst *Field, stack *stencil.Stack) error {
	rank := len(stack.Size)
	if rank != 2 && rank != 3 {
		return ErrUnsupportedDimension
	}
	classes := stencil.Classes(rank)
	spat := dst.SpatialLen()
	maxPairs := 0
	for _, cl := range classes {
		if len(cl.Pairs) > maxPairs {
			maxPairs = len(cl.Pairs)
		}
	}
	pairMin := make([][]float64, maxPairs)
	for i := range pairMin {
		pairMin[i] = make([]float64, spat)
	}
	partial := make([]float64, spat)
	for b := 0; b < dst.batch; b++ {
		for c := 0; c < dst.chans; c++ {
			phi := dst.Slab(b, c)
			for e := range phi {
				phi[e] = 1
			}
			for _, cl := range classes {
				for i, pr := range cl.Pairs {
					lo, hi := stack.Slab(b, c, pr[0]), stack.Slab(b, c, pr[1])
					dstMin := pairMin[i]
					for e := range dstMin {
						dstMin[e] = math.Min(lo[e], hi[e])
					}
				}
				applyUpdate(partial, pairMin[:len(cl.Pairs)], cl.Step, rank)
				floats.Mul(phi, partial)
			}
			for e := range phi {
				phi[e] = math.Sqrt(phi[e])
			}
		}
	}
	return nil
}

// applyUpdate solves the local quadratic of one direction class: per
// pixel the paired minima are sorted ascending, values further than the
// step length f below the largest are dropped from the sums (upwind
// selection), and the root (S1 + √(S1² − d·(S2 − f²)))/d of the
// finite-difference quadratic is stored in dst. d is the spatial rank,
// not the pair count. The discriminant clamps at zero: small negative
// values are expected floating-point noise near convergence.
func applyUpdate(dst []float64, pairMin [][]float64, f float64, d int) {
	var buf [6]float64
	vals := buf[:len(pairMin)]
	nd := float64(d)
	for e := range dst {
		for i := range pairMin {
			vals[i] = pairMin[i][e]
		}
		insertionSort(vals)
		top := vals[len(vals)-1]
		var s1, s2 float64
		for _, a := range vals {
			if a-top < f {
				s1 += a
				s2 += a * a
			}
		}
		disc := s1*s1 - nd*(s2-f*f)
		if disc < 0 {
			disc = 0
		}
		dst[e] = (s1 + math.Sqrt(disc)) / nd
	}
}

func insertionSort(v []float64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}

// smooth replaces the field with the mean over all K affinity-masked
// neighbor directions, the zero offset included. Masked-out directions
// count as zeros and the divisor stays K.
func smooth(f *Field, affinity []bool) error {
	stack, err := stencil.Sample(f.data, f.batch, f.chans, f.size, stencil.Replicate)
	if err != nil {
		return err
	}
	maskStack(stack, affinity)
	for b := 0; b < f.batch; b++ {
		for c := 0; c < f.chans; c++ {
			out := f.Slab(b, c)
			for e := range out {
				out[e] = 0
			}
			for n := 0; n < stack.K; n++ {
				floats.Add(out, stack.Slab(b, c, n))
			}
			floats.Scale(1/float64(stack.K), out)
		}
	}
	return nil
}
