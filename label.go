package eikonal

import "github.com/soypat/eikonal/internal/stencil"

// Label assigns a distinct positive integer to every connected region of
// nonzero pixels of a binary field, labeling each (batch, channel) image
// independently starting from 1. Connectivity is the full stencil
// neighborhood (8 neighbors in 2D, 26 in 3D) so that labels agree with
// the affinity graph Solve derives from them.
func Label(binary *Field) (*Field, error) {
	if binary == nil {
		panic("nil field argument")
	}
	rank := binary.Rank()
	if rank != 2 && rank != 3 {
		return nil, ErrUnsupportedDimension
	}
	out, err := NewField(binary.batch, binary.chans, binary.size...)
	if err != nil {
		return nil, err
	}
	offs := stencil.Offsets(rank)
	size := binary.size
	// Row-major strides of the spatial axes.
	strides := make([]int, rank)
	strides[rank-1] = 1
	for ax := rank - 2; ax >= 0; ax-- {
		strides[ax] = strides[ax+1] * size[ax+1]
	}
	coord := make([]int, rank)
	for b := 0; b < binary.batch; b++ {
		for c := 0; c < binary.chans; c++ {
			src := binary.Slab(b, c)
			labels := out.Slab(b, c)
			next := 1.0
			var queue []int
			for seed := range src {
				if src[seed] == 0 || labels[seed] != 0 {
					continue
				}
				labels[seed] = next
				queue = append(queue[:0], seed)
				for len(queue) > 0 {
					idx := queue[len(queue)-1]
					queue = queue[:len(queue)-1]
					rem := idx
					for ax := 0; ax < rank; ax++ {
						coord[ax] = rem / strides[ax]
						rem %= strides[ax]
					}
					for _, off := range offs {
						nIdx, ok := 0, true
						for ax := 0; ax < rank; ax++ {
							p := coord[ax] + off[ax]
							if p < 0 || p >= size[ax] {
								ok = false
								break
							}
							nIdx += p * strides[ax]
						}
						if !ok || src[nIdx] == 0 || labels[nIdx] != 0 {
							continue
						}
						labels[nIdx] = next
						queue = append(queue, nIdx)
					}
				}
				next++
			}
		}
	}
	return out, nil
}
