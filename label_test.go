package eikonal_test

import (
	"testing"

	"github.com/soypat/eikonal"
)

func TestLabelTwoBlobs(t *testing.T) {
	binary := mustField(t, 1, 1, 5, 9)
	fillRect(binary, 0, 0, 1, 1, 4, 0, 3)
	fillRect(binary, 0, 0, 1, 1, 4, 6, 9)
	labels, err := eikonal.Label(binary)
	if err != nil {
		t.Fatal(err)
	}
	for y := 1; y < 4; y++ {
		for x := 0; x < 3; x++ {
			if labels.At(0, 0, y, x) != 1 {
				t.Fatalf("left blob pixel (%d,%d) = %v, want 1", y, x, labels.At(0, 0, y, x))
			}
			if labels.At(0, 0, y, x+6) != 2 {
				t.Fatalf("right blob pixel (%d,%d) = %v, want 2", y, x+6, labels.At(0, 0, y, x+6))
			}
		}
	}
	for y := 0; y < 5; y++ {
		for x := 3; x < 6; x++ {
			if labels.At(0, 0, y, x) != 0 {
				t.Fatalf("gap pixel (%d,%d) labeled", y, x)
			}
		}
	}
}

func TestLabelDiagonalTouch(t *testing.T) {
	// Pixels meeting only at a corner join one component, matching the
	// 8-connected affinity the solver derives.
	binary := mustField(t, 1, 1, 4, 4)
	binary.Set(1, 0, 0, 0, 0)
	binary.Set(1, 0, 0, 1, 1)
	binary.Set(1, 0, 0, 2, 2)
	labels, err := eikonal.Label(binary)
	if err != nil {
		t.Fatal(err)
	}
	if labels.At(0, 0, 0, 0) != 1 || labels.At(0, 0, 1, 1) != 1 || labels.At(0, 0, 2, 2) != 1 {
		t.Fatal("diagonal chain split into several labels")
	}
}

func TestLabel3D(t *testing.T) {
	binary := mustField(t, 1, 1, 5, 4, 4)
	// Two cubes separated along the slowest axis.
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				binary.Set(1, 0, 0, z, y, x)
				binary.Set(1, 0, 0, z+3, y+2, x+2)
			}
		}
	}
	labels, err := eikonal.Label(binary)
	if err != nil {
		t.Fatal(err)
	}
	if labels.At(0, 0, 0, 0, 0) != 1 {
		t.Fatalf("first cube label %v", labels.At(0, 0, 0, 0, 0))
	}
	if labels.At(0, 0, 4, 3, 3) != 2 {
		t.Fatalf("second cube label %v", labels.At(0, 0, 4, 3, 3))
	}
}

func TestLabelEmptyAndBatched(t *testing.T) {
	binary := mustField(t, 2, 1, 3, 3)
	binary.Set(1, 1, 0, 1, 1)
	labels, err := eikonal.Label(binary)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range labels.Slab(0, 0) {
		if v != 0 {
			t.Fatal("empty slab acquired labels")
		}
	}
	// Labels restart per (batch, channel) image.
	if labels.At(1, 0, 1, 1) != 1 {
		t.Fatalf("batched label %v, want 1", labels.At(1, 0, 1, 1))
	}
}

func TestLabelThenSolve(t *testing.T) {
	binary := mustField(t, 1, 1, 5, 9)
	fillRect(binary, 0, 0, 1, 1, 4, 0, 3)
	fillRect(binary, 0, 0, 1, 1, 4, 6, 9)
	labels, err := eikonal.Label(binary)
	if err != nil {
		t.Fatal(err)
	}
	dist, err := eikonal.Solve(labels)
	if err != nil {
		t.Fatal(err)
	}
	if dist.At(0, 0, 2, 1) <= 0 || dist.At(0, 0, 2, 7) <= 0 {
		t.Fatal("labeled blobs produced no distance")
	}
	if dist.At(0, 0, 2, 4) != 0 {
		t.Fatal("gap between blobs produced distance")
	}
}
