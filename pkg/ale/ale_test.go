package ale

import (
	"math"
	"testing"

	"alecontrast/pkg/sleuth"
	"alecontrast/pkg/volume"
)

// testGrid returns a small grid centred on the mm origin with 2 mm voxels
func testGrid(n int) Grid {
	half := float64(n) // grid spans [-n, n) mm along each axis
	return Grid{
		Nx: n, Ny: n, Nz: n,
		Affine: volume.Affine{
			{2, 0, 0, -half},
			{0, 2, 0, -half},
			{0, 0, 2, -half},
			{0, 0, 0, 1},
		},
	}
}

// TestKernelSigma checks that kernel width shrinks with sample size but
// never below the template uncertainty floor.
func TestKernelSigma(t *testing.T) {
	small := KernelSigma(5)
	large := KernelSigma(50)

	if large >= small {
		t.Errorf("Kernel sigma should shrink with sample size: n=5 gives %f, n=50 gives %f",
			small, large)
	}

	floor := templateFWHM * fwhmToSigma
	if large <= floor {
		t.Errorf("Kernel sigma %f fell below the template floor %f", large, floor)
	}

	// Degenerate sample sizes are clamped rather than rejected
	if got := KernelSigma(0); math.IsNaN(got) || got <= 0 {
		t.Errorf("Expected a positive sigma for n=0, got %f", got)
	}
}

// TestModeledActivation verifies kernel placement and the per-study maximum
func TestModeledActivation(t *testing.T) {
	grid := testGrid(16)
	study := sleuth.Study{
		Name:     "test",
		Subjects: 20,
		Foci:     [][3]float64{{0, 0, 0}, {2, 0, 0}}, // adjacent foci
	}

	ma := ModeledActivation(grid, study)

	vol := grid.NewVolume()
	copy(vol.Data, ma)

	// The focus voxel holds the kernel peak
	cx, cy, cz := vol.MMToVoxel([3]float64{0, 0, 0})
	if got := vol.At(cx, cy, cz); math.Abs(got-1) > 1e-12 {
		t.Errorf("Expected peak value 1 at the focus, got %f", got)
	}

	// Values stay within [0, 1] even where the two kernels overlap
	for i, v := range ma {
		if v < 0 || v > 1 {
			t.Fatalf("Modeled activation out of range at voxel %d: %f", i, v)
		}
	}

	// The map decays away from the foci
	if got := vol.At(0, 0, 0); got >= vol.At(cx, cy, cz) {
		t.Errorf("Expected decay toward the grid corner, got %f", got)
	}
}

// TestSubtractionDeterminism reruns a seeded estimation and expects
// identical output; a different seed must perturb the null.
func TestSubtractionDeterminism(t *testing.T) {
	grid := testGrid(12)
	dsA := &sleuth.Dataset{Studies: []sleuth.Study{
		{Name: "a1", Subjects: 12, Foci: [][3]float64{{0, 0, 0}, {4, 2, 0}}},
		{Name: "a2", Subjects: 15, Foci: [][3]float64{{2, 0, 2}}},
		{Name: "a3", Subjects: 10, Foci: [][3]float64{{0, 2, 0}}},
	}}
	dsB := &sleuth.Dataset{Studies: []sleuth.Study{
		{Name: "b1", Subjects: 14, Foci: [][3]float64{{-6, -6, -4}}},
		{Name: "b2", Subjects: 18, Foci: [][3]float64{{-4, -8, -6}, {-6, -4, -4}}},
	}}

	params := SubtractionParams{Grid: grid, Iterations: 10, Workers: 3, Seed: 42}

	first, err := NewSubtraction(params).Run(dsA, dsB)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := NewSubtraction(params).Run(dsA, dsB)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("Seeded runs diverged at voxel %d: %v vs %v",
				i, first.Data[i], second.Data[i])
		}
	}

	// Changing only the worker count must not change the result either
	params.Workers = 1
	serial, err := NewSubtraction(params).Run(dsA, dsB)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i := range first.Data {
		if first.Data[i] != serial.Data[i] {
			t.Fatalf("Worker count changed the result at voxel %d", i)
		}
	}

	// A different seed gives a different null
	params.Workers = 3
	params.Seed = 43
	other, err := NewSubtraction(params).Run(dsA, dsB)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	same := true
	for i := range first.Data {
		if first.Data[i] != other.Data[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("Different seeds produced identical maps")
	}
}

// TestSubtractionValidation rejects invalid iteration counts and empty groups
func TestSubtractionValidation(t *testing.T) {
	grid := testGrid(8)
	ds := &sleuth.Dataset{Studies: []sleuth.Study{
		{Name: "s", Subjects: 10, Foci: [][3]float64{{0, 0, 0}}},
	}}

	if _, err := NewSubtraction(SubtractionParams{Grid: grid, Iterations: 0, Seed: 1}).Run(ds, ds); err == nil {
		t.Errorf("Expected an error for zero iterations")
	}

	empty := &sleuth.Dataset{}
	if _, err := NewSubtraction(SubtractionParams{Grid: grid, Iterations: 5, Seed: 1}).Run(ds, empty); err == nil {
		t.Errorf("Expected an error for an empty dataset")
	}
}

// TestDefaultGrid checks that the zero grid falls back to MNI152 2 mm
func TestDefaultGrid(t *testing.T) {
	est := NewSubtraction(SubtractionParams{Iterations: 1})
	if est.params.Grid.Nx != 91 || est.params.Grid.Ny != 109 || est.params.Grid.Nz != 91 {
		t.Errorf("Expected the MNI152 2 mm grid, got %dx%dx%d",
			est.params.Grid.Nx, est.params.Grid.Ny, est.params.Grid.Nz)
	}
}
