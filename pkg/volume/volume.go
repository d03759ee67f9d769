// Package volume defines the statistic volume type shared by every stage of
// the pipeline: a 3-D grid of float64 voxel values plus an affine transform
// mapping voxel indices to physical millimeter coordinates.
package volume

import (
	"fmt"
	"math"
)

// Affine is a 4x4 homogeneous transform from voxel indices to mm coordinates.
// Row-major: mm_i = sum_j Affine[i][j] * [x y z 1][j].
type Affine [4][4]float64

// MNI152Affine returns the affine of the standard MNI152 grid for the given
// isotropic voxel size in mm. The translation places the coordinate origin at
// the anterior commissure, matching the template grids used by common
// coordinate-based meta-analysis tools.
func MNI152Affine(voxelSize float64) Affine {
	return Affine{
		{-voxelSize, 0, 0, 90},
		{0, voxelSize, 0, -126},
		{0, 0, voxelSize, -72},
		{0, 0, 0, 1},
	}
}

// Volume represents a 3-D statistic image.
type Volume struct {
	// Data holds voxel values in x-fastest flat layout:
	// Data[z*Nx*Ny + y*Nx + x].
	Data []float64

	// Nx, Ny, Nz are the grid dimensions in voxels.
	Nx, Ny, Nz int

	// Affine maps voxel indices to mm coordinates.
	Affine Affine
}

// New creates a zero-filled volume with the given dimensions and affine.
func New(nx, ny, nz int, affine Affine) *Volume {
	return &Volume{
		Data:   make([]float64, nx*ny*nz),
		Nx:     nx,
		Ny:     ny,
		Nz:     nz,
		Affine: affine,
	}
}

// Idx returns the flat index of voxel (x, y, z).
func (v *Volume) Idx(x, y, z int) int {
	return z*v.Nx*v.Ny + y*v.Nx + x
}

// At returns the value at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Idx(x, y, z)]
}

// Set stores a value at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Idx(x, y, z)] = value
}

// Len returns the total number of voxels.
func (v *Volume) Len() int {
	return v.Nx * v.Ny * v.Nz
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := New(v.Nx, v.Ny, v.Nz, v.Affine)
	copy(out.Data, v.Data)
	return out
}

// ZeroLike returns a zero-filled volume with the same grid as v.
func (v *Volume) ZeroLike() *Volume {
	return New(v.Nx, v.Ny, v.Nz, v.Affine)
}

// IsEmpty reports whether every voxel is exactly zero.
func (v *Volume) IsEmpty() bool {
	for _, val := range v.Data {
		if val != 0 {
			return false
		}
	}
	return true
}

// CountNonzero returns the number of voxels with a non-zero value.
func (v *Volume) CountNonzero() int {
	n := 0
	for _, val := range v.Data {
		if val != 0 {
			n++
		}
	}
	return n
}

// VoxelVolume returns the volume of a single voxel in mm^3, derived from the
// determinant of the affine's 3x3 block.
func (v *Volume) VoxelVolume() float64 {
	a := v.Affine
	det := a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
	return math.Abs(det)
}

// VoxelToMM converts voxel indices to mm coordinates using the affine.
func (v *Volume) VoxelToMM(x, y, z int) [3]float64 {
	var mm [3]float64
	idx := [4]float64{float64(x), float64(y), float64(z), 1}
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			mm[i] += v.Affine[i][j] * idx[j]
		}
	}
	return mm
}

// MMToVoxel converts mm coordinates to (possibly out-of-grid) voxel indices,
// rounding to the nearest voxel. The affine's 3x3 block must be invertible.
func (v *Volume) MMToVoxel(mm [3]float64) (int, int, int) {
	a := v.Affine
	det := a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])

	// Inverse of the 3x3 block by cofactor expansion.
	var inv [3][3]float64
	inv[0][0] = (a[1][1]*a[2][2] - a[1][2]*a[2][1]) / det
	inv[0][1] = (a[0][2]*a[2][1] - a[0][1]*a[2][2]) / det
	inv[0][2] = (a[0][1]*a[1][2] - a[0][2]*a[1][1]) / det
	inv[1][0] = (a[1][2]*a[2][0] - a[1][0]*a[2][2]) / det
	inv[1][1] = (a[0][0]*a[2][2] - a[0][2]*a[2][0]) / det
	inv[1][2] = (a[0][2]*a[1][0] - a[0][0]*a[1][2]) / det
	inv[2][0] = (a[1][0]*a[2][1] - a[1][1]*a[2][0]) / det
	inv[2][1] = (a[0][1]*a[2][0] - a[0][0]*a[2][1]) / det
	inv[2][2] = (a[0][0]*a[1][1] - a[0][1]*a[1][0]) / det

	var out [3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i] += inv[i][j] * (mm[j] - a[j][3])
		}
	}
	return int(math.Round(out[0])), int(math.Round(out[1])), int(math.Round(out[2]))
}

// MismatchError reports that two volumes do not share the same grid.
type MismatchError struct {
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("volume grid mismatch: %s", e.Reason)
}

// CheckSameGrid verifies that two volumes share identical dimensions and
// affine. It returns a *MismatchError describing the first difference found.
func CheckSameGrid(a, b *Volume) error {
	if a.Nx != b.Nx || a.Ny != b.Ny || a.Nz != b.Nz {
		return &MismatchError{
			Reason: fmt.Sprintf("dimensions %dx%dx%d vs %dx%dx%d",
				a.Nx, a.Ny, a.Nz, b.Nx, b.Ny, b.Nz),
		}
	}
	if a.Affine != b.Affine {
		return &MismatchError{Reason: "affine transforms differ"}
	}
	return nil
}
