// Package ale implements a reference activation likelihood estimation (ALE)
// engine for coordinate datasets: per-study modeled activation maps from
// sample-size-dependent Gaussian kernels, their combination into ALE maps,
// and a permutation-based group subtraction that yields voxel-wise z maps.
//
// The statistical machinery is deliberately compact. It reproduces the shape
// of the established ALE approach (Eickhoff-style kernel widths, union of
// study maps, label-shuffling null) without the empirical calibration of a
// full research implementation.
package ale

import (
	"math"

	"alecontrast/pkg/sleuth"
	"alecontrast/pkg/volume"
)

// Spatial uncertainty terms for the kernel width, in mm FWHM. The template
// term captures normalization error shared by all studies; the subject term
// shrinks with the square root of the sample size.
const (
	templateFWHM = 5.7
	subjectFWHM  = 11.6
)

// fwhmToSigma converts a full width at half maximum to a Gaussian sigma.
const fwhmToSigma = 1 / 2.3548200450309493 // 2*sqrt(2*ln 2)

// Grid describes the sampling grid on which ALE maps are computed.
type Grid struct {
	Nx, Ny, Nz int
	Affine     volume.Affine
}

// MNI152Grid returns the standard MNI152 grid at 2 mm isotropic resolution.
func MNI152Grid() Grid {
	return Grid{Nx: 91, Ny: 109, Nz: 91, Affine: volume.MNI152Affine(2)}
}

// IsZero reports whether the grid is unset.
func (g Grid) IsZero() bool {
	return g.Nx == 0 && g.Ny == 0 && g.Nz == 0
}

// NewVolume returns a zero-filled volume on this grid.
func (g Grid) NewVolume() *volume.Volume {
	return volume.New(g.Nx, g.Ny, g.Nz, g.Affine)
}

// KernelSigma returns the Gaussian kernel sigma in mm for a study with the
// given sample size.
func KernelSigma(subjects int) float64 {
	n := float64(subjects)
	if n < 1 {
		n = 1
	}
	fwhm := math.Sqrt(templateFWHM*templateFWHM + subjectFWHM*subjectFWHM/n)
	return fwhm * fwhmToSigma
}

// ModeledActivation computes a study's modeled activation map: a peak-valued
// Gaussian sphere around each focus, combined voxel-wise by maximum so that
// nearby foci from the same study do not double-count. Values lie in [0, 1].
func ModeledActivation(g Grid, study sleuth.Study) []float64 {
	vol := g.NewVolume()
	sigma := KernelSigma(study.Subjects)

	// Per-axis voxel sizes from the affine column norms. The grids used here
	// have orthogonal affines, so mm distances separate per axis.
	var size [3]float64
	for j := 0; j < 3; j++ {
		size[j] = math.Sqrt(g.Affine[0][j]*g.Affine[0][j] +
			g.Affine[1][j]*g.Affine[1][j] +
			g.Affine[2][j]*g.Affine[2][j])
	}

	// Kernel support is truncated at 3 sigma.
	var radius [3]int
	for j := 0; j < 3; j++ {
		radius[j] = int(math.Ceil(3 * sigma / size[j]))
	}

	twoSigmaSq := 2 * sigma * sigma
	for _, focus := range study.Foci {
		cx, cy, cz := vol.MMToVoxel([3]float64{focus[0], focus[1], focus[2]})
		for dz := -radius[2]; dz <= radius[2]; dz++ {
			z := cz + dz
			if z < 0 || z >= g.Nz {
				continue
			}
			for dy := -radius[1]; dy <= radius[1]; dy++ {
				y := cy + dy
				if y < 0 || y >= g.Ny {
					continue
				}
				for dx := -radius[0]; dx <= radius[0]; dx++ {
					x := cx + dx
					if x < 0 || x >= g.Nx {
						continue
					}
					distSq := float64(dx)*float64(dx)*size[0]*size[0] +
						float64(dy)*float64(dy)*size[1]*size[1] +
						float64(dz)*float64(dz)*size[2]*size[2]
					val := math.Exp(-distSq / twoSigmaSq)
					idx := vol.Idx(x, y, z)
					if val > vol.Data[idx] {
						vol.Data[idx] = val
					}
				}
			}
		}
	}

	return vol.Data
}

// combineInto writes the ALE union 1 - prod(1 - ma_i) over the selected
// study maps into dst, using prod as scratch space of the same length.
func combineInto(dst, prod []float64, maps [][]float64, selected []int) {
	for i := range prod {
		prod[i] = 1
	}
	for _, s := range selected {
		ma := maps[s]
		for i := range prod {
			prod[i] *= 1 - ma[i]
		}
	}
	for i := range dst {
		dst[i] = 1 - prod[i]
	}
}
