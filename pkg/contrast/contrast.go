// Package contrast post-processes thresholded statistic maps: it separates
// directional effects from a signed difference map and computes conjunction
// maps of effects shared by two independently thresholded analyses.
package contrast

import (
	"alecontrast/pkg/volume"
)

// SplitDirectional separates a signed difference map into its two directions.
// The first result keeps positive voxels as-is (group A over group B); the
// second keeps negative voxels with their sign flipped to positive. The two
// maps have disjoint non-zero voxel sets, and subtracting the second from the
// first reconstructs the input exactly.
func SplitDirectional(vol *volume.Volume) (*volume.Volume, *volume.Volume) {
	aOverB := vol.ZeroLike()
	bOverA := vol.ZeroLike()
	for i, v := range vol.Data {
		switch {
		case v > 0:
			aOverB.Data[i] = v
		case v < 0:
			bOverA.Data[i] = -v
		}
	}
	return aOverB, bOverA
}

// Conjunction computes the shared-effect map of two volumes on the same grid:
// where both voxels are non-zero and agree in sign, the algebraic minimum of
// the two values; zero everywhere else. It applies identically to statistic
// and effect-size maps. A grid mismatch fails before any arithmetic with a
// *volume.MismatchError.
func Conjunction(x, y *volume.Volume) (*volume.Volume, error) {
	if err := volume.CheckSameGrid(x, y); err != nil {
		return nil, err
	}

	out := x.ZeroLike()
	for i := range out.Data {
		vx, vy := x.Data[i], y.Data[i]
		if vx*vy <= 0 {
			continue
		}
		if vx < vy {
			out.Data[i] = vx
		} else {
			out.Data[i] = vy
		}
	}
	return out, nil
}
