// Package threshold implements the combined voxel-level and cluster-extent
// thresholding of statistic volumes: voxels must exceed a critical statistic
// value derived from a false-positive rate, and must belong to a connected
// component of sufficient physical extent to survive.
package threshold

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"alecontrast/pkg/volume"
)

// Params configures a dual thresholding pass. It is a pure value object.
type Params struct {
	// VoxelP is the voxel-level false-positive rate, in (0, 1).
	VoxelP float64

	// ClusterSizeMM3 is the minimum cluster extent in mm^3. The voxel-count
	// equivalent is derived from the volume's voxel size by floor division.
	ClusterSizeMM3 float64

	// TwoSided selects a two-tailed critical value and retains voxels of
	// either sign. One-sided thresholding keeps the positive tail only.
	TwoSided bool

	// Connectivity is the neighborhood used for cluster labeling: 6 (faces),
	// 18 (faces and edges) or 26 (full neighborhood). Zero selects 6, the
	// face-adjacency convention of the common labeling routines.
	Connectivity int
}

// Cluster describes one surviving connected component.
type Cluster struct {
	// Voxels is the component's extent in voxels.
	Voxels int

	// VolumeMM3 is the extent in mm^3.
	VolumeMM3 float64

	// Peak is the value with the largest magnitude in the cluster,
	// sign preserved.
	Peak float64

	// PeakMM is the mm coordinate of the peak voxel.
	PeakMM [3]float64
}

// Result is the outcome of a thresholding pass.
type Result struct {
	// Volume is the thresholded map: voxels failing the combined criterion
	// are zero. When Empty is set it is the unmodified input.
	Volume *volume.Volume

	// CriticalValue is the statistic threshold actually applied. It is
	// derived from VoxelP, not an input, and is reported for transparency.
	CriticalValue float64

	// MinClusterVoxels is the cluster-extent threshold in voxels.
	MinClusterVoxels int

	// Clusters lists the surviving components, largest first.
	Clusters []Cluster

	// Empty reports the all-zero-input short-circuit.
	Empty bool
}

// Apply thresholds a statistic volume with the combined voxel and cluster
// criterion. An all-zero input is returned unchanged with Empty set; this is
// a deliberate short-circuit, not an error.
func Apply(vol *volume.Volume, p Params) (*Result, error) {
	if vol == nil || len(vol.Data) != vol.Len() {
		return nil, fmt.Errorf("input is not a valid volume")
	}
	if !(p.VoxelP > 0 && p.VoxelP < 1) {
		return nil, fmt.Errorf("voxel p threshold must be in (0, 1), got %g", p.VoxelP)
	}
	if p.ClusterSizeMM3 < 0 {
		return nil, fmt.Errorf("cluster size must be non-negative, got %g", p.ClusterSizeMM3)
	}
	conn := p.Connectivity
	if conn == 0 {
		conn = 6
	}
	if conn != 6 && conn != 18 && conn != 26 {
		return nil, fmt.Errorf("connectivity must be 6, 18 or 26, got %d", conn)
	}

	crit := CriticalValue(p.VoxelP, p.TwoSided)
	minVoxels := int(math.Floor(p.ClusterSizeMM3 / vol.VoxelVolume()))

	// The emptiness check runs on the raw input, before any statistic
	// thresholding. Thresholding a null map is meaningless but not
	// exceptional.
	if vol.IsEmpty() {
		log.Printf("Notice: input map is empty, returning it unthresholded")
		return &Result{
			Volume:           vol,
			CriticalValue:    crit,
			MinClusterVoxels: minVoxels,
			Empty:            true,
		}, nil
	}

	// Voxel-level pass: mark voxels exceeding the critical value. One-sided
	// thresholding keeps the positive tail only.
	mask := make([]bool, vol.Len())
	for i, v := range vol.Data {
		if p.TwoSided {
			mask[i] = math.Abs(v) >= crit
		} else {
			mask[i] = v >= crit
		}
	}

	out := vol.ZeroLike()
	clusters := labelAndFilter(vol, mask, conn, minVoxels, out)

	return &Result{
		Volume:           out,
		CriticalValue:    crit,
		MinClusterVoxels: minVoxels,
		Clusters:         clusters,
	}, nil
}

// CriticalValue converts a voxel-level false-positive rate into the critical
// value on a standard normal scale. Two-sided thresholds place p/2 in each
// tail.
func CriticalValue(voxelP float64, twoSided bool) float64 {
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	if twoSided {
		return norm.Quantile(1 - voxelP/2)
	}
	return norm.Quantile(1 - voxelP)
}
