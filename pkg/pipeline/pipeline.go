// Package pipeline drives the ALE subtraction analysis end to end: loading
// two coordinate datasets, estimating the voxel-wise group-difference z map,
// persisting it, applying the dual voxel/cluster threshold, and persisting
// the thresholded and directional maps.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alecontrast/pkg/ale"
	"alecontrast/pkg/contrast"
	"alecontrast/pkg/nifti"
	"alecontrast/pkg/sleuth"
	"alecontrast/pkg/threshold"
	"alecontrast/pkg/volume"
)

// Params holds the subtraction pipeline parameters.
type Params struct {
	// DatasetA and DatasetB are paths to the two Sleuth coordinate files.
	DatasetA string
	DatasetB string

	// NameA and NameB label the two groups in output file names. When empty
	// they default to the input basenames with the extension stripped.
	NameA string
	NameB string

	// VoxelP is the voxel-level false-positive rate, in (0, 1).
	VoxelP float64

	// ClusterSizeMM3 is the minimum cluster extent in mm^3.
	ClusterSizeMM3 float64

	// TwoSided selects two-tailed thresholding.
	TwoSided bool

	// Connectivity is the cluster neighborhood: 6, 18 or 26 (0 means 6).
	Connectivity int

	// Iterations is the permutation count for the null distribution.
	Iterations int

	// Workers bounds the number of concurrent permutation workers.
	Workers int

	// Seed fixes the permutation random streams when Seeded is set. An
	// unseeded run draws a seed from the clock and is not reproducible.
	Seed   uint64
	Seeded bool

	// Grid is the sampling grid. The zero value selects the MNI152 2 mm grid.
	Grid ale.Grid

	// OutputDir is the directory where result maps are written.
	OutputDir string

	// SaveDirectional additionally writes the two directional maps derived
	// from the thresholded result.
	SaveDirectional bool

	// SaveReport writes the cluster report next to the thresholded map.
	SaveReport bool
}

// Subtraction runs the group-difference pipeline. Create one per analysis
// with NewSubtraction and call Run once.
type Subtraction struct {
	// params stores the pipeline configuration
	params *Params

	// result stores the thresholding outcome after a successful Run
	result *threshold.Result
}

// NewSubtraction creates a new pipeline instance with the provided parameters.
func NewSubtraction(params *Params) *Subtraction {
	return &Subtraction{params: params}
}

// Result returns the thresholding outcome of the last Run, including the
// derived critical statistic value and the surviving clusters.
func (s *Subtraction) Result() *threshold.Result {
	return s.result
}

// Run executes the subtraction pipeline and returns the unthresholded and
// thresholded z maps. Both are also persisted under OutputDir as
// {nameA}_minus_{nameB}_z.nii.gz and {nameA}_minus_{nameB}_z_thresh.nii.gz.
func (s *Subtraction) Run() (*volume.Volume, *volume.Volume, error) {
	p := s.params

	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Step 1: Load both coordinate datasets. A parse failure aborts the
	// whole pipeline for this pair.
	fmt.Println("Step 1: Loading coordinate datasets...")
	dsA, err := sleuth.ParseFile(p.DatasetA)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dataset A: %w", err)
	}
	dsB, err := sleuth.ParseFile(p.DatasetB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dataset B: %w", err)
	}
	fmt.Printf("Loaded %d studies (%d foci) vs %d studies (%d foci)\n",
		len(dsA.Studies), dsA.TotalFoci(), len(dsB.Studies), dsB.TotalFoci())

	nameA := p.NameA
	if nameA == "" {
		nameA = baseName(p.DatasetA)
	}
	nameB := p.NameB
	if nameB == "" {
		nameB = baseName(p.DatasetB)
	}
	stem := fmt.Sprintf("%s_minus_%s_z", nameA, nameB)

	// Step 2: Estimate the voxel-wise group difference.
	fmt.Printf("Step 2: Estimating group difference (%d permutations)...\n", p.Iterations)
	seed := p.Seed
	if !p.Seeded {
		seed = uint64(time.Now().UnixNano())
	}
	estimator := ale.NewSubtraction(ale.SubtractionParams{
		Grid:       p.Grid,
		Iterations: p.Iterations,
		Workers:    p.Workers,
		Seed:       seed,
	})
	unthresholded, err := estimator.Run(dsA, dsB)
	if err != nil {
		return nil, nil, fmt.Errorf("group difference estimation failed: %w", err)
	}

	unthreshPath := filepath.Join(p.OutputDir, stem+".nii.gz")
	if err := nifti.Save(unthreshPath, unthresholded); err != nil {
		return nil, nil, err
	}
	fmt.Printf("Unthresholded z map saved to: %s\n", unthreshPath)

	// Step 3: Apply the dual voxel/cluster threshold.
	fmt.Println("Step 3: Applying dual voxel/cluster threshold...")
	res, err := threshold.Apply(unthresholded, threshold.Params{
		VoxelP:         p.VoxelP,
		ClusterSizeMM3: p.ClusterSizeMM3,
		TwoSided:       p.TwoSided,
		Connectivity:   p.Connectivity,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("thresholding failed: %w", err)
	}
	s.result = res
	fmt.Printf("Critical value %.4f, minimum cluster extent %d voxels, %d clusters survive\n",
		res.CriticalValue, res.MinClusterVoxels, len(res.Clusters))

	threshPath := filepath.Join(p.OutputDir, stem+"_thresh.nii.gz")
	if err := nifti.Save(threshPath, res.Volume); err != nil {
		return nil, nil, err
	}
	fmt.Printf("Thresholded z map saved to: %s\n", threshPath)

	if p.SaveReport {
		reportPath := filepath.Join(p.OutputDir, stem+"_thresh_clusters.txt")
		if err := threshold.WriteReport(reportPath, res); err != nil {
			return nil, nil, err
		}
	}

	// Step 4: Split the thresholded map into its two directions.
	if p.SaveDirectional {
		fmt.Println("Step 4: Writing directional maps...")
		aOverB, bOverA := contrast.SplitDirectional(res.Volume)
		aPath := filepath.Join(p.OutputDir, fmt.Sprintf("%s_gt_%s_z_thresh.nii.gz", nameA, nameB))
		if err := nifti.Save(aPath, aOverB); err != nil {
			return nil, nil, err
		}
		bPath := filepath.Join(p.OutputDir, fmt.Sprintf("%s_gt_%s_z_thresh.nii.gz", nameB, nameA))
		if err := nifti.Save(bPath, bOverA); err != nil {
			return nil, nil, err
		}
	}

	return unthresholded, res.Volume, nil
}

// baseName strips the directory and extension from a dataset path.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
