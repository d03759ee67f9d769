package ale

import (
	"fmt"
	"log"
	"math"
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"alecontrast/pkg/sleuth"
	"alecontrast/pkg/volume"
)

// minStableIterations is the permutation count below which the null
// distribution is considered too coarse for stable significance estimates.
// Falling below it is logged, not rejected: the output is still produced and
// judging adequacy is the caller's responsibility.
const minStableIterations = 1000

// nullChunks is the fixed number of permutation batches. Partial sums merge
// in chunk order, so results do not depend on the worker count or on
// goroutine scheduling, only on the seed.
const nullChunks = 32

// SubtractionParams configures a group-difference estimation.
type SubtractionParams struct {
	// Grid is the sampling grid. The zero value selects the MNI152 2 mm grid.
	Grid Grid

	// Iterations is the number of label-shuffling permutations used to build
	// the null distribution. Must be at least 1.
	Iterations int

	// Workers bounds the number of concurrent permutation workers.
	// Non-positive values use all available CPUs.
	Workers int

	// Seed initializes the permutation random streams. Runs with the same
	// seed, inputs, and iteration count are reproducible.
	Seed uint64
}

// Subtraction estimates voxel-wise group differences between two coordinate
// datasets. Per-study modeled activation maps are computed once; the observed
// ALE difference is then compared against a null built by reshuffling the
// study group labels.
type Subtraction struct {
	params SubtractionParams
}

// NewSubtraction creates an estimator with the given parameters.
func NewSubtraction(params SubtractionParams) *Subtraction {
	if params.Grid.IsZero() {
		params.Grid = MNI152Grid()
	}
	if params.Workers <= 0 {
		params.Workers = runtime.NumCPU()
	}
	return &Subtraction{params: params}
}

// Run computes the unthresholded voxel-wise z map for the difference between
// the two datasets' aggregated activation patterns. Positive values indicate
// stronger convergence in a, negative in b.
func (s *Subtraction) Run(a, b *sleuth.Dataset) (*volume.Volume, error) {
	if s.params.Iterations < 1 {
		return nil, fmt.Errorf("iteration count must be at least 1, got %d", s.params.Iterations)
	}
	if len(a.Studies) == 0 || len(b.Studies) == 0 {
		return nil, fmt.Errorf("both datasets must contain at least one study")
	}
	if s.params.Iterations < minStableIterations {
		log.Printf("Warning: permutation null built from only %d iterations; significance estimates may be unstable",
			s.params.Iterations)
	}

	grid := s.params.Grid
	nA := len(a.Studies)
	n := nA + len(b.Studies)
	size := grid.Nx * grid.Ny * grid.Nz

	// Modeled activation maps are the expensive part; compute each once and
	// share them across all permutations read-only.
	maps := make([][]float64, 0, n)
	for _, study := range a.Studies {
		maps = append(maps, ModeledActivation(grid, study))
	}
	for _, study := range b.Studies {
		maps = append(maps, ModeledActivation(grid, study))
	}

	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}

	observed := make([]float64, size)
	scratch := newDiffScratch(size)
	scratch.diffInto(observed, maps, identity, nA)

	// Permutation null: accumulate per-chunk sums and squared sums of the
	// shuffled group difference, then merge in chunk order.
	chunks := nullChunks
	if s.params.Iterations < chunks {
		chunks = s.params.Iterations
	}
	partialSum := make([][]float64, chunks)
	partialSq := make([][]float64, chunks)

	var g errgroup.Group
	g.SetLimit(s.params.Workers)
	for c := 0; c < chunks; c++ {
		c := c
		g.Go(func() error {
			sum := make([]float64, size)
			sq := make([]float64, size)
			diff := make([]float64, size)
			sc := newDiffScratch(size)
			perm := make([]int, n)

			for it := c; it < s.params.Iterations; it += chunks {
				// Each iteration draws from its own stream derived from the
				// base seed, so the assignment of iterations to chunks and
				// chunks to workers never affects the result.
				rng := rand.New(rand.NewSource(s.params.Seed + uint64(it)*0x9e3779b97f4a7c15 + 1))
				copy(perm, identity)
				rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

				sc.diffInto(diff, maps, perm, nA)
				floats.Add(sum, diff)
				for i, d := range diff {
					sq[i] += d * d
				}
			}
			partialSum[c] = sum
			partialSq[c] = sq
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := make([]float64, size)
	sq := make([]float64, size)
	for c := 0; c < chunks; c++ {
		floats.Add(sum, partialSum[c])
		floats.Add(sq, partialSq[c])
	}

	// Voxel-wise z against the permutation null.
	out := grid.NewVolume()
	iters := float64(s.params.Iterations)
	for i := range out.Data {
		mean := sum[i] / iters
		variance := sq[i]/iters - mean*mean
		if variance <= 0 {
			continue
		}
		out.Data[i] = (observed[i] - mean) / math.Sqrt(variance)
	}

	return out, nil
}

// diffScratch holds per-worker buffers for computing a group ALE difference
// without per-iteration allocation.
type diffScratch struct {
	prodA []float64
	prodB []float64
}

func newDiffScratch(size int) *diffScratch {
	return &diffScratch{
		prodA: make([]float64, size),
		prodB: make([]float64, size),
	}
}

// diffInto writes ALE(group A) - ALE(group B) into dst, where the first nA
// entries of order select group A's study maps and the rest group B's.
func (s *diffScratch) diffInto(dst []float64, maps [][]float64, order []int, nA int) {
	combineInto(dst, s.prodA, maps, order[:nA])
	copy(s.prodA, dst)
	combineInto(dst, s.prodB, maps, order[nA:])
	floats.SubTo(dst, s.prodA, dst)
}
