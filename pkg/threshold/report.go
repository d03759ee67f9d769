package threshold

import (
	"fmt"
	"os"
	"strings"

	"github.com/montanaflynn/stats"
)

// Summary renders a human-readable cluster table for a thresholding result,
// with extent statistics over the surviving clusters.
func Summary(res *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Critical statistic value: %.4f\n", res.CriticalValue)
	fmt.Fprintf(&b, "Minimum cluster extent:   %d voxels\n", res.MinClusterVoxels)

	if res.Empty {
		b.WriteString("Input map was empty; no thresholding applied.\n")
		return b.String()
	}
	if len(res.Clusters) == 0 {
		b.WriteString("No clusters survived thresholding.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Surviving clusters:       %d\n\n", len(res.Clusters))
	b.WriteString("  #   voxels      mm3      peak          peak (x, y, z) mm\n")
	for i, c := range res.Clusters {
		fmt.Fprintf(&b, "%3d %8d %8.0f %9.3f    (%6.1f, %6.1f, %6.1f)\n",
			i+1, c.Voxels, c.VolumeMM3, c.Peak, c.PeakMM[0], c.PeakMM[1], c.PeakMM[2])
	}

	extents := make([]float64, len(res.Clusters))
	for i, c := range res.Clusters {
		extents[i] = float64(c.Voxels)
	}
	mean, _ := stats.Mean(extents)
	median, _ := stats.Median(extents)
	max, _ := stats.Max(extents)
	fmt.Fprintf(&b, "\nExtent (voxels): mean %.1f, median %.1f, max %.0f\n", mean, median, max)

	return b.String()
}

// WriteReport persists the cluster summary as a text file next to the
// thresholded map.
func WriteReport(path string, res *Result) error {
	if err := os.WriteFile(path, []byte(Summary(res)), 0644); err != nil {
		return fmt.Errorf("failed to write cluster report: %w", err)
	}
	return nil
}
