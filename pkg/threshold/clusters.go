package threshold

import (
	"math"
	"sort"

	"alecontrast/pkg/volume"
)

// neighborOffsets returns the voxel offsets for the given connectivity.
// 6 connects faces, 18 adds edges, 26 adds corners.
func neighborOffsets(connectivity int) [][3]int {
	var offsets [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				manhattan := abs(dx) + abs(dy) + abs(dz)
				switch connectivity {
				case 6:
					if manhattan != 1 {
						continue
					}
				case 18:
					if manhattan > 2 {
						continue
					}
				}
				offsets = append(offsets, [3]int{dx, dy, dz})
			}
		}
	}
	return offsets
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// labelAndFilter finds connected components among masked voxels, copies those
// with at least minVoxels members into out, and returns their descriptions
// sorted by extent, largest first. Voxels of opposite sign never join the
// same cluster, so two-sided maps split into positive and negative
// components.
func labelAndFilter(vol *volume.Volume, mask []bool, connectivity, minVoxels int, out *volume.Volume) []Cluster {
	offsets := neighborOffsets(connectivity)
	visited := make([]bool, len(mask))
	var clusters []Cluster

	var queue []int
	for seed := range mask {
		if !mask[seed] || visited[seed] {
			continue
		}

		// Breadth-first flood fill from the seed voxel.
		positive := vol.Data[seed] > 0
		queue = queue[:0]
		queue = append(queue, seed)
		visited[seed] = true
		var member []int

		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			member = append(member, idx)

			x := idx % vol.Nx
			y := (idx / vol.Nx) % vol.Ny
			z := idx / (vol.Nx * vol.Ny)
			for _, off := range offsets {
				nx, ny, nz := x+off[0], y+off[1], z+off[2]
				if nx < 0 || nx >= vol.Nx || ny < 0 || ny >= vol.Ny || nz < 0 || nz >= vol.Nz {
					continue
				}
				nIdx := vol.Idx(nx, ny, nz)
				if !mask[nIdx] || visited[nIdx] {
					continue
				}
				if (vol.Data[nIdx] > 0) != positive {
					continue
				}
				visited[nIdx] = true
				queue = append(queue, nIdx)
			}
		}

		if len(member) < minVoxels {
			continue
		}

		// Retain the cluster and locate its peak.
		peakIdx := member[0]
		for _, idx := range member {
			out.Data[idx] = vol.Data[idx]
			if math.Abs(vol.Data[idx]) > math.Abs(vol.Data[peakIdx]) {
				peakIdx = idx
			}
		}
		px := peakIdx % vol.Nx
		py := (peakIdx / vol.Nx) % vol.Ny
		pz := peakIdx / (vol.Nx * vol.Ny)
		clusters = append(clusters, Cluster{
			Voxels:    len(member),
			VolumeMM3: float64(len(member)) * vol.VoxelVolume(),
			Peak:      vol.Data[peakIdx],
			PeakMM:    vol.VoxelToMM(px, py, pz),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Voxels > clusters[j].Voxels
	})
	return clusters
}
