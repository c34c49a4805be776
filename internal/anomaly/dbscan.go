package anomaly

import (
	"runtime"

	"github.com/godilite/evaluation-engine/internal/stats"
	"golang.org/x/sync/errgroup"
)

const (
	labelUnvisited = -2
	labelNoise     = -1
)

// clustering is the outcome of one DBSCAN run over a set of vectors.
type clustering struct {
	labels     []int
	centroids  [][]float64
	population []float64
}

func (c clustering) isNoise(i int) bool { return c.labels[i] == labelNoise }

// nearestCentroidDistance is the outlier score of v: the distance to the closest
// cluster centroid, or to the population centroid when no cluster formed.
func (c clustering) nearestCentroidDistance(v []float64) float64 {
	if len(c.centroids) == 0 {
		return stats.Euclidean(v, c.population)
	}
	best := stats.Euclidean(v, c.centroids[0])
	for _, ctr := range c.centroids[1:] {
		if d := stats.Euclidean(v, ctr); d < best {
			best = d
		}
	}
	return best
}

// dbscan clusters vectors. A point is core when at least minPts other points lie
// within eps of it; border points join the first cluster that reaches them; the rest
// is noise. Vectors must already be in a canonical order for the labels to be stable.
func dbscan(vectors [][]float64, dim int, eps float64, minPts, workers int) clustering {
	n := len(vectors)
	neighbors := neighborhoods(vectors, eps, workers)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = labelUnvisited
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != labelUnvisited {
			continue
		}
		if len(neighbors[i]) < minPts {
			labels[i] = labelNoise
			continue
		}

		labels[i] = next
		queue := append([]int(nil), neighbors[i]...)
		for q := 0; q < len(queue); q++ {
			j := queue[q]
			if labels[j] == labelNoise {
				labels[j] = next
				continue
			}
			if labels[j] != labelUnvisited {
				continue
			}
			labels[j] = next
			if len(neighbors[j]) >= minPts {
				queue = append(queue, neighbors[j]...)
			}
		}
		next++
	}

	members := make([][][]float64, next)
	for i, l := range labels {
		if l >= 0 {
			members[l] = append(members[l], vectors[i])
		}
	}
	centroids := make([][]float64, next)
	for l := range members {
		centroids[l] = stats.Centroid(members[l], dim)
	}

	return clustering{
		labels:     labels,
		centroids:  centroids,
		population: stats.Centroid(vectors, dim),
	}
}

// neighborhoods returns, for every vector, the ascending indices of the other
// vectors within eps. Rows are split across workers; each worker owns its rows,
// so the result does not depend on the split.
func neighborhoods(vectors [][]float64, eps float64, workers int) [][]int {
	n := len(vectors)
	out := make([][]int, n)
	if n == 0 {
		return out
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				var nb []int
				for j := 0; j < n; j++ {
					if j != i && stats.Euclidean(vectors[i], vectors[j]) <= eps {
						nb = append(nb, j)
					}
				}
				out[i] = nb
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
