package knn

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"reviewrec/internal/ratings"
)

// ---------------------------------------------------------
// Vecindario por umbral: candidatos -> similitud
// ---------------------------------------------------------

type Options struct {
	// Threshold es la similitud mínima (inclusive) para ser vecino.
	Threshold float64

	// MaxNeighbors acota el vecindario a los más similares. 0 = sin tope.
	MaxNeighbors int

	// Workers es la cantidad de goroutines que calculan similitudes.
	Workers int
}

func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Workers:   runtime.NumCPU(),
	}
}

// Candidates devuelve, en orden ascendente, los usuarios que comparten al
// menos un producto con user. Los demás no pueden llegar a MinCoRated.
func Candidates(m *ratings.Matrix, user int) []int {
	seen := make(map[int]struct{})
	for p := range m.Ratings(user) {
		for _, other := range m.UsersOf(p) {
			if other != user {
				seen[other] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Ints(out)
	return out
}

// ScoreCandidates calcula Pearson contra cada candidato en paralelo y se queda
// con los que llegan al umbral. El resultado sale ordenado por UserID.
func ScoreCandidates(ctx context.Context, m *ratings.Matrix, user int, candidates []int, threshold float64, workers int) ([]Neighbor, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if workers == 0 {
		return nil, ctx.Err()
	}

	target := m.Ratings(user)
	partial := make([][]Neighbor, workers)
	chunkSize := (len(candidates) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, len(candidates))
		if start >= end {
			break
		}

		g.Go(func() error {
			var local []Neighbor
			for i, other := range candidates[start:end] {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if other == user {
					continue
				}
				sim, ok := Pearson(target, m.Ratings(other))
				if ok && sim >= threshold {
					local = append(local, Neighbor{UserID: other, Similarity: sim})
				}
			}
			partial[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// los chunks son contiguos y ordenados: concatenar mantiene el orden
	var out []Neighbor
	for _, p := range partial {
		out = append(out, p...)
	}
	return out, nil
}

// Neighborhood arma el vecindario de user: todos los demás usuarios con
// similitud >= opts.Threshold, acotado a opts.MaxNeighbors si corresponde.
func Neighborhood(ctx context.Context, m *ratings.Matrix, user int, opts Options) ([]Neighbor, error) {
	candidates := Candidates(m, user)
	neighbors, err := ScoreCandidates(ctx, m, user, candidates, opts.Threshold, opts.Workers)
	if err != nil {
		return nil, err
	}
	if opts.MaxNeighbors > 0 {
		neighbors = TopK(neighbors, opts.MaxNeighbors)
	}
	return neighbors, nil
}

// ---------------------------------------------------------
// Ordenamiento y selección de los K mejores vecinos
// ---------------------------------------------------------

func TopK(list []Neighbor, k int) []Neighbor {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Similarity != list[j].Similarity {
			return list[i].Similarity > list[j].Similarity
		}
		return list[i].UserID < list[j].UserID
	})
	if len(list) > k {
		return list[:k]
	}
	return list
}
