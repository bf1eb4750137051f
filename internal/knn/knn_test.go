package knn

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"reviewrec/internal/ratings"
)

const eps = 1e-9

func TestPearson(t *testing.T) {
	tests := []struct {
		name   string
		a, b   map[int]float64
		want   float64
		wantOK bool
	}{
		{
			name:   "perfect positive",
			a:      map[int]float64{0: 5, 1: 3},
			b:      map[int]float64{0: 4, 1: 2, 2: 5},
			want:   1,
			wantOK: true,
		},
		{
			name:   "perfect negative",
			a:      map[int]float64{0: 1, 1: 2},
			b:      map[int]float64{0: 2, 1: 1},
			want:   -1,
			wantOK: true,
		},
		{
			name:   "hand computed",
			a:      map[int]float64{0: 1, 1: 2, 2: 3},
			b:      map[int]float64{0: 2, 1: 4, 2: 7},
			want:   5 / math.Sqrt(2*38.0/3),
			wantOK: true,
		},
		{
			name:   "means restricted to co-rated",
			a:      map[int]float64{0: 1, 1: 3, 9: 100},
			b:      map[int]float64{0: 2, 1: 4, 8: -50},
			want:   1,
			wantOK: true,
		},
		{
			name: "single co-rated product",
			a:    map[int]float64{0: 5, 1: 3},
			b:    map[int]float64{0: 4, 2: 1},
		},
		{
			name: "zero variance",
			a:    map[int]float64{0: 3, 1: 3},
			b:    map[int]float64{0: 1, 1: 5},
		},
		{
			name: "no overlap",
			a:    map[int]float64{0: 3},
			b:    map[int]float64{1: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Pearson(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("Pearson() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > eps {
				t.Errorf("Pearson() = %v, want %v", got, tt.want)
			}

			back, okBack := Pearson(tt.b, tt.a)
			if okBack != ok || math.Abs(back-got) > eps {
				t.Errorf("Pearson not symmetric: %v/%v vs %v/%v", got, ok, back, okBack)
			}
		})
	}
}

// neighborhoodMatrix: usuario 0 es el objetivo.
//
//	1: correlación +1   2: correlación -1
//	3: sin productos en común   4: varianza cero
func neighborhoodMatrix() *ratings.Matrix {
	return ratings.FromRows([]ratings.Row{
		{UserID: 0, ProductID: 0, Score: 5}, {UserID: 0, ProductID: 1, Score: 3},
		{UserID: 1, ProductID: 0, Score: 4}, {UserID: 1, ProductID: 1, Score: 2}, {UserID: 1, ProductID: 2, Score: 5},
		{UserID: 2, ProductID: 0, Score: 1}, {UserID: 2, ProductID: 1, Score: 4}, {UserID: 2, ProductID: 3, Score: 5},
		{UserID: 3, ProductID: 5, Score: 5}, {UserID: 3, ProductID: 6, Score: 1},
		{UserID: 4, ProductID: 0, Score: 3}, {UserID: 4, ProductID: 1, Score: 3}, {UserID: 4, ProductID: 4, Score: 5},
	})
}

func TestCandidates(t *testing.T) {
	m := neighborhoodMatrix()
	if got := Candidates(m, 0); !reflect.DeepEqual(got, []int{1, 2, 4}) {
		t.Errorf("Candidates(0) = %v, want [1 2 4]", got)
	}
	if got := Candidates(m, 3); len(got) != 0 {
		t.Errorf("Candidates(3) = %v, want empty", got)
	}
}

func TestNeighborhood(t *testing.T) {
	m := neighborhoodMatrix()
	tests := []struct {
		name string
		opts Options
		want []int
	}{
		{name: "default threshold", opts: DefaultOptions(), want: []int{1}},
		{name: "threshold includes negatives", opts: Options{Threshold: -1, Workers: 2}, want: []int{1, 2}},
		{name: "capped", opts: Options{Threshold: -1, MaxNeighbors: 1, Workers: 3}, want: []int{1}},
		{name: "threshold above max", opts: Options{Threshold: 1.01, Workers: 1}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Neighborhood(context.Background(), m, 0, tt.opts)
			if err != nil {
				t.Fatalf("Neighborhood() error = %v", err)
			}
			var ids []int
			for _, n := range got {
				if n.UserID == 0 {
					t.Error("neighborhood contains the target user")
				}
				if n.Similarity < tt.opts.Threshold {
					t.Errorf("neighbor %d similarity %v below threshold", n.UserID, n.Similarity)
				}
				ids = append(ids, n.UserID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Neighborhood() ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestRecommendExample(t *testing.T) {
	// u1 -> p1:5, p2:3 ; u2 -> p1:4, p2:2, p3:5
	m := ratings.FromRows([]ratings.Row{
		{UserID: 0, ProductID: 0, Score: 5}, {UserID: 0, ProductID: 1, Score: 3},
		{UserID: 1, ProductID: 0, Score: 4}, {UserID: 1, ProductID: 1, Score: 2}, {UserID: 1, ProductID: 2, Score: 5},
	})

	recs, neighbors, err := Recommend(context.Background(), m, 0, 3, DefaultOptions())
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].UserID != 1 {
		t.Fatalf("neighbors = %+v, want user 1", neighbors)
	}
	if len(recs) != 1 || recs[0].ProductID != 2 {
		t.Fatalf("Recommend() = %+v, want only product 2", recs)
	}
	if math.Abs(recs[0].Predicted-5) > eps {
		t.Errorf("Predicted = %v, want 5", recs[0].Predicted)
	}
}

func TestPredictWeighted(t *testing.T) {
	m := ratings.FromRows([]ratings.Row{
		{UserID: 0, ProductID: 0, Score: 1}, {UserID: 0, ProductID: 1, Score: 2}, {UserID: 0, ProductID: 2, Score: 3},
		{UserID: 1, ProductID: 0, Score: 1}, {UserID: 1, ProductID: 1, Score: 2}, {UserID: 1, ProductID: 2, Score: 3}, {UserID: 1, ProductID: 3, Score: 5},
		{UserID: 2, ProductID: 0, Score: 2}, {UserID: 2, ProductID: 1, Score: 4}, {UserID: 2, ProductID: 2, Score: 7}, {UserID: 2, ProductID: 3, Score: 1},
	})
	s2 := 5 / math.Sqrt(2*38.0/3)
	neighbors := []Neighbor{{UserID: 1, Similarity: 1}, {UserID: 2, Similarity: s2}}

	recs := PredictRatings(m, 0, neighbors)
	if len(recs) != 1 || recs[0].ProductID != 3 {
		t.Fatalf("PredictRatings() = %+v, want only product 3", recs)
	}
	want := (1*5 + s2*1) / (1 + s2)
	if math.Abs(recs[0].Predicted-want) > eps {
		t.Errorf("Predicted = %v, want %v", recs[0].Predicted, want)
	}
}

func TestTopNTieBreak(t *testing.T) {
	recs := []Recommended{
		{ProductID: 7, Predicted: 3},
		{ProductID: 2, Predicted: 3},
		{ProductID: 5, Predicted: 4},
		{ProductID: 1, Predicted: 1},
	}
	got := TopNRecommendations(recs, 3)
	want := []Recommended{{5, 4}, {2, 3}, {7, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopNRecommendations() = %+v, want %+v", got, want)
	}
	if got := TopNRecommendations(nil, 3); len(got) != 0 {
		t.Errorf("TopNRecommendations(nil) = %+v", got)
	}
}

func randomMatrix(users, products, perUser int) *ratings.Matrix {
	rng := rand.New(rand.NewSource(42))
	var rows []ratings.Row
	for u := 0; u < users; u++ {
		for i := 0; i < perUser; i++ {
			rows = append(rows, ratings.Row{
				UserID:    u,
				ProductID: rng.Intn(products),
				Score:     float64(1 + rng.Intn(5)),
			})
		}
	}
	return ratings.FromRows(rows)
}

func TestRecommendProperties(t *testing.T) {
	m := randomMatrix(200, 60, 12)
	ctx := context.Background()

	for _, user := range []int{0, 17, 99, 150} {
		t.Run(strconv.Itoa(user), func(t *testing.T) {
			seq, _, err := Recommend(ctx, m, user, 5, Options{Threshold: 0.1, Workers: 1})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			par, _, err := Recommend(ctx, m, user, 5, Options{Threshold: 0.1, Workers: 8})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if !reflect.DeepEqual(seq, par) {
				t.Errorf("sequential %+v != parallel %+v", seq, par)
			}
			if len(seq) > 5 {
				t.Errorf("len = %d, want <= 5", len(seq))
			}
			for _, r := range seq {
				if _, rated := m.Rating(user, r.ProductID); rated {
					t.Errorf("recommended product %d already rated by %d", r.ProductID, user)
				}
			}
		})
	}
}

func TestRecommendCancelled(t *testing.T) {
	m := randomMatrix(50, 20, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Recommend(ctx, m, 0, 3, Options{Threshold: 0.1, Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Recommend() error = %v, want context.Canceled", err)
	}
}

func TestSaveCSV(t *testing.T) {
	dir := t.TempDir()
	key := func(id int) string { return "k" + strconv.Itoa(id) }

	if err := SaveNeighborsCSV(filepath.Join(dir, "n.csv"), "u", []Neighbor{{1, 0.5}}, key); err != nil {
		t.Errorf("SaveNeighborsCSV() error = %v", err)
	}
	if err := SaveRecommendationsCSV(filepath.Join(dir, "r.csv"), "u", []Recommended{{2, 4.5}}, key); err != nil {
		t.Errorf("SaveRecommendationsCSV() error = %v", err)
	}
	if err := SaveCSV(filepath.Join(dir, "missing", "x.csv"), nil); err == nil {
		t.Error("SaveCSV() into missing dir error = nil")
	}
}
