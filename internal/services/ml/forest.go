package ml

import (
	"fmt"
	"math/rand"

	"StockPulse/internal/domain/models"
)

// ForestParams configure FitForest. Tree i draws its bootstrap sample from a
// source seeded with Seed+i, so identical inputs give identical forests.
type ForestParams struct {
	Trees int
	Seed  int64
	Tree  TreeParams
}

// RandomForest averages bagged regression trees.
type RandomForest struct {
	trees []*RegressionTree
	width int
}

func FitForest(x [][]float64, y []float64, p ForestParams) (*RandomForest, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("ml: %d rows but %d targets", len(x), len(y))
	}
	if p.Trees < 1 {
		return nil, fmt.Errorf("ml: forest needs at least one tree")
	}

	n := len(x)
	f := &RandomForest{trees: make([]*RegressionTree, p.Trees), width: len(x[0])}
	idx := make([]int, n)
	for t := 0; t < p.Trees; t++ {
		rng := rand.New(rand.NewSource(p.Seed + int64(t)))
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.trees[t] = FitTree(x, y, idx, p.Tree)
	}
	return f, nil
}

// NewForest restores a forest from persisted state.
func NewForest(st models.ForestState, width int) (*RandomForest, error) {
	if len(st.Trees) == 0 {
		return nil, fmt.Errorf("ml: forest state has no trees")
	}
	f := &RandomForest{trees: make([]*RegressionTree, len(st.Trees)), width: width}
	for i, ts := range st.Trees {
		t, err := newTree(ts, width)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		f.trees[i] = t
	}
	return f, nil
}

func (f *RandomForest) Predict(row []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.trees))
}

func (f *RandomForest) PredictAll(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = f.Predict(row)
	}
	return out
}

func (f *RandomForest) Size() int { return len(f.trees) }

func (f *RandomForest) State() models.ForestState {
	st := models.ForestState{Trees: make([]models.TreeState, len(f.trees))}
	for i, t := range f.trees {
		st.Trees[i] = t.State()
	}
	return st
}
