package ml

import (
	"fmt"
	"sort"

	"StockPulse/internal/domain/models"
)

const leaf = -1

// TreeParams bound the growth of a regression tree. MaxDepth 0 means unbounded.
type TreeParams struct {
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxDepth        int
}

// RegressionTree is a CART tree split on squared error.
type RegressionTree struct {
	nodes []models.TreeNode
}

// FitTree grows a tree on the rows of x selected by idx. idx may repeat rows.
func FitTree(x [][]float64, y []float64, idx []int, p TreeParams) *RegressionTree {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	b := &treeBuilder{x: x, y: y, p: p}
	b.grow(append([]int(nil), idx...), 0)
	return &RegressionTree{nodes: b.nodes}
}

type treeBuilder struct {
	x     [][]float64
	y     []float64
	p     TreeParams
	nodes []models.TreeNode
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, models.TreeNode{Feature: leaf, Value: b.mean(idx)})

	if len(idx) < b.p.MinSamplesSplit || (b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) || b.pure(idx) {
		return id
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = models.TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: b.nodes[id].Value}
	return id
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// bestSplit maximises sumL²/nL + sumR²/nR, which is equivalent to minimising
// the weighted child variance. Thresholds sit midway between distinct values.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}
	parent := total * total / float64(n)

	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0
	order := make([]int, n)
	minLeaf := b.p.MinSamplesLeaf

	for f := 0; f < len(b.x[idx[0]]); f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		var sumL float64
		for k := 0; k < n-1; k++ {
			sumL += b.y[order[k]]
			cur, next := b.x[order[k]][f], b.x[order[k+1]][f]
			if cur == next {
				continue
			}
			nL, nR := k+1, n-k-1
			if nL < minLeaf || nR < minLeaf {
				continue
			}
			sumR := total - sumL
			score := sumL*sumL/float64(nL) + sumR*sumR/float64(nR)
			if gain := score - parent; gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (t *RegressionTree) Predict(row []float64) float64 {
	n := 0
	for t.nodes[n].Feature != leaf {
		node := t.nodes[n]
		if row[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.nodes[n].Value
}

func (t *RegressionTree) State() models.TreeState {
	return models.TreeState{Nodes: append([]models.TreeNode(nil), t.nodes...)}
}

func newTree(st models.TreeState, width int) (*RegressionTree, error) {
	if len(st.Nodes) == 0 {
		return nil, fmt.Errorf("ml: tree has no nodes")
	}
	for i, n := range st.Nodes {
		if n.Feature == leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return nil, fmt.Errorf("ml: node %d splits on feature %d of %d", i, n.Feature, width)
		}
		// children always follow their parent, so this also rules out cycles
		if n.Left <= i || n.Right <= i || n.Left >= len(st.Nodes) || n.Right >= len(st.Nodes) {
			return nil, fmt.Errorf("ml: node %d has invalid children", i)
		}
	}
	return &RegressionTree{nodes: append([]models.TreeNode(nil), st.Nodes...)}, nil
}
