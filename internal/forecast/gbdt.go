package forecast

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
)

// GradientBoostingName identifies Strategy B.
const GradientBoostingName = "gradient_boosting"

// DefaultSeed makes row subsampling reproducible.
const DefaultSeed = 42

// featureCount is the width of the tabular feature vector.
const featureCount = 5

// BoostingOptions configures GradientBoosting.
type BoostingOptions struct {
	Trees        int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Subsample    float64
	Seed         int64
}

// DefaultBoostingOptions returns 100 trees of depth 5 with learning rate 0.1,
// at least 20 rows per leaf and an 80% row subsample seeded with 42.
func DefaultBoostingOptions() BoostingOptions {
	return BoostingOptions{
		Trees:        100,
		LearningRate: 0.1,
		MaxDepth:     5,
		MinLeaf:      20,
		Subsample:    0.8,
		Seed:         DefaultSeed,
	}
}

// GradientBoosting fits least-squares boosted regression trees over
// lag_1, lag_7, rolling_mean_7, weekday and is_holiday.
// Identical input and options always produce the same model.
type GradientBoosting struct {
	opts BoostingOptions
}

// NewGradientBoosting creates Strategy B.
func NewGradientBoosting(opts BoostingOptions) *GradientBoosting {
	def := DefaultBoostingOptions()
	if opts.Trees <= 0 {
		opts.Trees = def.Trees
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.MinLeaf <= 0 {
		opts.MinLeaf = def.MinLeaf
	}
	if opts.Subsample <= 0 || opts.Subsample > 1 {
		opts.Subsample = def.Subsample
	}
	return &GradientBoosting{opts: opts}
}

// Name implements Strategy.
func (g *GradientBoosting) Name() string { return GradientBoostingName }

func featureVector(r features.Row) [featureCount]float64 {
	return [featureCount]float64{r.Lag1, r.Lag7, r.RollingMean7, float64(r.Weekday), r.HolidayFlag()}
}

// Fit implements Strategy.
func (g *GradientBoosting) Fit(ctx context.Context, train []features.Row) (Model, error) {
	n := len(train)
	x := make([][featureCount]float64, n)
	y := make([]float64, n)
	for i, r := range train {
		x[i] = featureVector(r)
		y[i] = r.Value
		for f, v := range x[i] {
			if !finite(v) {
				return nil, fmt.Errorf("non-finite feature %d on %s", f, r.Date.Format("2006-01-02"))
			}
		}
	}

	var base float64
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	// Rows ordered by each feature once; every tree filters this order.
	var order [featureCount][]int
	for f := 0; f < featureCount; f++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]][f] < x[idx[b]][f] })
		order[f] = idx
	}

	minLeaf := g.opts.MinLeaf
	if n < 2*minLeaf {
		minLeaf = n / 4
		if minLeaf < 1 {
			minLeaf = 1
		}
	}

	sampleSize := int(float64(n) * g.opts.Subsample)
	if sampleSize < 1 {
		sampleSize = n
	}

	rng := rand.New(rand.NewSource(g.opts.Seed))
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	resid := make([]float64, n)
	inSample := make([]bool, n)

	model := &boostedModel{base: base, rate: g.opts.LearningRate, trees: make([]*tree, 0, g.opts.Trees)}
	for t := 0; t < g.opts.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := range resid {
			resid[i] = y[i] - pred[i]
			inSample[i] = false
		}
		for _, i := range rng.Perm(n)[:sampleSize] {
			inSample[i] = true
		}

		tr := growTree(x, resid, inSample, order, g.opts.MaxDepth, minLeaf)
		model.trees = append(model.trees, tr)
		for i := range pred {
			pred[i] += g.opts.LearningRate * tr.predict(x[i])
		}
	}
	return model, nil
}

type boostedModel struct {
	base  float64
	rate  float64
	trees []*tree
}

// Predict implements Model.
func (m *boostedModel) Predict(rows []features.Row) ([]Result, error) {
	out := make([]Result, len(rows))
	for i, r := range rows {
		v := featureVector(r)
		yhat := m.base
		for _, t := range m.trees {
			yhat += m.rate * t.predict(v)
		}
		out[i] = Result{Date: r.Date, Value: yhat}
	}
	return Clamp(out), nil
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type tree struct {
	nodes []treeNode
}

func (t *tree) predict(v [featureCount]float64) float64 {
	i := 0
	for !t.nodes[i].leaf {
		n := t.nodes[i]
		if v[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].value
}

type splitCandidate struct {
	gain      float64
	feature   int
	threshold float64
}

// growTree grows one least-squares tree level by level. For every level it
// makes a single pass over each feature's presorted order, accumulating the
// left-hand sums of all open leaves at once.
func growTree(x [][featureCount]float64, resid []float64, inSample []bool, order [featureCount][]int, maxDepth, minLeaf int) *tree {
	const minGain = 1e-12

	t := &tree{nodes: []treeNode{{leaf: true}}}
	leafOf := make([]int, len(x))
	for i := range leafOf {
		if inSample[i] {
			leafOf[i] = 0
		} else {
			leafOf[i] = -1
		}
	}

	sums := []float64{0}
	counts := []int{0}
	for i, ok := range inSample {
		if ok {
			sums[0] += resid[i]
			counts[0]++
		}
	}

	open := []int{0}
	for depth := 0; depth < maxDepth && len(open) > 0; depth++ {
		size := len(t.nodes)
		isOpen := make([]bool, size)
		for _, id := range open {
			isOpen[id] = true
		}
		best := make([]splitCandidate, size)

		leftSum := make([]float64, size)
		leftCount := make([]int, size)
		last := make([]float64, size)
		for f := 0; f < featureCount; f++ {
			for _, id := range open {
				leftSum[id], leftCount[id] = 0, 0
			}
			for _, i := range order[f] {
				id := leafOf[i]
				if id < 0 || !isOpen[id] {
					continue
				}
				v := x[i][f]
				lc, rc := leftCount[id], counts[id]-leftCount[id]
				if lc >= minLeaf && rc >= minLeaf && v > last[id] {
					ls := leftSum[id]
					rs := sums[id] - ls
					gain := ls*ls/float64(lc) + rs*rs/float64(rc) - sums[id]*sums[id]/float64(counts[id])
					if gain > best[id].gain+minGain {
						best[id] = splitCandidate{gain: gain, feature: f, threshold: (last[id] + v) / 2}
					}
				}
				leftSum[id] += resid[i]
				leftCount[id]++
				last[id] = v
			}
		}

		var next []int
		for _, id := range open {
			b := best[id]
			if b.gain <= minGain {
				continue
			}
			left, right := len(t.nodes), len(t.nodes)+1
			t.nodes[id] = treeNode{feature: b.feature, threshold: b.threshold, left: left, right: right}
			t.nodes = append(t.nodes, treeNode{leaf: true}, treeNode{leaf: true})
			sums = append(sums, 0, 0)
			counts = append(counts, 0, 0)
			next = append(next, left, right)
		}

		for i, id := range leafOf {
			if id < 0 || id >= size || t.nodes[id].leaf {
				continue
			}
			n := t.nodes[id]
			child := n.right
			if x[i][n.feature] <= n.threshold {
				child = n.left
			}
			leafOf[i] = child
			sums[child] += resid[i]
			counts[child]++
		}
		open = next
	}

	for id := range t.nodes {
		if t.nodes[id].leaf && counts[id] > 0 {
			t.nodes[id].value = sums[id] / float64(counts[id])
		}
	}
	return t
}
