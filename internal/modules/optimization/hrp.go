package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jayana-cpc/wealthwise/pkg/formulas"
)

// hrpNode is one node of the agglomerative cluster tree. Leaves have nil
// children and a single member.
type hrpNode struct {
	members []int
	left    *hrpNode
	right   *hrpNode
}

// HRPWeights computes hierarchical-risk-parity weights: cluster assets on
// correlation distance, order them quasi-diagonally, then split risk down
// the tree by inverse cluster variance.
func HRPWeights(cov *mat.Dense) []float64 {
	order := hrpOrder(cov)
	n := len(order)

	// Reindex the covariance into quasi-diagonal order.
	covOrd := mat.NewDense(n, n, nil)
	for i, oi := range order {
		for j, oj := range order {
			covOrd.Set(i, j, cov.At(oi, oj))
		}
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0
	}

	// Recursive bisection over the ordered index list.
	queue := [][]int{seq(n)}
	for len(queue) > 0 {
		cluster := queue[0]
		queue = queue[1:]
		if len(cluster) <= 1 {
			continue
		}
		split := len(cluster) / 2
		left := cluster[:split]
		right := cluster[split:]
		varL := clusterVariance(covOrd, left)
		varR := clusterVariance(covOrd, right)
		allocLeft := 0.5
		if varL+varR > 0 {
			allocLeft = 1 - varL/(varL+varR)
		}
		for _, i := range left {
			w[i] *= allocLeft
		}
		for _, i := range right {
			w[i] *= 1 - allocLeft
		}
		queue = append(queue, left, right)
	}

	raw := make([]float64, n)
	for pos, idx := range order {
		raw[idx] = w[pos]
	}
	return ProjectSimplex(raw)
}

// hrpOrder builds the quasi-diagonal asset ordering: greedy agglomerative
// clustering on correlation distance with average linkage, then an in-order
// walk of the tree.
func hrpOrder(cov *mat.Dense) []int {
	n, _ := cov.Dims()
	dist := distanceMatrix(cov)

	clusters := make([]*hrpNode, n)
	for i := 0; i < n; i++ {
		clusters[i] = &hrpNode{members: []int{i}}
	}
	for len(clusters) > 1 {
		bestI, bestJ := -1, -1
		bestDist := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusterDistance(clusters[i].members, clusters[j].members, dist)
				if d < bestDist {
					bestDist = d
					bestI, bestJ = i, j
				}
			}
		}
		if bestI < 0 {
			break
		}
		a, b := clusters[bestI], clusters[bestJ]
		merged := &hrpNode{
			members: append(append([]int{}, a.members...), b.members...),
			left:    a,
			right:   b,
		}
		next := make([]*hrpNode, 0, len(clusters)-1)
		for idx, c := range clusters {
			if idx != bestI && idx != bestJ {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}
	return treeOrder(clusters[0])
}

func treeOrder(node *hrpNode) []int {
	if node.left == nil || node.right == nil {
		return node.members
	}
	return append(treeOrder(node.left), treeOrder(node.right)...)
}

// clusterDistance is the mean pairwise distance between two clusters.
func clusterDistance(a, b []int, dist *mat.Dense) float64 {
	var sum float64
	var count int
	for _, i := range a {
		for _, j := range b {
			if i == j {
				continue
			}
			sum += dist.At(i, j)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// distanceMatrix converts covariance to the correlation distance
// sqrt(0.5 * (1 - corr)), flooring variances so flat series stay finite.
func distanceMatrix(cov *mat.Dense) *mat.Dense {
	n, _ := cov.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = mat.Row(nil, i, cov)
	}
	corr, err := formulas.CorrelationMatrixFromCovariance(rows)
	if err != nil {
		return mat.NewDense(n, n, nil)
	}
	distRows := formulas.CorrelationToDistance(corr)

	dist := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		dist.SetRow(i, distRows[i])
	}
	return dist
}

// clusterVariance is the variance of the inverse-variance portfolio over a
// sub-cluster of the ordered covariance.
func clusterVariance(covOrd *mat.Dense, indices []int) float64 {
	variances := make([]float64, len(indices))
	for k, idx := range indices {
		variances[k] = covOrd.At(idx, idx)
	}
	ivp := formulas.InverseVarianceWeights(variances)

	var variance float64
	for a, ia := range indices {
		for b, ib := range indices {
			variance += ivp[a] * covOrd.At(ia, ib) * ivp[b]
		}
	}
	return variance
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
