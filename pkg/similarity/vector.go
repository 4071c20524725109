package similarity

import "math"

const (
	// MinDisplayScore is what a frame scores when the poses point in opposite directions.
	MinDisplayScore = 50.0
	MaxDisplayScore = 100.0
)

// CosineSimilarity treats both landmark sets as flattened (x, y) vectors and returns their
// cosine in [-1, 1]. Indices missing from either side are skipped. Zero magnitude yields 0.
func CosineSimilarity(u, r []Landmark) float64 {
	n := len(u)
	if len(r) < n {
		n = len(r)
	}

	var dot, magU, magR float64
	for i := 0; i < n; i++ {
		if !u[i].Valid() || !r[i].Valid() {
			continue
		}
		dot += u[i].X*r[i].X + u[i].Y*r[i].Y
		magU += u[i].X*u[i].X + u[i].Y*u[i].Y
		magR += r[i].X*r[i].X + r[i].Y*r[i].Y
	}
	return cosine(dot, magU, magR)
}

// cosine is 0 when either magnitude is zero or any sum overflowed.
func cosine(dot, sqMagA, sqMagB float64) float64 {
	if sqMagA == 0 || sqMagB == 0 || !finite(dot) || !finite(sqMagA) || !finite(sqMagB) {
		return 0
	}
	c := dot / (math.Sqrt(sqMagA) * math.Sqrt(sqMagB))
	// rounding can push identical vectors a hair past 1
	return math.Max(-1, math.Min(1, c))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DisplayScore maps a raw cosine onto [50, 100].
func DisplayScore(cos float64) float64 {
	return ((cos+1)/2)*50 + 50
}

// ScoreFrame scores one user frame against its aligned reference frame.
func ScoreFrame(reference, user []Landmark) float64 {
	return DisplayScore(CosineSimilarity(user, reference))
}

// DistanceSimilarity is 1 minus the summed 3D distance between corresponding landmarks,
// floored at 0. Sets of different size score 0, as do sets with undetected points.
func DistanceSimilarity(a, b []Landmark) float64 {
	if len(a) != len(b) {
		return 0
	}
	var total float64
	for i := range a {
		if !a[i].Valid() || !b[i].Valid() {
			return 0
		}
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return math.Max(0, 1-total)
}
