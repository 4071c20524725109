package similarity

import "math"

// Vector is a per-landmark displacement between two frames.
type Vector struct {
	DX, DY float64
}

func (v Vector) valid() bool {
	return !math.IsNaN(v.DX) && !math.IsNaN(v.DY)
}

// MovementVector returns b − a for every landmark. It reports false when either frame is
// empty or the frames differ in size; such steps are left out of sequence comparisons.
// Undetected landmarks produce NaN components.
func MovementVector(a, b []Landmark) ([]Vector, bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return nil, false
	}
	out := make([]Vector, len(a))
	for i := range a {
		if !a[i].Valid() || !b[i].Valid() {
			out[i] = Vector{DX: math.NaN(), DY: math.NaN()}
			continue
		}
		out[i] = Vector{DX: b[i].X - a[i].X, DY: b[i].Y - a[i].Y}
	}
	return out, true
}

// vectorCosine compares two displacement sets. Mismatched or empty sets count as a
// comparison scoring 0; ok is false only when no component is present on both sides.
func vectorCosine(a, b []Vector) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, true
	}
	var dot, magA, magB float64
	compared := 0
	for i := range a {
		if !a[i].valid() || !b[i].valid() {
			continue
		}
		compared++
		dot += a[i].DX*b[i].DX + a[i].DY*b[i].DY
		magA += a[i].DX*a[i].DX + a[i].DY*a[i].DY
		magB += b[i].DX*b[i].DX + b[i].DY*b[i].DY
	}
	if compared == 0 {
		return 0, false
	}
	return cosine(dot, magA, magB), true
}

func movementVectors(seq [][]Landmark) [][]Vector {
	var out [][]Vector
	for i := 1; i < len(seq); i++ {
		if v, ok := MovementVector(seq[i-1], seq[i]); ok {
			out = append(out, v)
		}
	}
	return out
}

// SequenceSimilarity is the mean cosine between corresponding movement vectors of the two
// sequences, truncated to the shorter one. Result is on the [-1, 1] scale; 0 when either
// sequence has fewer than two frames or nothing could be compared.
func SequenceSimilarity(reference, user [][]Landmark) float64 {
	if len(reference) < 2 || len(user) < 2 {
		return 0
	}
	ref := movementVectors(reference)
	usr := movementVectors(user)

	n := len(ref)
	if len(usr) < n {
		n = len(usr)
	}

	var sum float64
	count := 0
	for i := 0; i < n; i++ {
		c, ok := vectorCosine(ref[i], usr[i])
		if !ok {
			continue
		}
		sum += c
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// SequenceScore expresses SequenceSimilarity as a percentage. Negative correlation is
// reported as 0 so the value can be submitted as a round score.
func SequenceScore(reference, user [][]Landmark) float64 {
	return math.Max(0, SequenceSimilarity(reference, user)*100)
}
