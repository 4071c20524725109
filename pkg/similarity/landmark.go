// Package similarity scores how closely a dancer's pose track follows a reference track.
//
// Two modes are provided. ScoreFrame compares one user frame with the temporally aligned
// reference frame and is accumulated by a Tracker. SequenceSimilarity compares whole
// sequences through their frame-to-frame movement vectors.
package similarity

import (
	"math"
	"time"
)

// Landmark is a single body point in normalized image coordinates. A NaN coordinate marks
// a point the pose model did not detect.
type Landmark struct {
	X          float64  `json:"x" msgpack:"x"`
	Y          float64  `json:"y" msgpack:"y"`
	Z          float64  `json:"z,omitempty" msgpack:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty" msgpack:"visibility,omitempty"`
}

// Missing returns the placeholder used for an undetected landmark.
func Missing() Landmark {
	return Landmark{X: math.NaN(), Y: math.NaN()}
}

// Valid reports whether both planar coordinates are usable.
func (l Landmark) Valid() bool {
	return !math.IsNaN(l.X) && !math.IsNaN(l.Y) && !math.IsInf(l.X, 0) && !math.IsInf(l.Y, 0)
}

// PoseFrame is one landmark set captured at Timestamp from the start of the round.
type PoseFrame struct {
	Timestamp time.Duration `json:"timestamp" msgpack:"timestamp"`
	Landmarks []Landmark    `json:"landmarks" msgpack:"landmarks"`
}

// FromNullable converts a wire landmark list where undetected points are null.
func FromNullable(in []*Landmark) []Landmark {
	if in == nil {
		return nil
	}
	out := make([]Landmark, len(in))
	for i, l := range in {
		if l == nil {
			out[i] = Missing()
			continue
		}
		out[i] = *l
	}
	return out
}

// SequenceFromNullable converts a whole wire sequence.
func SequenceFromNullable(in [][]*Landmark) [][]Landmark {
	out := make([][]Landmark, len(in))
	for i, frame := range in {
		out[i] = FromNullable(frame)
	}
	return out
}
