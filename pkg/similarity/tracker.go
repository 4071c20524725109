package similarity

import "sync"

// DefaultWindow is the number of recent frames averaged by Running.
const DefaultWindow = 5

// Tracker accumulates per-frame scores for one player during one round.
type Tracker struct {
	mu     sync.Mutex
	window int
	recent []float64 // ring of the last window scores
	next   int
	sum    float64
	count  int
}

// NewTracker returns a tracker averaging the last window scores; window <= 0 uses DefaultWindow.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window: window,
		recent: make([]float64, 0, window),
	}
}

func (t *Tracker) Add(score float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.recent) < t.window {
		t.recent = append(t.recent, score)
	} else {
		t.recent[t.next] = score
	}
	t.next = (t.next + 1) % t.window
	t.sum += score
	t.count++
}

// AddFrame scores a frame pair, records it, and returns the frame score.
func (t *Tracker) AddFrame(reference, user []Landmark) float64 {
	s := ScoreFrame(reference, user)
	t.Add(s)
	return s
}

// Running is the mean of the most recent scores, 0 before the first frame.
func (t *Tracker) Running() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.recent) == 0 {
		return 0
	}
	var s float64
	for _, v := range t.recent {
		s += v
	}
	return s / float64(len(t.recent))
}

// Final is the mean of every score recorded since the last Reset.
func (t *Tracker) Final() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recent = t.recent[:0]
	t.next = 0
	t.sum = 0
	t.count = 0
}
