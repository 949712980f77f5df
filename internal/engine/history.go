package engine

import "time"

// DefaultWindow is the default number of cycles kept in the history.
const DefaultWindow = 100

// CycleSample is the measurement of one tick.
type CycleSample struct {
	// Seq is the logical sequence number assigned when the sample was recorded.
	Seq int64 `json:"seq"`

	// Elapsed is the wall-clock length of the cycle, including the wait.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Target is the engine's target period.
	Target time.Duration `json:"target_ns"`

	// Overrun is set when the caller's work already exceeded the target
	// period, so the tick returned without waiting.
	Overrun bool `json:"overrun,omitempty"`
}

// ElapsedMs returns Elapsed in milliseconds.
func (s CycleSample) ElapsedMs() float64 {
	return durationMs(s.Elapsed)
}

// TargetMs returns Target in milliseconds.
func (s CycleSample) TargetMs() float64 {
	return durationMs(s.Target)
}

// DeviationMs returns Elapsed - Target in milliseconds. Positive means late.
func (s CycleSample) DeviationMs() float64 {
	return durationMs(s.Elapsed - s.Target)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// History is a fixed-capacity ring buffer of cycle samples.
// The oldest sample is evicted when a new one is pushed at capacity.
//
// History is not synchronized; Engine guards its own history.
type History struct {
	buf   []CycleSample
	head  int // index of the oldest sample
	count int
}

// NewHistory creates a history holding at most size samples.
// size must be positive.
func NewHistory(size int) *History {
	return &History{buf: make([]CycleSample, size)}
}

// Push appends a sample, evicting the oldest one at capacity. O(1).
func (h *History) Push(s CycleSample) {
	if h.count < len(h.buf) {
		h.buf[(h.head+h.count)%len(h.buf)] = s
		h.count++
		return
	}
	h.buf[h.head] = s
	h.head = (h.head + 1) % len(h.buf)
}

// Len returns the number of samples currently held.
func (h *History) Len() int {
	return h.count
}

// Cap returns the window size.
func (h *History) Cap() int {
	return len(h.buf)
}

// Samples returns a copy of the held samples, oldest first.
func (h *History) Samples() []CycleSample {
	out := make([]CycleSample, h.count)
	for i := range out {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}
