package scoring

// RunningAverage accumulates a mean over finite values.
type RunningAverage struct {
	total float64
	n     int
}

// Add includes v unless it is NaN or infinite.
func (r *RunningAverage) Add(v float64) {
	if !isFinite(v) {
		return
	}
	r.total += v
	r.n++
}

// Count returns the number of values added.
func (r *RunningAverage) Count() int { return r.n }

// Average returns the mean, or 0 when nothing has been added.
func (r *RunningAverage) Average() float64 {
	if r.n == 0 {
		return 0
	}
	return r.total / float64(r.n)
}
