package controller

// rewardWindow is a fixed-capacity ring buffer of recent reward
// observations. The backing array is allocated once; pushing past capacity
// overwrites the oldest value, so memory stays bounded regardless of query
// volume.
type rewardWindow struct {
	buf  []float64
	head int
	n    int
	sum  float64
}

func newRewardWindow(capacity int) *rewardWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &rewardWindow{buf: make([]float64, capacity)}
}

// push records one observation, evicting the oldest when full.
func (w *rewardWindow) push(x float64) {
	if w.n == len(w.buf) {
		w.sum -= w.buf[w.head]
		w.buf[w.head] = x
		w.sum += x
		w.head = (w.head + 1) % len(w.buf)
		return
	}
	tail := (w.head + w.n) % len(w.buf)
	w.buf[tail] = x
	w.sum += x
	w.n++
}

// count is the number of observations currently in the window.
func (w *rewardWindow) count() int {
	return w.n
}

// mean is the average over the window; 0 when empty.
func (w *rewardWindow) mean() float64 {
	if w.n == 0 {
		return 0
	}
	return w.sum / float64(w.n)
}

// reset forgets every observation without reallocating.
func (w *rewardWindow) reset() {
	w.head = 0
	w.n = 0
	w.sum = 0
}
