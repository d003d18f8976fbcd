package controller

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// sigmaFloor keeps the CUSUM threshold meaningful when the warmup window is
// nearly constant.
const sigmaFloor = 1e-3

// driftDetector is a two-sided CUSUM test over the reward stream. It
// estimates a reference mean and standard deviation from a warmup window,
// then accumulates deviations from the reference, clamped at zero on the low
// side, separately for upward and downward shifts. When either cumulative
// deviation exceeds k·σ it declares a change point.
//
// Detection latency after a sustained mean shift of magnitude Δ is on the
// order of k·σ/Δ observations.
type driftDetector struct {
	k      float64
	warmup int

	samples []float64
	ready   bool

	refMean   float64
	threshold float64

	gUp   float64
	gDown float64
}

func newDriftDetector(k float64, warmup int) *driftDetector {
	if k <= 0 {
		k = 4
	}
	if warmup < 2 {
		warmup = 2
	}
	return &driftDetector{
		k:       k,
		warmup:  warmup,
		samples: make([]float64, 0, warmup),
	}
}

// observe feeds one reward into the detector and reports whether a change
// point was just crossed. After a detection the caller resets the detector,
// which restarts the warmup against the post-shift distribution.
func (d *driftDetector) observe(x float64) bool {
	if !d.ready {
		d.samples = append(d.samples, x)
		if len(d.samples) < d.warmup {
			return false
		}
		d.refMean = stat.Mean(d.samples, nil)
		sigma := stat.StdDev(d.samples, nil)
		if math.IsNaN(sigma) || sigma < sigmaFloor {
			sigma = sigmaFloor
		}
		d.threshold = d.k * sigma
		d.ready = true
		return false
	}

	d.gUp = math.Max(0, d.gUp+(x-d.refMean))
	d.gDown = math.Max(0, d.gDown+(d.refMean-x))

	return d.gUp > d.threshold || d.gDown > d.threshold
}

// reset clears all running state; the next observations rebuild the
// reference.
func (d *driftDetector) reset() {
	d.samples = d.samples[:0]
	d.ready = false
	d.refMean = 0
	d.threshold = 0
	d.gUp = 0
	d.gDown = 0
}
