package marketindex

import (
	"math"
)

// AddSmoothedAndRegression fills the smoothed, standard-deviation and
// regression columns of the series in place and returns it.
//
// The smoothed index is a centered rolling mean over smoothWindow buckets
// with partial windows allowed at the edges (minimum one observation). The
// standard deviation uses the same centered window with a minimum of two
// observations; undefined windows are reported as 0. The regression index is
// an ordinary least-squares fit of the raw index against bucket position,
// degenerating to the smoothed series when fewer than two finite points
// exist.
func AddSmoothedAndRegression(series IndexSeries, smoothWindow int) IndexSeries {
	if len(series) == 0 {
		return series
	}
	if smoothWindow < 2 {
		smoothWindow = 2
	}

	n := len(series)
	raw := make([]float64, n)
	for i, p := range series {
		raw[i] = p.RawIndex
	}

	for i := 0; i < n; i++ {
		lo, hi := centeredWindow(i, n, smoothWindow)
		window := raw[lo:hi]
		series[i].SmoothedIndex = calculateMean(window)
		// Sample stddev needs two observations; 0 means no demonstrated
		// uncertainty, not unknown
		series[i].StdDev = calculateSampleStdDev(window)
	}

	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i, v := range raw {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}

	slope, intercept, ok := linearFit(xs, ys)
	for i := range series {
		if ok {
			series[i].RegressionIndex = slope*float64(i) + intercept
		} else {
			series[i].RegressionIndex = series[i].SmoothedIndex
		}
	}

	return series
}

// centeredWindow returns the [lo, hi) bounds of a centered rolling window of
// the given size around position i, clipped to the series edges. For even
// window sizes the extra observation falls before the center.
func centeredWindow(i, n, size int) (lo, hi int) {
	half := size / 2
	lo = i - half
	hi = i + (size - half - 1) + 1
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}
