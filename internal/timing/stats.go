package timing

import (
	"math"
	"slices"
	"time"
)

// Stats summarises successful samples.
type Stats struct {
	N      int           `json:"n"`
	Mean   time.Duration `json:"mean"`
	Median time.Duration `json:"median"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	StdDev time.Duration `json:"stddev"`
}

// Summarize computes Stats over samples. StdDev is the sample standard
// deviation and is zero for fewer than two samples.
func Summarize(samples []time.Duration) Stats {
	n := len(samples)
	if n == 0 {
		return Stats{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum float64
	for _, s := range sorted {
		sum += float64(s)
	}
	mean := sum / float64(n)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var stddev float64
	if n > 1 {
		var ss float64
		for _, s := range sorted {
			d := float64(s) - mean
			ss += d * d
		}
		stddev = math.Sqrt(ss / float64(n-1))
	}

	return Stats{
		N:      n,
		Mean:   time.Duration(math.Round(mean)),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: time.Duration(math.Round(stddev)),
	}
}
