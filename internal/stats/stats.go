// Package stats has the small numeric helpers shared by the aggregation, sentiment
// and anomaly packages.
package stats

import "math"

// roundingSlack absorbs binary representation error so that values such as 2.675
// round up as they read in decimal.
const roundingSlack = 1e-9

// RoundHalfUp rounds x to places decimals, halves away from zero.
func RoundHalfUp(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	if x < 0 {
		return -math.Floor(-x*p+0.5+roundingSlack) / p
	}
	return math.Floor(x*p+0.5+roundingSlack) / p
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation, or 0 for fewer than two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// Clip bounds x to [lo, hi].
func Clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Euclidean returns the distance between two equal-length vectors.
func Euclidean(a, b []float64) float64 {
	var ss float64
	for i := range a {
		d := a[i] - b[i]
		ss += d * d
	}
	return math.Sqrt(ss)
}

// Centroid returns the component-wise mean of vectors, all of dimension dim.
func Centroid(vectors [][]float64, dim int) []float64 {
	c := make([]float64, dim)
	if len(vectors) == 0 {
		return c
	}
	for _, v := range vectors {
		for i := range c {
			c[i] += v[i]
		}
	}
	for i := range c {
		c[i] /= float64(len(vectors))
	}
	return c
}
