// Package perf holds the scoring formulas and the rolling
// per-(agent, capability) performance tracker. Response times are
// smoothed with an EMA (alpha 0.1); the first sample sets the average.
package perf
