// Package batch aggregates per-item results for tools that accept one or
// many Drive file IDs.
//
// Parameters may arrive as a single string, a JSON array encoded as a
// string, or a real array. Failures of individual items never abort the
// batch; they are reported next to the successes.
package batch
