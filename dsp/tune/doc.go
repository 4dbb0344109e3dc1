// Package tune is the real-time pitch-correction engine: it owns the
// tunable settings, derives the legal target-pitch set, classifies each
// detected pitch against it, and drives the granular shifter with a
// bounded per-block correction.
//
// The engine is designed for a single audio callback thread. Process runs
// synchronously with no allocation, locking, or I/O; settings and
// lifecycle changes arrive from other goroutines through atomically
// swapped snapshots.
package tune
