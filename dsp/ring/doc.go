// Package ring provides a fixed-capacity circular sample history for
// block-based processors that need cross-block continuity. All storage is
// allocated at construction; the write path never allocates, and the read
// path applies modulo arithmetic instead of bounds checks.
package ring
