// Package shift implements time-domain granular overlap-add pitch
// shifting with a fixed round-robin grain pool and no allocation on the
// processing path.
package shift
