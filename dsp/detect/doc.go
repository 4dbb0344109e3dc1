// Package detect implements monophonic pitch detection by normalized
// autocorrelation of a Hann-windowed analysis frame over a rolling sample
// history.
package detect
