// Package helper provides observability test doubles for loan store tests:
// a slog handler spy, a metrics collector spy, and a tracing collector spy.
package helper
