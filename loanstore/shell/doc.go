// Package shell provides command-boundary helpers around the loan store:
// a uniform command result shape and retry with exponential backoff for
// serialization conflicts between concurrent store operations.
package shell
