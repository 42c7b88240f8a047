package shell

// CommandResult is the uniform outcome of one loan store command, carrying
// the business outcome and retry metadata without coupling callers to
// specific observability implementations.
type CommandResult struct {
	// Success marks the command as committed.
	Success bool

	// RefNo is the created loan reference number, for commands that create one.
	RefNo int64

	// Reason is a human-readable failure reason; empty on success.
	Reason string

	// Idempotent indicates the operation needed no state change
	// (e.g. returning an already returned loan line).
	Idempotent bool

	// Retry carries the retry metadata of the command execution.
	Retry RetryMetrics
}

// NewSuccessResult creates a CommandResult for a committed command.
func NewSuccessResult(refNo int64, retry RetryMetrics) CommandResult {
	return CommandResult{
		Success: true,
		RefNo:   refNo,
		Retry:   retry,
	}
}

// NewIdempotentResult creates a CommandResult for a no-op that is still a success.
func NewIdempotentResult(retry RetryMetrics) CommandResult {
	return CommandResult{
		Success:    true,
		Idempotent: true,
		Retry:      retry,
	}
}

// NewFailureResult creates a CommandResult for a failed command.
func NewFailureResult(err error, retry RetryMetrics) CommandResult {
	reason := ""
	if err != nil {
		reason = err.Error()
	}

	return CommandResult{
		Reason: reason,
		Retry:  retry,
	}
}
