package postgresengine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/clublogistics/loanstore-go/loanstore"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (ls LoanStore) logQueryWithDuration(ctx context.Context, sqlQuery string, duration time.Duration) {
	if ls.contextualLogger != nil {
		ls.contextualLogger.DebugContext(ctx, logMsgSQLExecuted, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if ls.logger != nil {
		ls.logger.Debug(logMsgSQLExecuted, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (ls LoanStore) logOperation(ctx context.Context, action string, args ...any) {
	if ls.contextualLogger != nil {
		ls.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if ls.logger != nil {
		ls.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at error level if a logger is configured.
func (ls LoanStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if ls.contextualLogger != nil {
		ls.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if ls.logger != nil {
		ls.logger.Error(message, allArgs...)
	}
}

// logWarn logs a warning if a logger is configured.
func (ls LoanStore) logWarn(ctx context.Context, message string, args ...any) {
	if ls.contextualLogger != nil {
		ls.contextualLogger.WarnContext(ctx, message, args...)
		return
	}

	if ls.logger != nil {
		ls.logger.Warn(message, args...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordDurationMetrics records an operation duration if a metrics collector is configured.
func (ls LoanStore) recordDurationMetrics(ctx context.Context, metricName string, duration time.Duration, operation, status string) {
	if ls.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := ls.metricsCollector.(loanstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
	} else {
		ls.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordErrorMetrics records an operation error if a metrics collector is configured.
func (ls LoanStore) recordErrorMetrics(ctx context.Context, operation, errorType string) {
	if ls.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := ls.metricsCollector.(loanstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricCommandErrors, labels)
	} else {
		ls.metricsCollector.IncrementCounter(metricCommandErrors, labels)
	}
}

// recordConcurrencyConflictMetrics counts serialization conflicts if a metrics collector is configured.
func (ls LoanStore) recordConcurrencyConflictMetrics(operation string) {
	if ls.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"conflict_type":   "concurrency",
	}
	ls.metricsCollector.IncrementCounter(metricConcurrencyConflicts, labels)
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
func (ls LoanStore) startTraceSpan(ctx context.Context, operation string) (context.Context, loanstore.SpanContext) {
	if ls.tracingCollector != nil {
		return ls.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{spanAttrOperation: operation})
	}

	return ctx, nil
}

// finishTraceSpan finishes a tracing span if the tracing collector is configured.
func (ls LoanStore) finishTraceSpan(spanCtx loanstore.SpanContext, status string, attrs map[string]string) {
	if ls.tracingCollector != nil && spanCtx != nil {
		ls.tracingCollector.FinishSpan(spanCtx, status, attrs)
	}
}

// observeCommand wraps a mutating operation with logging, metrics, and tracing.
// It returns a possibly span-enriched context and a finish func that must be
// called with the operation's final error.
func (ls LoanStore) observeCommand(ctx context.Context, operation string) (context.Context, func(err error)) {
	start := time.Now()
	spanCtx, span := ls.startTraceSpan(ctx, operation)

	finish := func(err error) {
		duration := time.Since(start)

		switch {
		case err == nil:
			ls.recordDurationMetrics(spanCtx, metricCommandDuration, duration, operation, statusSuccess)
			ls.logOperation(spanCtx, operation, logAttrDurationMS, toMilliseconds(duration))
			ls.finishTraceSpan(span, statusSuccess, nil)

		case errors.Is(err, loanstore.ErrConcurrencyConflict):
			ls.recordDurationMetrics(spanCtx, metricCommandDuration, duration, operation, statusError)
			ls.recordConcurrencyConflictMetrics(operation)
			ls.logOperation(spanCtx, logMsgConcurrencyConflict, logAttrOperation, operation)
			ls.finishTraceSpan(span, statusError, map[string]string{spanAttrErrorType: "concurrency_conflict"})

		default:
			ls.recordDurationMetrics(spanCtx, metricCommandDuration, duration, operation, statusError)
			ls.recordErrorMetrics(spanCtx, operation, errorType(err))
			ls.logError(spanCtx, logMsgOperation+operation, err)
			ls.finishTraceSpan(span, statusError, map[string]string{spanAttrErrorType: errorType(err)})
		}
	}

	return spanCtx, finish
}

// observeQuery wraps a read operation with logging, metrics, and tracing.
func (ls LoanStore) observeQuery(ctx context.Context, operation string) (context.Context, func(err error)) {
	start := time.Now()
	spanCtx, span := ls.startTraceSpan(ctx, operation)

	finish := func(err error) {
		duration := time.Since(start)

		if err == nil {
			ls.recordDurationMetrics(spanCtx, metricQueryDuration, duration, operation, statusSuccess)
			ls.finishTraceSpan(span, statusSuccess, nil)
			return
		}

		ls.recordDurationMetrics(spanCtx, metricQueryDuration, duration, operation, statusError)
		ls.recordErrorMetrics(spanCtx, operation, errorType(err))
		ls.logError(spanCtx, logMsgOperation+operation, err)
		ls.finishTraceSpan(span, statusError, map[string]string{spanAttrErrorType: errorType(err)})
	}

	return spanCtx, finish
}

// errorType classifies an error for metric and span labels.
func errorType(err error) string {
	switch {
	case errors.Is(err, loanstore.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, loanstore.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, loanstore.ErrUniqueViolation):
		return "unique_violation"
	case errors.Is(err, loanstore.ErrQueryFailed),
		errors.Is(err, loanstore.ErrExecFailed),
		errors.Is(err, loanstore.ErrScanRowFailed),
		errors.Is(err, loanstore.ErrBeginTxFailed),
		errors.Is(err, loanstore.ErrCommitFailed),
		errors.Is(err, loanstore.ErrBuildQueryFailed):
		return "database_error"
	default:
		return "business_rule_violation"
	}
}
