package postgresengine

import (
	"errors"

	"github.com/clublogistics/loanstore-go/loanstore"
)

// Option defines a functional option for configuring a LoanStore.
type Option func(*LoanStore) error

// WithTablePrefix sets a prefix that is prepended to every table name.
// Useful when several deployments share one database.
func WithTablePrefix(prefix string) Option {
	return func(ls *LoanStore) error {
		ls.tablePrefix = prefix

		return nil
	}
}

// WithLogger sets a logger for the LoanStore.
func WithLogger(logger loanstore.Logger) Option {
	return func(ls *LoanStore) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}

		ls.logger = logger

		return nil
	}
}

// WithContextualLogger sets a contextual logger for the LoanStore.
// When both a Logger and a ContextualLogger are supplied, the contextual
// logger wins for all log output.
func WithContextualLogger(logger loanstore.ContextualLogger) Option {
	return func(ls *LoanStore) error {
		if logger == nil {
			return errors.New("contextual logger cannot be nil")
		}

		ls.contextualLogger = logger

		return nil
	}
}

// WithMetrics sets a metrics collector for the LoanStore.
func WithMetrics(collector loanstore.MetricsCollector) Option {
	return func(ls *LoanStore) error {
		if collector == nil {
			return errors.New("metrics collector cannot be nil")
		}

		ls.metricsCollector = collector

		return nil
	}
}

// WithTracing sets a tracing collector for the LoanStore.
func WithTracing(collector loanstore.TracingCollector) Option {
	return func(ls *LoanStore) error {
		if collector == nil {
			return errors.New("tracing collector cannot be nil")
		}

		ls.tracingCollector = collector

		return nil
	}
}
