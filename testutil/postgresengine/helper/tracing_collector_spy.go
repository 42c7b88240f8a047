package helper

import (
	"context"
	"sync"

	"github.com/clublogistics/loanstore-go/loanstore"
)

// TracingCollectorSpy is a loanstore.TracingCollector implementation that
// captures spans for testing.
type TracingCollectorSpy struct {
	startedSpans  []SpySpan
	finishedSpans []SpySpan
	mu            sync.Mutex
}

// SpySpan represents one captured span with its final state.
type SpySpan struct {
	Name       string
	Status     string
	Attributes map[string]string
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, loanstore.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span := &SpySpanContext{name: name, attributes: copyLabels(attrs)}
	s.startedSpans = append(s.startedSpans, SpySpan{Name: name, Attributes: copyLabels(attrs)})

	return ctx, span
}

// FinishSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) FinishSpan(spanCtx loanstore.SpanContext, status string, attrs map[string]string) {
	spy, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	finalAttrs := copyLabels(spy.attributes)
	for k, v := range attrs {
		finalAttrs[k] = v
	}

	s.finishedSpans = append(s.finishedSpans, SpySpan{Name: spy.name, Status: status, Attributes: finalAttrs})
}

// StartedSpanCount returns the number of started spans.
func (s *TracingCollectorSpy) StartedSpanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.startedSpans)
}

// FinishedSpans returns a copy of all finished spans.
func (s *TracingCollectorSpy) FinishedSpans() []SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	spans := make([]SpySpan, len(s.finishedSpans))
	copy(spans, s.finishedSpans)

	return spans
}

// HasFinishedSpan reports whether a span with the given name finished with the given status.
func (s *TracingCollectorSpy) HasFinishedSpan(name, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, span := range s.finishedSpans {
		if span.Name == name && span.Status == status {
			return true
		}
	}

	return false
}

// Reset clears all captured spans.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startedSpans = nil
	s.finishedSpans = nil
}

// SpySpanContext implements loanstore.SpanContext for the spy.
type SpySpanContext struct {
	name       string
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus records the span status.
func (s *SpySpanContext) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// AddAttribute records a span attribute.
func (s *SpySpanContext) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attributes == nil {
		s.attributes = make(map[string]string)
	}
	s.attributes[key] = value
}
