package observability

import (
	"sync/atomic"
)

// MetricsCollector provides hooks for metrics collection
// Can be implemented to integrate with Prometheus, StatsD, etc.
type MetricsCollector interface {
	IncPublished()
	IncPublishFailed()
	IncReceived()
	IncProcessed()
	IncFailed()
	IncRejected()
	IncUpdates()
}

// InMemoryMetrics is a simple in-memory implementation for testing/demo
type InMemoryMetrics struct {
	Published     atomic.Int64
	PublishFailed atomic.Int64
	Received      atomic.Int64
	Processed     atomic.Int64
	Failed        atomic.Int64
	Rejected      atomic.Int64
	Updates       atomic.Int64
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) IncPublished() {
	m.Published.Add(1)
}

func (m *InMemoryMetrics) IncPublishFailed() {
	m.PublishFailed.Add(1)
}

func (m *InMemoryMetrics) IncReceived() {
	m.Received.Add(1)
}

func (m *InMemoryMetrics) IncProcessed() {
	m.Processed.Add(1)
}

func (m *InMemoryMetrics) IncFailed() {
	m.Failed.Add(1)
}

func (m *InMemoryMetrics) IncRejected() {
	m.Rejected.Add(1)
}

func (m *InMemoryMetrics) IncUpdates() {
	m.Updates.Add(1)
}

func (m *InMemoryMetrics) GetPublished() int64 {
	return m.Published.Load()
}

func (m *InMemoryMetrics) GetPublishFailed() int64 {
	return m.PublishFailed.Load()
}

func (m *InMemoryMetrics) GetReceived() int64 {
	return m.Received.Load()
}

func (m *InMemoryMetrics) GetProcessed() int64 {
	return m.Processed.Load()
}

func (m *InMemoryMetrics) GetFailed() int64 {
	return m.Failed.Load()
}

func (m *InMemoryMetrics) GetRejected() int64 {
	return m.Rejected.Load()
}

func (m *InMemoryMetrics) GetUpdates() int64 {
	return m.Updates.Load()
}
