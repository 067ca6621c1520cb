// Package store provides the bounded in-memory buffer of ingested records.
//
// The store is the single piece of shared mutable state in the pipeline:
// every ingestion connection appends to it and the query surface reads from
// it. All operations are serialized through one RWMutex so readers never
// observe a partially appended or partially acknowledged record.
package store

import (
	"sync"

	"github.com/shepherdlog/shepherd/internal/infrastructure/monitoring"
	"github.com/shepherdlog/shepherd/internal/shared/types"
)

// DefaultCapacity is the retention window used when none is configured.
const DefaultCapacity = 1000

// Store is a fixed-capacity FIFO buffer of log records with an id index for
// O(1) lookup and acknowledgment. Appending beyond capacity evicts the
// oldest record; an evicted record is permanently unreachable.
type Store struct {
	mu       sync.RWMutex
	capacity int
	records  []*types.LogRecord          // insertion order, head first
	index    map[string]*types.LogRecord // id -> record
	metrics  *monitoring.Metrics
}

// New creates a store with the given capacity. Non-positive capacities fall
// back to DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		records:  make([]*types.LogRecord, 0, capacity),
		index:    make(map[string]*types.LogRecord, capacity),
	}
}

// WithMetrics adds metrics tracking to the store.
func (s *Store) WithMetrics(m *monitoring.Metrics) *Store {
	s.metrics = m
	return s
}

// Capacity returns the fixed retention capacity.
func (s *Store) Capacity() int { return s.capacity }

// Append adds a record at the tail, evicting the head once the buffer is
// full. The record is copied in, so callers may not mutate it afterwards.
func (s *Store) Append(rec types.LogRecord) {
	s.mu.Lock()

	stored := &rec
	s.records = append(s.records, stored)
	s.index[rec.ID] = stored

	if len(s.records) > s.capacity {
		evicted := s.records[0]
		s.records[0] = nil
		s.records = s.records[1:]
		delete(s.index, evicted.ID)
	}
	size := len(s.records)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetBufferSize(size)
		s.metrics.IncRecordsStored()
	}
}

// Find returns a copy of the record with the given id, or false if it was
// never ingested or has been evicted.
func (s *Store) Find(id string) (types.LogRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.index[id]
	if !ok {
		return types.LogRecord{}, false
	}
	return *rec, true
}

// Acknowledge marks the record as acknowledged at the given time. Repeated
// acknowledgment is a no-op success: acknowledged_at keeps the time of the
// first call. Returns false if the record is absent or evicted.
func (s *Store) Acknowledge(id string, at float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index[id]
	if !ok {
		return false
	}
	if !rec.Acknowledged {
		rec.Acknowledged = true
		rec.AcknowledgedAt = &at
	}
	return true
}

// Snapshot returns up to the most recent limit records in insertion order.
// The result is a point-in-time copy: later mutations are not visible
// through it. A non-positive limit returns all retained records.
func (s *Store) Snapshot(limit int) []types.LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]types.LogRecord, 0, limit)
	for _, rec := range s.records[n-limit:] {
		out = append(out, *rec)
	}
	return out
}

// Len returns the number of records currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stats summarizes the retained records. Records with a parsed status code
// of 400 or above count as errors; the error rate is 0.0 for an empty store.
func (s *Store) Stats() types.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.StoreStats{Total: len(s.records)}
	for _, rec := range s.records {
		if rec.IsError() {
			stats.ErrorCount++
		}
	}
	stats.SuccessCount = stats.Total - stats.ErrorCount
	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.ErrorCount) / float64(stats.Total)
	}
	return stats
}
