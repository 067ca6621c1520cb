// Package query exposes read and small-write operations over the record
// store. It holds no state of its own; failures surface as structured
// not-found results rather than errors.
package query

import (
	"github.com/shepherdlog/shepherd/internal/domain/store"
	"github.com/shepherdlog/shepherd/internal/shared/types"
)

// DefaultLimit bounds recent-record listings when the caller gives none.
const DefaultLimit = 100

// Service answers queries against the record store.
type Service struct {
	store *store.Store
}

// NewService creates a query service over the given store.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Recent returns up to limit of the most recently ingested records in
// insertion order. Non-positive limits fall back to DefaultLimit.
func (s *Service) Recent(limit int) []types.LogRecord {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.store.Snapshot(limit)
}

// Get returns a single record by id.
func (s *Service) Get(id string) (types.LogRecord, bool) {
	return s.store.Find(id)
}

// Stats returns aggregate counts over the retained records.
func (s *Service) Stats() types.StoreStats {
	return s.store.Stats()
}

// Acknowledge marks a record acknowledged at the given time. Unknown or
// evicted ids produce a not-found result, never an error.
func (s *Service) Acknowledge(id string, at float64) types.AckResult {
	if s.store.Acknowledge(id, at) {
		return types.AckResult{Status: types.AckAcknowledged, LogID: id}
	}
	return types.AckResult{Status: types.AckNotFound, LogID: id}
}
