// Package store persists completed audit reports. Two backends exist: an
// in-memory store for tests and single-shot runs, and an encrypted local
// file store whose contents are sealed with a KMS-wrapped data key.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alphagov/csw-engine/internal/models"
)

// AuditStore saves and loads audit reports keyed by audit ID.
type AuditStore interface {
	SaveReport(ctx context.Context, report *models.AuditReport) error
	LoadReport(ctx context.Context, auditID string) (*models.AuditReport, error)

	// ListAudits returns the stored audit IDs, oldest first by generation time.
	ListAudits(ctx context.Context) ([]string, error)
}

// MemoryStore keeps reports in memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*models.AuditReport
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*models.AuditReport)}
}

func (s *MemoryStore) SaveReport(_ context.Context, report *models.AuditReport) error {
	if report.AuditID == "" {
		return fmt.Errorf("report has no audit ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.AuditID] = report
	return nil
}

func (s *MemoryStore) LoadReport(_ context.Context, auditID string) (*models.AuditReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[auditID]
	if !ok {
		return nil, fmt.Errorf("audit %q not found", auditID)
	}
	return report, nil
}

func (s *MemoryStore) ListAudits(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.reports))
	for id := range s.reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.reports[ids[i]].GeneratedAt.Before(s.reports[ids[j]].GeneratedAt)
	})
	return ids, nil
}
