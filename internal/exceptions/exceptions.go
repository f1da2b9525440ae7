// Package exceptions holds time-boxed suppressions of audit results.
//
// Exceptions never change a stored verdict: a non-compliant resource stays
// non-compliant in the record and is only marked suppressed for
// presentation. Allow-list entries instead widen the CIDR whitelist before
// evaluation, so their effect is visible in the verdict itself.
package exceptions

import (
	"sync"
	"time"
)

// Exception suppresses one resource's result for one criterion during its
// validity window.
type Exception struct {
	CriterionName        string
	ResourcePersistentID string
	AccountID            string
	Reason               string
	DateCreated          time.Time
	DateExpires          time.Time
}

// ActiveAt reports whether the exception covers the instant now. The window
// is inclusive of its start and exclusive of its expiry.
func (e Exception) ActiveAt(now time.Time) bool {
	if now.Before(e.DateCreated) {
		return false
	}
	return now.Before(e.DateExpires)
}

// AllowlistEntry is a CIDR an account has approved for ingress, valid
// inside its window.
type AllowlistEntry struct {
	AccountID   string
	CIDR        string
	Reason      string
	DateCreated time.Time
	DateExpires time.Time
}

// ActiveAt reports whether the entry covers the instant now.
func (a AllowlistEntry) ActiveAt(now time.Time) bool {
	if now.Before(a.DateCreated) {
		return false
	}
	return now.Before(a.DateExpires)
}

// Store answers the two questions the audit runner asks: is this result
// suppressed right now, and which extra CIDRs does this account allow.
type Store interface {
	// HasActiveSuppression reports whether an active exception covers the
	// given criterion and resource in the given account at now.
	HasActiveSuppression(criterion, persistentID, accountID string, now time.Time) bool

	// ActiveAllowlist returns the CIDRs of the account's allow-list entries
	// that are active at now.
	ActiveAllowlist(accountID string, now time.Time) []string
}

// MemoryStore is an in-memory Store, populated up-front from configuration.
// It is safe for concurrent readers once populated.
type MemoryStore struct {
	mu         sync.RWMutex
	exceptions []Exception
	allowlist  []AllowlistEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddException records an exception.
func (s *MemoryStore) AddException(e Exception) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = append(s.exceptions, e)
}

// AddAllowlistEntry records an allow-list entry.
func (s *MemoryStore) AddAllowlistEntry(a AllowlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowlist = append(s.allowlist, a)
}

func (s *MemoryStore) HasActiveSuppression(criterion, persistentID, accountID string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.exceptions {
		if e.CriterionName == criterion &&
			e.ResourcePersistentID == persistentID &&
			e.AccountID == accountID &&
			e.ActiveAt(now) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ActiveAllowlist(accountID string, now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cidrs []string
	for _, a := range s.allowlist {
		if a.AccountID == accountID && a.ActiveAt(now) {
			cidrs = append(cidrs, a.CIDR)
		}
	}
	return cidrs
}
