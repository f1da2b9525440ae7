package models

import "time"

// CriterionReport is the outcome of evaluating one criterion across all of
// its requests. A criterion that failed completely (every fetch errored and
// nothing was evaluated) carries the error text in Err and an empty Summary;
// it contributes nothing to the audit-level Summary.
type CriterionReport struct {
	Name         string           `json:"name"`
	Title        string           `json:"title"`
	Severity     int              `json:"severity"`
	ResourceType string           `json:"resource_type"`
	Summary      *Summary         `json:"summary"`
	Results      []ResourceResult `json:"results"`
	Err          string           `json:"error,omitempty"`
}

// AuditReport is the top-level output of one audit run for one account.
// It is what the store persists and what each dispatch message serializes.
type AuditReport struct {
	AuditID     string            `json:"audit_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	AccountID   string            `json:"account_id"`
	Profile     string            `json:"profile"`
	Regions     []string          `json:"regions"`
	Summary     *Summary          `json:"summary"`
	Criteria    []CriterionReport `json:"criteria"`
}
