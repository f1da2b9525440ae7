package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditResource identifies one provider item evaluated during an audit run.
// Created once per evaluated item, never mutated.
type AuditResource struct {
	// Region is the AWS region the item was fetched from. Empty for global
	// resources (IAM, S3 bucket listings, root account).
	Region string `json:"region,omitempty"`

	// ResourceID is the provider-native identifier (sg-..., vol-..., key ARN).
	ResourceID string `json:"resource_id"`

	// ResourceName is the human-assigned name. Falls back to ResourceID when
	// the provider item carries no name.
	ResourceName string `json:"resource_name,omitempty"`

	// PersistentID is the stable identity used to correlate this resource
	// across repeated audits and to key exceptions. See PersistentResourceID.
	PersistentID string `json:"resource_persistent_id"`

	// ResourceData is the serialized raw provider response, kept as an audit
	// trail alongside the verdict.
	ResourceData json.RawMessage `json:"resource_data,omitempty"`

	// DateEvaluated is when the evaluation ran.
	DateEvaluated time.Time `json:"date_evaluated"`
}

// PersistentResourceID derives the terraform-apply-stable identity for a
// resource: resource_type::region::account_id::name. The name falls back to
// the provider-native ID only when no name exists, so replacing and renaming
// infrastructure changes the identity while re-applying unchanged
// infrastructure does not.
func PersistentResourceID(resourceType, region, accountID, name, id string) string {
	nameOrID := name
	if nameOrID == "" {
		nameOrID = id
	}
	return fmt.Sprintf("%s::%s::%s::%s", resourceType, region, accountID, nameOrID)
}

// ResourceResult pairs one evaluated resource with its compliance record.
// Suppressed marks an active per-resource exception; it affects presentation
// only and never the stored compliance.
type ResourceResult struct {
	Resource   AuditResource      `json:"resource"`
	Compliance ResourceCompliance `json:"compliance"`
	Suppressed bool               `json:"suppressed,omitempty"`
}
