package models

// ComplianceType is the verdict a criterion assigns to one evaluated resource.
type ComplianceType string

const (
	CompliantResource    ComplianceType = "COMPLIANT"
	NonCompliantResource ComplianceType = "NON_COMPLIANT"
	// NotApplicableResource means the resource has no rule relevant to the
	// check at all. It is distinct from a compliant pass and must only ever
	// increment the not_applicable bucket of a Summary.
	NotApplicableResource ComplianceType = "NOT_APPLICABLE"
)

// Status IDs persisted alongside each compliance record. These are the only
// two values ever produced: Pass covers compliant or inapplicable resources,
// Fail covers applicable non-compliant ones.
const (
	StatusPass = 2
	StatusFail = 3
)

// Evaluation is the verdict object produced by applying a criterion to one
// raw provider item. It carries its own Annotation; rules never stash
// explanatory text on shared state for the caller to pick up afterwards.
type Evaluation struct {
	ResourceID   string         `json:"resource_id"`
	ResourceType string         `json:"resource_type"`
	Compliance   ComplianceType `json:"compliance_type"`
	IsCompliant  bool           `json:"is_compliant"`
	IsApplicable bool           `json:"is_applicable"`
	StatusID     int            `json:"status_id"`
	Annotation   string         `json:"annotation,omitempty"`
}

// NewEvaluation builds a well-formed Evaluation for the given verdict.
// The derived fields are pure functions of compliance:
//
//	IsCompliant  = compliance == COMPLIANT
//	IsApplicable = compliance != NOT_APPLICABLE
//	StatusID     = StatusPass when compliant or inapplicable, StatusFail otherwise
//
// This constructor is the only way evaluations are built, so a malformed
// pair (e.g. a Fail status on an inapplicable resource) cannot occur.
func NewEvaluation(resourceID, resourceType string, compliance ComplianceType, annotation string) Evaluation {
	e := Evaluation{
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Compliance:   compliance,
		IsCompliant:  compliance == CompliantResource,
		IsApplicable: compliance != NotApplicableResource,
		Annotation:   annotation,
	}
	if e.IsCompliant || !e.IsApplicable {
		e.StatusID = StatusPass
	} else {
		e.StatusID = StatusFail
	}
	return e
}

// ResourceCompliance is the persisted compliance half of one evaluated item.
// It is created once per audit run and never mutated afterwards. It records
// the ground-truth verdict; exception suppression is a presentation concern
// and never alters these fields.
type ResourceCompliance struct {
	Compliance   ComplianceType `json:"compliance_type"`
	IsCompliant  bool           `json:"is_compliant"`
	IsApplicable bool           `json:"is_applicable"`
	StatusID     int            `json:"status_id"`
	Annotation   string         `json:"annotation,omitempty"`
}

// ComplianceFromEvaluation projects an Evaluation into its persistent form.
func ComplianceFromEvaluation(e Evaluation) ResourceCompliance {
	return ResourceCompliance{
		Compliance:   e.Compliance,
		IsCompliant:  e.IsCompliant,
		IsApplicable: e.IsApplicable,
		StatusID:     e.StatusID,
		Annotation:   e.Annotation,
	}
}
