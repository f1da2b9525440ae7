package criteria

import (
	"strings"
	"testing"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/advisor"
)

func TestMetadataAt_OutOfBounds(t *testing.T) {
	flagged := advisor.FlaggedResource{Metadata: []string{"eu-west-1", "web"}}
	if got := metadataAt(flagged, 1); got != "web" {
		t.Errorf("expected %q, got %q", "web", got)
	}
	if got := metadataAt(flagged, 5); got != "" {
		t.Errorf("out-of-bounds position must yield empty string, got %q", got)
	}
	if got := metadataAt(flagged, -1); got != "" {
		t.Errorf("negative position must yield empty string, got %q", got)
	}
}

func TestEvaluateFlagged_StatusMapping(t *testing.T) {
	cases := []struct {
		status string
		want   models.ComplianceType
	}{
		{"ok", models.CompliantResource},
		{"warning", models.NonCompliantResource},
		{"error", models.NonCompliantResource},
		{"not_available", models.NotApplicableResource},
	}
	for _, tc := range cases {
		flagged := advisor.FlaggedResource{ResourceID: "r-1", Status: tc.status}
		eval := evaluateFlagged(flagged, "r-1", "AWS::Test::Resource", "boom")
		if eval.Compliance != tc.want {
			t.Errorf("status %q: expected %s, got %s", tc.status, tc.want, eval.Compliance)
		}
	}
}

func TestEvaluateFlagged_SuppressedIsNotApplicable(t *testing.T) {
	flagged := advisor.FlaggedResource{ResourceID: "r-1", Status: "error", IsSuppressed: true}
	eval := evaluateFlagged(flagged, "r-1", "AWS::Test::Resource", "boom")
	if eval.Compliance != models.NotApplicableResource {
		t.Fatalf("suppressed resources must be NOT_APPLICABLE, got %s", eval.Compliance)
	}
}

func TestOpenPortsIdentity_PrefersMetadata(t *testing.T) {
	item := Item{Raw: advisor.FlaggedResource{
		ResourceID: "fallback-id",
		Region:     "fallback-region",
		Metadata:   []string{"eu-west-2", "web-sg", "sg-1234", "tcp", "3306", "Red"},
	}}
	id := openPortsIdentity(item)
	if id.ResourceID != "sg-1234" || id.ResourceName != "web-sg" || id.Region != "eu-west-2" {
		t.Errorf("identity must come from metadata positions, got %+v", id)
	}
}

func TestEvaluateOpenPorts_AnnotationNamesPort(t *testing.T) {
	item := Item{Raw: advisor.FlaggedResource{
		ResourceID: "sg-1234",
		Status:     "error",
		Metadata:   []string{"eu-west-2", "web-sg", "sg-1234", "tcp", "3306", "Red"},
	}}
	eval := evaluateOpenPorts(item, nil)
	if eval.Compliance != models.NonCompliantResource {
		t.Fatalf("expected NON_COMPLIANT, got %s", eval.Compliance)
	}
	if !strings.Contains(eval.Annotation, "3306") {
		t.Errorf("annotation must name the open port, got %q", eval.Annotation)
	}
}
