package models

import "testing"

func resultFor(compliance ComplianceType, region string) ResourceResult {
	return ResourceResult{
		Resource: AuditResource{Region: region, ResourceID: "r"},
		Compliance: ComplianceFromEvaluation(
			NewEvaluation("r", "AWS::Test::Resource", compliance, "")),
	}
}

func checkInvariants(t *testing.T, s *Summary) {
	t.Helper()
	if s.All.DisplayStat != s.Applicable.DisplayStat+s.NotApplicable.DisplayStat {
		t.Errorf("all (%d) != applicable (%d) + not_applicable (%d)",
			s.All.DisplayStat, s.Applicable.DisplayStat, s.NotApplicable.DisplayStat)
	}
	if s.Applicable.DisplayStat != s.Compliant.DisplayStat+s.NonCompliant.DisplayStat {
		t.Errorf("applicable (%d) != compliant (%d) + non_compliant (%d)",
			s.Applicable.DisplayStat, s.Compliant.DisplayStat, s.NonCompliant.DisplayStat)
	}
}

func TestSummary_FoldMixedVerdicts(t *testing.T) {
	s := NewSummary()
	s.Fold(resultFor(CompliantResource, "eu-west-1"))
	s.Fold(resultFor(NonCompliantResource, "eu-west-2"))
	s.Fold(resultFor(NotApplicableResource, "eu-west-1"))

	if s.All.DisplayStat != 3 {
		t.Errorf("all = %d, want 3", s.All.DisplayStat)
	}
	if s.Applicable.DisplayStat != 2 {
		t.Errorf("applicable = %d, want 2", s.Applicable.DisplayStat)
	}
	if s.Compliant.DisplayStat != 1 {
		t.Errorf("compliant = %d, want 1", s.Compliant.DisplayStat)
	}
	if s.NonCompliant.DisplayStat != 1 {
		t.Errorf("non_compliant = %d, want 1", s.NonCompliant.DisplayStat)
	}
	if s.NotApplicable.DisplayStat != 1 {
		t.Errorf("not_applicable = %d, want 1", s.NotApplicable.DisplayStat)
	}
	checkInvariants(t, s)
}

func TestSummary_InvariantsHoldAfterEveryFold(t *testing.T) {
	s := NewSummary()
	sequence := []ComplianceType{
		NonCompliantResource, CompliantResource, NotApplicableResource,
		CompliantResource, NonCompliantResource,
	}
	for _, verdict := range sequence {
		s.Fold(resultFor(verdict, "eu-west-1"))
		checkInvariants(t, s)
	}
}

func TestSummary_RegionCoverageDeduplicates(t *testing.T) {
	s := NewSummary()
	s.Fold(resultFor(CompliantResource, "eu-west-1"))
	s.Fold(resultFor(CompliantResource, "eu-west-1"))
	s.Fold(resultFor(CompliantResource, "eu-west-2"))
	s.Fold(resultFor(CompliantResource, "")) // global resource

	if s.Regions.Count != 2 {
		t.Errorf("region count = %d, want 2", s.Regions.Count)
	}
}

func TestSummary_MergeEqualsSinglePass(t *testing.T) {
	results := []ResourceResult{
		resultFor(CompliantResource, "eu-west-1"),
		resultFor(NonCompliantResource, "eu-west-2"),
		resultFor(NotApplicableResource, "us-east-1"),
		resultFor(CompliantResource, "eu-west-2"),
	}

	single := NewSummary()
	for _, r := range results {
		single.Fold(r)
	}

	left, right := NewSummary(), NewSummary()
	left.Fold(results[0])
	left.Fold(results[1])
	right.Fold(results[2])
	right.Fold(results[3])
	merged := NewSummary()
	merged.Merge(left)
	merged.Merge(right)

	if merged.All.DisplayStat != single.All.DisplayStat ||
		merged.Applicable.DisplayStat != single.Applicable.DisplayStat ||
		merged.Compliant.DisplayStat != single.Compliant.DisplayStat ||
		merged.NonCompliant.DisplayStat != single.NonCompliant.DisplayStat ||
		merged.NotApplicable.DisplayStat != single.NotApplicable.DisplayStat {
		t.Error("merging partial summaries must equal a single-pass fold")
	}
	if merged.Regions.Count != single.Regions.Count {
		t.Errorf("merged region count = %d, single-pass = %d",
			merged.Regions.Count, single.Regions.Count)
	}
	checkInvariants(t, merged)
}

func TestSummary_MergeNilIsNoop(t *testing.T) {
	s := NewSummary()
	s.Fold(resultFor(CompliantResource, "eu-west-1"))
	s.Merge(nil)
	if s.All.DisplayStat != 1 {
		t.Errorf("merging nil must not change counters, all = %d", s.All.DisplayStat)
	}
}

func TestNewSummary_PresentationTags(t *testing.T) {
	s := NewSummary()
	if s.NonCompliant.ModifierClass != "failed" {
		t.Errorf("non-compliant modifier = %q, want failed", s.NonCompliant.ModifierClass)
	}
	if s.Compliant.ModifierClass != "passed" || s.NotApplicable.ModifierClass != "passed" {
		t.Error("compliant and not-applicable buckets must carry the passed modifier")
	}
}
