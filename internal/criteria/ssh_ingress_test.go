package criteria

import (
	"strings"
	"testing"

	"github.com/alphagov/csw-engine/internal/models"
)

func sshGroup(ranges ...string) SecurityGroup {
	from, to := int32(22), int32(22)
	return SecurityGroup{
		ID:     "sg-0a1b2c3d",
		Name:   "bastion",
		Region: "eu-west-1",
		Ingress: []IPPermission{{
			Protocol: "tcp",
			FromPort: &from,
			ToPort:   &to,
			Ranges:   ranges,
		}},
	}
}

func TestSSHIngress_OpenToWorldIsNonCompliant(t *testing.T) {
	item := Item{Region: "eu-west-1", Raw: sshGroup("0.0.0.0/0")}
	eval := evaluateSSHIngress(item, []string{"10.0.0.0/8"})

	if eval.Compliance != models.NonCompliantResource {
		t.Fatalf("expected NON_COMPLIANT, got %s", eval.Compliance)
	}
	if eval.StatusID != models.StatusFail {
		t.Errorf("expected status %d, got %d", models.StatusFail, eval.StatusID)
	}
	if !strings.Contains(eval.Annotation, "0.0.0.0/0") {
		t.Errorf("annotation must name the offending range, got %q", eval.Annotation)
	}
}

func TestSSHIngress_PrivateRangeIsCompliant(t *testing.T) {
	item := Item{Region: "eu-west-1", Raw: sshGroup("10.1.2.3/32")}
	eval := evaluateSSHIngress(item, nil)

	if eval.Compliance != models.CompliantResource {
		t.Fatalf("expected COMPLIANT for a private source range, got %s", eval.Compliance)
	}
	if !eval.IsApplicable {
		t.Error("a group with an SSH rule is applicable")
	}
}

func TestSSHIngress_NoSSHRuleIsNotApplicable(t *testing.T) {
	from, to := int32(443), int32(443)
	group := SecurityGroup{
		ID:     "sg-https",
		Region: "eu-west-1",
		Ingress: []IPPermission{{
			Protocol: "tcp",
			FromPort: &from,
			ToPort:   &to,
			Ranges:   []string{"0.0.0.0/0"},
		}},
	}
	eval := evaluateSSHIngress(Item{Region: "eu-west-1", Raw: group}, nil)

	if eval.Compliance != models.NotApplicableResource {
		t.Fatalf("expected NOT_APPLICABLE when no rule covers SSH, got %s", eval.Compliance)
	}
	if eval.StatusID != models.StatusPass {
		t.Errorf("not-applicable must carry the pass status, got %d", eval.StatusID)
	}
	if eval.IsApplicable {
		t.Error("not-applicable verdicts must not be marked applicable")
	}
}

func TestSSHIngress_WildcardProtocolIsRelevant(t *testing.T) {
	group := SecurityGroup{
		ID:     "sg-all",
		Region: "eu-west-1",
		Ingress: []IPPermission{{
			Protocol: "-1",
			Ranges:   []string{"198.51.100.0/24"},
		}},
	}
	eval := evaluateSSHIngress(Item{Region: "eu-west-1", Raw: group}, nil)

	if eval.Compliance != models.NonCompliantResource {
		t.Fatalf("an all-protocol rule covers SSH; expected NON_COMPLIANT, got %s", eval.Compliance)
	}
}

func TestSSHIngress_AllowlistedRangeIsCompliant(t *testing.T) {
	item := Item{Region: "eu-west-1", Raw: sshGroup("203.0.113.0/24")}
	eval := evaluateSSHIngress(item, []string{"203.0.113.0/24"})

	if eval.Compliance != models.CompliantResource {
		t.Fatalf("expected COMPLIANT for a whitelisted range, got %s", eval.Compliance)
	}
}
