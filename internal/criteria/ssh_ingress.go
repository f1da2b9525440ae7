package criteria

import (
	"fmt"
	"strings"

	"github.com/alphagov/csw-engine/internal/models"
)

const sshPort int32 = 22

// UnrestrictedIngressSSH flags security groups whose SSH ingress admits
// ranges outside the whitelist. A group with no ingress rule touching port
// 22 is not applicable: the check has nothing to say about it and it must
// not be counted as a pass.
func UnrestrictedIngressSSH() Criterion {
	return Criterion{
		Name:          "aws_ec2_security_group_ingress_ssh",
		Active:        true,
		Severity:      1,
		IsRegional:    true,
		ExceptionType: ExceptionAllowlist,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::EC2::SecurityGroup",
		Title:         "Security groups restrict inbound SSH access",
		Description:   "Checks that no security group allows inbound SSH (port 22) from ranges outside the approved list.",
		WhyIsItImportant: "SSH open to the internet exposes instances to brute-force and " +
			"credential-stuffing attacks; a single compromised host can be used to pivot " +
			"into the rest of the estate.",
		HowDoIFixIt: "Restrict the ingress rule to your approved office or VPN ranges, " +
			"or remove direct SSH access in favour of Systems Manager Session Manager.",
		GetData:   fetchSecurityGroups,
		Translate: securityGroupIdentity,
		Evaluate:  evaluateSSHIngress,
	}
}

// evaluateSSHIngress applies the CIDR validity tiers to every ingress rule
// relevant to SSH. One bad range anywhere makes the whole group
// non-compliant (aggregation "all").
func evaluateSSHIngress(item Item, whitelist []string) models.Evaluation {
	sg, ok := item.Raw.(SecurityGroup)
	if !ok {
		return models.NewEvaluation("", "AWS::EC2::SecurityGroup", models.NotApplicableResource,
			"item is not a security group")
	}

	var offending []string
	relevant := false
	for _, perm := range sg.Ingress {
		if !protocolMatches(perm.Protocol, "tcp") || !portInRange(perm.FromPort, perm.ToPort, sshPort) {
			continue
		}
		relevant = true
		for _, cidr := range perm.Ranges {
			if !cidrInWhitelist(cidr, whitelist) {
				offending = append(offending, cidr)
			}
		}
	}

	switch {
	case !relevant:
		return models.NewEvaluation(sg.ID, "AWS::EC2::SecurityGroup", models.NotApplicableResource,
			"no ingress rule covers SSH")
	case len(offending) > 0:
		annotation := fmt.Sprintf("SSH ingress allowed from unapproved range(s) %s",
			strings.Join(offending, ", "))
		return models.NewEvaluation(sg.ID, "AWS::EC2::SecurityGroup", models.NonCompliantResource, annotation)
	default:
		return models.NewEvaluation(sg.ID, "AWS::EC2::SecurityGroup", models.CompliantResource, "")
	}
}
