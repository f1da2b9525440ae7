package criteria

import (
	"fmt"
	"strings"

	"github.com/alphagov/csw-engine/internal/models"
)

// RestrictedEgress flags security groups whose outbound rules reach ranges
// outside the whitelist. Unlike the SSH check this considers every egress
// rule regardless of protocol or port: unrestricted egress is how
// exfiltration and command-and-control traffic leave an account.
func RestrictedEgress() Criterion {
	return Criterion{
		Name:          "aws_ec2_security_group_egress_open",
		Active:        true,
		Severity:      2,
		IsRegional:    true,
		ExceptionType: ExceptionAllowlist,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::EC2::SecurityGroup",
		Title:         "Security groups restrict outbound traffic",
		Description:   "Checks that security group egress rules only reach approved network ranges.",
		WhyIsItImportant: "Security groups that allow all outbound traffic give malware and " +
			"compromised workloads an unmonitored path out of the account.",
		HowDoIFixIt: "Replace the default allow-all egress rule with rules scoped to the " +
			"ranges and ports your workloads actually need.",
		GetData:   fetchSecurityGroups,
		Translate: securityGroupIdentity,
		Evaluate:  evaluateEgress,
	}
}

// evaluateEgress checks every egress range against the whitelist. A group
// with no egress rules at all is not applicable.
func evaluateEgress(item Item, whitelist []string) models.Evaluation {
	sg, ok := item.Raw.(SecurityGroup)
	if !ok {
		return models.NewEvaluation("", "AWS::EC2::SecurityGroup", models.NotApplicableResource,
			"item is not a security group")
	}

	if len(sg.Egress) == 0 {
		return models.NewEvaluation(sg.ID, "AWS::EC2::SecurityGroup", models.NotApplicableResource,
			"security group has no egress rules")
	}

	var offending []string
	for _, perm := range sg.Egress {
		for _, cidr := range perm.Ranges {
			if !cidrInWhitelist(cidr, whitelist) {
				offending = append(offending, cidr)
			}
		}
	}

	if len(offending) > 0 {
		annotation := fmt.Sprintf("egress allowed to unapproved range(s) %s",
			strings.Join(offending, ", "))
		return models.NewEvaluation(sg.ID, "AWS::EC2::SecurityGroup", models.NonCompliantResource, annotation)
	}
	return models.NewEvaluation(sg.ID, "AWS::EC2::SecurityGroup", models.CompliantResource, "")
}
