package criteria

import (
	"fmt"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/advisor"
)

// Trusted Advisor check "Security Groups - Specific Ports Unrestricted".
const openPortsCheckID = "HCP4007jGY"

// Metadata layout for openPortsCheckID. The positions are part of the
// check's published result format and are read nowhere else.
const (
	openPortsMetaRegion    = 0 // region name
	openPortsMetaGroupName = 1 // security group name
	openPortsMetaGroupID   = 2 // security group ID
	openPortsMetaProtocol  = 3 // protocol
	openPortsMetaPort      = 4 // port or port range
	openPortsMetaStatus    = 5 // alert colour (Green/Yellow/Red)
)

// AdvisorOpenPorts reports security groups the provider's own health check
// flags for unrestricted access to high-risk ports. It covers ports the
// direct SSH criterion does not (databases, RDP, FTP).
func AdvisorOpenPorts() Criterion {
	return Criterion{
		Name:          "aws_support_security_groups_open_ports",
		Active:        true,
		Severity:      1,
		IsRegional:    false,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::EC2::SecurityGroup",
		Title:         "Security groups restrict high-risk ports",
		Description:   "Reads the Trusted Advisor unrestricted-ports check and reports every flagged security group.",
		WhyIsItImportant: "Database, file-transfer and remote-admin ports open to the world " +
			"are the most commonly scanned and exploited entry points into an account.",
		HowDoIFixIt: "Restrict the flagged rule to the specific ranges that need access, " +
			"or remove the rule entirely if it is unused.",
		GetData:   managedCheckFetcher(openPortsCheckID),
		Translate: openPortsIdentity,
		Evaluate:  evaluateOpenPorts,
	}
}

func openPortsIdentity(item Item) Identity {
	flagged, ok := item.Raw.(advisor.FlaggedResource)
	if !ok {
		return Identity{Region: item.Region}
	}
	id := metadataAt(flagged, openPortsMetaGroupID)
	if id == "" {
		id = flagged.ResourceID
	}
	region := metadataAt(flagged, openPortsMetaRegion)
	if region == "" {
		region = flagged.Region
	}
	return Identity{
		ResourceID:   id,
		ResourceName: metadataAt(flagged, openPortsMetaGroupName),
		Region:       region,
	}
}

func evaluateOpenPorts(item Item, _ []string) models.Evaluation {
	flagged, ok := item.Raw.(advisor.FlaggedResource)
	if !ok {
		return models.NewEvaluation("", "AWS::EC2::SecurityGroup", models.NotApplicableResource,
			"item is not a trusted advisor flagged resource")
	}

	id := metadataAt(flagged, openPortsMetaGroupID)
	if id == "" {
		id = flagged.ResourceID
	}
	annotation := fmt.Sprintf("security group %q allows unrestricted %s access on port %s",
		metadataAt(flagged, openPortsMetaGroupName),
		metadataAt(flagged, openPortsMetaProtocol),
		metadataAt(flagged, openPortsMetaPort))
	return evaluateFlagged(flagged, id, "AWS::EC2::SecurityGroup", annotation)
}
