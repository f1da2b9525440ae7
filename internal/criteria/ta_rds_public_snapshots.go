package criteria

import (
	"fmt"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/advisor"
)

// Trusted Advisor check "Amazon RDS Public Snapshots".
const rdsSnapshotsCheckID = "ePs02jT06w"

// Metadata layout for rdsSnapshotsCheckID.
const (
	rdsSnapMetaRegion   = 0 // region name
	rdsSnapMetaInstance = 1 // DB instance or cluster identifier
	rdsSnapMetaSnapshot = 2 // snapshot identifier
)

// AdvisorRDSPublicSnapshots reports database snapshots the provider's
// health check flags as publicly restorable.
func AdvisorRDSPublicSnapshots() Criterion {
	return Criterion{
		Name:          "aws_support_rds_public_snapshots",
		Active:        true,
		Severity:      1,
		IsRegional:    false,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::RDS::DBSnapshot",
		Title:         "RDS snapshots are not publicly restorable",
		Description:   "Reads the Trusted Advisor public-snapshots check and reports every flagged snapshot.",
		WhyIsItImportant: "A public snapshot lets anyone with an account restore a full copy " +
			"of the database, including every row of data it held.",
		HowDoIFixIt: "Modify the snapshot's attributes to remove the 'all' restore " +
			"permission, then review how the snapshot was shared.",
		GetData:   managedCheckFetcher(rdsSnapshotsCheckID),
		Translate: rdsSnapshotsIdentity,
		Evaluate:  evaluateRDSSnapshots,
	}
}

func rdsSnapshotsIdentity(item Item) Identity {
	flagged, ok := item.Raw.(advisor.FlaggedResource)
	if !ok {
		return Identity{Region: item.Region}
	}
	snapshot := metadataAt(flagged, rdsSnapMetaSnapshot)
	if snapshot == "" {
		snapshot = flagged.ResourceID
	}
	region := metadataAt(flagged, rdsSnapMetaRegion)
	if region == "" {
		region = flagged.Region
	}
	return Identity{
		ResourceID:   snapshot,
		ResourceName: snapshot,
		Region:       region,
	}
}

func evaluateRDSSnapshots(item Item, _ []string) models.Evaluation {
	flagged, ok := item.Raw.(advisor.FlaggedResource)
	if !ok {
		return models.NewEvaluation("", "AWS::RDS::DBSnapshot", models.NotApplicableResource,
			"item is not a trusted advisor flagged resource")
	}

	snapshot := metadataAt(flagged, rdsSnapMetaSnapshot)
	if snapshot == "" {
		snapshot = flagged.ResourceID
	}
	annotation := fmt.Sprintf("snapshot %q of database %q is publicly restorable",
		snapshot, metadataAt(flagged, rdsSnapMetaInstance))
	return evaluateFlagged(flagged, snapshot, "AWS::RDS::DBSnapshot", annotation)
}
