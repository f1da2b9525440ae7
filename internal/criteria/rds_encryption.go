package criteria

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/alphagov/csw-engine/internal/models"
)

// DBInstance carries the storage-encryption state of one RDS instance.
type DBInstance struct {
	Identifier string `json:"identifier"`
	Region     string `json:"region"`
	Engine     string `json:"engine"`
	Encrypted  bool   `json:"encrypted"`
}

// RDSStorageEncryption flags RDS instances whose storage is not encrypted
// at rest.
func RDSStorageEncryption() Criterion {
	return Criterion{
		Name:          "aws_rds_storage_encryption",
		Active:        true,
		Severity:      2,
		IsRegional:    true,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::RDS::DBInstance",
		Title:         "RDS instances encrypt storage at rest",
		Description:   "Checks that every RDS database instance has storage encryption enabled.",
		WhyIsItImportant: "Unencrypted database storage exposes every row to anyone who can " +
			"reach the underlying volumes or a snapshot of them.",
		HowDoIFixIt: "Storage encryption cannot be enabled in place: snapshot the instance, " +
			"copy the snapshot with encryption enabled, and restore from the copy.",
		GetData:   fetchDBInstances,
		Translate: dbInstanceIdentity,
		Evaluate:  evaluateDBEncryption,
	}
}

func fetchDBInstances(ctx context.Context, req Request) ([]Item, error) {
	out, err := req.Clients.RDS.DescribeDBInstances(ctx, &rdssvc.DescribeDBInstancesInput{})
	if err != nil {
		return nil, fmt.Errorf("describe DB instances in %s: %w", req.Region, err)
	}

	items := make([]Item, 0, len(out.DBInstances))
	for _, db := range out.DBInstances {
		items = append(items, Item{Region: req.Region, Raw: DBInstance{
			Identifier: aws.ToString(db.DBInstanceIdentifier),
			Region:     req.Region,
			Engine:     aws.ToString(db.Engine),
			Encrypted:  aws.ToBool(db.StorageEncrypted),
		}})
	}
	return items, nil
}

func dbInstanceIdentity(item Item) Identity {
	db, ok := item.Raw.(DBInstance)
	if !ok {
		return Identity{Region: item.Region}
	}
	return Identity{
		ResourceID:   db.Identifier,
		ResourceName: db.Identifier,
		Region:       db.Region,
	}
}

func evaluateDBEncryption(item Item, _ []string) models.Evaluation {
	db, ok := item.Raw.(DBInstance)
	if !ok {
		return models.NewEvaluation("", "AWS::RDS::DBInstance", models.NotApplicableResource,
			"item is not a DB instance")
	}

	if !db.Encrypted {
		return models.NewEvaluation(db.Identifier, "AWS::RDS::DBInstance", models.NonCompliantResource,
			fmt.Sprintf("DB instance %q does not encrypt storage at rest", db.Identifier))
	}
	return models.NewEvaluation(db.Identifier, "AWS::RDS::DBInstance", models.CompliantResource, "")
}
