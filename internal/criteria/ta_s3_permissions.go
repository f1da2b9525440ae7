package criteria

import (
	"fmt"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/advisor"
)

// Trusted Advisor check "Amazon S3 Bucket Permissions".
const s3PermissionsCheckID = "Pfx0RwqBli"

// Metadata layout for s3PermissionsCheckID.
const (
	s3PermMetaRegionParam = 0 // region API parameter
	s3PermMetaRegion      = 1 // region name
	s3PermMetaBucket      = 2 // bucket name
	s3PermMetaACLList     = 3 // ACL allows list ("Yes"/"No")
	s3PermMetaACLWrite    = 4 // ACL allows upload/delete ("Yes"/"No")
	s3PermMetaStatus      = 5 // alert colour
	s3PermMetaPolicy      = 6 // bucket policy allows access ("Yes"/"No"/"Evaluate")
)

// AdvisorS3BucketPermissions reports buckets the provider's health check
// flags for open access through ACLs or bucket policies.
func AdvisorS3BucketPermissions() Criterion {
	return Criterion{
		Name:          "aws_support_s3_bucket_permissions",
		Active:        true,
		Severity:      1,
		IsRegional:    false,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::S3::Bucket",
		Title:         "S3 buckets are not publicly accessible",
		Description:   "Reads the Trusted Advisor bucket-permissions check and reports every flagged bucket.",
		WhyIsItImportant: "Publicly listable or writable buckets are the single most common " +
			"cause of large-scale data exposure in cloud accounts.",
		HowDoIFixIt: "Remove the public ACL grants or policy statements, and enable the " +
			"account-level S3 public access block.",
		GetData:   managedCheckFetcher(s3PermissionsCheckID),
		Translate: s3PermissionsIdentity,
		Evaluate:  evaluateS3Permissions,
	}
}

func s3PermissionsIdentity(item Item) Identity {
	flagged, ok := item.Raw.(advisor.FlaggedResource)
	if !ok {
		return Identity{Region: item.Region}
	}
	bucket := metadataAt(flagged, s3PermMetaBucket)
	if bucket == "" {
		bucket = flagged.ResourceID
	}
	region := metadataAt(flagged, s3PermMetaRegion)
	if region == "" {
		region = flagged.Region
	}
	return Identity{
		ResourceID:   bucket,
		ResourceName: bucket,
		Region:       region,
	}
}

func evaluateS3Permissions(item Item, _ []string) models.Evaluation {
	flagged, ok := item.Raw.(advisor.FlaggedResource)
	if !ok {
		return models.NewEvaluation("", "AWS::S3::Bucket", models.NotApplicableResource,
			"item is not a trusted advisor flagged resource")
	}

	bucket := metadataAt(flagged, s3PermMetaBucket)
	if bucket == "" {
		bucket = flagged.ResourceID
	}
	annotation := fmt.Sprintf(
		"bucket %q is flagged: ACL allows list=%s, ACL allows upload/delete=%s, policy allows access=%s",
		bucket,
		metadataAt(flagged, s3PermMetaACLList),
		metadataAt(flagged, s3PermMetaACLWrite),
		metadataAt(flagged, s3PermMetaPolicy))
	return evaluateFlagged(flagged, bucket, "AWS::S3::Bucket", annotation)
}
