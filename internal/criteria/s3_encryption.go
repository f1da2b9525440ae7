package criteria

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/alphagov/csw-engine/internal/models"
)

// Bucket carries the default-encryption state of one S3 bucket.
// EncryptionKnown is false when the encryption configuration could not be
// read at all (for example a permissions gap on one bucket); the bucket is
// then reported not-applicable rather than guessed at.
type Bucket struct {
	Name            string `json:"name"`
	Encrypted       bool   `json:"encrypted"`
	Algorithm       string `json:"algorithm,omitempty"`
	EncryptionKnown bool   `json:"encryption_known"`
}

// BucketDefaultEncryption flags S3 buckets without default server-side
// encryption configured.
func BucketDefaultEncryption() Criterion {
	return Criterion{
		Name:          "aws_s3_default_encryption",
		Active:        true,
		Severity:      2,
		IsRegional:    false,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::S3::Bucket",
		Title:         "S3 buckets encrypt objects by default",
		Description:   "Checks that every bucket has a default server-side encryption configuration.",
		WhyIsItImportant: "Without default encryption a single misconfigured upload stores " +
			"data in plaintext; bucket-level defaults make encryption independent of " +
			"every client doing the right thing.",
		HowDoIFixIt: "Enable default encryption (SSE-S3 or SSE-KMS) on the bucket; existing " +
			"objects must be re-written to pick it up.",
		GetData:   fetchBuckets,
		Translate: bucketIdentity,
		Evaluate:  evaluateBucketEncryption,
	}
}

// fetchBuckets lists buckets and reads each one's encryption configuration.
// A missing configuration is a definitive "unencrypted"; any other per-bucket
// error leaves the state unknown rather than failing the whole fetch.
func fetchBuckets(ctx context.Context, req Request) ([]Item, error) {
	out, err := req.Clients.S3.ListBuckets(ctx, &s3svc.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	var items []Item
	for _, b := range out.Buckets {
		bucket := Bucket{Name: aws.ToString(b.Name)}

		enc, err := req.Clients.S3.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{
			Bucket: b.Name,
		})
		switch {
		case err == nil:
			bucket.EncryptionKnown = true
			if enc.ServerSideEncryptionConfiguration != nil {
				for _, rule := range enc.ServerSideEncryptionConfiguration.Rules {
					if rule.ApplyServerSideEncryptionByDefault != nil {
						bucket.Encrypted = true
						bucket.Algorithm = string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm)
					}
				}
			}
		case isEncryptionNotFound(err):
			bucket.EncryptionKnown = true
		default:
			req.Log.WithError(err).WithField("bucket", bucket.Name).
				Warn("could not read bucket encryption configuration")
		}

		items = append(items, Item{Raw: bucket})
	}
	return items, nil
}

// isEncryptionNotFound matches the API error S3 returns for a bucket with no
// server-side encryption configuration.
func isEncryptionNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ServerSideEncryptionConfigurationNotFoundError"
}

func bucketIdentity(item Item) Identity {
	bucket, ok := item.Raw.(Bucket)
	if !ok {
		return Identity{}
	}
	return Identity{
		ResourceID:   bucket.Name,
		ResourceName: bucket.Name,
	}
}

func evaluateBucketEncryption(item Item, _ []string) models.Evaluation {
	bucket, ok := item.Raw.(Bucket)
	if !ok {
		return models.NewEvaluation("", "AWS::S3::Bucket", models.NotApplicableResource,
			"item is not a bucket")
	}

	switch {
	case !bucket.EncryptionKnown:
		return models.NewEvaluation(bucket.Name, "AWS::S3::Bucket", models.NotApplicableResource,
			"bucket encryption state could not be read")
	case !bucket.Encrypted:
		return models.NewEvaluation(bucket.Name, "AWS::S3::Bucket", models.NonCompliantResource,
			fmt.Sprintf("bucket %q has no default encryption configuration", bucket.Name))
	default:
		return models.NewEvaluation(bucket.Name, "AWS::S3::Bucket", models.CompliantResource, "")
	}
}
