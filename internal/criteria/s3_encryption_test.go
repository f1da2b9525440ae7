package criteria

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/common"
)

// fakeS3 serves a fixed bucket list; encryption maps a bucket name to the
// error GetBucketEncryption returns for it (absent = AES256 default rule).
type fakeS3 struct {
	buckets    []string
	encryption map[string]error
}

func (f *fakeS3) ListBuckets(_ context.Context, _ *s3svc.ListBucketsInput, _ ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error) {
	out := &s3svc.ListBucketsOutput{}
	for _, name := range f.buckets {
		out.Buckets = append(out.Buckets, s3types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (f *fakeS3) GetBucketEncryption(_ context.Context, params *s3svc.GetBucketEncryptionInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error) {
	if err := f.encryption[aws.ToString(params.Bucket)]; err != nil {
		return nil, err
	}
	return &s3svc.GetBucketEncryptionOutput{
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
					SSEAlgorithm: s3types.ServerSideEncryptionAes256,
				},
			}},
		},
	}, nil
}

func TestFetchBuckets_UnreadableEncryptionIsLoggedNotSwallowed(t *testing.T) {
	api := &fakeS3{
		buckets: []string{"assets", "audit-logs"},
		encryption: map[string]error{
			"audit-logs": errors.New("AccessDenied: not authorised to read bucket policy"),
		},
	}
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	items, err := fetchBuckets(context.Background(), Request{
		Clients: &common.ClientSet{S3: api},
		Log:     log,
	})
	if err != nil {
		t.Fatalf("fetchBuckets: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	assets := items[0].Raw.(Bucket)
	if !assets.EncryptionKnown || !assets.Encrypted {
		t.Errorf("readable AES256 bucket must be known and encrypted, got %+v", assets)
	}
	logsBucket := items[1].Raw.(Bucket)
	if logsBucket.EncryptionKnown {
		t.Error("an unreadable encryption configuration must leave the state unknown")
	}
	if !strings.Contains(buf.String(), "audit-logs") || !strings.Contains(buf.String(), "AccessDenied") {
		t.Errorf("per-bucket read failure must be logged with the bucket name, got %q", buf.String())
	}
}

func TestFetchBuckets_MissingConfigurationIsDefinitivelyUnencrypted(t *testing.T) {
	api := &fakeS3{
		buckets: []string{"plain"},
		encryption: map[string]error{
			"plain": &smithy.GenericAPIError{Code: "ServerSideEncryptionConfigurationNotFoundError"},
		},
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	items, err := fetchBuckets(context.Background(), Request{
		Clients: &common.ClientSet{S3: api},
		Log:     log,
	})
	if err != nil {
		t.Fatalf("fetchBuckets: %v", err)
	}

	bucket := items[0].Raw.(Bucket)
	if !bucket.EncryptionKnown {
		t.Error("a missing configuration is a definitive answer, not an unknown")
	}
	if bucket.Encrypted {
		t.Error("a bucket without a configuration is unencrypted")
	}

	eval := evaluateBucketEncryption(items[0], nil)
	if eval.Compliance != models.NonCompliantResource {
		t.Fatalf("expected NON_COMPLIANT for an unencrypted bucket, got %s", eval.Compliance)
	}
}
