package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/support"
)

// ---------------------------------------------------------------------------
// Per-service client interfaces
//
// Each interface covers only the operations the criteria catalogue and the
// persistence/dispatch layers actually call. Narrow interfaces instead of the
// full SDK clients keep tests trivial: a struct returning canned data
// satisfies the interface without touching the SDK.
// ---------------------------------------------------------------------------

// STSClient is the subset of STS operations used to resolve the account ID.
type STSClient interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// EC2Client covers region discovery, security groups, and EBS volumes.
type EC2Client interface {
	DescribeRegions(
		ctx context.Context,
		params *ec2.DescribeRegionsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeRegionsOutput, error)

	DescribeSecurityGroups(
		ctx context.Context,
		params *ec2.DescribeSecurityGroupsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSecurityGroupsOutput, error)

	DescribeVolumes(
		ctx context.Context,
		params *ec2.DescribeVolumesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeVolumesOutput, error)
}

// IAMClient covers the account-level identity checks: root and user MFA
// state and access-key age.
type IAMClient interface {
	GetAccountSummary(
		ctx context.Context,
		params *iam.GetAccountSummaryInput,
		optFns ...func(*iam.Options),
	) (*iam.GetAccountSummaryOutput, error)

	ListUsers(
		ctx context.Context,
		params *iam.ListUsersInput,
		optFns ...func(*iam.Options),
	) (*iam.ListUsersOutput, error)

	ListMFADevices(
		ctx context.Context,
		params *iam.ListMFADevicesInput,
		optFns ...func(*iam.Options),
	) (*iam.ListMFADevicesOutput, error)

	ListAccessKeys(
		ctx context.Context,
		params *iam.ListAccessKeysInput,
		optFns ...func(*iam.Options),
	) (*iam.ListAccessKeysOutput, error)
}

// S3Client covers bucket enumeration and default-encryption inspection.
type S3Client interface {
	ListBuckets(
		ctx context.Context,
		params *s3.ListBucketsInput,
		optFns ...func(*s3.Options),
	) (*s3.ListBucketsOutput, error)

	GetBucketEncryption(
		ctx context.Context,
		params *s3.GetBucketEncryptionInput,
		optFns ...func(*s3.Options),
	) (*s3.GetBucketEncryptionOutput, error)
}

// RDSClient covers database instance enumeration for the storage-encryption
// criterion.
type RDSClient interface {
	DescribeDBInstances(
		ctx context.Context,
		params *rds.DescribeDBInstancesInput,
		optFns ...func(*rds.Options),
	) (*rds.DescribeDBInstancesOutput, error)
}

// ELBv2Client covers load balancer and listener enumeration for the
// insecure-listener criterion.
type ELBv2Client interface {
	DescribeLoadBalancers(
		ctx context.Context,
		params *elbv2.DescribeLoadBalancersInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeLoadBalancersOutput, error)

	DescribeListeners(
		ctx context.Context,
		params *elbv2.DescribeListenersInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeListenersOutput, error)
}

// KMSClient covers customer-key rotation inspection and the envelope
// encryption used by the local encrypted audit store.
type KMSClient interface {
	ListKeys(
		ctx context.Context,
		params *kms.ListKeysInput,
		optFns ...func(*kms.Options),
	) (*kms.ListKeysOutput, error)

	DescribeKey(
		ctx context.Context,
		params *kms.DescribeKeyInput,
		optFns ...func(*kms.Options),
	) (*kms.DescribeKeyOutput, error)

	GetKeyRotationStatus(
		ctx context.Context,
		params *kms.GetKeyRotationStatusInput,
		optFns ...func(*kms.Options),
	) (*kms.GetKeyRotationStatusOutput, error)

	Encrypt(
		ctx context.Context,
		params *kms.EncryptInput,
		optFns ...func(*kms.Options),
	) (*kms.EncryptOutput, error)

	Decrypt(
		ctx context.Context,
		params *kms.DecryptInput,
		optFns ...func(*kms.Options),
	) (*kms.DecryptOutput, error)
}

// SupportClient covers the Trusted Advisor operations used by the
// managed-check fetch strategy.
type SupportClient interface {
	RefreshTrustedAdvisorCheck(
		ctx context.Context,
		params *support.RefreshTrustedAdvisorCheckInput,
		optFns ...func(*support.Options),
	) (*support.RefreshTrustedAdvisorCheckOutput, error)

	DescribeTrustedAdvisorCheckResult(
		ctx context.Context,
		params *support.DescribeTrustedAdvisorCheckResultInput,
		optFns ...func(*support.Options),
	) (*support.DescribeTrustedAdvisorCheckResultOutput, error)
}

// SQSClient covers the queue dispatch of completed audit records.
type SQSClient interface {
	SendMessage(
		ctx context.Context,
		params *sqs.SendMessageInput,
		optFns ...func(*sqs.Options),
	) (*sqs.SendMessageOutput, error)
}

// ---------------------------------------------------------------------------
// ClientSet and ClientFactory
// ---------------------------------------------------------------------------

// ClientSet holds initialised AWS service clients for one session and region.
// All fields are interfaces so tests can swap in fakes without importing the
// AWS SDK in test files.
//
// A ClientSet is owned by exactly one AccountSession (or one region-scoped
// fan-out request); client handles are never shared through package-level
// state.
type ClientSet struct {
	STS     STSClient
	EC2     EC2Client
	IAM     IAMClient
	S3      S3Client
	RDS     RDSClient
	ELBv2   ELBv2Client
	KMS     KMSClient
	Support SupportClient
	SQS     SQSClient
}

// ClientFactory creates a ClientSet from an aws.Config.
// Swap this in tests to inject fake clients.
type ClientFactory func(cfg aws.Config) *ClientSet

// NewClientSet is the production ClientFactory. The Support (Trusted Advisor)
// API is always pointed at us-east-1 because it is a global service only
// reachable in that region.
func NewClientSet(cfg aws.Config) *ClientSet {
	supportCfg := cfg
	supportCfg.Region = "us-east-1"

	return &ClientSet{
		STS:     sts.NewFromConfig(cfg),
		EC2:     ec2.NewFromConfig(cfg),
		IAM:     iam.NewFromConfig(cfg),
		S3:      s3.NewFromConfig(cfg),
		RDS:     rds.NewFromConfig(cfg),
		ELBv2:   elbv2.NewFromConfig(cfg),
		KMS:     kms.NewFromConfig(cfg),
		Support: support.NewFromConfig(supportCfg),
		SQS:     sqs.NewFromConfig(cfg),
	}
}
