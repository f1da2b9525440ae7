package criteria

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	kmssvc "github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/alphagov/csw-engine/internal/models"
)

// CMK carries the rotation state of one customer-managed KMS key.
type CMK struct {
	KeyID           string `json:"key_id"`
	Description     string `json:"description,omitempty"`
	Region          string `json:"region"`
	Enabled         bool   `json:"enabled"`
	RotationEnabled bool   `json:"rotation_enabled"`
}

// KMSKeyRotation flags enabled customer-managed keys without annual
// rotation. AWS-managed keys are excluded at fetch time: their rotation is
// the provider's responsibility.
func KMSKeyRotation() Criterion {
	return Criterion{
		Name:          "aws_kms_key_rotation",
		Active:        true,
		Severity:      3,
		IsRegional:    true,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::KMS::Key",
		Title:         "Customer KMS keys rotate annually",
		Description:   "Checks that automatic rotation is enabled for every enabled customer-managed KMS key.",
		WhyIsItImportant: "A key used for years encrypts an ever-growing body of data with " +
			"the same material; rotation caps how much any single compromise exposes.",
		HowDoIFixIt: "Enable automatic key rotation on the key; AWS keeps old key material " +
			"available so existing ciphertexts remain decryptable.",
		GetData:   fetchCustomerKeys,
		Translate: cmkIdentity,
		Evaluate:  evaluateKeyRotation,
	}
}

// fetchCustomerKeys lists keys in the region and keeps only customer-managed
// ones, reading the rotation status of each.
func fetchCustomerKeys(ctx context.Context, req Request) ([]Item, error) {
	out, err := req.Clients.KMS.ListKeys(ctx, &kmssvc.ListKeysInput{})
	if err != nil {
		return nil, fmt.Errorf("list KMS keys in %s: %w", req.Region, err)
	}

	var items []Item
	for _, entry := range out.Keys {
		keyID := aws.ToString(entry.KeyId)

		desc, err := req.Clients.KMS.DescribeKey(ctx, &kmssvc.DescribeKeyInput{KeyId: entry.KeyId})
		if err != nil {
			return nil, fmt.Errorf("describe KMS key %q: %w", keyID, err)
		}
		meta := desc.KeyMetadata
		if meta == nil || meta.KeyManager != kmstypes.KeyManagerTypeCustomer {
			continue
		}

		key := CMK{
			KeyID:       keyID,
			Description: aws.ToString(meta.Description),
			Region:      req.Region,
			Enabled:     meta.KeyState == kmstypes.KeyStateEnabled,
		}
		if key.Enabled {
			rotation, err := req.Clients.KMS.GetKeyRotationStatus(ctx, &kmssvc.GetKeyRotationStatusInput{
				KeyId: entry.KeyId,
			})
			if err != nil {
				return nil, fmt.Errorf("get rotation status for KMS key %q: %w", keyID, err)
			}
			key.RotationEnabled = rotation.KeyRotationEnabled
		}
		items = append(items, Item{Region: req.Region, Raw: key})
	}
	return items, nil
}

func cmkIdentity(item Item) Identity {
	key, ok := item.Raw.(CMK)
	if !ok {
		return Identity{Region: item.Region}
	}
	return Identity{
		ResourceID:   key.KeyID,
		ResourceName: key.Description,
		Region:       key.Region,
	}
}

func evaluateKeyRotation(item Item, _ []string) models.Evaluation {
	key, ok := item.Raw.(CMK)
	if !ok {
		return models.NewEvaluation("", "AWS::KMS::Key", models.NotApplicableResource,
			"item is not a KMS key")
	}

	switch {
	case !key.Enabled:
		return models.NewEvaluation(key.KeyID, "AWS::KMS::Key", models.NotApplicableResource,
			"key is disabled or pending deletion")
	case !key.RotationEnabled:
		return models.NewEvaluation(key.KeyID, "AWS::KMS::Key", models.NonCompliantResource,
			fmt.Sprintf("key %q does not rotate automatically", key.KeyID))
	default:
		return models.NewEvaluation(key.KeyID, "AWS::KMS::Key", models.CompliantResource, "")
	}
}
