package criteria

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/alphagov/csw-engine/internal/models"
)

// maxAccessKeyAge is the rotation deadline for active IAM access keys.
const maxAccessKeyAge = 90 * 24 * time.Hour

// AccessKey is one IAM access key with the fields the rotation check needs.
type AccessKey struct {
	UserName    string    `json:"user_name"`
	AccessKeyID string    `json:"access_key_id"`
	Active      bool      `json:"active"`
	CreateDate  time.Time `json:"create_date"`
}

// AccessKeyRotation flags active IAM access keys older than 90 days.
// Inactive keys are not applicable: they cannot authenticate, so their age
// is irrelevant until they are re-enabled.
func AccessKeyRotation() Criterion {
	return Criterion{
		Name:          "aws_iam_access_key_rotation",
		Active:        true,
		Severity:      2,
		IsRegional:    false,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::IAM::AccessKey",
		Title:         "IAM access keys are rotated every 90 days",
		Description:   "Checks that every active IAM access key is younger than 90 days.",
		WhyIsItImportant: "Long-lived access keys accumulate exposure: the longer a key " +
			"exists, the more places it has been copied to and the harder a leak is to trace.",
		HowDoIFixIt: "Create a replacement key, update the consuming application, then " +
			"deactivate and delete the old key.",
		GetData:   fetchAccessKeys,
		Translate: accessKeyIdentity,
		Evaluate:  evaluateAccessKeyAge,
	}
}

// fetchAccessKeys lists every access key of every IAM user in the account.
func fetchAccessKeys(ctx context.Context, req Request) ([]Item, error) {
	users, err := req.Clients.IAM.ListUsers(ctx, &iamsvc.ListUsersInput{})
	if err != nil {
		return nil, fmt.Errorf("list IAM users: %w", err)
	}

	var items []Item
	for _, user := range users.Users {
		userName := aws.ToString(user.UserName)
		keys, err := req.Clients.IAM.ListAccessKeys(ctx, &iamsvc.ListAccessKeysInput{
			UserName: user.UserName,
		})
		if err != nil {
			return nil, fmt.Errorf("list access keys for user %q: %w", userName, err)
		}
		for _, key := range keys.AccessKeyMetadata {
			items = append(items, Item{Raw: AccessKey{
				UserName:    userName,
				AccessKeyID: aws.ToString(key.AccessKeyId),
				Active:      key.Status == iamtypes.StatusTypeActive,
				CreateDate:  aws.ToTime(key.CreateDate),
			}})
		}
	}
	return items, nil
}

func accessKeyIdentity(item Item) Identity {
	key, ok := item.Raw.(AccessKey)
	if !ok {
		return Identity{}
	}
	return Identity{
		ResourceID:   key.AccessKeyID,
		ResourceName: key.UserName,
	}
}

func evaluateAccessKeyAge(item Item, _ []string) models.Evaluation {
	key, ok := item.Raw.(AccessKey)
	if !ok {
		return models.NewEvaluation("", "AWS::IAM::AccessKey", models.NotApplicableResource,
			"item is not an access key")
	}

	if !key.Active {
		return models.NewEvaluation(key.AccessKeyID, "AWS::IAM::AccessKey", models.NotApplicableResource,
			"access key is inactive")
	}

	age := time.Since(key.CreateDate)
	if age > maxAccessKeyAge {
		annotation := fmt.Sprintf("access key for user %q is %d days old (limit 90)",
			key.UserName, int(age.Hours()/24))
		return models.NewEvaluation(key.AccessKeyID, "AWS::IAM::AccessKey", models.NonCompliantResource, annotation)
	}
	return models.NewEvaluation(key.AccessKeyID, "AWS::IAM::AccessKey", models.CompliantResource, "")
}
