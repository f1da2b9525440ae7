package criteria

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/alphagov/csw-engine/internal/models"
)

// IAMUser carries the MFA state of one IAM user.
type IAMUser struct {
	UserName   string `json:"user_name"`
	UserID     string `json:"user_id"`
	MFADevices int    `json:"mfa_devices"`
}

// UserMFAEnabled flags IAM users with no MFA device enrolled.
func UserMFAEnabled() Criterion {
	return Criterion{
		Name:          "aws_iam_user_mfa",
		Active:        true,
		Severity:      1,
		IsRegional:    false,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::IAM::User",
		Title:         "IAM users have MFA enabled",
		Description:   "Checks that every IAM user has at least one MFA device enrolled.",
		WhyIsItImportant: "A password alone is a single point of failure; MFA stops the " +
			"vast majority of credential-phishing and password-reuse compromises.",
		HowDoIFixIt: "Enrol a virtual or hardware MFA device for the user in the IAM console, " +
			"or remove the user's console password if it is unused.",
		GetData:   fetchIAMUsers,
		Translate: iamUserIdentity,
		Evaluate:  evaluateUserMFA,
	}
}

// fetchIAMUsers lists account users with their MFA device counts.
func fetchIAMUsers(ctx context.Context, req Request) ([]Item, error) {
	users, err := req.Clients.IAM.ListUsers(ctx, &iamsvc.ListUsersInput{})
	if err != nil {
		return nil, fmt.Errorf("list IAM users: %w", err)
	}

	var items []Item
	for _, user := range users.Users {
		userName := aws.ToString(user.UserName)
		devices, err := req.Clients.IAM.ListMFADevices(ctx, &iamsvc.ListMFADevicesInput{
			UserName: user.UserName,
		})
		if err != nil {
			return nil, fmt.Errorf("list MFA devices for user %q: %w", userName, err)
		}
		items = append(items, Item{Raw: IAMUser{
			UserName:   userName,
			UserID:     aws.ToString(user.UserId),
			MFADevices: len(devices.MFADevices),
		}})
	}
	return items, nil
}

func iamUserIdentity(item Item) Identity {
	user, ok := item.Raw.(IAMUser)
	if !ok {
		return Identity{}
	}
	return Identity{
		ResourceID:   user.UserID,
		ResourceName: user.UserName,
	}
}

func evaluateUserMFA(item Item, _ []string) models.Evaluation {
	user, ok := item.Raw.(IAMUser)
	if !ok {
		return models.NewEvaluation("", "AWS::IAM::User", models.NotApplicableResource,
			"item is not an IAM user")
	}

	if user.MFADevices == 0 {
		annotation := fmt.Sprintf("user %q has no MFA device enrolled", user.UserName)
		return models.NewEvaluation(user.UserID, "AWS::IAM::User", models.NonCompliantResource, annotation)
	}
	return models.NewEvaluation(user.UserID, "AWS::IAM::User", models.CompliantResource, "")
}
