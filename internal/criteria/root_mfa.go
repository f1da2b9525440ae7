package criteria

import (
	"context"
	"fmt"

	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/alphagov/csw-engine/internal/models"
)

// RootAccount is the MFA state of the account's root user, taken from the
// IAM account summary.
type RootAccount struct {
	AccountID  string `json:"account_id"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

// RootMFAEnabled flags the account when its root user has no MFA device.
// One item per audit: the root account itself.
func RootMFAEnabled() Criterion {
	return Criterion{
		Name:          "aws_iam_root_mfa",
		Active:        true,
		Severity:      1,
		IsRegional:    false,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::IAM::RootAccount",
		Title:         "Root account has MFA enabled",
		Description:   "Checks that the account root user has an MFA device enrolled.",
		WhyIsItImportant: "The root user can do anything in the account, including deleting " +
			"audit trails and closing the account itself. It must have the strongest " +
			"authentication available.",
		HowDoIFixIt: "Sign in as root and enrol a hardware MFA device, then lock the device away; " +
			"root should only be used for the handful of tasks that require it.",
		GetData:   fetchRootAccount,
		Translate: rootAccountIdentity,
		Evaluate:  evaluateRootMFA,
	}
}

// fetchRootAccount reads the IAM account summary. AccountMFAEnabled is 1
// when the root user has an MFA device.
func fetchRootAccount(ctx context.Context, req Request) ([]Item, error) {
	out, err := req.Clients.IAM.GetAccountSummary(ctx, &iamsvc.GetAccountSummaryInput{})
	if err != nil {
		return nil, fmt.Errorf("get IAM account summary: %w", err)
	}
	return []Item{{Raw: RootAccount{
		MFAEnabled: out.SummaryMap["AccountMFAEnabled"] == 1,
	}}}, nil
}

func rootAccountIdentity(item Item) Identity {
	return Identity{
		ResourceID:   "root",
		ResourceName: "root",
	}
}

func evaluateRootMFA(item Item, _ []string) models.Evaluation {
	root, ok := item.Raw.(RootAccount)
	if !ok {
		return models.NewEvaluation("root", "AWS::IAM::RootAccount", models.NotApplicableResource,
			"item is not a root account summary")
	}

	if !root.MFAEnabled {
		return models.NewEvaluation("root", "AWS::IAM::RootAccount", models.NonCompliantResource,
			"root account has no MFA device enrolled")
	}
	return models.NewEvaluation("root", "AWS::IAM::RootAccount", models.CompliantResource, "")
}
