// Package advisor reads AWS Trusted Advisor check results for the
// managed-check criteria. A check is refreshed with a bounded retry loop
// before its cached result is read back; a refresh that never completes is
// not an error, the last-known result is simply used as-is.
package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/support"
	"github.com/sirupsen/logrus"

	"github.com/alphagov/csw-engine/internal/providers/aws/common"
)

// Refresh statuses reported by the Trusted Advisor API.
const (
	refreshSuccess  = "success"
	refreshNone     = "none"
	refreshEnqueued = "enqueued"
)

// CheckResult is the normalised outcome of one Trusted Advisor check.
type CheckResult struct {
	CheckID string
	Status  string
	Flagged []FlaggedResource
}

// FlaggedResource is one resource the check raised. Metadata is a positional
// string array whose layout is specific to each check; every managed-check
// criterion documents the positions it reads.
type FlaggedResource struct {
	ResourceID   string
	Status       string
	Region       string
	IsSuppressed bool
	Metadata     []string
}

// RetryPolicy bounds the refresh loop. Sleep is injectable so tests run
// without wall-clock delays.
type RetryPolicy struct {
	MaxAttempts int
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy matches the provider contract: at most three refresh
// attempts, waiting the interval the API itself suggests between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Sleep: time.Sleep}
}

// Client fetches Trusted Advisor checks through a SupportClient.
type Client struct {
	api   common.SupportClient
	retry RetryPolicy
	log   logrus.FieldLogger
}

// NewClient returns a Client with the default retry policy.
func NewClient(api common.SupportClient, log logrus.FieldLogger) *Client {
	return &Client{api: api, retry: DefaultRetryPolicy(), log: log}
}

// NewClientWithPolicy returns a Client using the supplied retry policy.
func NewClientWithPolicy(api common.SupportClient, policy RetryPolicy, log logrus.FieldLogger) *Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Sleep == nil {
		policy.Sleep = time.Sleep
	}
	return &Client{api: api, retry: policy, log: log}
}

// RefreshCheck requests a refresh of the check and polls until the refresh
// reports success or the retry budget is spent. The wait between attempts is
// the backoff interval the API supplies (MillisUntilNextRefreshable).
//
// A refresh that never reaches success returns false with a nil error: the
// cached result is still readable and an audit must not abort because a
// managed check is momentarily unrefreshable.
func (c *Client) RefreshCheck(ctx context.Context, checkID string) (bool, error) {
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		out, err := c.api.RefreshTrustedAdvisorCheck(ctx, &support.RefreshTrustedAdvisorCheckInput{
			CheckId: aws.String(checkID),
		})
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"check_id": checkID,
				"attempt":  attempt,
			}).WithError(err).Warn("trusted advisor refresh failed")
			return false, nil
		}

		if out.Status == nil {
			return false, nil
		}
		if aws.ToString(out.Status.Status) == refreshSuccess {
			return true, nil
		}
		if attempt == c.retry.MaxAttempts {
			break
		}

		wait := time.Duration(out.Status.MillisUntilNextRefreshable) * time.Millisecond
		c.retry.Sleep(wait)
	}
	return false, nil
}

// FetchCheck refreshes the check and reads back its result. The refreshed
// flag reports whether the refresh completed; the result is returned either
// way, carrying the last-known flagged resources when the refresh did not
// finish in time.
func (c *Client) FetchCheck(ctx context.Context, checkID string) (*CheckResult, bool, error) {
	refreshed, err := c.RefreshCheck(ctx, checkID)
	if err != nil {
		return nil, false, err
	}

	out, err := c.api.DescribeTrustedAdvisorCheckResult(ctx, &support.DescribeTrustedAdvisorCheckResultInput{
		CheckId:  aws.String(checkID),
		Language: aws.String("en"),
	})
	if err != nil {
		return nil, refreshed, fmt.Errorf("describe trusted advisor check %q: %w", checkID, err)
	}
	if out.Result == nil {
		return nil, refreshed, fmt.Errorf("trusted advisor check %q returned no result", checkID)
	}

	result := &CheckResult{
		CheckID: checkID,
		Status:  aws.ToString(out.Result.Status),
	}
	for _, detail := range out.Result.FlaggedResources {
		result.Flagged = append(result.Flagged, FlaggedResource{
			ResourceID:   aws.ToString(detail.ResourceId),
			Status:       aws.ToString(detail.Status),
			Region:       aws.ToString(detail.Region),
			IsSuppressed: detail.IsSuppressed,
			Metadata:     aws.ToStringSlice(detail.Metadata),
		})
	}
	return result, refreshed, nil
}
