package criteria

import (
	"context"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/advisor"
)

// Trusted Advisor per-resource statuses.
const (
	flaggedOK      = "ok"
	flaggedWarning = "warning"
	flaggedError   = "error"
)

// managedCheckFetcher builds a GetData strategy that refreshes one Trusted
// Advisor check and maps its flagged resources into items. A refresh that
// does not complete inside the retry budget is fine: the check's last-known
// flagged list is used as-is.
func managedCheckFetcher(checkID string) func(context.Context, Request) ([]Item, error) {
	return func(ctx context.Context, req Request) ([]Item, error) {
		client := advisor.NewClient(req.Clients.Support, req.Log)
		result, refreshed, err := client.FetchCheck(ctx, checkID)
		if err != nil {
			return nil, err
		}
		if !refreshed {
			req.Log.WithField("check_id", checkID).Info("trusted advisor refresh incomplete, using cached result")
		}

		items := make([]Item, 0, len(result.Flagged))
		for _, flagged := range result.Flagged {
			items = append(items, Item{Region: flagged.Region, Raw: flagged})
		}
		return items, nil
	}
}

// metadataAt reads one position of a flagged resource's metadata array,
// returning the empty string when the array is shorter than expected.
// Metadata layouts are check-specific; every managed criterion documents
// the positions it reads next to its constructor.
func metadataAt(flagged advisor.FlaggedResource, pos int) string {
	if pos < 0 || pos >= len(flagged.Metadata) {
		return ""
	}
	return flagged.Metadata[pos]
}

// evaluateFlagged maps a flagged resource's status to a verdict:
// "ok" passes, "warning" and "error" fail, anything else (including
// resources suppressed inside Trusted Advisor itself) is not applicable.
func evaluateFlagged(flagged advisor.FlaggedResource, resourceID, resourceType, annotation string) models.Evaluation {
	if flagged.IsSuppressed {
		return models.NewEvaluation(resourceID, resourceType, models.NotApplicableResource,
			"resource is suppressed in trusted advisor")
	}
	switch flagged.Status {
	case flaggedOK:
		return models.NewEvaluation(resourceID, resourceType, models.CompliantResource, "")
	case flaggedWarning, flaggedError:
		return models.NewEvaluation(resourceID, resourceType, models.NonCompliantResource, annotation)
	default:
		return models.NewEvaluation(resourceID, resourceType, models.NotApplicableResource,
			"trusted advisor reported no status for this resource")
	}
}
