package criteria

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/common"
)

// ExceptionType selects how suppressions apply to a criterion's results:
// per-resource exceptions keyed by persistent ID, or time-boxed CIDR
// allow-list entries unioned into the whitelist before evaluation.
type ExceptionType string

const (
	ExceptionResource  ExceptionType = "resource"
	ExceptionAllowlist ExceptionType = "allowlist"
)

// AggregationType describes how a criterion folds multiple relevant facts on
// one resource into a verdict: "all" requires every relevant fact to pass,
// "any" passes when at least one does.
type AggregationType string

const (
	AggregateAll AggregationType = "all"
	AggregateAny AggregationType = "any"
)

// Request is one parameterised fetch: one region for regional criteria, or
// the single global request. The client set is scoped to the request's
// region and owned by the caller for the duration of the request.
type Request struct {
	Region  string
	Clients *common.ClientSet
	Log     logrus.FieldLogger
}

// Item is one raw provider item returned by a fetch. Raw keeps the typed
// shape the fetch produced; the runner serializes it verbatim into the
// audit-trail field of the resource record.
type Item struct {
	Region string
	Raw    any
}

// Identity is the projection Translate produces from a raw item. Missing
// optional fields fall back to the empty string; Translate never fails.
type Identity struct {
	ResourceID   string
	ResourceName string
	Region       string
}

// Criterion is one compliance rule: metadata plus three pure-ish functions.
// Concrete criteria are data, constructed once at startup and registered by
// name; there is no rule subclassing and no runtime lookup by persisted
// class name.
//
// Contract:
//
//   - GetData fetches provider items for one request. Errors are returned to
//     the runner, which logs them and treats the request as zero results.
//   - Translate is a side-effect-free projection of one item's identity.
//   - Evaluate returns a well-formed Evaluation for every item, carrying its
//     own annotation. It must be idempotent: same item and whitelist, same
//     verdict. A rule that cannot judge an item reports NOT_APPLICABLE with
//     an explanatory annotation rather than anything partial.
type Criterion struct {
	// Name is the stable, fully-qualified rule identifier (registry key and
	// the value persisted with each result).
	Name string

	Active     bool
	Severity   int
	IsRegional bool

	ExceptionType ExceptionType
	Aggregation   AggregationType

	// ResourceType tags every resource this criterion evaluates and is the
	// first segment of the persistent resource ID. It must be set on every
	// active criterion; the registry rejects active wildcards.
	ResourceType string

	Title            string
	Description      string
	WhyIsItImportant string
	HowDoIFixIt      string

	GetData   func(ctx context.Context, req Request) ([]Item, error)
	Translate func(item Item) Identity
	Evaluate  func(item Item, whitelist []string) models.Evaluation
}

// Summarize folds a batch of evaluated results into running, creating an
// empty Summary when none is supplied. Folding in batches and merging the
// partial summaries yields the same counters as one pass, so criterion-level
// and audit-level summaries use the same operation.
func Summarize(results []models.ResourceResult, running *models.Summary) *models.Summary {
	if running == nil {
		running = models.NewSummary()
	}
	for _, r := range results {
		running.Fold(r)
	}
	return running
}
