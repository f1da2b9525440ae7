// Package engine runs compliance audits: it fans criteria out across
// regions, evaluates every fetched resource, and assembles the report the
// store persists and the dispatcher forwards.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alphagov/csw-engine/internal/criteria"
	"github.com/alphagov/csw-engine/internal/exceptions"
	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/common"
)

// Options configures one audit run.
type Options struct {
	// Profile is the named AWS profile to audit. Empty means the default
	// credential chain.
	Profile string

	// Regions is an explicit region list. When empty the runner discovers
	// every active region for the account.
	Regions []string

	// Whitelist is the configured set of approved ingress CIDRs. Allow-list
	// entries active at run time are unioned in per criterion.
	Whitelist []string

	// Disabled names criteria to skip this run.
	Disabled []string
}

// ProgressFunc is called after each criterion completes, in catalogue order.
// Used by the CLI to print per-criterion progress; nil disables it.
type ProgressFunc func(report *models.CriterionReport)

// AuditRunner coordinates session loading, criterion fan-out, evaluation,
// and report assembly. It never calls the AWS SDK directly; every provider
// call goes through a criterion's GetData and the injected client factory.
type AuditRunner struct {
	sessions common.SessionProvider
	factory  common.ClientFactory
	registry *criteria.Registry
	store    exceptions.Store
	log      logrus.FieldLogger

	// now is swapped in tests to pin exception-window checks.
	now func() time.Time

	progress ProgressFunc
}

// NewAuditRunner constructs an AuditRunner wired to the supplied session
// provider, client factory, criterion registry, and exception store.
func NewAuditRunner(
	sessions common.SessionProvider,
	factory common.ClientFactory,
	registry *criteria.Registry,
	store exceptions.Store,
	log logrus.FieldLogger,
) *AuditRunner {
	return &AuditRunner{
		sessions: sessions,
		factory:  factory,
		registry: registry,
		store:    store,
		log:      log,
		now:      time.Now,
	}
}

// SetProgress registers a per-criterion progress callback.
func (r *AuditRunner) SetProgress(fn ProgressFunc) {
	r.progress = fn
}

// Run executes a full audit of one account. A criterion whose every fetch
// fails contributes an error entry and nothing to the audit summary; the run
// itself fails only when the session cannot be established or no region can
// be resolved.
func (r *AuditRunner) Run(ctx context.Context, opts Options) (*models.AuditReport, error) {
	session, err := r.sessions.GetSession(ctx, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("load session for profile %q: %w", opts.Profile, err)
	}

	regions := opts.Regions
	if len(regions) == 0 {
		regions, err = r.sessions.GetActiveRegions(ctx, session)
		if err != nil {
			return nil, fmt.Errorf("resolve regions for account %s: %w", session.AccountID, err)
		}
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("no active regions for account %s", session.AccountID)
	}

	audit := &models.AuditReport{
		AuditID:     uuid.NewString(),
		GeneratedAt: r.now().UTC(),
		AccountID:   session.AccountID,
		Profile:     session.ProfileName,
		Regions:     regions,
		Summary:     models.NewSummary(),
	}

	for _, c := range r.registry.Active(opts.Disabled) {
		report := r.runCriterion(ctx, c, session, regions, opts.Whitelist)
		if report.Err == "" {
			audit.Summary.Merge(report.Summary)
		}
		audit.Criteria = append(audit.Criteria, *report)
		if r.progress != nil {
			r.progress(report)
		}
	}

	return audit, nil
}

// RunAll audits every configured profile, one report per account. Profile
// failures are skipped non-fatally; an error is returned only when no
// profile can be audited.
func (r *AuditRunner) RunAll(ctx context.Context, opts Options) ([]*models.AuditReport, error) {
	sessions, err := r.sessions.GetAllSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load all sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no AWS profiles found")
	}

	var reports []*models.AuditReport
	for _, session := range sessions {
		perProfile := opts
		perProfile.Profile = session.ProfileName
		report, err := r.Run(ctx, perProfile)
		if err != nil {
			r.log.WithError(err).WithField("profile", session.ProfileName).
				Warn("skipping profile")
			continue
		}
		reports = append(reports, report)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("all profiles failed; no audit produced")
	}
	return reports, nil
}

// runCriterion evaluates one criterion across all of its requests. A fetch
// error for one request is logged and treated as zero results from that
// request; the criterion reports a top-level error only when every request
// failed and nothing was evaluated.
func (r *AuditRunner) runCriterion(
	ctx context.Context,
	c criteria.Criterion,
	session *common.AccountSession,
	regions []string,
	whitelist []string,
) *models.CriterionReport {
	log := r.log.WithField("criterion", c.Name)

	if c.ExceptionType == criteria.ExceptionAllowlist {
		whitelist = unionCIDRs(whitelist, r.store.ActiveAllowlist(session.AccountID, r.now()))
	}

	var (
		results   []models.ResourceResult
		requests  = r.requestsFor(c, session, regions, log)
		fetchErrs []error
	)

	for _, req := range requests {
		items, err := c.GetData(ctx, req)
		if err != nil {
			log.WithError(err).WithField("region", req.Region).
				Error("criterion fetch failed")
			fetchErrs = append(fetchErrs, err)
			continue
		}
		for _, item := range items {
			results = append(results, r.evaluateItem(c, session, item, whitelist))
		}
	}

	report := &models.CriterionReport{
		Name:         c.Name,
		Title:        c.Title,
		Severity:     c.Severity,
		ResourceType: c.ResourceType,
		Results:      results,
	}
	if len(fetchErrs) == len(requests) && len(requests) > 0 {
		report.Err = fmt.Sprintf("all requests failed: %v", fetchErrs[0])
		report.Summary = models.NewSummary()
		return report
	}
	report.Summary = criteria.Summarize(results, nil)
	return report
}

// requestsFor parameterises a criterion's fetches: one request per region
// for regional criteria, a single request on the session's home clients for
// global ones.
func (r *AuditRunner) requestsFor(
	c criteria.Criterion,
	session *common.AccountSession,
	regions []string,
	log logrus.FieldLogger,
) []criteria.Request {
	if !c.IsRegional {
		return []criteria.Request{{Clients: session.Clients, Log: log}}
	}
	requests := make([]criteria.Request, 0, len(regions))
	for _, region := range regions {
		cfg := r.sessions.ConfigForRegion(session, region)
		requests = append(requests, criteria.Request{
			Region:  region,
			Clients: r.factory(cfg),
			Log:     log.WithField("region", region),
		})
	}
	return requests
}

// evaluateItem runs Translate and Evaluate on one fetched item and builds
// the persisted result. Suppression is looked up by persistent ID for
// per-resource-exception criteria and recorded as a flag only; the stored
// compliance always carries the ground-truth verdict.
func (r *AuditRunner) evaluateItem(
	c criteria.Criterion,
	session *common.AccountSession,
	item criteria.Item,
	whitelist []string,
) models.ResourceResult {
	identity := c.Translate(item)
	eval := c.Evaluate(item, whitelist)

	persistentID := models.PersistentResourceID(
		c.ResourceType, identity.Region, session.AccountID,
		identity.ResourceName, identity.ResourceID)

	raw, err := json.Marshal(item.Raw)
	if err != nil {
		r.log.WithError(err).WithField("resource", identity.ResourceID).
			Warn("could not serialize raw resource data")
		raw = nil
	}

	result := models.ResourceResult{
		Resource: models.AuditResource{
			Region:        identity.Region,
			ResourceID:    identity.ResourceID,
			ResourceName:  identity.ResourceName,
			PersistentID:  persistentID,
			ResourceData:  raw,
			DateEvaluated: r.now().UTC(),
		},
		Compliance: models.ComplianceFromEvaluation(eval),
	}

	if c.ExceptionType == criteria.ExceptionResource {
		result.Suppressed = r.store.HasActiveSuppression(
			c.Name, persistentID, session.AccountID, r.now())
	}
	return result
}

// unionCIDRs appends extras to base, skipping duplicates, without mutating
// either slice.
func unionCIDRs(base, extras []string) []string {
	out := make([]string, 0, len(base)+len(extras))
	seen := make(map[string]struct{}, len(base)+len(extras))
	for _, cidr := range append(append([]string{}, base...), extras...) {
		if _, dup := seen[cidr]; dup {
			continue
		}
		seen[cidr] = struct{}{}
		out = append(out, cidr)
	}
	return out
}
