package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"

	"github.com/alphagov/csw-engine/internal/criteria"
	"github.com/alphagov/csw-engine/internal/exceptions"
	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/common"
)

// fakeSessions is a canned SessionProvider for one account.
type fakeSessions struct {
	accountID string
	regions   []string
}

func (f *fakeSessions) GetSession(_ context.Context, profile string) (*common.AccountSession, error) {
	name := profile
	if name == "" {
		name = "default"
	}
	return &common.AccountSession{
		ProfileName: name,
		AccountID:   f.accountID,
		Region:      "eu-west-1",
		Clients:     &common.ClientSet{},
	}, nil
}

func (f *fakeSessions) GetAllSessions(ctx context.Context) ([]*common.AccountSession, error) {
	s, _ := f.GetSession(ctx, "default")
	return []*common.AccountSession{s}, nil
}

func (f *fakeSessions) GetActiveRegions(context.Context, *common.AccountSession) ([]string, error) {
	return f.regions, nil
}

func (f *fakeSessions) ConfigForRegion(_ *common.AccountSession, region string) aws.Config {
	return aws.Config{Region: region}
}

func emptyFactory(aws.Config) *common.ClientSet {
	return &common.ClientSet{}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// namedResource is the raw item shape the stub criteria evaluate.
type namedResource struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
	Bad    bool   `json:"bad"`
}

func stubRegistry(criteriaList ...criteria.Criterion) *criteria.Registry {
	r := criteria.NewRegistry()
	for _, c := range criteriaList {
		r.Register(c)
	}
	return r
}

// resourceCriterion returns a global criterion producing the given items and
// failing the ones marked Bad.
func resourceCriterion(name string, items ...namedResource) criteria.Criterion {
	return criteria.Criterion{
		Name:          name,
		Active:        true,
		Severity:      1,
		ExceptionType: criteria.ExceptionResource,
		Aggregation:   criteria.AggregateAll,
		ResourceType:  "AWS::Test::Resource",
		Title:         "test criterion",
		Description:   "test",
		HowDoIFixIt:   "n/a",
		GetData: func(context.Context, criteria.Request) ([]criteria.Item, error) {
			out := make([]criteria.Item, 0, len(items))
			for _, item := range items {
				out = append(out, criteria.Item{Region: item.Region, Raw: item})
			}
			return out, nil
		},
		Translate: func(item criteria.Item) criteria.Identity {
			r := item.Raw.(namedResource)
			return criteria.Identity{ResourceID: r.ID, ResourceName: r.Name, Region: r.Region}
		},
		Evaluate: func(item criteria.Item, _ []string) models.Evaluation {
			r := item.Raw.(namedResource)
			if r.Bad {
				return models.NewEvaluation(r.ID, "AWS::Test::Resource", models.NonCompliantResource, "bad")
			}
			return models.NewEvaluation(r.ID, "AWS::Test::Resource", models.CompliantResource, "")
		},
	}
}

func newTestRunner(reg *criteria.Registry, store exceptions.Store) *AuditRunner {
	if store == nil {
		store = exceptions.NewMemoryStore()
	}
	return NewAuditRunner(
		&fakeSessions{accountID: "123456789012", regions: []string{"eu-west-1", "eu-west-2"}},
		emptyFactory,
		reg,
		store,
		testLogger(),
	)
}

func TestRun_AssemblesReport(t *testing.T) {
	reg := stubRegistry(resourceCriterion("test_rule",
		namedResource{ID: "r-1", Name: "one", Region: "eu-west-1"},
		namedResource{ID: "r-2", Name: "two", Region: "eu-west-2", Bad: true},
	))
	report, err := newTestRunner(reg, nil).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.AuditID == "" {
		t.Error("audit ID must be assigned")
	}
	if report.AccountID != "123456789012" {
		t.Errorf("account = %q", report.AccountID)
	}
	if len(report.Criteria) != 1 {
		t.Fatalf("criteria reports = %d, want 1", len(report.Criteria))
	}
	if report.Summary.All.DisplayStat != 2 || report.Summary.NonCompliant.DisplayStat != 1 {
		t.Errorf("summary all=%d fail=%d, want 2/1",
			report.Summary.All.DisplayStat, report.Summary.NonCompliant.DisplayStat)
	}
}

func TestRun_PersistentIDStableAcrossRuns(t *testing.T) {
	reg := stubRegistry(resourceCriterion("test_rule",
		namedResource{ID: "sg-1", Name: "bastion", Region: "eu-west-1"},
	))
	runner := newTestRunner(reg, nil)

	first, err := runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	a := first.Criteria[0].Results[0].Resource.PersistentID
	b := second.Criteria[0].Results[0].Resource.PersistentID
	if a != b {
		t.Errorf("persistent ID changed between runs: %q vs %q", a, b)
	}
	want := "AWS::Test::Resource::eu-west-1::123456789012::bastion"
	if a != want {
		t.Errorf("persistent ID = %q, want %q", a, want)
	}
}

func TestRun_SuppressionFlagsResultWithoutChangingVerdict(t *testing.T) {
	reg := stubRegistry(resourceCriterion("test_rule",
		namedResource{ID: "sg-1", Name: "bastion", Region: "eu-west-1", Bad: true},
	))
	store := exceptions.NewMemoryStore()
	store.AddException(exceptions.Exception{
		CriterionName:        "test_rule",
		ResourcePersistentID: "AWS::Test::Resource::eu-west-1::123456789012::bastion",
		AccountID:            "123456789012",
		DateCreated:          time.Now().Add(-time.Hour),
		DateExpires:          time.Now().Add(time.Hour),
	})

	report, err := newTestRunner(reg, store).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := report.Criteria[0].Results[0]
	if !result.Suppressed {
		t.Error("result must be flagged suppressed")
	}
	if result.Compliance.Compliance != models.NonCompliantResource {
		t.Errorf("suppression must not change the stored verdict, got %s", result.Compliance.Compliance)
	}
	if report.Summary.NonCompliant.DisplayStat != 1 {
		t.Error("suppressed results still count as non-compliant in the summary")
	}
}

func TestRun_AllowlistUnionedIntoWhitelist(t *testing.T) {
	var seen []string
	c := criteria.Criterion{
		Name:          "allowlist_rule",
		Active:        true,
		ExceptionType: criteria.ExceptionAllowlist,
		Aggregation:   criteria.AggregateAll,
		ResourceType:  "AWS::Test::Resource",
		Title:         "t",
		HowDoIFixIt:   "n/a",
		GetData: func(context.Context, criteria.Request) ([]criteria.Item, error) {
			return []criteria.Item{{Raw: namedResource{ID: "r-1"}}}, nil
		},
		Translate: func(criteria.Item) criteria.Identity {
			return criteria.Identity{ResourceID: "r-1"}
		},
		Evaluate: func(_ criteria.Item, whitelist []string) models.Evaluation {
			seen = whitelist
			return models.NewEvaluation("r-1", "AWS::Test::Resource", models.CompliantResource, "")
		},
	}

	store := exceptions.NewMemoryStore()
	store.AddAllowlistEntry(exceptions.AllowlistEntry{
		AccountID:   "123456789012",
		CIDR:        "198.51.100.0/24",
		DateCreated: time.Now().Add(-time.Hour),
		DateExpires: time.Now().Add(time.Hour),
	})

	_, err := newTestRunner(stubRegistry(c), store).Run(context.Background(), Options{
		Whitelist: []string{"203.0.113.0/24"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("whitelist = %v, want configured entry plus allowlist entry", seen)
	}
	if seen[0] != "203.0.113.0/24" || seen[1] != "198.51.100.0/24" {
		t.Errorf("whitelist = %v", seen)
	}
}

func TestRun_FailedCriterionDoesNotAbortAudit(t *testing.T) {
	broken := resourceCriterion("broken_rule")
	broken.GetData = func(context.Context, criteria.Request) ([]criteria.Item, error) {
		return nil, fmt.Errorf("access denied")
	}
	healthy := resourceCriterion("healthy_rule",
		namedResource{ID: "r-1", Name: "one", Region: "eu-west-1"},
	)

	report, err := newTestRunner(stubRegistry(broken, healthy), nil).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("one failed criterion must not abort the audit: %v", err)
	}

	if len(report.Criteria) != 2 {
		t.Fatalf("criteria reports = %d, want 2", len(report.Criteria))
	}
	if report.Criteria[0].Err == "" {
		t.Error("broken criterion must carry its error")
	}
	if report.Criteria[0].Summary.All.DisplayStat != 0 {
		t.Error("a failed criterion contributes nothing")
	}
	if report.Summary.All.DisplayStat != 1 {
		t.Errorf("audit summary all = %d, want only the healthy criterion's resource",
			report.Summary.All.DisplayStat)
	}
}

func TestRun_RegionalCriterionFansOutPerRegion(t *testing.T) {
	var regions []string
	c := resourceCriterion("regional_rule")
	c.IsRegional = true
	c.GetData = func(_ context.Context, req criteria.Request) ([]criteria.Item, error) {
		regions = append(regions, req.Region)
		return nil, nil
	}

	_, err := newTestRunner(stubRegistry(c), nil).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regions) != 2 || regions[0] != "eu-west-1" || regions[1] != "eu-west-2" {
		t.Errorf("fetched regions = %v, want one request per active region", regions)
	}
}

func TestRun_ProgressCallbackPerCriterion(t *testing.T) {
	reg := stubRegistry(
		resourceCriterion("rule_a", namedResource{ID: "r-1"}),
		resourceCriterion("rule_b"),
	)
	runner := newTestRunner(reg, nil)

	var names []string
	runner.SetProgress(func(report *models.CriterionReport) {
		names = append(names, report.Name)
	})

	if _, err := runner.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "rule_a" || names[1] != "rule_b" {
		t.Errorf("progress calls = %v", names)
	}
}

func TestRun_DisabledCriterionSkipped(t *testing.T) {
	reg := stubRegistry(
		resourceCriterion("rule_a", namedResource{ID: "r-1"}),
		resourceCriterion("rule_b", namedResource{ID: "r-2"}),
	)
	report, err := newTestRunner(reg, nil).Run(context.Background(), Options{
		Disabled: []string{"rule_b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Criteria) != 1 || report.Criteria[0].Name != "rule_a" {
		t.Errorf("expected only rule_a to run, got %d reports", len(report.Criteria))
	}
}
