package models

// StatBucket is one named tally in a Summary. Category and ModifierClass are
// fixed presentation tags consumed by the reporting dashboards; only
// DisplayStat changes as results are folded in.
type StatBucket struct {
	DisplayStat   int    `json:"display_stat"`
	Category      string `json:"category"`
	ModifierClass string `json:"modifier_class,omitempty"`
}

// RegionCoverage accumulates the distinct regions that contributed resources.
type RegionCoverage struct {
	List  []string `json:"list"`
	Count int      `json:"count"`
}

// Summary is the fixed-shape compliance tally for one criterion or one whole
// audit. Folding preserves the invariants
//
//	All.DisplayStat        == Applicable + NotApplicable
//	Applicable.DisplayStat == Compliant + NonCompliant
//
// after every Fold and Merge, not only at the end of a run. Summaries are
// built fresh per audit by repeated folding and never mutated outside it.
type Summary struct {
	All           StatBucket     `json:"all"`
	Applicable    StatBucket     `json:"applicable"`
	NonCompliant  StatBucket     `json:"non_compliant"`
	Compliant     StatBucket     `json:"compliant"`
	NotApplicable StatBucket     `json:"not_applicable"`
	Regions       RegionCoverage `json:"regions"`
}

// NewSummary returns an empty Summary with the dashboard presentation tags
// pre-set on every bucket.
func NewSummary() *Summary {
	return &Summary{
		All:           StatBucket{Category: "all"},
		Applicable:    StatBucket{Category: "applicable"},
		NonCompliant:  StatBucket{Category: "non-compliant", ModifierClass: "failed"},
		Compliant:     StatBucket{Category: "compliant", ModifierClass: "passed"},
		NotApplicable: StatBucket{Category: "not-applicable", ModifierClass: "passed"},
	}
}

// Fold adds one evaluated resource to the tally. The region is recorded in
// the coverage accumulator when non-empty and not already present.
func (s *Summary) Fold(r ResourceResult) {
	s.All.DisplayStat++
	if r.Compliance.IsApplicable {
		s.Applicable.DisplayStat++
		if r.Compliance.IsCompliant {
			s.Compliant.DisplayStat++
		} else {
			s.NonCompliant.DisplayStat++
		}
	} else {
		s.NotApplicable.DisplayStat++
	}
	s.addRegion(r.Resource.Region)
}

// Merge folds another Summary into this one. Merge is associative and
// commutative over the counters, so summarizing a batch in parts and merging
// equals summarizing it in one pass.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}
	s.All.DisplayStat += other.All.DisplayStat
	s.Applicable.DisplayStat += other.Applicable.DisplayStat
	s.NonCompliant.DisplayStat += other.NonCompliant.DisplayStat
	s.Compliant.DisplayStat += other.Compliant.DisplayStat
	s.NotApplicable.DisplayStat += other.NotApplicable.DisplayStat
	for _, region := range other.Regions.List {
		s.addRegion(region)
	}
}

func (s *Summary) addRegion(region string) {
	if region == "" {
		return
	}
	for _, existing := range s.Regions.List {
		if existing == region {
			return
		}
	}
	s.Regions.List = append(s.Regions.List, region)
	s.Regions.Count = len(s.Regions.List)
}
