package analysis

import (
	"fmt"
	"math"
)

// Violation records one failed consistency check on an engine result.
type Violation struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Check, v.Detail)
}

// ValidateResult runs the engine's consistency checks over a finished result:
// row and click conservation per dimension, tier caps and pool membership,
// contribution bounds, and the Discover size limit. A healthy result returns
// nil. Violations indicate an engine defect, not bad input; callers log them
// and still serve the result.
func ValidateResult(res Result) []Violation {
	var violations []Violation
	fail := func(check, format string, args ...interface{}) {
		violations = append(violations, Violation{Check: check, Detail: fmt.Sprintf(format, args...)})
	}

	if len(res.Rows) != res.Totals.Rows {
		fail("row_conservation", "result has %d rows, input had %d", len(res.Rows), res.Totals.Rows)
	}

	// Theme, entity and global entity dimensions partition every row, so
	// their rollups must reproduce the input totals exactly.
	for _, dim := range []struct {
		name string
		aggs []GroupAggregate
	}{
		{"theme_summary", res.ThemeSummary},
		{"entity_summary", res.EntitySummary},
		{"global_entity_summary", res.GlobalEntitySummary},
	} {
		var count int
		var clicks, impressions int64
		for _, agg := range dim.aggs {
			count += agg.ArticleCount
			clicks += agg.TotalClicks
			impressions += agg.TotalImpressions
		}
		if count != res.Totals.Rows {
			fail("count_conservation", "%s covers %d articles, input had %d", dim.name, count, res.Totals.Rows)
		}
		if clicks != res.Totals.Clicks {
			fail("clicks_conservation", "%s sums to %d clicks, input had %d", dim.name, clicks, res.Totals.Clicks)
		}
		if impressions != res.Totals.Impressions {
			fail("impressions_conservation", "%s sums to %d impressions, input had %d", dim.name, impressions, res.Totals.Impressions)
		}
	}

	for _, dim := range []struct {
		name string
		aggs []GroupAggregate
	}{
		{"theme_summary", res.ThemeSummary},
		{"entity_summary", res.EntitySummary},
		{"global_entity_summary", res.GlobalEntitySummary},
		{"author_summary", res.AuthorSummary},
		{"discover_theme_summary", res.Discover.ThemeSummary},
		{"discover_entity_summary", res.Discover.EntitySummary},
	} {
		var top, potential int
		for _, agg := range dim.aggs {
			switch agg.Tier {
			case TierTop:
				top++
				if agg.ArticleCount <= res.Options.ArticleCountThreshold {
					fail("tier_pool", "%s group %q is top with only %d articles", dim.name, agg.Key.Label, agg.ArticleCount)
				}
			case TierPotential:
				potential++
				if agg.ArticleCount > res.Options.ArticleCountThreshold {
					fail("tier_pool", "%s group %q is potential with %d articles", dim.name, agg.Key.Label, agg.ArticleCount)
				}
			case TierStandard:
			default:
				fail("tier_value", "%s group %q has unknown tier %q", dim.name, agg.Key.Label, agg.Tier)
			}
			if math.IsNaN(agg.AverageClicks) || agg.AverageClicks < 0 {
				fail("average_clicks", "%s group %q has average %v", dim.name, agg.Key.Label, agg.AverageClicks)
			}
		}
		if top > res.Options.TopN {
			fail("tier_cap", "%s has %d top groups, cap is %d", dim.name, top, res.Options.TopN)
		}
		if potential > res.Options.TopN {
			fail("tier_cap", "%s has %d potential groups, cap is %d", dim.name, potential, res.Options.TopN)
		}
	}

	for i, r := range res.Rows {
		for _, pct := range []struct {
			name  string
			value float64
		}{
			{"clicks_contribution_pct", r.ClicksContributionPct},
			{"impressions_contribution_pct", r.ImpressionsContributionPct},
		} {
			if math.IsNaN(pct.value) || pct.value < 0 || pct.value > 100 {
				fail("contribution_bounds", "row %d (%s) has %s %v", i, r.URL, pct.name, pct.value)
			}
		}
	}

	if len(res.Discover.Rows) > res.Options.DiscoverLimit {
		fail("discover_limit", "discover holds %d rows, limit is %d", len(res.Discover.Rows), res.Options.DiscoverLimit)
	}
	if len(res.Discover.Rows) > len(res.Rows) {
		fail("discover_subset", "discover holds %d rows, dataset has %d", len(res.Discover.Rows), len(res.Rows))
	}

	return violations
}
