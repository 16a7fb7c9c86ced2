package analysis

import "sort"

// DiscoverAnalysis is an independent re-analysis of the highest-click rows,
// approximating the portion of a site's inventory that surfaces in feed-style
// recommendation placements.
type DiscoverAnalysis struct {
	Rows          []EnrichedRow    `json:"rows"`
	ThemeSummary  []GroupAggregate `json:"theme_summary"`
	EntitySummary []GroupAggregate `json:"entity_summary"`
}

// AnalyzeDiscover takes the top limit rows by clicks and re-runs grouping and
// tiering over just that subset. The selection sort is stable, so rows tied
// at the cutoff are kept in input order. Rows retain the contribution
// percentages computed against the full dataset; only the group summaries are
// recomputed, scoped to the subset.
//
// Callers rank the subset by total clicks via cfg: with at most limit rows in
// play, per-article averages are too noisy to order groups by.
func AnalyzeDiscover(rows []EnrichedRow, limit int, cfg TierConfig) DiscoverAnalysis {
	top := make([]EnrichedRow, len(rows))
	copy(top, rows)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Clicks > top[j].Clicks
	})
	if len(top) > limit {
		top = top[:limit]
	}

	themeAggs := AssignTiers(Aggregate(top, ThemeKey), cfg)
	entityAggs := AssignTiers(Aggregate(top, ThemeEntityKey), cfg)

	return DiscoverAnalysis{
		Rows:          top,
		ThemeSummary:  themeAggs,
		EntitySummary: entityAggs,
	}
}
