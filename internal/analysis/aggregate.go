package analysis

import "sort"

// GroupKey identifies one aggregate bucket. Compound groupings (entity within
// theme) set Parent; single-field groupings leave it empty. Keeping the key
// structured means labels may contain any characters without colliding.
type GroupKey struct {
	Parent string `json:"parent,omitempty"`
	Label  string `json:"label"`
}

// less orders keys by Parent then Label, the canonical tiebreak everywhere
// ordering must be deterministic.
func (k GroupKey) less(other GroupKey) bool {
	if k.Parent != other.Parent {
		return k.Parent < other.Parent
	}
	return k.Label < other.Label
}

// KeyFunc extracts the grouping key for one enriched row.
type KeyFunc func(r EnrichedRow) GroupKey

// ThemeKey groups rows by theme.
func ThemeKey(r EnrichedRow) GroupKey { return GroupKey{Label: r.Theme} }

// ThemeEntityKey groups rows by entity within its theme, so the same entity
// label under two themes stays two groups.
func ThemeEntityKey(r EnrichedRow) GroupKey { return GroupKey{Parent: r.Theme, Label: r.Entity} }

// EntityKey groups rows by entity across all themes.
func EntityKey(r EnrichedRow) GroupKey { return GroupKey{Label: r.Entity} }

// AuthorKey groups rows by author. Callers filter out rows without one.
func AuthorKey(r EnrichedRow) GroupKey { return GroupKey{Label: r.Author} }

// GroupAggregate is the rollup for one group. Tier is assigned by AssignTiers
// after aggregation.
type GroupAggregate struct {
	Key              GroupKey `json:"key"`
	ArticleCount     int      `json:"article_count"`
	TotalClicks      int64    `json:"total_clicks"`
	TotalImpressions int64    `json:"total_impressions"`
	AverageClicks    float64  `json:"average_clicks"`
	Tier             Tier     `json:"tier"`
}

// Aggregate folds rows into per-key totals. Every row lands in exactly one
// group, so article counts and click totals across the output equal the
// input's. The result is sorted by total clicks descending with key order
// breaking ties, which both fixes iteration nondeterminism and matches how
// summaries are presented.
func Aggregate(rows []EnrichedRow, key KeyFunc) []GroupAggregate {
	buckets := make(map[GroupKey]*GroupAggregate)
	for _, r := range rows {
		k := key(r)
		agg, ok := buckets[k]
		if !ok {
			agg = &GroupAggregate{Key: k}
			buckets[k] = agg
		}
		agg.ArticleCount++
		agg.TotalClicks += r.Clicks
		agg.TotalImpressions += r.Impressions
	}

	aggs := make([]GroupAggregate, 0, len(buckets))
	for _, agg := range buckets {
		if agg.ArticleCount > 0 {
			agg.AverageClicks = round2(float64(agg.TotalClicks) / float64(agg.ArticleCount))
		}
		aggs = append(aggs, *agg)
	}
	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].TotalClicks != aggs[j].TotalClicks {
			return aggs[i].TotalClicks > aggs[j].TotalClicks
		}
		return aggs[i].Key.less(aggs[j].Key)
	})
	return aggs
}
