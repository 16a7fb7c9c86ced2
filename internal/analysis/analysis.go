// Package analysis implements the aggregation-and-tiering engine: it merges
// raw per-URL metric rows with their taxonomy classifications and produces
// tiered performance summaries across every reporting dimension (theme,
// theme+entity, global entity, author, and the Discover top-100 subset).
//
// The engine is pure computation: no I/O, no goroutines, no shared state.
// Repeated runs over the same input yield the same output.
package analysis

import "math"

// Tier is the performance classification assigned to one aggregate group.
type Tier string

const (
	TierTop       Tier = "top"
	TierPotential Tier = "potential"
	TierStandard  Tier = "standard"
)

// RankMetric selects the ordering used when picking top/potential groups.
type RankMetric string

const (
	// RankByAverageClicks ranks groups by per-article efficiency. Default.
	RankByAverageClicks RankMetric = "average_clicks"
	// RankByTotalClicks ranks groups by absolute volume. Used for the
	// Discover subset, where a fixed-size sample makes totals the fairer
	// comparison.
	RankByTotalClicks RankMetric = "total_clicks"
)

// Placeholder labels substituted when the classifier returned nothing for a URL.
const (
	Uncategorized = "Uncategorized"
	NoSubEntity   = "N/A"
)

// MetricRow is one validated input record. Rows reach the engine already
// validated: URL non-empty, counters non-negative.
type MetricRow struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Clicks      int64  `json:"clicks"`
	Impressions int64  `json:"impressions"`
}

// Classification is the taxonomy assigned to one URL by the external
// classifier. Depending on schema version one to three levels are populated;
// empty levels are normalized to placeholders during merging.
type Classification struct {
	Theme     string `json:"theme"`
	Entity    string `json:"entity"`
	SubEntity string `json:"sub_entity"`
}

// EnrichedRow is a MetricRow joined with its Classification plus the row's
// percentage contribution to its theme group totals.
type EnrichedRow struct {
	MetricRow
	Classification
	ClicksContributionPct      float64 `json:"clicks_contribution_pct"`
	ImpressionsContributionPct float64 `json:"impressions_contribution_pct"`
}

// Totals summarizes the whole input batch.
type Totals struct {
	Rows        int   `json:"rows"`
	Clicks      int64 `json:"clicks"`
	Impressions int64 `json:"impressions"`
}

// Options are the engine tunables. Zero values fall back to defaults.
type Options struct {
	// ArticleCountThreshold splits groups into the top pool
	// (count > threshold) and the potential pool (count <= threshold).
	ArticleCountThreshold int `json:"article_count_threshold"`
	// TopN caps how many groups receive the top tier and, independently,
	// how many receive the potential tier.
	TopN int `json:"top_n"`
	// DiscoverLimit is the size of the top-clicks subset analyzed
	// independently (the Discover view).
	DiscoverLimit int `json:"discover_limit"`
}

// DefaultOptions returns the engine defaults: threshold 2, top 5, Discover 100.
func DefaultOptions() Options {
	return Options{
		ArticleCountThreshold: 2,
		TopN:                  5,
		DiscoverLimit:         100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ArticleCountThreshold <= 0 {
		o.ArticleCountThreshold = d.ArticleCountThreshold
	}
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.DiscoverLimit <= 0 {
		o.DiscoverLimit = d.DiscoverLimit
	}
	return o
}

// Result is the complete engine output for one input batch.
type Result struct {
	Rows                []EnrichedRow    `json:"rows"`
	ThemeSummary        []GroupAggregate `json:"theme_summary"`
	EntitySummary       []GroupAggregate `json:"entity_summary"`
	GlobalEntitySummary []GroupAggregate `json:"global_entity_summary"`
	AuthorSummary       []GroupAggregate `json:"author_summary"`
	Discover            DiscoverAnalysis `json:"discover"`
	Totals              Totals           `json:"totals"`
	Options             Options          `json:"options"`
}

// Run executes the full pipeline: merge, theme-level contribution, grouped
// aggregation and tiering per dimension, and the Discover subset analysis.
// An empty row set yields a Result with empty summaries and no error.
func Run(rows []MetricRow, classifications map[string]Classification, opts Options) Result {
	opts = opts.withDefaults()

	enriched := MergeRows(rows, classifications)

	themeAggs := Aggregate(enriched, ThemeKey)
	ApplyContributions(enriched, themeAggs)

	tierCfg := TierConfig{
		ArticleCountThreshold: opts.ArticleCountThreshold,
		TopN:                  opts.TopN,
		RankMetric:            RankByAverageClicks,
	}

	entityAggs := Aggregate(enriched, ThemeEntityKey)
	globalEntityAggs := Aggregate(enriched, EntityKey)

	var attributed []EnrichedRow
	for _, r := range enriched {
		if r.Author != "" {
			attributed = append(attributed, r)
		}
	}
	authorAggs := Aggregate(attributed, AuthorKey)

	AssignTiers(themeAggs, tierCfg)
	AssignTiers(entityAggs, tierCfg)
	AssignTiers(globalEntityAggs, tierCfg)
	AssignTiers(authorAggs, tierCfg)

	// Discover ranks by absolute clicks within the fixed-size sample.
	discoverCfg := tierCfg
	discoverCfg.RankMetric = RankByTotalClicks
	discover := AnalyzeDiscover(enriched, opts.DiscoverLimit, discoverCfg)

	totals := Totals{Rows: len(rows)}
	for _, r := range rows {
		totals.Clicks += r.Clicks
		totals.Impressions += r.Impressions
	}

	return Result{
		Rows:                enriched,
		ThemeSummary:        themeAggs,
		EntitySummary:       entityAggs,
		GlobalEntitySummary: globalEntityAggs,
		AuthorSummary:       authorAggs,
		Discover:            discover,
		Totals:              totals,
		Options:             opts,
	}
}

// round2 rounds half-up to two decimal places. Inputs are never negative, so
// half-away-from-zero and half-up coincide.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
