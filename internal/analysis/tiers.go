package analysis

import "sort"

// TierConfig controls tier assignment for one dimension.
type TierConfig struct {
	ArticleCountThreshold int
	TopN                  int
	RankMetric            RankMetric
}

// AssignTiers annotates each aggregate with its performance tier, in place,
// and returns the slice. Groups are partitioned by article count: those with
// count strictly above the threshold compete for the top tier, the remainder
// compete for the potential tier. Each pool is ranked by the configured
// metric descending and its first TopN members win the pool's tier; everything
// else is standard.
//
// The pools never backfill each other. A dimension with few multi-article
// groups simply awards fewer top tiers, and a small potential pool is
// exhausted rather than topped up, so every tier label keeps one meaning.
func AssignTiers(aggs []GroupAggregate, cfg TierConfig) []GroupAggregate {
	var topPool, potentialPool []int
	for i, agg := range aggs {
		aggs[i].Tier = TierStandard
		if agg.ArticleCount > cfg.ArticleCountThreshold {
			topPool = append(topPool, i)
		} else {
			potentialPool = append(potentialPool, i)
		}
	}

	rankDesc(aggs, topPool, cfg.RankMetric)
	rankDesc(aggs, potentialPool, cfg.RankMetric)

	for n, i := range topPool {
		if n >= cfg.TopN {
			break
		}
		aggs[i].Tier = TierTop
	}
	for n, i := range potentialPool {
		if n >= cfg.TopN {
			break
		}
		aggs[i].Tier = TierPotential
	}
	return aggs
}

// rankDesc orders the index pool by the rank metric descending, key order
// ascending on ties.
func rankDesc(aggs []GroupAggregate, pool []int, metric RankMetric) {
	sort.Slice(pool, func(a, b int) bool {
		ra, rb := rankValue(aggs[pool[a]], metric), rankValue(aggs[pool[b]], metric)
		if ra != rb {
			return ra > rb
		}
		return aggs[pool[a]].Key.less(aggs[pool[b]].Key)
	})
}

func rankValue(agg GroupAggregate, metric RankMetric) float64 {
	if metric == RankByTotalClicks {
		return float64(agg.TotalClicks)
	}
	return agg.AverageClicks
}
