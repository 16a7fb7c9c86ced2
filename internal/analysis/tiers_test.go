package analysis

import "testing"

func agg(label string, count int, clicks int64) GroupAggregate {
	a := GroupAggregate{Key: GroupKey{Label: label}, ArticleCount: count, TotalClicks: clicks}
	if count > 0 {
		a.AverageClicks = round2(float64(clicks) / float64(count))
	}
	return a
}

func tierOf(t *testing.T, aggs []GroupAggregate, label string) Tier {
	t.Helper()
	return findGroup(t, aggs, GroupKey{Label: label}).Tier
}

func TestAssignTiersThresholdIsStrict(t *testing.T) {
	aggs := []GroupAggregate{
		agg("at", 2, 100), // exactly at the threshold, stays in the potential pool
		agg("above", 3, 90),
		agg("below", 1, 80),
	}
	AssignTiers(aggs, TierConfig{ArticleCountThreshold: 2, TopN: 5, RankMetric: RankByAverageClicks})

	if got := tierOf(t, aggs, "at"); got != TierPotential {
		t.Errorf("count == threshold tier = %q, want %q", got, TierPotential)
	}
	if got := tierOf(t, aggs, "above"); got != TierTop {
		t.Errorf("count > threshold tier = %q, want %q", got, TierTop)
	}
	if got := tierOf(t, aggs, "below"); got != TierPotential {
		t.Errorf("count < threshold tier = %q, want %q", got, TierPotential)
	}
}

func TestAssignTiersNoBackfill(t *testing.T) {
	// Every group is small: the top pool is empty and stays empty.
	aggs := []GroupAggregate{
		agg("a", 1, 500),
		agg("b", 2, 400),
		agg("c", 1, 300),
	}
	AssignTiers(aggs, TierConfig{ArticleCountThreshold: 2, TopN: 5, RankMetric: RankByAverageClicks})

	for _, a := range aggs {
		if a.Tier == TierTop {
			t.Errorf("group %q promoted to top with only %d articles", a.Key.Label, a.ArticleCount)
		}
	}
}

func TestAssignTiersCapsEachPool(t *testing.T) {
	var aggs []GroupAggregate
	for i := 0; i < 8; i++ {
		aggs = append(aggs, agg(string(rune('a'+i)), 10, int64(1000-i*10)))
	}
	for i := 0; i < 8; i++ {
		aggs = append(aggs, agg(string(rune('p'+i)), 1, int64(100-i)))
	}
	AssignTiers(aggs, TierConfig{ArticleCountThreshold: 2, TopN: 3, RankMetric: RankByAverageClicks})

	var top, potential int
	for _, a := range aggs {
		switch a.Tier {
		case TierTop:
			top++
		case TierPotential:
			potential++
		}
	}
	if top != 3 {
		t.Errorf("got %d top groups, want 3", top)
	}
	if potential != 3 {
		t.Errorf("got %d potential groups, want 3", potential)
	}
}

func TestAssignTiersRanksByAverageNotTotal(t *testing.T) {
	aggs := []GroupAggregate{
		agg("bulk", 10, 100),    // average 10
		agg("efficient", 3, 90), // average 30
	}
	AssignTiers(aggs, TierConfig{ArticleCountThreshold: 2, TopN: 1, RankMetric: RankByAverageClicks})

	if got := tierOf(t, aggs, "efficient"); got != TierTop {
		t.Errorf("higher-average group tier = %q, want %q", got, TierTop)
	}
	if got := tierOf(t, aggs, "bulk"); got != TierStandard {
		t.Errorf("higher-total group tier = %q, want %q", got, TierStandard)
	}
}

func TestAssignTiersTotalClicksMetric(t *testing.T) {
	aggs := []GroupAggregate{
		agg("bulk", 10, 100),
		agg("efficient", 3, 90),
	}
	AssignTiers(aggs, TierConfig{ArticleCountThreshold: 2, TopN: 1, RankMetric: RankByTotalClicks})

	if got := tierOf(t, aggs, "bulk"); got != TierTop {
		t.Errorf("higher-total group tier = %q, want %q", got, TierTop)
	}
}

func TestAssignTiersTiesBreakByLabel(t *testing.T) {
	aggs := []GroupAggregate{
		agg("zeta", 5, 100),
		agg("alpha", 5, 100),
		agg("mid", 5, 100),
	}
	AssignTiers(aggs, TierConfig{ArticleCountThreshold: 2, TopN: 1, RankMetric: RankByAverageClicks})

	if got := tierOf(t, aggs, "alpha"); got != TierTop {
		t.Errorf("tie winner = %q tier %q, want alpha as %q", "alpha", got, TierTop)
	}
	if got := tierOf(t, aggs, "zeta"); got != TierStandard {
		t.Errorf("tie loser zeta tier = %q, want %q", got, TierStandard)
	}
}
