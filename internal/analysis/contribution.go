package analysis

// ApplyContributions fills each row's percentage share of its theme group's
// click and impression totals, in place. A group total of zero yields a zero
// percentage rather than a division error, so a theme of zero-click rows
// reports 0 across the board. Percentages are rounded to two decimals; within
// a group they sum to approximately 100 modulo rounding.
func ApplyContributions(rows []EnrichedRow, themeAggs []GroupAggregate) {
	totals := make(map[GroupKey]GroupAggregate, len(themeAggs))
	for _, agg := range themeAggs {
		totals[agg.Key] = agg
	}
	for i := range rows {
		group := totals[GroupKey{Label: rows[i].Theme}]
		rows[i].ClicksContributionPct = share(rows[i].Clicks, group.TotalClicks)
		rows[i].ImpressionsContributionPct = share(rows[i].Impressions, group.TotalImpressions)
	}
}

func share(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}
