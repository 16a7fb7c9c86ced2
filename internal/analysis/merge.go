package analysis

// MergeRows joins metric rows with their classifications by exact URL match.
// Every input row appears exactly once in the output, in input order. Rows
// with no classification, and classification levels left empty by the active
// schema, receive placeholder labels so downstream grouping never sees an
// empty key. Classifications whose URL matches no row are dropped.
//
// Contribution percentages are left at zero here; ApplyContributions fills
// them once theme totals exist.
func MergeRows(rows []MetricRow, classifications map[string]Classification) []EnrichedRow {
	enriched := make([]EnrichedRow, 0, len(rows))
	for _, row := range rows {
		c := classifications[row.URL]
		if c.Theme == "" {
			c.Theme = Uncategorized
		}
		if c.Entity == "" {
			c.Entity = Uncategorized
		}
		if c.SubEntity == "" {
			c.SubEntity = NoSubEntity
		}
		enriched = append(enriched, EnrichedRow{
			MetricRow:      row,
			Classification: c,
		})
	}
	return enriched
}
