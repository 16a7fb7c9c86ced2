package insights

import (
	"fmt"
	"strings"

	"github.com/contentpulse/backend/internal/analysis"
)

// contextGroupLimit caps how many groups per dimension are rendered into
// prompt context. Reports can hold hundreds of entities; the narrative only
// ever discusses the head of each list.
const contextGroupLimit = 10

// RenderContext flattens an engine result into the plain-text block every
// prompt (narrative, email draft, assistant) receives. Numbers are quoted
// exactly as the engine produced them so generated text can be checked
// against the report.
func RenderContext(res analysis.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset: %d articles, %d clicks, %d impressions\n",
		res.Totals.Rows, res.Totals.Clicks, res.Totals.Impressions)

	writeDimension(&b, "Themes", res.ThemeSummary)
	writeDimension(&b, "Entities", res.EntitySummary)
	writeDimension(&b, "Authors", res.AuthorSummary)

	if len(res.Discover.Rows) > 0 {
		fmt.Fprintf(&b, "\nDiscover view (top %d articles by clicks):\n", len(res.Discover.Rows))
		writeDimension(&b, "Discover themes", res.Discover.ThemeSummary)
	}

	return b.String()
}

func writeDimension(b *strings.Builder, name string, aggs []analysis.GroupAggregate) {
	if len(aggs) == 0 {
		return
	}

	fmt.Fprintf(b, "\n%s:\n", name)
	for i, agg := range aggs {
		if i >= contextGroupLimit {
			fmt.Fprintf(b, "- and %d more\n", len(aggs)-contextGroupLimit)
			break
		}
		label := agg.Key.Label
		if agg.Key.Parent != "" {
			label = agg.Key.Parent + " / " + agg.Key.Label
		}
		fmt.Fprintf(b, "- %s [%s]: %d articles, %d clicks, %d impressions, %.2f avg clicks\n",
			label, agg.Tier, agg.ArticleCount, agg.TotalClicks, agg.TotalImpressions, agg.AverageClicks)
	}
}
