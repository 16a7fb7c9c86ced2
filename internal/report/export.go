package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/contentpulse/backend/internal/analysis"
)

// Export dimensions accepted by WriteCSV.
const (
	DimensionTheme          = "theme"
	DimensionEntity         = "entity"
	DimensionGlobalEntity   = "global-entity"
	DimensionAuthor         = "author"
	DimensionDiscoverTheme  = "discover-theme"
	DimensionDiscoverEntity = "discover-entity"
	DimensionRows           = "rows"
)

// WriteCSV renders one dimension of a stored result as CSV. Every number is
// copied straight from the engine output; nothing is recomputed here.
func WriteCSV(w io.Writer, res analysis.Result, dimension string) error {
	cw := csv.NewWriter(w)

	var err error
	switch dimension {
	case DimensionTheme:
		err = writeGroups(cw, "theme", res.ThemeSummary, false)
	case DimensionEntity:
		err = writeGroups(cw, "entity", res.EntitySummary, true)
	case DimensionGlobalEntity:
		err = writeGroups(cw, "entity", res.GlobalEntitySummary, false)
	case DimensionAuthor:
		err = writeGroups(cw, "author", res.AuthorSummary, false)
	case DimensionDiscoverTheme:
		err = writeGroups(cw, "theme", res.Discover.ThemeSummary, false)
	case DimensionDiscoverEntity:
		err = writeGroups(cw, "entity", res.Discover.EntitySummary, true)
	case DimensionRows:
		err = writeRows(cw, res.Rows)
	default:
		return fmt.Errorf("unknown export dimension: %s", dimension)
	}
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func writeGroups(cw *csv.Writer, label string, aggs []analysis.GroupAggregate, withParent bool) error {
	header := []string{label, "tier", "article_count", "total_clicks", "total_impressions", "average_clicks"}
	if withParent {
		header = append([]string{"theme"}, header...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, agg := range aggs {
		record := []string{
			agg.Key.Label,
			string(agg.Tier),
			strconv.Itoa(agg.ArticleCount),
			strconv.FormatInt(agg.TotalClicks, 10),
			strconv.FormatInt(agg.TotalImpressions, 10),
			strconv.FormatFloat(agg.AverageClicks, 'f', 2, 64),
		}
		if withParent {
			record = append([]string{agg.Key.Parent}, record...)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeRows(cw *csv.Writer, rows []analysis.EnrichedRow) error {
	header := []string{
		"url", "title", "author", "clicks", "impressions",
		"theme", "entity", "sub_entity",
		"clicks_contribution_pct", "impressions_contribution_pct",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.URL,
			row.Title,
			row.Author,
			strconv.FormatInt(row.Clicks, 10),
			strconv.FormatInt(row.Impressions, 10),
			row.Theme,
			row.Entity,
			row.SubEntity,
			strconv.FormatFloat(row.ClicksContributionPct, 'f', 2, 64),
			strconv.FormatFloat(row.ImpressionsContributionPct, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}
