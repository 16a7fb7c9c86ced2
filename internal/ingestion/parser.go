// Package ingestion parses search-console CSV exports into validated metric
// rows. Rows that fail validation are skipped and counted, never passed on:
// downstream aggregation assumes non-empty URLs and non-negative counters.
package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/pkg/logger"
)

// Header aliases seen across Search Console, Looker Studio and newsroom CMS
// exports. Matching is case-insensitive after collapsing separators.
var columnAliases = map[string][]string{
	"url":         {"url", "page", "address", "page url", "landing page"},
	"title":       {"title", "page title", "headline"},
	"author":      {"author", "author name", "byline"},
	"clicks":      {"clicks", "url clicks", "total clicks"},
	"impressions": {"impressions", "url impressions", "total impressions"},
}

// Stats summarizes one parse: how many data records were seen, how many
// became rows, and why the rest were dropped.
type Stats struct {
	Records  int            `json:"records"`
	Accepted int            `json:"accepted"`
	Skipped  int            `json:"skipped"`
	Reasons  map[string]int `json:"reasons,omitempty"`
}

func (s *Stats) skip(reason string) {
	s.Skipped++
	if s.Reasons == nil {
		s.Reasons = map[string]int{}
	}
	s.Reasons[reason]++
}

// ParseMetrics reads a CSV export and returns its validated metric rows in
// file order. The first record is the header; url, clicks and impressions
// columns are required, title and author optional. A malformed data record is
// skipped and counted in Stats, while a missing required column fails the
// whole parse.
func ParseMetrics(r io.Reader) ([]analysis.MetricRow, Stats, error) {
	var stats Stats

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, stats, err
	}

	var rows []analysis.MetricRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Records++
			stats.skip("malformed record")
			continue
		}
		stats.Records++

		url := strings.TrimSpace(field(record, columns["url"]))
		if url == "" {
			stats.skip("missing url")
			continue
		}

		clicks, err := parseCount(field(record, columns["clicks"]))
		if err != nil {
			stats.skip("bad clicks")
			logger.Debug("Skipping row with unparseable clicks",
				zap.String("url", url),
				zap.Error(err),
			)
			continue
		}
		impressions, err := parseCount(field(record, columns["impressions"]))
		if err != nil {
			stats.skip("bad impressions")
			logger.Debug("Skipping row with unparseable impressions",
				zap.String("url", url),
				zap.Error(err),
			)
			continue
		}

		rows = append(rows, analysis.MetricRow{
			URL:         url,
			Title:       strings.TrimSpace(field(record, columns["title"])),
			Author:      strings.TrimSpace(field(record, columns["author"])),
			Clicks:      clicks,
			Impressions: impressions,
		})
		stats.Accepted++
	}

	return rows, stats, nil
}

// mapColumns resolves header cells to column indexes via the alias table.
// Returns an error naming the first required column that is absent.
func mapColumns(header []string) (map[string]int, error) {
	columns := map[string]int{"title": -1, "author": -1}
	for i, cell := range header {
		name := normalizeHeader(cell)
		for column, aliases := range columnAliases {
			for _, alias := range aliases {
				if name == alias {
					if _, taken := columns[column]; !taken || columns[column] == -1 {
						columns[column] = i
					}
				}
			}
		}
	}

	for _, required := range []string{"url", "clicks", "impressions"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csv is missing a %s column (header: %s)", required, strings.Join(header, ", "))
		}
	}
	return columns, nil
}

// normalizeHeader lowercases a header cell and collapses underscore and dash
// separators to spaces. The leading BOM that spreadsheet tools prepend is
// stripped so the first column still matches.
func normalizeHeader(cell string) string {
	cell = strings.TrimPrefix(cell, "\uFEFF")
	cell = strings.ToLower(strings.TrimSpace(cell))
	cell = strings.ReplaceAll(cell, "_", " ")
	cell = strings.ReplaceAll(cell, "-", " ")
	return strings.Join(strings.Fields(cell), " ")
}

func field(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return record[index]
}

// parseCount reads a non-negative counter, tolerating thousands separators
// and the decimal renderings some exports use for whole numbers. An empty
// cell counts as zero.
func parseCount(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, nil
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative value: %q", raw)
	}
	return int64(math.Round(value)), nil
}
