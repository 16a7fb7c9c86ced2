package models

import "time"

// Report is one processed upload: the source CSV's vital statistics plus the
// serialized engine output. Result holds the full analysis.Result as JSON;
// list views use ReportSummary to avoid dragging the blob around.
type Report struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	RowCount         int       `json:"row_count"`
	SkippedRows      int       `json:"skipped_rows"`
	TotalClicks      int64     `json:"total_clicks"`
	TotalImpressions int64     `json:"total_impressions"`
	Classified       bool      `json:"classified"`
	SchemaVersion    int       `json:"schema_version"`
	Options          string    `json:"options"`
	Result           string    `json:"result"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ReportSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	RowCount         int       `json:"row_count"`
	TotalClicks      int64     `json:"total_clicks"`
	TotalImpressions int64     `json:"total_impressions"`
	Classified       bool      `json:"classified"`
	CreatedAt        time.Time `json:"created_at"`
}

// Insight kinds stored per report.
const (
	InsightKindNarrative  = "narrative"
	InsightKindEmailDraft = "email_draft"
)

// Insight is one generated narrative artifact for a report. A report holds at
// most one insight per kind; regeneration overwrites.
type Insight struct {
	ID        int64     `json:"id"`
	ReportID  string    `json:"report_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
