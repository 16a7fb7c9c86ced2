package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/storage/models"
	"github.com/contentpulse/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		skipped_rows INTEGER NOT NULL DEFAULT 0,
		total_clicks INTEGER NOT NULL DEFAULT 0,
		total_impressions INTEGER NOT NULL DEFAULT 0,
		classified INTEGER NOT NULL DEFAULT 0,
		schema_version INTEGER NOT NULL DEFAULT 3,
		options TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);

	CREATE TABLE IF NOT EXISTS insights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		model TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE(report_id, kind),
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_insights_report ON insights(report_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertReport(report *models.Report) error {
	query := `
		INSERT INTO reports (id, name, row_count, skipped_rows, total_clicks, total_impressions,
			classified, schema_version, options, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			result = excluded.result,
			updated_at = excluded.updated_at
	`

	classified := 0
	if report.Classified {
		classified = 1
	}

	_, err := c.db.Exec(
		query,
		report.ID,
		report.Name,
		report.RowCount,
		report.SkippedRows,
		report.TotalClicks,
		report.TotalImpressions,
		classified,
		report.SchemaVersion,
		report.Options,
		report.Result,
		report.CreatedAt.Unix(),
		report.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	logger.Info("Report stored",
		zap.String("report_id", report.ID),
		zap.String("name", report.Name),
		zap.Int("rows", report.RowCount),
	)

	return nil
}

func (c *Client) GetReport(id string) (*models.Report, error) {
	query := `
		SELECT id, name, row_count, skipped_rows, total_clicks, total_impressions,
			classified, schema_version, options, result, created_at, updated_at
		FROM reports WHERE id = ?
	`

	var report models.Report
	var classified int
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&report.ID,
		&report.Name,
		&report.RowCount,
		&report.SkippedRows,
		&report.TotalClicks,
		&report.TotalImpressions,
		&classified,
		&report.SchemaVersion,
		&report.Options,
		&report.Result,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	report.Classified = classified != 0
	report.CreatedAt = time.Unix(createdAt, 0)
	report.UpdatedAt = time.Unix(updatedAt, 0)

	return &report, nil
}

func (c *Client) ListReports(limit int) ([]models.ReportSummary, error) {
	query := `
		SELECT id, name, row_count, total_clicks, total_impressions, classified, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []models.ReportSummary
	for rows.Next() {
		var s models.ReportSummary
		var classified int
		var createdAt int64

		err := rows.Scan(&s.ID, &s.Name, &s.RowCount, &s.TotalClicks, &s.TotalImpressions, &classified, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.Classified = classified != 0
		s.CreatedAt = time.Unix(createdAt, 0)
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (c *Client) DeleteReport(id string) error {
	result, err := c.db.Exec(`DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}

	logger.Info("Report deleted", zap.String("report_id", id))
	return nil
}

func (c *Client) UpsertInsight(insight *models.Insight) error {
	query := `
		INSERT INTO insights (report_id, kind, content, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(report_id, kind) DO UPDATE SET
			content = excluded.content,
			model = excluded.model,
			created_at = excluded.created_at
	`

	_, err := c.db.Exec(
		query,
		insight.ReportID,
		insight.Kind,
		insight.Content,
		insight.Model,
		insight.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert insight: %w", err)
	}

	logger.Debug("Insight stored",
		zap.String("report_id", insight.ReportID),
		zap.String("kind", insight.Kind),
	)

	return nil
}

func (c *Client) GetInsight(reportID, kind string) (*models.Insight, error) {
	query := `
		SELECT id, report_id, kind, content, model, created_at
		FROM insights WHERE report_id = ? AND kind = ?
	`

	var insight models.Insight
	var createdAt int64

	err := c.db.QueryRow(query, reportID, kind).Scan(
		&insight.ID,
		&insight.ReportID,
		&insight.Kind,
		&insight.Content,
		&insight.Model,
		&createdAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get insight: %w", err)
	}

	insight.CreatedAt = time.Unix(createdAt, 0)

	return &insight, nil
}
