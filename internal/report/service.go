// Package report orchestrates the upload pipeline: parse the CSV, enrich and
// classify the rows, run the analysis engine, generate the narrative summary,
// and persist the outcome. It also serves stored reports, exports, and the
// on-demand email draft.
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/internal/ingestion"
	"github.com/contentpulse/backend/internal/metrics"
	"github.com/contentpulse/backend/internal/storage/models"
	"github.com/contentpulse/backend/pkg/logger"
)

var (
	// ErrInvalidUpload marks uploads the parser rejected outright, as opposed
	// to pipeline failures on a readable file.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrClassificationFailed marks uploads abandoned because the classifier
	// could not label the full row set.
	ErrClassificationFailed = errors.New("classification failed")

	// ErrInsightsDisabled is returned when generated content is requested but
	// the service was built without an LLM generator.
	ErrInsightsDisabled = errors.New("insights disabled")
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Store is the persistence surface the service needs. *sqlite.Client
// implements it. Not-found conditions surface as sql.ErrNoRows, wrapped or
// not.
type Store interface {
	InsertReport(report *models.Report) error
	GetReport(id string) (*models.Report, error)
	ListReports(limit int) ([]models.ReportSummary, error)
	DeleteReport(id string) error
	UpsertInsight(insight *models.Insight) error
	GetInsight(reportID, kind string) (*models.Insight, error)
}

// Classifier assigns taxonomy labels to the uploaded rows.
type Classifier interface {
	ClassifyURLs(ctx context.Context, rows []analysis.MetricRow) (map[string]analysis.Classification, error)
}

// Narrator turns an analysis result into prose.
type Narrator interface {
	GenerateNarrative(ctx context.Context, reportName string, res analysis.Result) (string, error)
	DraftEmail(ctx context.Context, reportName string, res analysis.Result) (string, error)
	Model() string
}

// TitleFetcher fills missing row titles from the live pages.
type TitleFetcher interface {
	FillTitles(ctx context.Context, rows []analysis.MetricRow) int
}

// DraftCache keeps generated email drafts warm between requests.
type DraftCache interface {
	GetEmailDraft(ctx context.Context, reportID string) (string, bool, error)
	SetEmailDraft(ctx context.Context, reportID, draft string, ttl time.Duration) error
}

type Config struct {
	Analysis          analysis.Options
	SchemaVersion     int
	ClassifyByDefault bool
	DraftTTL          time.Duration
}

// Service runs the upload pipeline and serves stored reports. The classifier,
// narrator, title fetcher and draft cache are optional; a nil field disables
// that stage.
type Service struct {
	store      Store
	classifier Classifier
	narrator   Narrator
	titles     TitleFetcher
	drafts     DraftCache
	cfg        Config
}

func NewService(store Store, classifier Classifier, narrator Narrator, titles TitleFetcher, drafts DraftCache, cfg Config) *Service {
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = 24 * time.Hour
	}
	return &Service{
		store:      store,
		classifier: classifier,
		narrator:   narrator,
		titles:     titles,
		drafts:     drafts,
		cfg:        cfg,
	}
}

// UploadRequest describes one CSV upload. A nil Classify defers to the
// service default; zero Options fields fall back to the configured defaults.
type UploadRequest struct {
	Name     string
	Data     io.Reader
	Classify *bool
	Options  analysis.Options
}

// View is a fully hydrated report: the stored record with its result decoded
// and the narrative attached when one exists.
type View struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	RowCount      int             `json:"row_count"`
	SkippedRows   int             `json:"skipped_rows"`
	Classified    bool            `json:"classified"`
	SchemaVersion int             `json:"schema_version"`
	Result        analysis.Result `json:"result"`
	Narrative     string          `json:"narrative,omitempty"`
	LatencyMS     int             `json:"latency_ms,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Process runs the full pipeline over one upload and stores the outcome.
// Classification failures abort the upload so a report is never built from a
// partially classified row set; narrative failures only degrade the report.
func (s *Service) Process(ctx context.Context, req UploadRequest) (*View, error) {
	startTime := time.Now()
	reportID := uuid.New().String()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Report " + startTime.Format("2006-01-02 15:04")
	}

	logger.Info("Processing upload",
		zap.String("report_id", reportID),
		zap.String("name", name),
	)

	rows, stats, err := ingestion.ParseMetrics(req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	metrics.RowsParsed.Add(float64(stats.Accepted))
	metrics.RowsSkipped.Add(float64(stats.Skipped))
	if stats.Skipped > 0 {
		logger.Warn("Rows skipped during parsing",
			zap.String("report_id", reportID),
			zap.Int("skipped", stats.Skipped),
			zap.Any("reasons", stats.Reasons),
		)
	}

	if s.titles != nil {
		s.titles.FillTitles(ctx, rows)
	}

	classify := s.cfg.ClassifyByDefault
	if req.Classify != nil {
		classify = *req.Classify
	}

	var classifications map[string]analysis.Classification
	classified := false
	if classify && s.classifier != nil {
		classifications, err = s.classifier.ClassifyURLs(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
		}
		classified = true
	}

	opts := s.options(req.Options)

	analysisStart := time.Now()
	res := analysis.Run(rows, classifications, opts)
	metrics.AnalysisDuration.Observe(time.Since(analysisStart).Seconds())
	for _, agg := range res.ThemeSummary {
		metrics.TieredGroups.WithLabelValues(string(agg.Tier)).Inc()
	}

	if violations := analysis.ValidateResult(res); len(violations) > 0 {
		details := make([]string, len(violations))
		for i, v := range violations {
			details[i] = v.String()
		}
		logger.Error("Result failed consistency checks",
			zap.String("report_id", reportID),
			zap.Strings("violations", details),
		)
	}

	narrative := ""
	if s.narrator != nil {
		narrative, err = s.narrator.GenerateNarrative(ctx, name, res)
		if err != nil {
			logger.Warn("Narrative generation failed",
				zap.String("report_id", reportID),
				zap.Error(err),
			)
			narrative = ""
		}
	}

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	optionsJSON, err := json.Marshal(res.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}

	now := time.Now()
	record := &models.Report{
		ID:               reportID,
		Name:             name,
		RowCount:         stats.Accepted,
		SkippedRows:      stats.Skipped,
		TotalClicks:      res.Totals.Clicks,
		TotalImpressions: res.Totals.Impressions,
		Classified:       classified,
		SchemaVersion:    s.cfg.SchemaVersion,
		Options:          string(optionsJSON),
		Result:           string(resultJSON),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertReport(record); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	if narrative != "" {
		insight := &models.Insight{
			ReportID:  reportID,
			Kind:      models.InsightKindNarrative,
			Content:   narrative,
			Model:     s.narrator.Model(),
			CreatedAt: now,
		}
		if err := s.store.UpsertInsight(insight); err != nil {
			logger.Warn("Failed to store narrative",
				zap.String("report_id", reportID),
				zap.Error(err),
			)
		}
	}

	latency := int(time.Since(startTime).Milliseconds())
	metrics.ReportsProcessed.Inc()

	logger.Info("Report processed",
		zap.String("report_id", reportID),
		zap.Int("rows", stats.Accepted),
		zap.Int("skipped", stats.Skipped),
		zap.Bool("classified", classified),
		zap.Int("latency_ms", latency),
	)

	return &View{
		ID:            reportID,
		Name:          name,
		RowCount:      stats.Accepted,
		SkippedRows:   stats.Skipped,
		Classified:    classified,
		SchemaVersion: s.cfg.SchemaVersion,
		Result:        res,
		Narrative:     narrative,
		LatencyMS:     latency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// options layers per-request overrides over the configured defaults.
func (s *Service) options(req analysis.Options) analysis.Options {
	opts := s.cfg.Analysis
	if req.ArticleCountThreshold > 0 {
		opts.ArticleCountThreshold = req.ArticleCountThreshold
	}
	if req.TopN > 0 {
		opts.TopN = req.TopN
	}
	if req.DiscoverLimit > 0 {
		opts.DiscoverLimit = req.DiscoverLimit
	}
	return opts
}

// Get loads one stored report and decodes its result.
func (s *Service) Get(id string) (*View, error) {
	record, err := s.store.GetReport(id)
	if err != nil {
		return nil, err
	}

	var res analysis.Result
	if err := json.Unmarshal([]byte(record.Result), &res); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}

	view := &View{
		ID:            record.ID,
		Name:          record.Name,
		RowCount:      record.RowCount,
		SkippedRows:   record.SkippedRows,
		Classified:    record.Classified,
		SchemaVersion: record.SchemaVersion,
		Result:        res,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}

	if insight, err := s.store.GetInsight(id, models.InsightKindNarrative); err == nil {
		view.Narrative = insight.Content
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Warn("Failed to load narrative", zap.String("report_id", id), zap.Error(err))
	}

	return view, nil
}

// List returns recent report summaries, newest first.
func (s *Service) List(limit int) ([]models.ReportSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.ListReports(limit)
}

// Delete removes a stored report and its insights.
func (s *Service) Delete(id string) error {
	return s.store.DeleteReport(id)
}

// EmailDraft returns the stakeholder email draft for a report, generating and
// storing it on first request. The cache is consulted first, then the insight
// table, then the LLM.
func (s *Service) EmailDraft(ctx context.Context, id string) (string, error) {
	if s.narrator == nil {
		return "", ErrInsightsDisabled
	}

	if s.drafts != nil {
		draft, ok, err := s.drafts.GetEmailDraft(ctx, id)
		if err != nil {
			logger.Warn("Draft cache read failed", zap.String("report_id", id), zap.Error(err))
		} else if ok {
			return draft, nil
		}
	}

	if insight, err := s.store.GetInsight(id, models.InsightKindEmailDraft); err == nil {
		s.cacheDraft(ctx, id, insight.Content)
		return insight.Content, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Warn("Failed to load stored draft", zap.String("report_id", id), zap.Error(err))
	}

	view, err := s.Get(id)
	if err != nil {
		return "", err
	}

	draft, err := s.narrator.DraftEmail(ctx, view.Name, view.Result)
	if err != nil {
		return "", fmt.Errorf("failed to draft email: %w", err)
	}

	insight := &models.Insight{
		ReportID:  id,
		Kind:      models.InsightKindEmailDraft,
		Content:   draft,
		Model:     s.narrator.Model(),
		CreatedAt: time.Now(),
	}
	if err := s.store.UpsertInsight(insight); err != nil {
		logger.Warn("Failed to store draft", zap.String("report_id", id), zap.Error(err))
	}
	s.cacheDraft(ctx, id, draft)

	return draft, nil
}

func (s *Service) cacheDraft(ctx context.Context, id, draft string) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.SetEmailDraft(ctx, id, draft, s.cfg.DraftTTL); err != nil {
		logger.Warn("Draft cache write failed", zap.String("report_id", id), zap.Error(err))
	}
}
