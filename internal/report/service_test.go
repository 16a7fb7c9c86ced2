package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/internal/storage/models"
)

const sampleCSV = `URL,Clicks,Impressions,Author
https://site.test/pasta-carbonara,120,1500,Dana
https://site.test/pasta-pesto,80,900,Dana
https://site.test/rome-guide,40,700,Sam
`

func sampleLabels() map[string]analysis.Classification {
	return map[string]analysis.Classification{
		"https://site.test/pasta-carbonara": {Theme: "Recipes", Entity: "Pasta", SubEntity: "Carbonara"},
		"https://site.test/pasta-pesto":     {Theme: "Recipes", Entity: "Pasta", SubEntity: "Pesto"},
		"https://site.test/rome-guide":      {Theme: "Travel", Entity: "Italy", SubEntity: "Rome"},
	}
}

type mockStore struct {
	reports   map[string]*models.Report
	insights  map[string]*models.Insight
	insertErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		reports:  make(map[string]*models.Report),
		insights: make(map[string]*models.Insight),
	}
}

func (m *mockStore) InsertReport(report *models.Report) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.reports[report.ID] = report
	return nil
}

func (m *mockStore) GetReport(id string) (*models.Report, error) {
	report, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("failed to get report: %w", sql.ErrNoRows)
	}
	return report, nil
}

func (m *mockStore) ListReports(limit int) ([]models.ReportSummary, error) {
	var summaries []models.ReportSummary
	for _, r := range m.reports {
		if len(summaries) == limit {
			break
		}
		summaries = append(summaries, models.ReportSummary{ID: r.ID, Name: r.Name, RowCount: r.RowCount})
	}
	return summaries, nil
}

func (m *mockStore) DeleteReport(id string) error {
	if _, ok := m.reports[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.reports, id)
	return nil
}

func (m *mockStore) UpsertInsight(insight *models.Insight) error {
	m.insights[insight.ReportID+"/"+insight.Kind] = insight
	return nil
}

func (m *mockStore) GetInsight(reportID, kind string) (*models.Insight, error) {
	insight, ok := m.insights[reportID+"/"+kind]
	if !ok {
		return nil, fmt.Errorf("failed to get insight: %w", sql.ErrNoRows)
	}
	return insight, nil
}

type mockClassifier struct {
	labels map[string]analysis.Classification
	err    error
	calls  int
}

func (m *mockClassifier) ClassifyURLs(ctx context.Context, rows []analysis.MetricRow) (map[string]analysis.Classification, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]analysis.Classification)
	for _, row := range rows {
		if c, ok := m.labels[row.URL]; ok {
			out[row.URL] = c
		}
	}
	return out, nil
}

type mockNarrator struct {
	narrative    string
	narrativeErr error
	draft        string
	draftErr     error
	draftCalls   int
}

func (m *mockNarrator) GenerateNarrative(ctx context.Context, reportName string, res analysis.Result) (string, error) {
	if m.narrativeErr != nil {
		return "", m.narrativeErr
	}
	return m.narrative, nil
}

func (m *mockNarrator) DraftEmail(ctx context.Context, reportName string, res analysis.Result) (string, error) {
	m.draftCalls++
	if m.draftErr != nil {
		return "", m.draftErr
	}
	return m.draft, nil
}

func (m *mockNarrator) Model() string { return "test-model" }

type mockTitles struct {
	calls int
}

func (m *mockTitles) FillTitles(ctx context.Context, rows []analysis.MetricRow) int {
	m.calls++
	filled := 0
	for i := range rows {
		if rows[i].Title == "" {
			rows[i].Title = "Fetched Title"
			filled++
		}
	}
	return filled
}

type mockDrafts struct {
	drafts map[string]string
}

func (m *mockDrafts) GetEmailDraft(ctx context.Context, reportID string) (string, bool, error) {
	draft, ok := m.drafts[reportID]
	return draft, ok, nil
}

func (m *mockDrafts) SetEmailDraft(ctx context.Context, reportID, draft string, ttl time.Duration) error {
	m.drafts[reportID] = draft
	return nil
}

func newTestService(store Store, classifier Classifier, narrator Narrator, drafts DraftCache) *Service {
	return NewService(store, classifier, narrator, nil, drafts, Config{
		Analysis:          analysis.DefaultOptions(),
		SchemaVersion:     3,
		ClassifyByDefault: true,
		DraftTTL:          time.Hour,
	})
}

func boolPtr(v bool) *bool { return &v }

func TestProcessStoresReportAndNarrative(t *testing.T) {
	store := newMockStore()
	classifier := &mockClassifier{labels: sampleLabels()}
	narrator := &mockNarrator{narrative: "A strong month for Recipes."}
	svc := newTestService(store, classifier, narrator, nil)

	view, err := svc.Process(context.Background(), UploadRequest{
		Name: "march-gsc.csv",
		Data: strings.NewReader(sampleCSV),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if view.ID == "" {
		t.Error("expected a report id")
	}
	if !view.Classified {
		t.Error("expected report to be classified")
	}
	if view.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", view.RowCount)
	}
	if view.Result.Totals.Clicks != 240 {
		t.Errorf("total clicks = %d, want 240", view.Result.Totals.Clicks)
	}
	if view.Result.Totals.Impressions != 3100 {
		t.Errorf("total impressions = %d, want 3100", view.Result.Totals.Impressions)
	}
	if view.Narrative != "A strong month for Recipes." {
		t.Errorf("narrative = %q", view.Narrative)
	}

	stored, ok := store.reports[view.ID]
	if !ok {
		t.Fatal("report was not persisted")
	}
	if stored.TotalClicks != 240 {
		t.Errorf("stored total clicks = %d, want 240", stored.TotalClicks)
	}

	var res analysis.Result
	if err := json.Unmarshal([]byte(stored.Result), &res); err != nil {
		t.Fatalf("stored result is not valid JSON: %v", err)
	}
	if len(res.ThemeSummary) != 2 {
		t.Errorf("stored theme summary has %d groups, want 2", len(res.ThemeSummary))
	}

	insight, ok := store.insights[view.ID+"/"+models.InsightKindNarrative]
	if !ok {
		t.Fatal("narrative insight was not persisted")
	}
	if insight.Content != "A strong month for Recipes." {
		t.Errorf("insight content = %q", insight.Content)
	}
	if insight.Model != "test-model" {
		t.Errorf("insight model = %q, want test-model", insight.Model)
	}
}

func TestProcessClassificationFailureAborts(t *testing.T) {
	store := newMockStore()
	classifier := &mockClassifier{err: errors.New("llm unavailable")}
	svc := newTestService(store, classifier, nil, nil)

	_, err := svc.Process(context.Background(), UploadRequest{
		Name: "march-gsc.csv",
		Data: strings.NewReader(sampleCSV),
	})
	if !errors.Is(err, ErrClassificationFailed) {
		t.Fatalf("err = %v, want ErrClassificationFailed", err)
	}
	if len(store.reports) != 0 {
		t.Errorf("%d reports stored after failed classification, want 0", len(store.reports))
	}
}

func TestProcessClassifyOptOut(t *testing.T) {
	store := newMockStore()
	classifier := &mockClassifier{labels: sampleLabels()}
	svc := newTestService(store, classifier, nil, nil)

	view, err := svc.Process(context.Background(), UploadRequest{
		Name:     "march-gsc.csv",
		Data:     strings.NewReader(sampleCSV),
		Classify: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if classifier.calls != 0 {
		t.Errorf("classifier called %d times, want 0", classifier.calls)
	}
	if view.Classified {
		t.Error("report should not be marked classified")
	}
	if got := view.Result.Rows[0].Theme; got != analysis.Uncategorized {
		t.Errorf("theme = %q, want %q", got, analysis.Uncategorized)
	}
}

func TestProcessParseFailureStoresNothing(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil, nil, nil)

	_, err := svc.Process(context.Background(), UploadRequest{
		Name: "broken.csv",
		Data: strings.NewReader("name,value\nfoo,1\n"),
	})
	if !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("err = %v, want ErrInvalidUpload", err)
	}
	if len(store.reports) != 0 {
		t.Errorf("%d reports stored after parse failure, want 0", len(store.reports))
	}
}

func TestProcessNarrativeFailureDegrades(t *testing.T) {
	store := newMockStore()
	narrator := &mockNarrator{narrativeErr: errors.New("llm unavailable")}
	svc := newTestService(store, &mockClassifier{labels: sampleLabels()}, narrator, nil)

	view, err := svc.Process(context.Background(), UploadRequest{
		Name: "march-gsc.csv",
		Data: strings.NewReader(sampleCSV),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if view.Narrative != "" {
		t.Errorf("narrative = %q, want empty", view.Narrative)
	}
	if len(store.reports) != 1 {
		t.Fatalf("%d reports stored, want 1", len(store.reports))
	}
	if len(store.insights) != 0 {
		t.Errorf("%d insights stored, want 0", len(store.insights))
	}
}

func TestProcessOptionOverrides(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil, nil, nil)

	view, err := svc.Process(context.Background(), UploadRequest{
		Name:     "march-gsc.csv",
		Data:     strings.NewReader(sampleCSV),
		Classify: boolPtr(false),
		Options:  analysis.Options{TopN: 1},
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if view.Result.Options.TopN != 1 {
		t.Errorf("TopN = %d, want 1", view.Result.Options.TopN)
	}
	if view.Result.Options.ArticleCountThreshold != 2 {
		t.Errorf("ArticleCountThreshold = %d, want configured default 2", view.Result.Options.ArticleCountThreshold)
	}
}

func TestProcessFillsTitles(t *testing.T) {
	store := newMockStore()
	titles := &mockTitles{}
	svc := NewService(store, nil, nil, titles, nil, Config{
		Analysis:      analysis.DefaultOptions(),
		SchemaVersion: 3,
	})

	view, err := svc.Process(context.Background(), UploadRequest{
		Name: "march-gsc.csv",
		Data: strings.NewReader(sampleCSV),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if titles.calls != 1 {
		t.Errorf("title fetcher called %d times, want 1", titles.calls)
	}
	if got := view.Result.Rows[0].Title; got != "Fetched Title" {
		t.Errorf("title = %q, want %q", got, "Fetched Title")
	}
}

func TestProcessDefaultsEmptyName(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil, nil, nil)

	view, err := svc.Process(context.Background(), UploadRequest{
		Name:     "   ",
		Data:     strings.NewReader(sampleCSV),
		Classify: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !strings.HasPrefix(view.Name, "Report ") {
		t.Errorf("name = %q, want generated fallback", view.Name)
	}
}

func TestGetRoundTrip(t *testing.T) {
	store := newMockStore()
	narrator := &mockNarrator{narrative: "Solid quarter."}
	svc := newTestService(store, &mockClassifier{labels: sampleLabels()}, narrator, nil)

	created, err := svc.Process(context.Background(), UploadRequest{
		Name: "march-gsc.csv",
		Data: strings.NewReader(sampleCSV),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	view, err := svc.Get(created.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if view.Result.Totals.Clicks != 240 {
		t.Errorf("total clicks = %d, want 240", view.Result.Totals.Clicks)
	}
	if view.Narrative != "Solid quarter." {
		t.Errorf("narrative = %q, want loaded insight", view.Narrative)
	}
	if len(view.Result.Rows) != 3 {
		t.Errorf("decoded %d rows, want 3", len(view.Result.Rows))
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(newMockStore(), nil, nil, nil)

	_, err := svc.Get("missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteRemovesReport(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil, nil, nil)

	created, err := svc.Process(context.Background(), UploadRequest{
		Name:     "march-gsc.csv",
		Data:     strings.NewReader(sampleCSV),
		Classify: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if err := svc.Delete(created.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(store.reports) != 0 {
		t.Errorf("%d reports left after delete, want 0", len(store.reports))
	}
	if err := svc.Delete(created.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete err = %v, want sql.ErrNoRows", err)
	}
}

func TestEmailDraftGeneratesOnceThenCaches(t *testing.T) {
	store := newMockStore()
	narrator := &mockNarrator{draft: "Subject: March wins\n\nHi team,"}
	drafts := &mockDrafts{drafts: map[string]string{}}
	svc := newTestService(store, &mockClassifier{labels: sampleLabels()}, narrator, drafts)

	created, err := svc.Process(context.Background(), UploadRequest{
		Name: "march-gsc.csv",
		Data: strings.NewReader(sampleCSV),
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	first, err := svc.EmailDraft(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("EmailDraft returned error: %v", err)
	}
	if first != narrator.draft {
		t.Errorf("draft = %q", first)
	}
	if narrator.draftCalls != 1 {
		t.Fatalf("DraftEmail called %d times, want 1", narrator.draftCalls)
	}
	if _, ok := store.insights[created.ID+"/"+models.InsightKindEmailDraft]; !ok {
		t.Error("draft insight was not persisted")
	}
	if drafts.drafts[created.ID] != narrator.draft {
		t.Error("draft was not cached")
	}

	second, err := svc.EmailDraft(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("second EmailDraft returned error: %v", err)
	}
	if second != first {
		t.Errorf("second draft = %q, want cached copy", second)
	}
	if narrator.draftCalls != 1 {
		t.Errorf("DraftEmail called %d times after cache hit, want 1", narrator.draftCalls)
	}
}

func TestEmailDraftServesStoredInsight(t *testing.T) {
	store := newMockStore()
	store.insights["r1/"+models.InsightKindEmailDraft] = &models.Insight{
		ReportID: "r1",
		Kind:     models.InsightKindEmailDraft,
		Content:  "Stored draft",
	}
	narrator := &mockNarrator{draft: "fresh draft"}
	drafts := &mockDrafts{drafts: map[string]string{}}
	svc := newTestService(store, nil, narrator, drafts)

	got, err := svc.EmailDraft(context.Background(), "r1")
	if err != nil {
		t.Fatalf("EmailDraft returned error: %v", err)
	}
	if got != "Stored draft" {
		t.Errorf("draft = %q, want stored copy", got)
	}
	if narrator.draftCalls != 0 {
		t.Errorf("DraftEmail called %d times, want 0", narrator.draftCalls)
	}
	if drafts.drafts["r1"] != "Stored draft" {
		t.Error("stored draft was not rewarmed into the cache")
	}
}

func TestEmailDraftInsightsDisabled(t *testing.T) {
	svc := newTestService(newMockStore(), nil, nil, nil)

	_, err := svc.EmailDraft(context.Background(), "r1")
	if !errors.Is(err, ErrInsightsDisabled) {
		t.Fatalf("err = %v, want ErrInsightsDisabled", err)
	}
}

func TestEmailDraftReportMissing(t *testing.T) {
	narrator := &mockNarrator{draft: "fresh draft"}
	svc := newTestService(newMockStore(), nil, narrator, nil)

	_, err := svc.EmailDraft(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}
