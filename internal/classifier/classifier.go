// Package classifier assigns taxonomy labels to URLs through an LLM, batching
// requests and caching results so repeat uploads of the same URLs stay cheap.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/internal/llm"
	"github.com/contentpulse/backend/internal/metrics"
	"github.com/contentpulse/backend/pkg/logger"
	"github.com/contentpulse/backend/pkg/utils"
)

// Completer is the completion surface the classifier needs from the LLM
// client.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Cache persists classifications across runs. A nil Cache disables caching.
type Cache interface {
	GetClassification(ctx context.Context, url string) (*analysis.Classification, bool, error)
	SetClassification(ctx context.Context, url string, classification analysis.Classification, ttl time.Duration) error
}

type Config struct {
	BatchSize     int
	SchemaVersion int
	CacheTTL      time.Duration
}

type Classifier struct {
	completer Completer
	cache     Cache
	batchSize int
	schema    int
	cacheTTL  time.Duration
}

func New(completer Completer, cache Cache, cfg Config) *Classifier {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	schema := cfg.SchemaVersion
	if schema < 1 || schema > 3 {
		schema = 3
	}
	return &Classifier{
		completer: completer,
		cache:     cache,
		batchSize: batchSize,
		schema:    schema,
		cacheTTL:  cfg.CacheTTL,
	}
}

// ClassifyURLs returns one classification per distinct URL. Cached labels are
// reused; the rest go to the LLM in batches. Any batch failure aborts the
// whole attempt with an error and no partial result, so the merge step is
// never fed a half-classified set.
func (c *Classifier) ClassifyURLs(ctx context.Context, rows []analysis.MetricRow) (map[string]analysis.Classification, error) {
	result := make(map[string]analysis.Classification)
	var pending []analysis.MetricRow

	seen := make(map[string]bool, len(rows))
	cacheHits := 0
	for _, row := range rows {
		if seen[row.URL] {
			continue
		}
		seen[row.URL] = true

		if c.cache != nil {
			cached, ok, err := c.cache.GetClassification(ctx, row.URL)
			if err != nil {
				logger.Warn("Classification cache read failed", zap.String("url", row.URL), zap.Error(err))
			} else if ok {
				result[row.URL] = *cached
				cacheHits++
				metrics.ClassificationCacheHits.Inc()
				continue
			}
			metrics.ClassificationCacheMisses.Inc()
		}
		pending = append(pending, row)
	}

	for start := 0; start < len(pending); start += c.batchSize {
		end := start + c.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		classified, err := c.classifyBatch(ctx, batch)
		if err != nil {
			metrics.ClassifyBatches.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("classification batch %d failed: %w", start/c.batchSize+1, err)
		}
		metrics.ClassifyBatches.WithLabelValues("ok").Inc()

		for url, classification := range classified {
			result[url] = classification
			if c.cache != nil {
				if err := c.cache.SetClassification(ctx, url, classification, c.cacheTTL); err != nil {
					logger.Warn("Classification cache write failed", zap.String("url", url), zap.Error(err))
				}
			}
		}
	}

	logger.Info("URLs classified",
		zap.Int("urls", len(seen)),
		zap.Int("cache_hits", cacheHits),
		zap.Int("llm_classified", len(pending)),
	)

	return result, nil
}

func (c *Classifier) classifyBatch(ctx context.Context, batch []analysis.MetricRow) (map[string]analysis.Classification, error) {
	resp, err := c.completer.Complete(ctx, llm.CompletionRequest{
		Operation:    "classify",
		SystemPrompt: c.systemPrompt(),
		UserPrompt:   c.userPrompt(batch),
		Temperature:  0.1,
		MaxTokens:    2048,
	})
	if err != nil {
		return nil, err
	}

	records, err := parseClassifications(resp.Content)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(batch))
	for _, row := range batch {
		requested[row.URL] = true
	}

	// Plain overwrite: if the model repeats a URL, the last record wins.
	classified := make(map[string]analysis.Classification, len(batch))
	for _, record := range records {
		if !requested[record.URL] {
			continue
		}
		classified[record.URL] = analysis.Classification{
			Theme:     strings.TrimSpace(record.Theme),
			Entity:    strings.TrimSpace(record.Entity),
			SubEntity: strings.TrimSpace(record.SubEntity),
		}
	}

	logger.Debug("Batch classified",
		zap.Int("requested", len(batch)),
		zap.Int("classified", len(classified)),
	)

	return classified, nil
}

func (c *Classifier) systemPrompt() string {
	fields := `- "theme": the broad editorial topic (e.g. "Recipes", "Travel", "Personal Finance")`
	if c.schema >= 2 {
		fields += `
- "entity": the main subject within the theme (e.g. "Pasta", "Italy", "Mortgages")`
	}
	if c.schema >= 3 {
		fields += `
- "sub_entity": the most specific angle, or "N/A" when none applies (e.g. "Carbonara", "Rome", "Refinancing")`
	}

	return fmt.Sprintf(`You are a content taxonomy expert. Classify each URL by its editorial topic using the URL path and title.

For every URL return:
%s

Use consistent labels: the same subject must always get the same spelling. Return ONLY a JSON array, one object per URL:
[{"url": "<url exactly as given>", %s}]`, fields, c.jsonShape())
}

func (c *Classifier) jsonShape() string {
	switch c.schema {
	case 1:
		return `"theme": "..."`
	case 2:
		return `"theme": "...", "entity": "..."`
	default:
		return `"theme": "...", "entity": "...", "sub_entity": "..."`
	}
}

func (c *Classifier) userPrompt(batch []analysis.MetricRow) string {
	var b strings.Builder
	b.WriteString("Classify these URLs:\n\n")
	for i, row := range batch {
		b.WriteString(fmt.Sprintf("%d. %s", i+1, row.URL))
		if row.Title != "" {
			b.WriteString(fmt.Sprintf(" (title: %s)", utils.Truncate(row.Title, 120)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReturn JSON only.")
	return b.String()
}

type classificationRecord struct {
	URL       string `json:"url"`
	Theme     string `json:"theme"`
	Entity    string `json:"entity"`
	SubEntity string `json:"sub_entity"`
}

// parseClassifications extracts the JSON array from a model response,
// tolerating markdown code fences and prose around the payload.
func parseClassifications(content string) ([]classificationRecord, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in classification response")
	}

	var records []classificationRecord
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &records); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return records, nil
}
