// Package enrich fills gaps in uploaded metric rows by fetching the pages
// themselves. Search-console exports frequently omit titles, and titles make
// both classification prompts and reports far more readable.
package enrich

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/internal/metrics"
	"github.com/contentpulse/backend/pkg/logger"
	"github.com/contentpulse/backend/pkg/utils"
)

const fetchConcurrency = 4

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewFetcher(timeoutSec int, userAgent string) *Fetcher {
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		userAgent: userAgent,
	}
}

// FillTitles fetches pages for rows that arrived without a title and fills
// the field in place, returning how many were filled. Enrichment is best
// effort: fetch or parse failures leave the title empty and the row is
// analyzed as-is. Only absolute http(s) URLs are attempted.
func (f *Fetcher) FillTitles(ctx context.Context, rows []analysis.MetricRow) int {
	var pending []int
	for i, row := range rows {
		if row.Title == "" && strings.HasPrefix(row.URL, "http") {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		filled int
	)
	sem := make(chan struct{}, fetchConcurrency)

	for _, i := range pending {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			title, err := f.fetchTitle(ctx, rows[i].URL)
			if err != nil {
				logger.Debug("Title fetch failed", zap.String("url", rows[i].URL), zap.Error(err))
				return
			}
			if title == "" {
				return
			}

			mu.Lock()
			rows[i].Title = title
			filled++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	metrics.TitlesFetched.Add(float64(filled))
	logger.Info("Titles enriched",
		zap.Int("attempted", len(pending)),
		zap.Int("filled", filled),
	)

	return filled
}

func (f *Fetcher) fetchTitle(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	return utils.Truncate(title, 200), nil
}
