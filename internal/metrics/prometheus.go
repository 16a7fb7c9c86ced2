package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReportsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contentpulse_reports_processed_total",
			Help: "Total uploads processed into reports",
		},
	)

	RowsParsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contentpulse_rows_parsed_total",
			Help: "Total CSV rows accepted by the parser",
		},
	)

	RowsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contentpulse_rows_skipped_total",
			Help: "Total CSV rows rejected during parsing",
		},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contentpulse_analysis_duration_seconds",
			Help:    "Aggregation engine run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	TieredGroups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentpulse_tiered_groups_total",
			Help: "Theme groups produced, by assigned tier",
		},
		[]string{"tier"},
	)

	ClassifyBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentpulse_classify_batches_total",
			Help: "Classification batches sent to the LLM",
		},
		[]string{"status"},
	)

	ClassificationCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contentpulse_classification_cache_hits_total",
			Help: "URL classifications served from cache",
		},
	)

	ClassificationCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contentpulse_classification_cache_misses_total",
			Help: "URL classifications not found in cache",
		},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contentpulse_llm_request_duration_seconds",
			Help:    "LLM completion duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentpulse_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	TitlesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contentpulse_titles_fetched_total",
			Help: "Row titles filled by the enrichment fetcher",
		},
	)

	ExportsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentpulse_exports_total",
			Help: "CSV exports served, by dimension",
		},
		[]string{"dimension"},
	)
)

func Init() {
	prometheus.MustRegister(ReportsProcessed)
	prometheus.MustRegister(RowsParsed)
	prometheus.MustRegister(RowsSkipped)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(TieredGroups)
	prometheus.MustRegister(ClassifyBatches)
	prometheus.MustRegister(ClassificationCacheHits)
	prometheus.MustRegister(ClassificationCacheMisses)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(TitlesFetched)
	prometheus.MustRegister(ExportsServed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
