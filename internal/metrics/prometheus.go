package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docuchat_documents_ingested_total",
			Help: "Total documents ingested",
		},
	)

	ChunksStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docuchat_chunks_stored_total",
			Help: "Total chunks written to the vector index",
		},
	)

	ChunksDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docuchat_chunks_deleted_total",
			Help: "Total chunks removed from the vector index",
		},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docuchat_ingest_duration_seconds",
			Help:    "Document ingestion duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	AnswerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docuchat_answer_duration_seconds",
			Help:    "Question answering duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuchat_answers_total",
			Help: "Total questions answered",
		},
		[]string{"status"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docuchat_retrieval_results_count",
			Help:    "Number of chunks clearing the similarity threshold per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuchat_llm_tokens_used_total",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuchat_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docuchat_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksStored)
	prometheus.MustRegister(ChunksDeleted)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(AnswerDuration)
	prometheus.MustRegister(AnswersTotal)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
