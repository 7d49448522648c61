package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legal_rag_ingest_duration_seconds",
			Help:    "Contract ingestion duration in seconds by stage",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legal_rag_ingest_total",
			Help: "Total contracts ingested",
		},
		[]string{"status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legal_rag_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"query_type"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legal_rag_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	RetrievedChunks = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legal_rag_retrieved_chunks",
			Help:    "Number of chunks retrieved per query by strategy",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
		[]string{"strategy"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legal_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legal_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	GraphNodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "legal_rag_graph_nodes_total",
			Help: "Total nodes in the knowledge graph by label",
		},
		[]string{"label"},
	)

	GraphEdgesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "legal_rag_graph_edges_total",
			Help: "Total relationships in the knowledge graph by type",
		},
		[]string{"type"},
	)

	RiskFlagsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legal_rag_risk_flags_total",
			Help: "Total risk flags extracted",
		},
		[]string{"severity"},
	)
)

func Init() {
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(GraphNodesTotal)
	prometheus.MustRegister(GraphEdgesTotal)
	prometheus.MustRegister(RiskFlagsFound)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
