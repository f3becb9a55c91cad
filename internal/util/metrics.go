package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_reads_total",
		Help: "Total number of catalog reads by operation and satisfying source",
	}, []string{"operation", "source"})

	RemoteQueryRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_query_retries_total",
		Help: "Total number of retried remote store queries",
	})

	RemoteQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_query_latency_seconds",
		Help:    "Latency of remote store queries including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	PageCacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "page_cache_write_failures_total",
		Help: "Total number of failed best-effort page cache writes",
	})

	ProductMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_mutations_total",
		Help: "Total number of admin product mutations by outcome",
	}, []string{"operation", "outcome"})

	LocalStorageCleanupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "local_storage_cleanups_total",
		Help: "Total number of fallback collection truncations after quota errors",
	})

	ImageUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_uploads_total",
		Help: "Total number of product image uploads by outcome",
	}, []string{"outcome"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"operation"})

	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of checkout attempts by outcome",
	}, []string{"outcome"})

	AdminLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_logins_total",
		Help: "Total number of admin login attempts by outcome",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
