package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var blobDownloadCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_blob_downloads",
	Help: "Number of blob downloads, by outcome.",
}, []string{"status"})

var blobDownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "sentinel_blob_download_duration_seconds",
	Help:    "Time to fully download a blob.",
	Buckets: prometheus.ExponentialBucketsRange(0.01, 20, 12),
})
