package qr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var qrDecodeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_qr_decode_count",
	Help: "Number of QR decode attempts, by outcome.",
}, []string{"outcome"})
