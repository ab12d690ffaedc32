package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	transfersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpdma_transfers_total",
			Help: "Number of chained transfers started",
		},
	)

	transferBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpdma_transfer_bytes_total",
			Help: "Bytes moved by completed transfers",
		},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpdma_events_total",
			Help: "Channel events dispatched from the GPDMA interrupt",
		},
		[]string{"event"},
	)

	verifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpdma_verify_failures_total",
			Help: "Transfers whose destination did not match the source",
		},
	)

	channelsAllocated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpdma_channels_allocated",
			Help: "Channels currently allocated",
		},
	)

	fifoUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gpdma_fifo_used_bytes",
			Help: "Shared FIFO bytes granted to allocated channels",
		},
	)
)

func init() {
	prometheus.MustRegister(transfersTotal)
	prometheus.MustRegister(transferBytesTotal)
	prometheus.MustRegister(eventsTotal)
	prometheus.MustRegister(verifyFailuresTotal)
	prometheus.MustRegister(channelsAllocated)
	prometheus.MustRegister(fifoUsedBytes)
}
