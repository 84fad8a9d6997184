package deniable

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exports GetStats as Prometheus gauges. Only blob sizes and
// fixed geometry are exported; nothing about sessions is observable.
type StatsCollector struct {
	storage *DeniableStorage
	timeout time.Duration

	initialized    *prometheus.Desc
	addressingSize *prometheus.Desc
	dataSize       *prometheus.Desc
	slots          *prometheus.Desc
}

var _ prometheus.Collector = (*StatsCollector)(nil)

// NewStatsCollector creates a collector over storage. Register it with a
// prometheus.Registerer.
func NewStatsCollector(storage *DeniableStorage) *StatsCollector {
	return &StatsCollector{
		storage: storage,
		timeout: 10 * time.Second,
		initialized: prometheus.NewDesc(
			"deniable_initialized",
			"Whether the storage has been initialized (1) or not (0).",
			nil, nil,
		),
		addressingSize: prometheus.NewDesc(
			"deniable_addressing_blob_bytes",
			"Size of the addressing blob in bytes.",
			nil, nil,
		),
		dataSize: prometheus.NewDesc(
			"deniable_data_blob_bytes",
			"Size of the data blob in bytes.",
			nil, nil,
		),
		slots: prometheus.NewDesc(
			"deniable_addressing_slots",
			"Number of slots in the addressing blob.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.initialized
	ch <- c.addressingSize
	ch <- c.dataSize
	ch <- c.slots
}

// Collect implements prometheus.Collector
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.storage.GetStats(ctx)
	if IsLifecycleError(err) {
		ch <- prometheus.MustNewConstMetric(c.initialized, prometheus.GaugeValue, 0)
		return
	}
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.dataSize, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.initialized, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.addressingSize, prometheus.GaugeValue, float64(stats.AddressingBlobSize))
	ch <- prometheus.MustNewConstMetric(c.dataSize, prometheus.GaugeValue, float64(stats.DataBlobSize))
	ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(stats.TotalSlots))
}
