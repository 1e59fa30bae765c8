package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics содержит метрики движка продаж.
type SaleMetrics struct {
	// Счётчики исходов ProcessSale/CancelSale.
	salesProcessed prometheus.Counter
	salesFailed    prometheus.Counter
	salesCancelled prometheus.Counter

	// Отдельный счётчик отказов из-за нехватки остатка.
	insufficientStock prometheus.Counter

	// Накопленная выручка в минимальных денежных единицах.
	revenueMinor prometheus.Counter

	// Гистограмма времени проведения продажи.
	processingDuration prometheus.Histogram
}

// NewSaleMetrics создаёт метрики движка продаж в default-регистраторе.
func NewSaleMetrics() *SaleMetrics {
	return newSaleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSaleMetricsWithRegisterer(registerer prometheus.Registerer) *SaleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SaleMetrics{
		salesProcessed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "tienda_sales_processed_total",
			Help: "Total number of sales committed successfully",
		}),
		salesFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "tienda_sales_failed_total",
			Help: "Total number of sale attempts rejected or failed",
		}),
		salesCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "tienda_sales_cancelled_total",
			Help: "Total number of sales cancelled with stock restitution",
		}),
		insufficientStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "tienda_sales_insufficient_stock_total",
			Help: "Total number of sale attempts rejected due to insufficient stock",
		}),
		revenueMinor: registerCounter(registerer, prometheus.CounterOpts{
			Name: "tienda_sales_revenue_minor_total",
			Help: "Accumulated revenue of committed sales in minor currency units",
		}),
		processingDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "tienda_sale_processing_duration_seconds",
			Help:    "Duration of sale processing in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordSaleProcessed увеличивает счётчик проведённых продаж и копит выручку.
func (m *SaleMetrics) RecordSaleProcessed(totalMinor int64) {
	m.salesProcessed.Inc()
	if totalMinor > 0 {
		m.revenueMinor.Add(float64(totalMinor))
	}
}

// RecordSaleFailed увеличивает счётчик неудачных попыток продажи.
func (m *SaleMetrics) RecordSaleFailed() {
	m.salesFailed.Inc()
}

// RecordSaleCancelled увеличивает счётчик отменённых продаж.
func (m *SaleMetrics) RecordSaleCancelled() {
	m.salesCancelled.Inc()
}

// RecordInsufficientStock увеличивает счётчик отказов по остатку.
func (m *SaleMetrics) RecordInsufficientStock() {
	m.insufficientStock.Inc()
}

// RecordProcessingDuration записывает время проведения продажи.
func (m *SaleMetrics) RecordProcessingDuration(duration time.Duration) {
	m.processingDuration.Observe(duration.Seconds())
}
