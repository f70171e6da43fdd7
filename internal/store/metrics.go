package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics holds the driver-level collectors. Built once per process and
// shared by every instrumented driver so collectors register exactly once.
type StoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics registers the driver collectors with the given registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Count of document-store operations by table, operation and status.",
		}, []string{"table", "operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Latency of document-store operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "operation"}),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

// InstrumentedDriver decorates a Driver with latency and outcome metrics.
// It is transparent: errors and results pass through unchanged.
type InstrumentedDriver struct {
	inner   Driver
	table   string
	metrics *StoreMetrics
}

// NewInstrumentedDriver wraps a driver for one table.
func NewInstrumentedDriver(inner Driver, table string, metrics *StoreMetrics) *InstrumentedDriver {
	return &InstrumentedDriver{inner: inner, table: table, metrics: metrics}
}

func (d *InstrumentedDriver) observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.operations.WithLabelValues(d.table, operation, status).Inc()
	d.metrics.duration.WithLabelValues(d.table, operation).Observe(time.Since(start).Seconds())
}

func (d *InstrumentedDriver) GetOneByID(ctx context.Context, id string, conds ...Condition) (Record, error) {
	start := time.Now()
	rec, err := d.inner.GetOneByID(ctx, id, conds...)
	d.observe("get_one", start, err)
	return rec, err
}

func (d *InstrumentedDriver) GetManyByIDs(ctx context.Context, ids []string, fields []string, conds ...Condition) ([]Record, error) {
	start := time.Now()
	recs, err := d.inner.GetManyByIDs(ctx, ids, fields, conds...)
	d.observe("get_many", start, err)
	return recs, err
}

func (d *InstrumentedDriver) DeleteByID(ctx context.Context, id string, conds ...Condition) error {
	start := time.Now()
	err := d.inner.DeleteByID(ctx, id, conds...)
	d.observe("delete", start, err)
	return err
}

func (d *InstrumentedDriver) CreateOne(ctx context.Context, data Record) (Record, error) {
	start := time.Now()
	rec, err := d.inner.CreateOne(ctx, data)
	d.observe("create", start, err)
	return rec, err
}

func (d *InstrumentedDriver) UpdateOne(ctx context.Context, id string, data Record, conds ...Condition) (Record, error) {
	start := time.Now()
	rec, err := d.inner.UpdateOne(ctx, id, data, conds...)
	d.observe("update", start, err)
	return rec, err
}

func (d *InstrumentedDriver) QueryIndex(ctx context.Context, q IndexQuery) ([]Record, error) {
	start := time.Now()
	recs, err := d.inner.QueryIndex(ctx, q)
	d.observe("query", start, err)
	return recs, err
}

func (d *InstrumentedDriver) QueryIndexPage(ctx context.Context, q IndexQuery, cursor string) (Page, error) {
	start := time.Now()
	page, err := d.inner.QueryIndexPage(ctx, q, cursor)
	d.observe("query_page", start, err)
	return page, err
}
