package store

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerDriver decorates a Driver with a circuit breaker so a struggling
// store fails fast instead of stacking up latent requests. One breaker per
// table: a brown-out on one feature entity should not reject traffic for
// the others.
type BreakerDriver struct {
	inner   Driver
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerDriver wraps a driver for one table.
func NewBreakerDriver(inner Driver, table string, logger *zap.Logger) *BreakerDriver {
	settings := gobreaker.Settings{
		Name:        table,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit state changed",
				zap.String("table", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerDriver{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (d *BreakerDriver) execute(fn func() (any, error)) (any, error) {
	return d.breaker.Execute(fn)
}

func (d *BreakerDriver) GetOneByID(ctx context.Context, id string, conds ...Condition) (Record, error) {
	out, err := d.execute(func() (any, error) {
		return d.inner.GetOneByID(ctx, id, conds...)
	})
	if err != nil {
		return nil, err
	}
	rec, _ := out.(Record)
	return rec, nil
}

func (d *BreakerDriver) GetManyByIDs(ctx context.Context, ids []string, fields []string, conds ...Condition) ([]Record, error) {
	out, err := d.execute(func() (any, error) {
		return d.inner.GetManyByIDs(ctx, ids, fields, conds...)
	})
	if err != nil {
		return nil, err
	}
	recs, _ := out.([]Record)
	return recs, nil
}

func (d *BreakerDriver) DeleteByID(ctx context.Context, id string, conds ...Condition) error {
	_, err := d.execute(func() (any, error) {
		return nil, d.inner.DeleteByID(ctx, id, conds...)
	})
	return err
}

func (d *BreakerDriver) CreateOne(ctx context.Context, data Record) (Record, error) {
	out, err := d.execute(func() (any, error) {
		return d.inner.CreateOne(ctx, data)
	})
	if err != nil {
		return nil, err
	}
	rec, _ := out.(Record)
	return rec, nil
}

func (d *BreakerDriver) UpdateOne(ctx context.Context, id string, data Record, conds ...Condition) (Record, error) {
	out, err := d.execute(func() (any, error) {
		return d.inner.UpdateOne(ctx, id, data, conds...)
	})
	if err != nil {
		return nil, err
	}
	rec, _ := out.(Record)
	return rec, nil
}

func (d *BreakerDriver) QueryIndex(ctx context.Context, q IndexQuery) ([]Record, error) {
	out, err := d.execute(func() (any, error) {
		return d.inner.QueryIndex(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	recs, _ := out.([]Record)
	return recs, nil
}

func (d *BreakerDriver) QueryIndexPage(ctx context.Context, q IndexQuery, cursor string) (Page, error) {
	out, err := d.execute(func() (any, error) {
		return d.inner.QueryIndexPage(ctx, q, cursor)
	})
	if err != nil {
		return Page{}, err
	}
	page, _ := out.(Page)
	return page, nil
}
