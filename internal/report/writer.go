package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/cache"
	"salereport/backend/internal/domain"
)

// PriceLookup returns the unit price of a product, or 0 when it is unknown.
type PriceLookup func(productID string) float64

// WriteError reports a cache batch that was not applied. The payments it
// names are already durable; only the cache lags behind.
type WriteError struct {
	PaymentIDs []string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cache write for payments [%s]: %v", strings.Join(e.PaymentIDs, ","), e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer mirrors payments into the cache lists and aggregate hashes.
type Writer struct {
	cache cache.Store
}

func NewWriter(c cache.Store) *Writer {
	return &Writer{cache: c}
}

func (w *Writer) RecordPayment(ctx context.Context, payment domain.Payment, lookup PriceLookup) error {
	return w.RecordPayments(ctx, []domain.Payment{payment}, lookup)
}

// RecordPayments writes every payment in one atomic batch.
func (w *Writer) RecordPayments(ctx context.Context, payments []domain.Payment, lookup PriceLookup) error {
	if len(payments) == 0 {
		return nil
	}
	if lookup == nil {
		lookup = func(string) float64 { return 0 }
	}

	ids := make([]string, 0, len(payments))
	encoded := make([][]byte, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
		raw, err := json.Marshal(domain.NewCacheRecord(p))
		if err != nil {
			return &WriteError{PaymentIDs: ids, Err: fmt.Errorf("encode payment %s: %w", p.ID, err)}
		}
		encoded = append(encoded, raw)
	}

	err := w.cache.Exec(ctx, func(b cache.Batch) {
		for i, p := range payments {
			day := bizday.Key(p.CreatedAt)
			b.Append(cache.SaleOrderKey(p.Shop), encoded[i])
			b.Append(cache.DailySaleOrderKey(p.Shop, day), encoded[i])

			for _, pid := range p.ProductList {
				price := lookup(pid)
				for _, key := range []string{cache.OrderLineKey(p.Shop), cache.DailyOrderLineKey(p.Shop, day)} {
					b.IncrementField(key, cache.QuantityField(pid), 1)
					b.IncrementFieldFloat(key, cache.TotalPriceField(pid), price)
				}
			}
		}
	})
	if err != nil {
		return &WriteError{PaymentIDs: ids, Err: err}
	}
	return nil
}
