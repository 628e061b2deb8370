package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/cache"
	"salereport/backend/internal/domain"
)

func TestRecordPaymentWritesListsAndHashes(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	writer := NewWriter(cache.NewRedisStoreFromClient(client))

	// 2025-08-21T20:30:00Z is already the 22nd in UTC+7
	at := time.Date(2025, 8, 21, 20, 30, 0, 0, time.UTC)
	payment := domain.Payment{ID: "pay-1", Shop: "shopee", ProductList: []string{"p1", "p2", "p1"}, GrandTotal: 12.75, CreatedAt: at}
	prices := map[string]float64{"p1": 2.5, "p2": 7.75}

	err := writer.RecordPayment(context.Background(), payment, func(pid string) float64 { return prices[pid] })
	require.NoError(t, err)

	for _, key := range []string{"shopee_sale_order", "shopee_sale_order:2025-08-22"} {
		items, err := srv.List(key)
		require.NoError(t, err, key)
		require.Len(t, items, 1)

		var record domain.CacheRecord
		require.NoError(t, json.Unmarshal([]byte(items[0]), &record))
		assert.Equal(t, "pay-1", record.PaymentID)
		assert.Equal(t, "shopee", record.ShopID)
		assert.Equal(t, 12.75, record.GrandTotal)
		assert.Equal(t, at.UnixMilli(), record.CreatedAtMs)
		assert.Equal(t, "2025-08-21T20:30:00.000Z", record.CreatedAtIS)
		assert.Equal(t, []string{"p1", "p2", "p1"}, record.ProductList)
	}

	for _, key := range []string{"shopee_order_line", "shopee_order_line:2025-08-22"} {
		assert.Equal(t, "2", srv.HGet(key, "p1:product_quantity"), key)
		assert.Equal(t, "5", srv.HGet(key, "p1:total_price"), key)
		assert.Equal(t, "1", srv.HGet(key, "p2:product_quantity"), key)
		assert.Equal(t, "7.75", srv.HGet(key, "p2:total_price"), key)
	}
	assert.False(t, srv.Exists("shopee_sale_order:2025-08-21"))
}

func TestRecordPaymentsSharesOneBatch(t *testing.T) {
	c := cache.NewMemoryStore()
	writer := NewWriter(c)
	ctx := context.Background()

	day := time.Date(2025, 8, 21, 9, 0, 0, 0, bizday.Zone)
	payments := []domain.Payment{
		{ID: "a", Shop: "lazada", ProductList: []string{"p1"}, GrandTotal: 1, CreatedAt: day},
		{ID: "b", Shop: "lazada", ProductList: []string{"p1"}, GrandTotal: 1, CreatedAt: day.Add(time.Minute)},
		{ID: "c", Shop: "shopee", ProductList: []string{"p2"}, GrandTotal: 1, CreatedAt: day},
	}
	require.NoError(t, writer.RecordPayments(ctx, payments, nil))

	items, err := c.ReadList(ctx, "lazada_sale_order:2025-08-21")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, items[0], `"payment_id":"a"`)
	assert.Contains(t, items[1], `"payment_id":"b"`)

	fields, err := c.ReadHash(ctx, "lazada_order_line:2025-08-21")
	require.NoError(t, err)
	assert.Equal(t, "2", fields["p1:product_quantity"])
	assert.Equal(t, "0", fields["p1:total_price"])

	boom := errors.New("pipeline refused")
	c.FailExecWith(func() error { return boom })
	err = writer.RecordPayments(ctx, payments, nil)

	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, []string{"a", "b", "c"}, writeErr.PaymentIDs)
	assert.ErrorIs(t, err, boom)

	items, err = c.ReadList(ctx, "lazada_sale_order:2025-08-21")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRecordPaymentsWithNothingToWrite(t *testing.T) {
	c := cache.NewMemoryStore()
	c.FailExecWith(func() error { return errors.New("should not be called") })
	assert.NoError(t, NewWriter(c).RecordPayments(context.Background(), nil, nil))
}
