package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/cache"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/money"
	"salereport/backend/internal/store"
	"salereport/backend/internal/store/memory"
	"salereport/backend/internal/xid"
)

var fixedNow = time.Date(2025, 8, 21, 3, 15, 0, 0, time.UTC)

func newTestService() (*Service, *cache.MemoryStore) {
	c := cache.NewMemoryStore()
	svc := New(memory.NewSeeded(), c, nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, c
}

func firstProducts(t *testing.T, svc *Service, n int) []domain.Product {
	t.Helper()
	products, err := svc.ListProducts(context.Background(), domain.ProductFilter{})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(products) < n {
		t.Fatalf("expected at least %d seeded products, got %d", n, len(products))
	}
	return products[:n]
}

func TestCreatePaymentValidatesInput(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := firstProducts(t, svc, 1)[0]

	cases := []struct {
		name string
		req  domain.PaymentCreateRequest
	}{
		{"unknown shop", domain.PaymentCreateRequest{Amount: 1, ProductList: []string{p.ID}, ShopID: "tokopedia"}},
		{"malformed product id", domain.PaymentCreateRequest{Amount: 1, ProductList: []string{"nope"}, ShopID: "lazada"}},
		{"unknown product", domain.PaymentCreateRequest{Amount: 1, ProductList: []string{xid.New()}, ShopID: "lazada"}},
		{"empty product list", domain.PaymentCreateRequest{Amount: 1, ShopID: "lazada"}},
		{"zero amount", domain.PaymentCreateRequest{Amount: 0, ProductList: []string{p.ID}, ShopID: "lazada"}},
	}
	for _, tc := range cases {
		_, err := svc.CreatePayment(ctx, tc.req)
		if !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
}

func TestCreatePaymentNormalisesShopAndRounds(t *testing.T) {
	svc, c := newTestService()
	ctx := context.Background()
	p := firstProducts(t, svc, 1)[0]

	payment, err := svc.CreatePayment(ctx, domain.PaymentCreateRequest{Amount: 10.005, ProductList: []string{p.ID}, ShopID: " Lazada "})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if payment.Shop != "lazada" {
		t.Fatalf("expected normalised shop, got %q", payment.Shop)
	}
	if payment.GrandTotal != 10.01 {
		t.Fatalf("expected grand total 10.01, got %v", payment.GrandTotal)
	}

	entries, err := c.ReadList(ctx, cache.DailySaleOrderKey("lazada", "2025-08-21"))
	if err != nil {
		t.Fatalf("read cache failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one cached entry, got %d", len(entries))
	}
}

func TestCreatePaymentSurvivesCacheFailure(t *testing.T) {
	svc, c := newTestService()
	ctx := context.Background()
	p := firstProducts(t, svc, 1)[0]
	c.FailExecWith(func() error { return errors.New("redis: connection refused") })

	payment, err := svc.CreatePayment(ctx, domain.PaymentCreateRequest{Amount: p.TotalPrice, ProductList: []string{p.ID}, ShopID: "shopee"})
	if err != nil {
		t.Fatalf("expected ingestion to succeed without cache, got %v", err)
	}
	if _, err := svc.GetPayment(ctx, payment.ID); err != nil {
		t.Fatalf("payment should be durable: %v", err)
	}
	if got := svc.Health().CacheWriteFailures; got != 1 {
		t.Fatalf("expected 1 cache write failure, got %d", got)
	}

	// the cache path sees nothing; the store path still finds the payment
	result, err := svc.GenerateDailyReport(ctx, "2025-08-21")
	if err != nil {
		t.Fatalf("cache rollup failed: %v", err)
	}
	if len(result.SaleOrderIDs) != 0 {
		t.Fatalf("expected no sale orders from an empty cache, got %v", result.SaleOrderIDs)
	}

	rebuilt, err := svc.RebuildDailyReport(ctx, "2025-08-21", true)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if len(rebuilt.SaleOrderIDs) != 1 {
		t.Fatalf("expected one rebuilt sale order, got %v", rebuilt.SaleOrderIDs)
	}
}

func TestDailyReportRejectsMalformedDate(t *testing.T) {
	svc, _ := newTestService()
	for _, date := range []string{"", "2025-8-21", "21-08-2025", "2025-02-30"} {
		if _, err := svc.GenerateDailyReport(context.Background(), date); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("date %q: expected invalid input, got %v", date, err)
		}
	}
}

func TestDummyPaymentsRollUpConsistently(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	payments, err := svc.CreateDummyPayments(ctx, domain.DummyRequest{Count: 40, Date: "2025-08-21"})
	if err != nil {
		t.Fatalf("create dummy payments failed: %v", err)
	}
	if len(payments) != 40 {
		t.Fatalf("expected 40 payments, got %d", len(payments))
	}

	day, _ := bizday.Parse("2025-08-21")
	want := map[string]*money.Sum{"lazada": {}, "shopee": {}}
	for _, p := range payments {
		if !bizday.Contains(day, p.CreatedAt) {
			t.Fatalf("payment %s at %s is outside the requested day", p.ID, p.CreatedAt)
		}
		if len(p.ProductList) < 1 || len(p.ProductList) > 12 {
			t.Fatalf("unexpected product count %d", len(p.ProductList))
		}
		want[p.Shop].Add(p.GrandTotal)
	}

	if _, err := svc.GenerateDailyReport(ctx, "2025-08-21"); err != nil {
		t.Fatalf("rollup failed: %v", err)
	}

	for shop, sum := range want {
		orders, err := svc.ListSaleOrders(ctx, domain.SaleOrderFilter{ShopID: shop, Day: &day})
		if err != nil {
			t.Fatalf("list sale orders failed: %v", err)
		}
		if sum.Decimal().IsZero() {
			if len(orders) != 0 {
				t.Fatalf("%s: expected no sale order", shop)
			}
			continue
		}
		if len(orders) != 1 {
			t.Fatalf("%s: expected one sale order, got %d", shop, len(orders))
		}
		if orders[0].GrandTotal != sum.Rounded() {
			t.Fatalf("%s: expected grand total %v, got %v", shop, sum.Rounded(), orders[0].GrandTotal)
		}
	}
}

func TestDummyPaymentsNeedProducts(t *testing.T) {
	svc := New(memory.New(), cache.NewMemoryStore(), nil, nil)
	_, err := svc.CreateDummyPayments(context.Background(), domain.DummyRequest{Count: 1})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input without products, got %v", err)
	}
}

func TestProductLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "  Desk Lamp ", Quantity: 10, TotalPrice: 24.999})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if created.Name != "Desk Lamp" || created.TotalPrice != 25 {
		t.Fatalf("unexpected product %+v", created)
	}

	price := 19.5
	updated, err := svc.UpdateProduct(ctx, created.ID, domain.ProductUpdateRequest{TotalPrice: &price})
	if err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if updated.TotalPrice != 19.5 || updated.Name != "Desk Lamp" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if _, err := svc.GetProduct(ctx, "not-an-id"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
	if err := svc.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetProduct(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestShopTotalAndRevenue(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	products := firstProducts(t, svc, 2)

	for _, amount := range []float64{10.1, 20.2} {
		if _, err := svc.CreatePayment(ctx, domain.PaymentCreateRequest{Amount: amount, ProductList: []string{products[0].ID, products[1].ID}, ShopID: "shopee"}); err != nil {
			t.Fatalf("create payment failed: %v", err)
		}
	}

	total, err := svc.ShopTotal(ctx, "SHOPEE")
	if err != nil {
		t.Fatalf("shop total failed: %v", err)
	}
	if total.TotalAmount != 30.3 {
		t.Fatalf("expected 30.3, got %v", total.TotalAmount)
	}

	if _, err := svc.GenerateDailyReport(ctx, "2025-08-21"); err != nil {
		t.Fatalf("rollup failed: %v", err)
	}
	revenue, err := svc.ProductRevenue(ctx, products[0].ID)
	if err != nil {
		t.Fatalf("revenue failed: %v", err)
	}
	if revenue.TotalRevenue != money.Round2(2*products[0].TotalPrice) {
		t.Fatalf("expected revenue %v, got %v", money.Round2(2*products[0].TotalPrice), revenue.TotalRevenue)
	}
}
