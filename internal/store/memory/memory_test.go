package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/store"
)

func TestUpsertOrderLineKeepsID(t *testing.T) {
	s := New()
	ctx := context.Background()
	day, _ := bizday.Parse("2025-08-21")

	first, err := s.UpsertOrderLine(ctx, domain.OrderLine{ShopID: "lazada", ProductID: "p1", Day: day, ProductQuantity: 1, TotalPrice: 10})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	// a different instant of the same business day addresses the same line
	second, err := s.UpsertOrderLine(ctx, domain.OrderLine{ShopID: "lazada", ProductID: "p1", Day: day.Add(23 * time.Hour), ProductQuantity: 4, TotalPrice: 40})
	if err != nil {
		t.Fatalf("re-upsert failed: %v", err)
	}
	if first.ID != second.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected id and createdAt kept, got %+v then %+v", first, second)
	}

	lines, _ := s.ListOrderLines(ctx, domain.OrderLineFilter{ShopID: "lazada"})
	if len(lines) != 1 || lines[0].ProductQuantity != 4 {
		t.Fatalf("expected one replaced line, got %+v", lines)
	}
}

func TestDeleteOrderLinesKeepsListedProducts(t *testing.T) {
	s := New()
	ctx := context.Background()
	day, _ := bizday.Parse("2025-08-21")
	nextDay, _ := bizday.Parse("2025-08-22")

	for _, line := range []domain.OrderLine{
		{ShopID: "lazada", ProductID: "p1", Day: day},
		{ShopID: "lazada", ProductID: "p2", Day: day},
		{ShopID: "shopee", ProductID: "p2", Day: day},
		{ShopID: "lazada", ProductID: "p2", Day: nextDay},
	} {
		if _, err := s.UpsertOrderLine(ctx, line); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	deleted, err := s.DeleteOrderLines(ctx, "lazada", day, []string{"p1"})
	if err != nil || deleted != 1 {
		t.Fatalf("expected one deletion, got %d (%v)", deleted, err)
	}
	deleted, err = s.DeleteOrderLines(ctx, "lazada", day, nil)
	if err != nil || deleted != 1 {
		t.Fatalf("expected empty keep to delete the rest of the day, got %d (%v)", deleted, err)
	}

	remaining, _ := s.ListOrderLines(ctx, domain.OrderLineFilter{})
	if len(remaining) != 2 {
		t.Fatalf("expected other shop and other day untouched, got %+v", remaining)
	}
}

func TestListPaymentsBetweenIsInclusive(t *testing.T) {
	s := New()
	ctx := context.Background()
	day, _ := bizday.Parse("2025-08-21")
	from, to := bizday.Bounds(day)

	for _, p := range []domain.Payment{
		{Shop: "lazada", CreatedAt: from},
		{Shop: "lazada", CreatedAt: to},
		{Shop: "lazada", CreatedAt: from.Add(-time.Nanosecond)},
		{Shop: "lazada", CreatedAt: to.Add(time.Nanosecond)},
		{Shop: "shopee", CreatedAt: from},
	} {
		if _, err := s.CreatePayment(ctx, p); err != nil {
			t.Fatalf("create payment failed: %v", err)
		}
	}

	payments, err := s.ListPaymentsBetween(ctx, []string{"lazada"}, from, to)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(payments) != 2 || !payments[0].CreatedAt.Equal(from) || !payments[1].CreatedAt.Equal(to) {
		t.Fatalf("expected both boundaries in ascending order, got %+v", payments)
	}
}

func TestSaleOrderUpsertFindAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	day, _ := bizday.Parse("2025-08-21")

	order, err := s.UpsertSaleOrder(ctx, domain.SaleOrder{ShopID: "shopee", Day: day, GrandTotal: 12})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	again, err := s.UpsertSaleOrder(ctx, domain.SaleOrder{ShopID: "shopee", Day: day, GrandTotal: 20})
	if err != nil || again.ID != order.ID || again.GrandTotal != 20 {
		t.Fatalf("expected replaced order with same id, got %+v (%v)", again, err)
	}

	if err := s.DeleteSaleOrder(ctx, "shopee", day); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.FindSaleOrder(ctx, "shopee", day); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteSaleOrder(ctx, "shopee", day); err != nil {
		t.Fatalf("deleting a missing order should be a no-op, got %v", err)
	}
}

func TestRollupMarkers(t *testing.T) {
	s := New()
	ctx := context.Background()
	day, _ := bizday.Parse("2025-08-21")

	if _, err := s.GetRollupMarker(ctx, "lazada", day); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no marker, got %v", err)
	}
	if err := s.SaveRollupMarker(ctx, domain.RollupMarker{ShopID: "lazada", Day: day, Stage: domain.RollupStageOrderLines}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveRollupMarker(ctx, domain.RollupMarker{ShopID: "lazada", Day: day, Stage: domain.RollupStageCompleted}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	marker, err := s.GetRollupMarker(ctx, "lazada", day.Add(time.Hour))
	if err != nil || !marker.Completed() || marker.UpdatedAt.IsZero() {
		t.Fatalf("expected completed marker, got %+v (%v)", marker, err)
	}
}

func TestFailOn(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailOn("UpsertSaleOrder", boom)
	if _, err := s.UpsertSaleOrder(ctx, domain.SaleOrder{ShopID: "lazada"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	s.FailOn("UpsertSaleOrder", nil)
	if _, err := s.UpsertSaleOrder(ctx, domain.SaleOrder{ShopID: "lazada"}); err != nil {
		t.Fatalf("expected failure cleared, got %v", err)
	}
}

func TestSumsRoundToCents(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, total := range []float64{0.1, 0.2} {
		if _, err := s.CreatePayment(ctx, domain.Payment{Shop: "lazada", GrandTotal: total}); err != nil {
			t.Fatalf("create payment failed: %v", err)
		}
	}
	sum, err := s.SumPaymentsByShop(ctx, "lazada")
	if err != nil || sum != 0.3 {
		t.Fatalf("expected 0.3, got %v (%v)", sum, err)
	}
}

func TestProductsAreListedNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Old Mug", TotalPrice: 3, CreatedAt: base}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "New Mug", TotalPrice: 9, CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "", TotalPrice: 9}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for nameless product, got %v", err)
	}

	minPrice := 5.0
	products, _ := s.ListProducts(ctx, domain.ProductFilter{Name: "mug"})
	if len(products) != 2 || products[0].Name != "New Mug" {
		t.Fatalf("unexpected order %+v", products)
	}
	products, _ = s.ListProducts(ctx, domain.ProductFilter{MinPrice: &minPrice})
	if len(products) != 1 || products[0].Name != "New Mug" {
		t.Fatalf("expected price filter to apply, got %+v", products)
	}
}
