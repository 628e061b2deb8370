package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/money"
	"salereport/backend/internal/store"
	"salereport/backend/internal/xid"
)

type Store struct {
	mu          sync.RWMutex
	products    map[string]domain.Product
	payments    map[string]domain.Payment
	orderLines  map[string]domain.OrderLine
	saleOrders  map[string]domain.SaleOrder
	markers     map[string]domain.RollupMarker
	failMethods map[string]error
}

func New() *Store {
	return &Store{
		products:    make(map[string]domain.Product),
		payments:    make(map[string]domain.Payment),
		orderLines:  make(map[string]domain.OrderLine),
		saleOrders:  make(map[string]domain.SaleOrder),
		markers:     make(map[string]domain.RollupMarker),
		failMethods: make(map[string]error),
	}
}

// NewSeeded returns a store holding a small product catalogue for local runs.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{Name: "Wireless Mouse", Quantity: 250000, TotalPrice: 12.5},
		{Name: "Mechanical Keyboard", Quantity: 180000, TotalPrice: 79.99},
		{Name: "USB-C Cable", Quantity: 900000, TotalPrice: 4.25},
		{Name: "Laptop Stand", Quantity: 120000, TotalPrice: 32},
		{Name: "Noise Cancelling Headphones", Quantity: 99999, TotalPrice: 149.9},
	} {
		p.ID = xid.New()
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

// FailOn makes the named method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failMethods, method)
		return
	}
	s.failMethods[method] = err
}

func (s *Store) failure(method string) error {
	return s.failMethods[method]
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(filter.Name))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if filter.MinPrice != nil && p.TotalPrice < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.TotalPrice > *filter.MaxPrice {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return limit(products, filter.Limit), nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.TotalPrice <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New()
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = product

	created := product
	return &created, nil
}

func (s *Store) CreateProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	created := make([]domain.Product, 0, len(products))
	for _, p := range products {
		saved, err := s.CreateProduct(ctx, p)
		if err != nil {
			return created, err
		}
		created = append(created, *saved)
	}
	return created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("GetProductsByIDs"); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CreatePayment"); err != nil {
		return nil, err
	}
	saved := s.insertPayment(payment)
	return &saved, nil
}

func (s *Store) insertPayment(payment domain.Payment) domain.Payment {
	if payment.ID == "" {
		payment.ID = xid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.ProductList = append([]string(nil), payment.ProductList...)
	s.payments[payment.ID] = payment
	return payment
}

func (s *Store) CreatePayments(_ context.Context, payments []domain.Payment) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CreatePayments"); err != nil {
		return nil, err
	}
	saved := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		saved = append(saved, s.insertPayment(p))
	}
	return saved, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPayments(_ context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Payment, 0, 64)
	for _, p := range s.payments {
		if len(filter.Shops) > 0 && !slices.Contains(filter.Shops, p.Shop) {
			continue
		}
		if filter.ProductID != "" && !slices.Contains(p.ProductList, filter.ProductID) {
			continue
		}
		if filter.From != nil && p.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && p.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Payment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return limit(out, filter.Limit), nil
}

func (s *Store) ListPaymentsBetween(_ context.Context, shops []string, from time.Time, to time.Time) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure("ListPaymentsBetween"); err != nil {
		return nil, err
	}

	out := make([]domain.Payment, 0, 64)
	for _, p := range s.payments {
		if !slices.Contains(shops, p.Shop) {
			continue
		}
		if p.CreatedAt.Before(from) || p.CreatedAt.After(to) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Payment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) SumPaymentsByShop(_ context.Context, shop string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum money.Sum
	for _, p := range s.payments {
		if p.Shop == shop {
			sum.Add(p.GrandTotal)
		}
	}
	return sum.Rounded(), nil
}

func (s *Store) UpsertOrderLine(_ context.Context, line domain.OrderLine) (*domain.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("UpsertOrderLine"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dayKey := bizday.Key(line.Day)
	line.ID = ""
	line.CreatedAt = now
	for _, existing := range s.orderLines {
		if existing.ShopID == line.ShopID && existing.ProductID == line.ProductID && bizday.Key(existing.Day) == dayKey {
			line.ID = existing.ID
			line.CreatedAt = existing.CreatedAt
			break
		}
	}
	if line.ID == "" {
		line.ID = xid.New()
	}
	line.UpdatedAt = now
	s.orderLines[line.ID] = line

	saved := line
	return &saved, nil
}

func (s *Store) GetOrderLine(_ context.Context, id string) (*domain.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	line, ok := s.orderLines[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &line, nil
}

func (s *Store) ListOrderLines(_ context.Context, filter domain.OrderLineFilter) ([]domain.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.OrderLine, 0, 32)
	for _, line := range s.orderLines {
		if filter.ShopID != "" && line.ShopID != filter.ShopID {
			continue
		}
		if filter.ProductID != "" && line.ProductID != filter.ProductID {
			continue
		}
		if filter.Day != nil && bizday.Key(line.Day) != bizday.Key(*filter.Day) {
			continue
		}
		out = append(out, line)
	}
	slices.SortFunc(out, func(a, b domain.OrderLine) int {
		if c := b.Day.Compare(a.Day); c != 0 {
			return c
		}
		if c := strings.Compare(a.ShopID, b.ShopID); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return limit(out, filter.Limit), nil
}

func (s *Store) DeleteOrderLines(_ context.Context, shop string, day time.Time, keep []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("DeleteOrderLines"); err != nil {
		return 0, err
	}

	dayKey := bizday.Key(day)
	var deleted int64
	for id, line := range s.orderLines {
		if line.ShopID != shop || bizday.Key(line.Day) != dayKey {
			continue
		}
		if slices.Contains(keep, line.ProductID) {
			continue
		}
		delete(s.orderLines, id)
		deleted++
	}
	return deleted, nil
}

func (s *Store) SumOrderLineRevenue(_ context.Context, productID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum money.Sum
	for _, line := range s.orderLines {
		if line.ProductID == productID {
			sum.Add(line.TotalPrice)
		}
	}
	return sum.Rounded(), nil
}

func (s *Store) UpsertSaleOrder(_ context.Context, order domain.SaleOrder) (*domain.SaleOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("UpsertSaleOrder"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.ID = ""
	order.CreatedAt = now
	if existing, ok := s.findSaleOrder(order.ShopID, order.Day); ok {
		order.ID = existing.ID
		order.CreatedAt = existing.CreatedAt
	}
	if order.ID == "" {
		order.ID = xid.New()
	}
	order.UpdatedAt = now
	order.ProductList = append([]string(nil), order.ProductList...)
	order.OrderLines = append([]string(nil), order.OrderLines...)
	order.OrderIDList = append([]string(nil), order.OrderIDList...)
	s.saleOrders[order.ID] = order

	saved := order
	return &saved, nil
}

func (s *Store) findSaleOrder(shop string, day time.Time) (domain.SaleOrder, bool) {
	dayKey := bizday.Key(day)
	for _, order := range s.saleOrders {
		if order.ShopID == shop && bizday.Key(order.Day) == dayKey {
			return order, true
		}
	}
	return domain.SaleOrder{}, false
}

func (s *Store) GetSaleOrder(_ context.Context, id string) (*domain.SaleOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.saleOrders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) FindSaleOrder(_ context.Context, shop string, day time.Time) (*domain.SaleOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.findSaleOrder(shop, day)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) ListSaleOrders(_ context.Context, filter domain.SaleOrderFilter) ([]domain.SaleOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SaleOrder, 0, 16)
	for _, order := range s.saleOrders {
		if filter.ShopID != "" && order.ShopID != filter.ShopID {
			continue
		}
		if filter.Day != nil && bizday.Key(order.Day) != bizday.Key(*filter.Day) {
			continue
		}
		out = append(out, order)
	}
	slices.SortFunc(out, func(a, b domain.SaleOrder) int {
		if c := b.Day.Compare(a.Day); c != 0 {
			return c
		}
		return strings.Compare(a.ShopID, b.ShopID)
	})
	return limit(out, filter.Limit), nil
}

func (s *Store) DeleteSaleOrder(_ context.Context, shop string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("DeleteSaleOrder"); err != nil {
		return err
	}
	if existing, ok := s.findSaleOrder(shop, day); ok {
		delete(s.saleOrders, existing.ID)
	}
	return nil
}

func (s *Store) GetRollupMarker(_ context.Context, shop string, day time.Time) (*domain.RollupMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marker, ok := s.markers[markerKey(shop, day)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &marker, nil
}

func (s *Store) SaveRollupMarker(_ context.Context, marker domain.RollupMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if marker.UpdatedAt.IsZero() {
		marker.UpdatedAt = time.Now().UTC()
	}
	s.markers[markerKey(marker.ShopID, marker.Day)] = marker
	return nil
}

func markerKey(shop string, day time.Time) string {
	return shop + "|" + bizday.Key(day)
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
