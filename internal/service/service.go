package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/cache"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/money"
	"salereport/backend/internal/report"
	"salereport/backend/internal/store"
	"salereport/backend/internal/xid"
)

var ErrInvalidID = fmt.Errorf("%w: invalid id format", store.ErrInvalidInput)

type Service struct {
	repo   store.Repository
	writer *report.Writer
	engine *report.Engine
	logger *zap.Logger
	shops  []string

	cacheFailures atomic.Int64

	fakerMu sync.Mutex
	faker   *gofakeit.Faker

	now func() time.Time
}

func New(repo store.Repository, c cache.Store, shops []string, logger *zap.Logger) *Service {
	if len(shops) == 0 {
		shops = domain.DefaultShops
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:   repo,
		writer: report.NewWriter(c),
		engine: report.NewEngine(repo, c, shops, logger.Named("rollup")),
		logger: logger,
		shops:  slices.Clone(shops),
		faker:  gofakeit.New(0),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Health() domain.Health {
	return domain.Health{OK: true, CacheWriteFailures: s.cacheFailures.Load()}
}

func (s *Service) Shops() []string {
	return slices.Clone(s.shops)
}

func (s *Service) shop(raw string) (string, error) {
	shop := domain.NormalizeShop(raw)
	if !slices.Contains(s.shops, shop) {
		return "", fmt.Errorf("%w: unknown shop %q", store.ErrInvalidInput, raw)
	}
	return shop, nil
}

func checkID(id string) error {
	if !xid.Valid(id) {
		return ErrInvalidID
	}
	return nil
}

// cacheWriteFailed records a lost cache batch. Ingestion carries on: the
// payments are already durable and the store path can rebuild the day.
func (s *Service) cacheWriteFailed(err error) {
	s.cacheFailures.Add(1)

	var writeErr *report.WriteError
	if errors.As(err, &writeErr) {
		s.logger.Error("cache write failed",
			zap.Strings("payment_ids", writeErr.PaymentIDs),
			zap.Error(writeErr.Err),
		)
		return
	}
	s.logger.Error("cache write failed", zap.Error(err))
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Quantity < 0 || req.TotalPrice <= 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       name,
		Quantity:   req.Quantity,
		TotalPrice: money.Round2(req.TotalPrice),
		CreatedAt:  s.now(),
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := checkID(id); err != nil {
		return domain.Product{}, err
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := checkID(id); err != nil {
		return domain.Product{}, err
	}
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Quantity = *req.Quantity
	}
	if req.TotalPrice != nil {
		if *req.TotalPrice <= 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.TotalPrice = money.Round2(*req.TotalPrice)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) CreateDummyProducts(ctx context.Context, count int) ([]domain.Product, error) {
	if count < 1 {
		return nil, store.ErrInvalidInput
	}

	now := s.now()
	products := make([]domain.Product, 0, count)
	s.fakerMu.Lock()
	for i := 0; i < count; i++ {
		products = append(products, domain.Product{
			Name:       s.faker.ProductName(),
			Quantity:   int64(s.faker.IntRange(99999, 999999)),
			TotalPrice: money.Round2(s.faker.Price(1, 1000)),
			CreatedAt:  now,
		})
	}
	s.fakerMu.Unlock()

	return s.repo.CreateProducts(ctx, products)
}

// CreatePayment stores the payment and mirrors it into the cache. Only the
// durable write decides the outcome.
func (s *Service) CreatePayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	shop, err := s.shop(req.ShopID)
	if err != nil {
		return domain.Payment{}, err
	}
	if req.Amount <= 0 || len(req.ProductList) == 0 {
		return domain.Payment{}, store.ErrInvalidInput
	}
	if !xid.AllValid(req.ProductList) {
		return domain.Payment{}, ErrInvalidID
	}

	products, err := s.repo.GetProductsByIDs(ctx, domain.UniqueStrings(req.ProductList))
	if err != nil {
		return domain.Payment{}, err
	}
	for _, pid := range req.ProductList {
		if _, ok := products[pid]; !ok {
			return domain.Payment{}, fmt.Errorf("%w: unknown product %s", store.ErrInvalidInput, pid)
		}
	}

	saved, err := s.repo.CreatePayment(ctx, domain.Payment{
		Shop:        shop,
		ProductList: slices.Clone(req.ProductList),
		GrandTotal:  money.Round2(req.Amount),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.Payment{}, err
	}

	if err := s.writer.RecordPayment(ctx, *saved, priceLookup(products)); err != nil {
		s.cacheWriteFailed(err)
	}
	return *saved, nil
}

func priceLookup(products map[string]domain.Product) report.PriceLookup {
	return func(pid string) float64 {
		return products[pid].TotalPrice
	}
}

func (s *Service) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	if err := checkID(id); err != nil {
		return domain.Payment{}, err
	}
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	return *p, nil
}

func (s *Service) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	shops := make([]string, 0, len(filter.Shops))
	for _, raw := range filter.Shops {
		shop, err := s.shop(raw)
		if err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	filter.Shops = shops
	if filter.ProductID != "" {
		if err := checkID(filter.ProductID); err != nil {
			return nil, err
		}
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListPayments(ctx, filter)
}

func (s *Service) ShopTotal(ctx context.Context, rawShop string) (domain.ShopTotal, error) {
	shop, err := s.shop(rawShop)
	if err != nil {
		return domain.ShopTotal{}, err
	}
	total, err := s.repo.SumPaymentsByShop(ctx, shop)
	if err != nil {
		return domain.ShopTotal{}, err
	}
	return domain.ShopTotal{ShopID: shop, TotalAmount: total}, nil
}

// CreateDummyPayments generates count payments over the existing catalogue
// and writes them to the cache in a single batch. Payments land on the given
// business day, or today when date is empty.
func (s *Service) CreateDummyPayments(ctx context.Context, req domain.DummyRequest) ([]domain.Payment, error) {
	if req.Count < 1 {
		return nil, store.ErrInvalidInput
	}
	day := bizday.Today(s.now())
	if req.Date != "" {
		parsed, err := bizday.Parse(req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
		}
		day = parsed
	}

	catalogue, err := s.repo.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return nil, err
	}
	if len(catalogue) == 0 {
		return nil, fmt.Errorf("%w: no products to reference in payments", store.ErrInvalidInput)
	}

	from, to := bizday.Bounds(day)
	payments := make([]domain.Payment, 0, req.Count)
	s.fakerMu.Lock()
	for i := 0; i < req.Count; i++ {
		want := min(s.faker.IntRange(1, 12), len(catalogue))
		picked := make(map[int]struct{}, want)
		var total money.Sum
		productIDs := make([]string, 0, want)
		for len(picked) < want {
			idx := s.faker.IntRange(0, len(catalogue)-1)
			if _, ok := picked[idx]; ok {
				continue
			}
			picked[idx] = struct{}{}
			productIDs = append(productIDs, catalogue[idx].ID)
			total.Add(catalogue[idx].TotalPrice)
		}

		payments = append(payments, domain.Payment{
			Shop:        s.faker.RandomString(s.shops),
			ProductList: productIDs,
			GrandTotal:  total.Rounded(),
			CreatedAt:   s.faker.DateRange(from, to).UTC(),
		})
	}
	s.fakerMu.Unlock()

	saved, err := s.repo.CreatePayments(ctx, payments)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]domain.Product, len(catalogue))
	for _, p := range catalogue {
		prices[p.ID] = p
	}
	if err := s.writer.RecordPayments(ctx, saved, priceLookup(prices)); err != nil {
		s.cacheWriteFailed(err)
	}

	s.logger.Info("dummy payments created", zap.Int("count", len(saved)), zap.String("date", bizday.Key(day)))
	return saved, nil
}

func (s *Service) GetOrderLine(ctx context.Context, id string) (domain.OrderLine, error) {
	if err := checkID(id); err != nil {
		return domain.OrderLine{}, err
	}
	line, err := s.repo.GetOrderLine(ctx, id)
	if err != nil {
		return domain.OrderLine{}, err
	}
	return *line, nil
}

func (s *Service) ListOrderLines(ctx context.Context, filter domain.OrderLineFilter) ([]domain.OrderLine, error) {
	if filter.ShopID != "" {
		shop, err := s.shop(filter.ShopID)
		if err != nil {
			return nil, err
		}
		filter.ShopID = shop
	}
	if filter.ProductID != "" {
		if err := checkID(filter.ProductID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListOrderLines(ctx, filter)
}

func (s *Service) ProductRevenue(ctx context.Context, productID string) (domain.ProductRevenue, error) {
	if err := checkID(productID); err != nil {
		return domain.ProductRevenue{}, err
	}
	total, err := s.repo.SumOrderLineRevenue(ctx, productID)
	if err != nil {
		return domain.ProductRevenue{}, err
	}
	return domain.ProductRevenue{ProductID: productID, TotalRevenue: total}, nil
}

func (s *Service) GetSaleOrder(ctx context.Context, id string) (domain.SaleOrder, error) {
	if err := checkID(id); err != nil {
		return domain.SaleOrder{}, err
	}
	order, err := s.repo.GetSaleOrder(ctx, id)
	if err != nil {
		return domain.SaleOrder{}, err
	}
	return *order, nil
}

func (s *Service) ListSaleOrders(ctx context.Context, filter domain.SaleOrderFilter) ([]domain.SaleOrder, error) {
	if filter.ShopID != "" {
		shop, err := s.shop(filter.ShopID)
		if err != nil {
			return nil, err
		}
		filter.ShopID = shop
	}
	return s.repo.ListSaleOrders(ctx, filter)
}

func parseDay(date string) (time.Time, error) {
	day, err := bizday.Parse(strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	return day, nil
}

// GenerateDailyReport rolls the cached day up. On partial failure the result
// still lists every shop and the error joins the per-shop failures.
func (s *Service) GenerateDailyReport(ctx context.Context, date string) (domain.DailyReportResult, error) {
	day, err := parseDay(date)
	if err != nil {
		return domain.DailyReportResult{}, err
	}
	return s.engine.GenerateDailyReport(ctx, day)
}

// RebuildDailyReport recomputes the day from payments. With clearCache the
// day's cache keys are dropped afterwards.
func (s *Service) RebuildDailyReport(ctx context.Context, date string, clearCache bool) (domain.DailyReportResult, error) {
	day, err := parseDay(date)
	if err != nil {
		return domain.DailyReportResult{}, err
	}
	if clearCache {
		return s.engine.ReconcileDay(ctx, day)
	}
	return s.engine.GenerateDailyReportFromStore(ctx, day)
}
