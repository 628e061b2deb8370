package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/cache"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/money"
	"salereport/backend/internal/store"
)

// ErrInconsistentCache means the cached list and aggregate hash of a shop/day
// disagree, or the cache gained entries after the day was already rolled up.
var ErrInconsistentCache = errors.New("inconsistent cache")

// Repository is the slice of the durable store the rollup needs.
type Repository interface {
	store.ReportRepository
	ListPaymentsBetween(ctx context.Context, shops []string, from time.Time, to time.Time) ([]domain.Payment, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// Engine materialises a business day into OrderLine and SaleOrder documents,
// either from the cache or straight from the payments. Rollups of the same
// day never overlap.
type Engine struct {
	repo   Repository
	cache  cache.Store
	shops  []string
	logger *zap.Logger

	locks dayLocks
	group singleflight.Group
}

func NewEngine(repo Repository, c cache.Store, shops []string, logger *zap.Logger) *Engine {
	if len(shops) == 0 {
		shops = domain.DefaultShops
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repo:   repo,
		cache:  c,
		shops:  slices.Clone(shops),
		logger: logger,
		locks:  dayLocks{held: make(map[string]*dayLock)},
	}
}

func (e *Engine) Shops() []string {
	return slices.Clone(e.shops)
}

// GenerateDailyReport rolls the cached data of day up into durable documents
// and clears the day's cache keys of every shop that succeeded. Failed shops
// are listed in the result and their errors are joined into the returned error.
func (e *Engine) GenerateDailyReport(ctx context.Context, day time.Time) (domain.DailyReportResult, error) {
	return e.run(ctx, domain.RollupSourceCache, day, e.rollupFromCache)
}

// GenerateDailyReportFromStore recomputes day from the payments collection
// without touching the cache.
func (e *Engine) GenerateDailyReportFromStore(ctx context.Context, day time.Time) (domain.DailyReportResult, error) {
	return e.run(ctx, domain.RollupSourceStore, day, e.rollupFromStore)
}

// ReconcileDay recomputes day from the store and then drops the daily cache
// keys of every shop it rebuilt.
func (e *Engine) ReconcileDay(ctx context.Context, day time.Time) (domain.DailyReportResult, error) {
	return e.run(ctx, "reconcile", day, func(ctx context.Context, day time.Time) (domain.DailyReportResult, error) {
		result, err := e.rollupFromStore(ctx, day)
		errs := []error{err}
		for i, shop := range result.Shops {
			if shop.Status == domain.ShopStatusFailed {
				continue
			}
			if delErr := e.clearDay(ctx, shop.ShopID, result.Date); delErr != nil {
				result.Shops[i].Error = delErr.Error()
				errs = append(errs, fmt.Errorf("%s: %w", shop.ShopID, delErr))
			}
		}
		return result, errors.Join(errs...)
	})
}

type rollupFunc func(ctx context.Context, day time.Time) (domain.DailyReportResult, error)

func (e *Engine) run(ctx context.Context, path string, day time.Time, fn rollupFunc) (domain.DailyReportResult, error) {
	dayKey := bizday.Key(day)
	v, err, shared := e.group.Do(path+"|"+dayKey, func() (any, error) {
		unlock := e.locks.lock(dayKey)
		defer unlock()

		started := time.Now()
		result, err := fn(ctx, day)
		fields := []zap.Field{
			zap.String("date", dayKey),
			zap.String("path", path),
			zap.Int("order_lines", len(result.OrderLineIDs)),
			zap.Int("sale_orders", len(result.SaleOrderIDs)),
			zap.Duration("took", time.Since(started)),
		}
		if err != nil {
			e.logger.Warn("rollup finished with errors", append(fields, zap.Error(err))...)
		} else {
			e.logger.Info("rollup finished", fields...)
		}
		return result, err
	})
	if shared {
		e.logger.Debug("rollup result shared", zap.String("date", dayKey), zap.String("path", path))
	}
	result, _ := v.(domain.DailyReportResult)
	return result, err
}

func newResult(dayKey string, source string) domain.DailyReportResult {
	return domain.DailyReportResult{
		Date:         dayKey,
		Source:       source,
		OrderLineIDs: []string{},
		SaleOrderIDs: []string{},
		Shops:        []domain.ShopRollup{},
	}
}

func (e *Engine) collect(result *domain.DailyReportResult, shop string, rollup domain.ShopRollup, err error) error {
	rollup.ShopID = shop
	if err != nil {
		rollup.Status = domain.ShopStatusFailed
		rollup.Error = err.Error()
		result.Shops = append(result.Shops, rollup)
		e.logger.Error("shop rollup failed",
			zap.String("shop", shop),
			zap.String("date", result.Date),
			zap.String("stage", rollup.Stage),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", shop, err)
	}

	result.OrderLineIDs = append(result.OrderLineIDs, rollup.OrderLineIDs...)
	if rollup.SaleOrderID != "" {
		result.SaleOrderIDs = append(result.SaleOrderIDs, rollup.SaleOrderID)
	}
	result.Shops = append(result.Shops, rollup)
	return nil
}

func (e *Engine) rollupFromCache(ctx context.Context, day time.Time) (domain.DailyReportResult, error) {
	from, to := bizday.Bounds(day)
	result := newResult(bizday.Key(from), domain.RollupSourceCache)

	var errs []error
	for _, shop := range e.shops {
		rollup, err := e.rollupShopFromCache(ctx, shop, from, to, result.Date)
		if err := e.collect(&result, shop, rollup, err); err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

func (e *Engine) rollupShopFromCache(ctx context.Context, shop string, from time.Time, to time.Time, dayKey string) (domain.ShopRollup, error) {
	listKey := cache.DailySaleOrderKey(shop, dayKey)
	hashKey := cache.DailyOrderLineKey(shop, dayKey)

	raw, err := e.cache.ReadList(ctx, listKey)
	if err != nil {
		return domain.ShopRollup{}, unavailable("read "+listKey, err)
	}
	fields, err := e.cache.ReadHash(ctx, hashKey)
	if err != nil {
		return domain.ShopRollup{}, unavailable("read "+hashKey, err)
	}

	marker, err := e.repo.GetRollupMarker(ctx, shop, from)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.ShopRollup{}, unavailable("get rollup marker", err)
	}
	if marker != nil {
		cacheEmpty := len(raw) == 0 && len(fields) == 0
		switch {
		case marker.Completed() && cacheEmpty:
			return e.existingRollup(ctx, shop, from)
		case marker.Completed():
			return domain.ShopRollup{Stage: marker.Stage}, fmt.Errorf("%w: %s gained entries after a completed %s rollup", ErrInconsistentCache, dayKey, marker.Source)
		case marker.Stage == domain.RollupStageSaleOrder && cacheEmpty:
			// the keys are cleared only after this stage, so only the final marker is missing
			return e.completeInterrupted(ctx, shop, from, marker.Source)
		case cacheEmpty:
			return domain.ShopRollup{Stage: marker.Stage}, fmt.Errorf("%w: %s has no cached entries but a %s rollup stopped at %s, rebuild from store",
				ErrInconsistentCache, dayKey, marker.Source, marker.Stage)
		}
	}

	agg := newAggregate()
	for _, entry := range raw {
		var record domain.CacheRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			e.logger.Warn("dropping unparsable cache entry", zap.String("key", listKey), zap.Error(err))
			continue
		}
		at := record.CreatedAt()
		if at.Before(from) || at.After(to) {
			continue
		}
		agg.addOrder(record.PaymentID, record.GrandTotal, record.ProductList)
	}
	if err := agg.foldFields(fields); err != nil {
		e.logger.Warn("ignoring malformed aggregate fields", zap.String("key", hashKey), zap.Error(err))
	}

	if len(agg.products) == 0 && agg.orders > 0 {
		return domain.ShopRollup{}, fmt.Errorf("%w: %s has %d orders but no aggregates", ErrInconsistentCache, dayKey, agg.orders)
	}

	rollup, err := e.persist(ctx, shop, from, domain.RollupSourceCache, agg)
	if err != nil {
		return rollup, err
	}
	if err := e.clearDay(ctx, shop, dayKey); err != nil {
		return rollup, err
	}
	if rollup.Status == domain.ShopStatusRolledUp {
		if err := e.mark(ctx, shop, from, domain.RollupSourceCache, domain.RollupStageCompleted); err != nil {
			return rollup, err
		}
		rollup.Stage = domain.RollupStageCompleted
	}
	return rollup, nil
}

func (e *Engine) rollupFromStore(ctx context.Context, day time.Time) (domain.DailyReportResult, error) {
	from, to := bizday.Bounds(day)
	result := newResult(bizday.Key(from), domain.RollupSourceStore)

	payments, err := e.repo.ListPaymentsBetween(ctx, e.shops, from, to)
	if err != nil {
		return result, unavailable("list payments", err)
	}

	byShop := make(map[string][]domain.Payment, len(e.shops))
	var productIDs []string
	for _, p := range payments {
		byShop[p.Shop] = append(byShop[p.Shop], p)
		productIDs = append(productIDs, p.ProductList...)
	}

	prices := make(map[string]float64)
	if len(productIDs) > 0 {
		products, err := e.repo.GetProductsByIDs(ctx, domain.UniqueStrings(productIDs))
		if err != nil {
			return result, unavailable("lookup products", err)
		}
		for id, p := range products {
			prices[id] = p.TotalPrice
		}
	}

	var errs []error
	for _, shop := range e.shops {
		agg := newAggregate()
		for _, p := range byShop[shop] {
			agg.addOrder(p.ID, p.GrandTotal, p.ProductList)
			for _, pid := range p.ProductList {
				agg.addUnit(pid, prices[pid])
			}
		}

		rollup, err := e.persist(ctx, shop, from, domain.RollupSourceStore, agg)
		if err == nil && rollup.Status == domain.ShopStatusRolledUp {
			if err = e.mark(ctx, shop, from, domain.RollupSourceStore, domain.RollupStageCompleted); err == nil {
				rollup.Stage = domain.RollupStageCompleted
			}
		}
		if err := e.collect(&result, shop, rollup, err); err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// persist writes the OrderLines and the SaleOrder of one shop/day. Stale
// documents of that shop/day are removed, so a rerun replaces rather than adds.
func (e *Engine) persist(ctx context.Context, shop string, day time.Time, source string, agg *aggregate) (domain.ShopRollup, error) {
	rollup := domain.ShopRollup{OrderLineIDs: []string{}}

	productIDs := agg.productIDs()
	for _, pid := range productIDs {
		total := agg.products[pid]
		line, err := e.repo.UpsertOrderLine(ctx, domain.OrderLine{
			ShopID:             shop,
			ProductID:          pid,
			ProductQuantity:    total.quantity,
			TotalPrice:         total.sum.Rounded(),
			PricePerOneProduct: money.PerUnit(total.sum.Decimal(), total.quantity),
			Day:                day,
		})
		if err != nil {
			return rollup, unavailable("upsert order line "+pid, err)
		}
		rollup.OrderLineIDs = append(rollup.OrderLineIDs, line.ID)
	}
	if _, err := e.repo.DeleteOrderLines(ctx, shop, day, productIDs); err != nil {
		return rollup, unavailable("delete stale order lines", err)
	}
	if len(productIDs) > 0 {
		if err := e.mark(ctx, shop, day, source, domain.RollupStageOrderLines); err != nil {
			return rollup, err
		}
		rollup.Stage = domain.RollupStageOrderLines
	}

	if agg.orders > 0 {
		order, err := e.repo.UpsertSaleOrder(ctx, domain.SaleOrder{
			ShopID:      shop,
			Day:         day,
			GrandTotal:  agg.grandTotal.Rounded(),
			ProductList: domain.UniqueStrings(agg.productList),
			OrderLines:  rollup.OrderLineIDs,
			OrderIDList: domain.UniqueStrings(agg.paymentIDs),
		})
		if err != nil {
			return rollup, unavailable("upsert sale order", err)
		}
		rollup.SaleOrderID = order.ID
	} else if err := e.repo.DeleteSaleOrder(ctx, shop, day); err != nil {
		return rollup, unavailable("delete sale order", err)
	}

	if len(productIDs) == 0 && agg.orders == 0 {
		rollup.Status = domain.ShopStatusEmpty
		return rollup, nil
	}
	if err := e.mark(ctx, shop, day, source, domain.RollupStageSaleOrder); err != nil {
		return rollup, err
	}
	rollup.Stage = domain.RollupStageSaleOrder
	rollup.Status = domain.ShopStatusRolledUp
	return rollup, nil
}

func (e *Engine) existingRollup(ctx context.Context, shop string, day time.Time) (domain.ShopRollup, error) {
	rollup := domain.ShopRollup{Status: domain.ShopStatusEmpty, OrderLineIDs: []string{}}

	lines, err := e.repo.ListOrderLines(ctx, domain.OrderLineFilter{ShopID: shop, Day: &day})
	if err != nil {
		return rollup, unavailable("list order lines", err)
	}
	for _, line := range lines {
		rollup.OrderLineIDs = append(rollup.OrderLineIDs, line.ID)
	}

	order, err := e.repo.FindSaleOrder(ctx, shop, day)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return rollup, unavailable("find sale order", err)
	default:
		rollup.SaleOrderID = order.ID
	}

	if len(rollup.OrderLineIDs) > 0 || rollup.SaleOrderID != "" {
		rollup.Status = domain.ShopStatusRolledUp
		rollup.Stage = domain.RollupStageCompleted
	}
	return rollup, nil
}

func (e *Engine) completeInterrupted(ctx context.Context, shop string, day time.Time, source string) (domain.ShopRollup, error) {
	rollup, err := e.existingRollup(ctx, shop, day)
	if err != nil {
		return rollup, err
	}
	if err := e.mark(ctx, shop, day, source, domain.RollupStageCompleted); err != nil {
		rollup.Stage = domain.RollupStageSaleOrder
		return rollup, err
	}
	rollup.Stage = domain.RollupStageCompleted
	return rollup, nil
}

func (e *Engine) clearDay(ctx context.Context, shop string, dayKey string) error {
	listKey := cache.DailySaleOrderKey(shop, dayKey)
	hashKey := cache.DailyOrderLineKey(shop, dayKey)
	if err := e.cache.Delete(ctx, listKey, hashKey); err != nil {
		return unavailable("clear cache", err)
	}
	return nil
}

func (e *Engine) mark(ctx context.Context, shop string, day time.Time, source string, stage string) error {
	err := e.repo.SaveRollupMarker(ctx, domain.RollupMarker{
		ShopID:    shop,
		Day:       day,
		Source:    source,
		Stage:     stage,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return unavailable("save rollup marker "+stage, err)
	}
	return nil
}

// unavailable keeps domain errors as they are and classifies everything else
// as a store outage.
func unavailable(op string, err error) error {
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidInput) || errors.Is(err, ErrInconsistentCache) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, store.ErrUnavailable, err)
}

type productTotal struct {
	quantity int64
	sum      money.Sum
}

type aggregate struct {
	products    map[string]*productTotal
	grandTotal  money.Sum
	productList []string
	paymentIDs  []string
	orders      int
}

func newAggregate() *aggregate {
	return &aggregate{products: make(map[string]*productTotal)}
}

func (a *aggregate) product(pid string) *productTotal {
	total, ok := a.products[pid]
	if !ok {
		total = &productTotal{}
		a.products[pid] = total
	}
	return total
}

func (a *aggregate) addOrder(paymentID string, grandTotal float64, products []string) {
	a.orders++
	a.grandTotal.Add(grandTotal)
	a.productList = append(a.productList, products...)
	a.paymentIDs = append(a.paymentIDs, paymentID)
}

func (a *aggregate) addUnit(pid string, price float64) {
	total := a.product(pid)
	total.quantity++
	total.sum.Add(price)
}

// foldFields reads "{pid}:product_quantity" and "{pid}:total_price" hash
// fields. Malformed fields are skipped and reported together.
func (a *aggregate) foldFields(fields map[string]string) error {
	var errs []error
	for name, raw := range fields {
		idx := strings.LastIndex(name, ":")
		if idx <= 0 {
			errs = append(errs, fmt.Errorf("field %q has no product id", name))
			continue
		}
		pid, kind := name[:idx], name[idx+1:]

		switch kind {
		case cache.FieldProductQuantity:
			qty, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("field %q: %w", name, err))
				continue
			}
			a.product(pid).quantity += qty
		case cache.FieldTotalPrice:
			value, err := money.Parse(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("field %q: %w", name, err))
				continue
			}
			a.product(pid).sum.AddDecimal(value)
		default:
			errs = append(errs, fmt.Errorf("field %q has unknown kind", name))
		}
	}
	return errors.Join(errs...)
}

func (a *aggregate) productIDs() []string {
	ids := make([]string, 0, len(a.products))
	for pid := range a.products {
		ids = append(ids, pid)
	}
	slices.Sort(ids)
	return ids
}

type dayLock struct {
	mu   sync.Mutex
	refs int
}

type dayLocks struct {
	mu   sync.Mutex
	held map[string]*dayLock
}

func (l *dayLocks) lock(day string) func() {
	l.mu.Lock()
	dl, ok := l.held[day]
	if !ok {
		dl = &dayLock{}
		l.held[day] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.held, day)
		}
		l.mu.Unlock()
	}
}
