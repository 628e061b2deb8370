package domain

import (
	"strings"
	"time"
)

const (
	ShopLazada = "lazada"
	ShopShopee = "shopee"
)

var DefaultShops = []string{ShopLazada, ShopShopee}

type Product struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"product_name" bson:"product_name"`
	Quantity   int64     `json:"quantity" bson:"quantity"`
	TotalPrice float64   `json:"total_price" bson:"total_price"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

type ProductCreateRequest struct {
	Name       string  `json:"product_name" validate:"required"`
	Quantity   int64   `json:"quantity" validate:"gt=0"`
	TotalPrice float64 `json:"total_price" validate:"gt=0"`
}

type ProductUpdateRequest struct {
	Name       *string  `json:"product_name,omitempty" validate:"omitempty,min=1"`
	Quantity   *int64   `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	TotalPrice *float64 `json:"total_price,omitempty" validate:"omitempty,gt=0"`
}

type ProductFilter struct {
	Name     string
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

// Payment is the immutable record of one sale transaction.
type Payment struct {
	ID          string    `json:"id" bson:"_id"`
	Shop        string    `json:"shop_id" bson:"shop_id"`
	ProductList []string  `json:"product_list" bson:"product_list"`
	GrandTotal  float64   `json:"grand_total" bson:"grand_total"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

type PaymentCreateRequest struct {
	Amount      float64  `json:"amount" validate:"gt=0"`
	ProductList []string `json:"product_list" validate:"required,min=1,dive,required"`
	ShopID      string   `json:"shop_id" validate:"required"`
}

type PaymentFilter struct {
	Shops     []string
	ProductID string
	From      *time.Time
	To        *time.Time
	Limit     int
}

type ShopTotal struct {
	ShopID      string  `json:"shopId"`
	TotalAmount float64 `json:"totalAmount"`
}

type DummyRequest struct {
	Count int    `json:"count" validate:"gte=1,lte=5000"`
	Date  string `json:"date,omitempty"`
}

// OrderLine is the realised per-product aggregate of one shop on one business day.
type OrderLine struct {
	ID                 string    `json:"id" bson:"_id"`
	ShopID             string    `json:"shop_id" bson:"shop_id"`
	ProductID          string    `json:"product_id" bson:"product_id"`
	ProductQuantity    int64     `json:"product_quantity" bson:"product_quantity"`
	TotalPrice         float64   `json:"total_price" bson:"total_price"`
	PricePerOneProduct float64   `json:"price_per_one_product" bson:"price_per_one_product"`
	Day                time.Time `json:"day" bson:"day"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt" bson:"updatedAt"`
}

type OrderLineFilter struct {
	ShopID    string
	ProductID string
	Day       *time.Time
	Limit     int
}

type ProductRevenue struct {
	ProductID    string  `json:"productId"`
	TotalRevenue float64 `json:"totalRevenue"`
}

// SaleOrder is the single per-shop, per-day summary document.
type SaleOrder struct {
	ID          string    `json:"id" bson:"_id"`
	ShopID      string    `json:"shop_id" bson:"shop_id"`
	Day         time.Time `json:"day" bson:"day"`
	GrandTotal  float64   `json:"grand_total" bson:"grand_total"`
	ProductList []string  `json:"product_list" bson:"product_list"`
	OrderLines  []string  `json:"order_lines" bson:"order_lines"`
	OrderIDList []string  `json:"order_id_list" bson:"order_id_list"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

type SaleOrderFilter struct {
	ShopID string
	Day    *time.Time
	Limit  int
}

// CacheRecord is the denormalised payment snapshot kept in the cache lists.
type CacheRecord struct {
	PaymentID   string   `json:"payment_id"`
	GrandTotal  float64  `json:"grand_total"`
	ProductList []string `json:"product_list"`
	CreatedAtMs int64    `json:"createdAtMs"`
	CreatedAtIS string   `json:"createdAtIso"`
	ShopID      string   `json:"shop_id"`
}

func NewCacheRecord(p Payment) CacheRecord {
	products := make([]string, len(p.ProductList))
	copy(products, p.ProductList)
	return CacheRecord{
		PaymentID:   p.ID,
		GrandTotal:  p.GrandTotal,
		ProductList: products,
		CreatedAtMs: p.CreatedAt.UnixMilli(),
		CreatedAtIS: p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		ShopID:      p.Shop,
	}
}

func (r CacheRecord) CreatedAt() time.Time {
	return time.UnixMilli(r.CreatedAtMs).UTC()
}

const (
	RollupSourceCache = "cache"
	RollupSourceStore = "store"
)

const (
	RollupStageOrderLines = "order_lines_written"
	RollupStageSaleOrder  = "sale_order_written"
	RollupStageCompleted  = "completed"
)

// RollupMarker records how far a shop/day rollup got.
type RollupMarker struct {
	ShopID    string    `json:"shop_id" bson:"shop_id"`
	Day       time.Time `json:"day" bson:"day"`
	Source    string    `json:"source" bson:"source"`
	Stage     string    `json:"stage" bson:"stage"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (m RollupMarker) Completed() bool {
	return m.Stage == RollupStageCompleted
}

type DailyReportRequest struct {
	Date string `json:"date" validate:"required,datekey"`
}

type DailyReportRebuildRequest struct {
	Date       string `json:"date" validate:"required,datekey"`
	ClearCache bool   `json:"clear_cache"`
}

const (
	ShopStatusRolledUp = "rolled_up"
	ShopStatusEmpty    = "empty"
	ShopStatusFailed   = "failed"
)

type ShopRollup struct {
	ShopID       string   `json:"shop_id"`
	Status       string   `json:"status"`
	Stage        string   `json:"stage,omitempty"`
	OrderLineIDs []string `json:"order_line_ids"`
	SaleOrderID  string   `json:"sale_order_id,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type DailyReportResult struct {
	Date         string       `json:"date"`
	Source       string       `json:"source"`
	OrderLineIDs []string     `json:"order_line_ids"`
	SaleOrderIDs []string     `json:"sale_order_ids"`
	Shops        []ShopRollup `json:"shops"`
}

// NormalizeShop lowercases and trims a shop identifier.
func NormalizeShop(shop string) string {
	return strings.ToLower(strings.TrimSpace(shop))
}

// UniqueStrings keeps the first occurrence of every value, preserving order.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

type Health struct {
	OK                 bool  `json:"ok"`
	CacheWriteFailures int64 `json:"cache_write_failures"`
}
