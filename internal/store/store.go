package store

import (
	"context"
	"errors"
	"time"

	"salereport/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("store unavailable")
)

type ProductRepository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	CreateProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	CreatePayments(ctx context.Context, payments []domain.Payment) ([]domain.Payment, error)
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
	// ListPaymentsBetween returns every payment of the given shops with from <= createdAt <= to.
	ListPaymentsBetween(ctx context.Context, shops []string, from time.Time, to time.Time) ([]domain.Payment, error)
	SumPaymentsByShop(ctx context.Context, shop string) (float64, error)
}

type ReportRepository interface {
	// UpsertOrderLine writes the line keyed by (shop, product, day), keeping the id of an existing line.
	UpsertOrderLine(ctx context.Context, line domain.OrderLine) (*domain.OrderLine, error)
	GetOrderLine(ctx context.Context, id string) (*domain.OrderLine, error)
	ListOrderLines(ctx context.Context, filter domain.OrderLineFilter) ([]domain.OrderLine, error)
	// DeleteOrderLines removes the shop/day lines whose product is not in keep.
	DeleteOrderLines(ctx context.Context, shop string, day time.Time, keep []string) (int64, error)
	SumOrderLineRevenue(ctx context.Context, productID string) (float64, error)

	// UpsertSaleOrder writes the order keyed by (shop, day), keeping the id of an existing order.
	UpsertSaleOrder(ctx context.Context, order domain.SaleOrder) (*domain.SaleOrder, error)
	GetSaleOrder(ctx context.Context, id string) (*domain.SaleOrder, error)
	FindSaleOrder(ctx context.Context, shop string, day time.Time) (*domain.SaleOrder, error)
	ListSaleOrders(ctx context.Context, filter domain.SaleOrderFilter) ([]domain.SaleOrder, error)
	DeleteSaleOrder(ctx context.Context, shop string, day time.Time) error

	GetRollupMarker(ctx context.Context, shop string, day time.Time) (*domain.RollupMarker, error)
	SaveRollupMarker(ctx context.Context, marker domain.RollupMarker) error
}

type Repository interface {
	ProductRepository
	PaymentRepository
	ReportRepository
}
