package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/money"
	"salereport/backend/internal/store"
	"salereport/backend/internal/xid"
)

const (
	colProducts   = "products"
	colPayments   = "payments"
	colOrderLines = "orderlines"
	colSaleOrders = "saleorders"
	colMarkers    = "rollupmarkers"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects, pings and makes sure the unique rollup indexes exist.
func New(ctx context.Context, uri string, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(6*time.Second))
	if err != nil {
		return nil, classify(err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, classify(err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colPayments: {
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		colOrderLines: {
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "product_id", Value: 1}, {Key: "day", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "product_id", Value: 1}}},
		},
		colSaleOrders: {
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "day", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colMarkers: {
			{Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "day", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for collection, models := range indexes {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, classify(err))
		}
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case errors.Is(err, context.Canceled):
		return err
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: duplicate key", store.ErrInvalidInput)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return err
}

// dayValue is the stored form of a business day: its starting instant.
func dayValue(day time.Time) time.Time {
	return bizday.StartOfDay(day).UTC()
}

func findOptions(sort bson.D, limit int) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	if opts == nil {
		opts = options.Find()
	}
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]T, 0, 32)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := col.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, classify(err)
	}
	return &out, nil
}

func (s *Store) sum(ctx context.Context, collection string, match bson.M, field string) (float64, error) {
	cursor, err := s.db.Collection(collection).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: bson.D{{Key: "$sum", Value: "$" + field}}}}}},
	})
	if err != nil {
		return 0, classify(err)
	}
	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, classify(err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return money.Round2(rows[0].Total), nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := bson.M{}
	if name := strings.TrimSpace(filter.Name); name != "" {
		query["product_name"] = bson.M{"$regex": regexp.QuoteMeta(name), "$options": "i"}
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["total_price"] = price
	}
	return findAll[domain.Product](ctx, s.db.Collection(colProducts), query,
		findOptions(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, filter.Limit))
}

func prepareProduct(product domain.Product) (domain.Product, error) {
	if product.Name == "" || product.TotalPrice <= 0 {
		return domain.Product{}, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.CreatedAt = product.CreatedAt.Truncate(time.Millisecond)
	product.UpdatedAt = product.CreatedAt
	product.TotalPrice = money.Round2(product.TotalPrice)
	return product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product, err := prepareProduct(product)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collection(colProducts).InsertOne(ctx, product); err != nil {
		return nil, classify(err)
	}
	return &product, nil
}

func (s *Store) CreateProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	if len(products) == 0 {
		return []domain.Product{}, nil
	}
	created := make([]domain.Product, 0, len(products))
	docs := make([]any, 0, len(products))
	for _, p := range products {
		prepared, err := prepareProduct(p)
		if err != nil {
			return nil, err
		}
		created = append(created, prepared)
		docs = append(docs, prepared)
	}
	if _, err := s.db.Collection(colProducts).InsertMany(ctx, docs); err != nil {
		return nil, classify(err)
	}
	return created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return findOne[domain.Product](ctx, s.db.Collection(colProducts), bson.M{"_id": id})
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated domain.Product
	err := s.db.Collection(colProducts).FindOneAndUpdate(ctx, bson.M{"_id": product.ID}, bson.M{"$set": bson.M{
		"product_name": product.Name,
		"quantity":     product.Quantity,
		"total_price":  money.Round2(product.TotalPrice),
		"updatedAt":    time.Now().UTC(),
	}}, opts).Decode(&updated)
	if err != nil {
		return nil, classify(err)
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.Collection(colProducts).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	products, err := findAll[domain.Product](ctx, s.db.Collection(colProducts), bson.M{"_id": bson.M{"$in": ids}}, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func preparePayment(payment domain.Payment) domain.Payment {
	if payment.ID == "" {
		payment.ID = xid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.CreatedAt = payment.CreatedAt.UTC().Truncate(time.Millisecond)
	if payment.ProductList == nil {
		payment.ProductList = []string{}
	}
	return payment
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	payment = preparePayment(payment)
	if _, err := s.db.Collection(colPayments).InsertOne(ctx, payment); err != nil {
		return nil, classify(err)
	}
	return &payment, nil
}

func (s *Store) CreatePayments(ctx context.Context, payments []domain.Payment) ([]domain.Payment, error) {
	if len(payments) == 0 {
		return []domain.Payment{}, nil
	}
	saved := make([]domain.Payment, 0, len(payments))
	docs := make([]any, 0, len(payments))
	for _, p := range payments {
		p = preparePayment(p)
		saved = append(saved, p)
		docs = append(docs, p)
	}
	if _, err := s.db.Collection(colPayments).InsertMany(ctx, docs); err != nil {
		return nil, classify(err)
	}
	return saved, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return findOne[domain.Payment](ctx, s.db.Collection(colPayments), bson.M{"_id": id})
}

func (s *Store) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	query := bson.M{}
	if len(filter.Shops) > 0 {
		query["shop_id"] = bson.M{"$in": filter.Shops}
	}
	if filter.ProductID != "" {
		query["product_list"] = filter.ProductID
	}
	created := bson.M{}
	if filter.From != nil {
		created["$gte"] = *filter.From
	}
	if filter.To != nil {
		created["$lte"] = *filter.To
	}
	if len(created) > 0 {
		query["createdAt"] = created
	}
	return findAll[domain.Payment](ctx, s.db.Collection(colPayments), query,
		findOptions(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, filter.Limit))
}

func (s *Store) ListPaymentsBetween(ctx context.Context, shops []string, from time.Time, to time.Time) ([]domain.Payment, error) {
	if len(shops) == 0 {
		return []domain.Payment{}, nil
	}
	return findAll[domain.Payment](ctx, s.db.Collection(colPayments), bson.M{
		"shop_id":   bson.M{"$in": shops},
		"createdAt": bson.M{"$gte": from, "$lte": to},
	}, findOptions(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}, 0))
}

func (s *Store) SumPaymentsByShop(ctx context.Context, shop string) (float64, error) {
	return s.sum(ctx, colPayments, bson.M{"shop_id": shop}, "grand_total")
}

func (s *Store) UpsertOrderLine(ctx context.Context, line domain.OrderLine) (*domain.OrderLine, error) {
	now := time.Now().UTC()
	filter := bson.M{"shop_id": line.ShopID, "product_id": line.ProductID, "day": dayValue(line.Day)}
	update := bson.M{
		"$set": bson.M{
			"product_quantity":      line.ProductQuantity,
			"total_price":           money.Round2(line.TotalPrice),
			"price_per_one_product": line.PricePerOneProduct,
			"updatedAt":             now,
		},
		"$setOnInsert": bson.M{"_id": xid.New(), "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved domain.OrderLine
	if err := s.db.Collection(colOrderLines).FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return nil, classify(err)
	}
	return &saved, nil
}

func (s *Store) GetOrderLine(ctx context.Context, id string) (*domain.OrderLine, error) {
	return findOne[domain.OrderLine](ctx, s.db.Collection(colOrderLines), bson.M{"_id": id})
}

func (s *Store) ListOrderLines(ctx context.Context, filter domain.OrderLineFilter) ([]domain.OrderLine, error) {
	query := bson.M{}
	if filter.ShopID != "" {
		query["shop_id"] = filter.ShopID
	}
	if filter.ProductID != "" {
		query["product_id"] = filter.ProductID
	}
	if filter.Day != nil {
		query["day"] = dayValue(*filter.Day)
	}
	return findAll[domain.OrderLine](ctx, s.db.Collection(colOrderLines), query,
		findOptions(bson.D{{Key: "day", Value: -1}, {Key: "shop_id", Value: 1}, {Key: "product_id", Value: 1}}, filter.Limit))
}

func (s *Store) DeleteOrderLines(ctx context.Context, shop string, day time.Time, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	res, err := s.db.Collection(colOrderLines).DeleteMany(ctx, bson.M{
		"shop_id":    shop,
		"day":        dayValue(day),
		"product_id": bson.M{"$nin": keep},
	})
	if err != nil {
		return 0, classify(err)
	}
	return res.DeletedCount, nil
}

func (s *Store) SumOrderLineRevenue(ctx context.Context, productID string) (float64, error) {
	return s.sum(ctx, colOrderLines, bson.M{"product_id": productID}, "total_price")
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *Store) UpsertSaleOrder(ctx context.Context, order domain.SaleOrder) (*domain.SaleOrder, error) {
	now := time.Now().UTC()
	filter := bson.M{"shop_id": order.ShopID, "day": dayValue(order.Day)}
	update := bson.M{
		"$set": bson.M{
			"grand_total":   money.Round2(order.GrandTotal),
			"product_list":  orEmpty(order.ProductList),
			"order_lines":   orEmpty(order.OrderLines),
			"order_id_list": orEmpty(order.OrderIDList),
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{"_id": xid.New(), "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved domain.SaleOrder
	if err := s.db.Collection(colSaleOrders).FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return nil, classify(err)
	}
	return &saved, nil
}

func (s *Store) GetSaleOrder(ctx context.Context, id string) (*domain.SaleOrder, error) {
	return findOne[domain.SaleOrder](ctx, s.db.Collection(colSaleOrders), bson.M{"_id": id})
}

func (s *Store) FindSaleOrder(ctx context.Context, shop string, day time.Time) (*domain.SaleOrder, error) {
	return findOne[domain.SaleOrder](ctx, s.db.Collection(colSaleOrders), bson.M{"shop_id": shop, "day": dayValue(day)})
}

func (s *Store) ListSaleOrders(ctx context.Context, filter domain.SaleOrderFilter) ([]domain.SaleOrder, error) {
	query := bson.M{}
	if filter.ShopID != "" {
		query["shop_id"] = filter.ShopID
	}
	if filter.Day != nil {
		query["day"] = dayValue(*filter.Day)
	}
	return findAll[domain.SaleOrder](ctx, s.db.Collection(colSaleOrders), query,
		findOptions(bson.D{{Key: "day", Value: -1}, {Key: "shop_id", Value: 1}}, filter.Limit))
}

func (s *Store) DeleteSaleOrder(ctx context.Context, shop string, day time.Time) error {
	if _, err := s.db.Collection(colSaleOrders).DeleteOne(ctx, bson.M{"shop_id": shop, "day": dayValue(day)}); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) GetRollupMarker(ctx context.Context, shop string, day time.Time) (*domain.RollupMarker, error) {
	return findOne[domain.RollupMarker](ctx, s.db.Collection(colMarkers), bson.M{"shop_id": shop, "day": dayValue(day)})
}

func (s *Store) SaveRollupMarker(ctx context.Context, marker domain.RollupMarker) error {
	if marker.UpdatedAt.IsZero() {
		marker.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(colMarkers).UpdateOne(ctx,
		bson.M{"shop_id": marker.ShopID, "day": dayValue(marker.Day)},
		bson.M{"$set": bson.M{"source": marker.Source, "stage": marker.Stage, "updatedAt": marker.UpdatedAt}},
		options.Update().SetUpsert(true),
	)
	return classify(err)
}

var _ store.Repository = (*Store)(nil)
