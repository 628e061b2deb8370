package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"salereport/backend/internal/bizday"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/money"
	"salereport/backend/internal/store"
	"salereport/backend/internal/xid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

// New opens the pool, checks connectivity and applies the embedded migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, classify(err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// classify maps driver failures onto the store's error kinds. Connection
// problems become ErrUnavailable, unique and check violations ErrInvalidInput.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation,
			pgErr.Code == pgerrcode.CheckViolation,
			pgErr.Code == pgerrcode.NotNullViolation,
			pgErr.Code == pgerrcode.InvalidTextRepresentation:
			return fmt.Errorf("%w: %s", store.ErrInvalidInput, pgErr.Message)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code):
			return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return err
}

// query collects optional WHERE conditions with positional arguments.
type query struct {
	conds []string
	args  []any
}

func (q *query) add(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(q.args))))
}

func (q *query) where() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func (q *query) limit(n int) string {
	if n <= 0 {
		return ""
	}
	q.args = append(q.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(q.args))
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDay(raw string) (time.Time, error) {
	day, err := bizday.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored day %q: %w", raw, err)
	}
	return day, nil
}

type scanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, product_name, quantity, total_price::float8, created_at, updated_at`

func scanProduct(row scanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.TotalPrice, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var q query
	if name := strings.TrimSpace(filter.Name); name != "" {
		q.add(`product_name ILIKE '%' || ? || '%'`, name)
	}
	if filter.MinPrice != nil {
		q.add(`total_price >= ?`, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q.add(`total_price <= ?`, *filter.MaxPrice)
	}
	where := q.where()
	stmt := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY created_at DESC, id` + q.limit(filter.Limit)

	rows, err := s.db.QueryContext(ctx, stmt, q.args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.TotalPrice <= 0 {
		return nil, store.ErrInvalidInput
	}
	created, err := insertProduct(ctx, s.db, product)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertProduct(ctx context.Context, db execer, product domain.Product) (domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO products (id, product_name, quantity, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING `+productColumns,
		product.ID, product.Name, product.Quantity, money.Round2(product.TotalPrice), product.CreatedAt)
	created, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, classify(err)
	}
	return created, nil
}

func (s *Store) CreateProducts(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	created := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Name == "" || p.TotalPrice <= 0 {
			return nil, store.ErrInvalidInput
		}
		saved, err := insertProduct(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		created = append(created, saved)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET product_name = $2, quantity = $3, total_price = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Quantity, money.Round2(product.TotalPrice))
	updated, err := scanProduct(row)
	if err != nil {
		return nil, classify(err)
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

const paymentColumns = `id, shop_id, product_list, grand_total::float8, created_at`

func scanPayment(row scanner) (domain.Payment, error) {
	var (
		p    domain.Payment
		list []byte
	)
	if err := row.Scan(&p.ID, &p.Shop, &list, &p.GrandTotal, &p.CreatedAt); err != nil {
		return domain.Payment{}, err
	}
	products, err := decodeList(list)
	if err != nil {
		return domain.Payment{}, err
	}
	p.ProductList = products
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func insertPayment(ctx context.Context, db execer, payment domain.Payment) (domain.Payment, error) {
	if payment.ID == "" {
		payment.ID = xid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	list, err := encodeList(payment.ProductList)
	if err != nil {
		return domain.Payment{}, err
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO payments (id, shop_id, product_list, grand_total, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		RETURNING `+paymentColumns,
		payment.ID, payment.Shop, list, payment.GrandTotal, payment.CreatedAt)
	saved, err := scanPayment(row)
	if err != nil {
		return domain.Payment{}, classify(err)
	}
	return saved, nil
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	saved, err := insertPayment(ctx, s.db, payment)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) CreatePayments(ctx context.Context, payments []domain.Payment) ([]domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	saved := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		created, err := insertPayment(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		saved = append(saved, created)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return saved, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *Store) queryPayments(ctx context.Context, stmt string, args ...any) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]domain.Payment, 0, 64)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	var q query
	if len(filter.Shops) > 0 {
		q.add(`shop_id = ANY(?)`, filter.Shops)
	}
	if filter.ProductID != "" {
		q.add(`product_list @> jsonb_build_array(?::text)`, filter.ProductID)
	}
	if filter.From != nil {
		q.add(`created_at >= ?`, *filter.From)
	}
	if filter.To != nil {
		q.add(`created_at <= ?`, *filter.To)
	}
	where := q.where()
	stmt := `SELECT ` + paymentColumns + ` FROM payments` + where + ` ORDER BY created_at DESC, id` + q.limit(filter.Limit)
	return s.queryPayments(ctx, stmt, q.args...)
}

func (s *Store) ListPaymentsBetween(ctx context.Context, shops []string, from time.Time, to time.Time) ([]domain.Payment, error) {
	if len(shops) == 0 {
		return []domain.Payment{}, nil
	}
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE shop_id = ANY($1) AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at, id
	`, shops, from, to)
}

func (s *Store) SumPaymentsByShop(ctx context.Context, shop string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(grand_total), 0)::float8 FROM payments WHERE shop_id = $1
	`, shop).Scan(&total)
	if err != nil {
		return 0, classify(err)
	}
	return money.Round2(total), nil
}

const orderLineColumns = `id, shop_id, product_id, to_char(day, 'YYYY-MM-DD'), product_quantity,
	total_price::float8, price_per_one_product, created_at, updated_at`

func scanOrderLine(row scanner) (domain.OrderLine, error) {
	var (
		line domain.OrderLine
		day  string
	)
	if err := row.Scan(&line.ID, &line.ShopID, &line.ProductID, &day, &line.ProductQuantity,
		&line.TotalPrice, &line.PricePerOneProduct, &line.CreatedAt, &line.UpdatedAt); err != nil {
		return domain.OrderLine{}, err
	}
	parsed, err := parseDay(day)
	if err != nil {
		return domain.OrderLine{}, err
	}
	line.Day = parsed
	line.CreatedAt = line.CreatedAt.UTC()
	line.UpdatedAt = line.UpdatedAt.UTC()
	return line, nil
}

func (s *Store) UpsertOrderLine(ctx context.Context, line domain.OrderLine) (*domain.OrderLine, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO order_lines (id, shop_id, product_id, day, product_quantity, total_price, price_per_one_product, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, now(), now())
		ON CONFLICT (shop_id, product_id, day) DO UPDATE
		SET product_quantity = EXCLUDED.product_quantity,
			total_price = EXCLUDED.total_price,
			price_per_one_product = EXCLUDED.price_per_one_product,
			updated_at = now()
		RETURNING `+orderLineColumns,
		xid.New(), line.ShopID, line.ProductID, bizday.Key(line.Day), line.ProductQuantity,
		money.Round2(line.TotalPrice), line.PricePerOneProduct)
	saved, err := scanOrderLine(row)
	if err != nil {
		return nil, classify(err)
	}
	return &saved, nil
}

func (s *Store) GetOrderLine(ctx context.Context, id string) (*domain.OrderLine, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderLineColumns+` FROM order_lines WHERE id = $1`, id)
	line, err := scanOrderLine(row)
	if err != nil {
		return nil, classify(err)
	}
	return &line, nil
}

func (s *Store) ListOrderLines(ctx context.Context, filter domain.OrderLineFilter) ([]domain.OrderLine, error) {
	var q query
	if filter.ShopID != "" {
		q.add(`shop_id = ?`, filter.ShopID)
	}
	if filter.ProductID != "" {
		q.add(`product_id = ?`, filter.ProductID)
	}
	if filter.Day != nil {
		q.add(`day = ?::date`, bizday.Key(*filter.Day))
	}
	where := q.where()
	stmt := `SELECT ` + orderLineColumns + ` FROM order_lines` + where + ` ORDER BY day DESC, shop_id, product_id` + q.limit(filter.Limit)

	rows, err := s.db.QueryContext(ctx, stmt, q.args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]domain.OrderLine, 0, 32)
	for rows.Next() {
		line, err := scanOrderLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) DeleteOrderLines(ctx context.Context, shop string, day time.Time, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM order_lines
		WHERE shop_id = $1 AND day = $2::date AND NOT (product_id = ANY($3))
	`, shop, bizday.Key(day), keep)
	if err != nil {
		return 0, classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err)
	}
	return affected, nil
}

func (s *Store) SumOrderLineRevenue(ctx context.Context, productID string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_price), 0)::float8 FROM order_lines WHERE product_id = $1
	`, productID).Scan(&total)
	if err != nil {
		return 0, classify(err)
	}
	return money.Round2(total), nil
}

const saleOrderColumns = `id, shop_id, to_char(day, 'YYYY-MM-DD'), grand_total::float8,
	product_list, order_lines, order_id_list, created_at, updated_at`

func scanSaleOrder(row scanner) (domain.SaleOrder, error) {
	var (
		order                     domain.SaleOrder
		day                       string
		products, lines, orderIDs []byte
	)
	if err := row.Scan(&order.ID, &order.ShopID, &day, &order.GrandTotal,
		&products, &lines, &orderIDs, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return domain.SaleOrder{}, err
	}
	parsed, err := parseDay(day)
	if err != nil {
		return domain.SaleOrder{}, err
	}
	order.Day = parsed
	for _, field := range []struct {
		raw  []byte
		dest *[]string
	}{
		{products, &order.ProductList},
		{lines, &order.OrderLines},
		{orderIDs, &order.OrderIDList},
	} {
		values, err := decodeList(field.raw)
		if err != nil {
			return domain.SaleOrder{}, err
		}
		*field.dest = values
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func (s *Store) UpsertSaleOrder(ctx context.Context, order domain.SaleOrder) (*domain.SaleOrder, error) {
	products, err := encodeList(order.ProductList)
	if err != nil {
		return nil, err
	}
	lines, err := encodeList(order.OrderLines)
	if err != nil {
		return nil, err
	}
	orderIDs, err := encodeList(order.OrderIDList)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sale_orders (id, shop_id, day, grand_total, product_list, order_lines, order_id_list, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5::jsonb, $6::jsonb, $7::jsonb, now(), now())
		ON CONFLICT (shop_id, day) DO UPDATE
		SET grand_total = EXCLUDED.grand_total,
			product_list = EXCLUDED.product_list,
			order_lines = EXCLUDED.order_lines,
			order_id_list = EXCLUDED.order_id_list,
			updated_at = now()
		RETURNING `+saleOrderColumns,
		xid.New(), order.ShopID, bizday.Key(order.Day), money.Round2(order.GrandTotal), products, lines, orderIDs)
	saved, err := scanSaleOrder(row)
	if err != nil {
		return nil, classify(err)
	}
	return &saved, nil
}

func (s *Store) GetSaleOrder(ctx context.Context, id string) (*domain.SaleOrder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleOrderColumns+` FROM sale_orders WHERE id = $1`, id)
	order, err := scanSaleOrder(row)
	if err != nil {
		return nil, classify(err)
	}
	return &order, nil
}

func (s *Store) FindSaleOrder(ctx context.Context, shop string, day time.Time) (*domain.SaleOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleOrderColumns+` FROM sale_orders WHERE shop_id = $1 AND day = $2::date
	`, shop, bizday.Key(day))
	order, err := scanSaleOrder(row)
	if err != nil {
		return nil, classify(err)
	}
	return &order, nil
}

func (s *Store) ListSaleOrders(ctx context.Context, filter domain.SaleOrderFilter) ([]domain.SaleOrder, error) {
	var q query
	if filter.ShopID != "" {
		q.add(`shop_id = ?`, filter.ShopID)
	}
	if filter.Day != nil {
		q.add(`day = ?::date`, bizday.Key(*filter.Day))
	}
	where := q.where()
	stmt := `SELECT ` + saleOrderColumns + ` FROM sale_orders` + where + ` ORDER BY day DESC, shop_id` + q.limit(filter.Limit)

	rows, err := s.db.QueryContext(ctx, stmt, q.args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]domain.SaleOrder, 0, 16)
	for rows.Next() {
		order, err := scanSaleOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) DeleteSaleOrder(ctx context.Context, shop string, day time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM sale_orders WHERE shop_id = $1 AND day = $2::date
	`, shop, bizday.Key(day)); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) GetRollupMarker(ctx context.Context, shop string, day time.Time) (*domain.RollupMarker, error) {
	var (
		marker domain.RollupMarker
		dayKey string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT shop_id, to_char(day, 'YYYY-MM-DD'), source, stage, updated_at
		FROM rollup_markers
		WHERE shop_id = $1 AND day = $2::date
	`, shop, bizday.Key(day)).Scan(&marker.ShopID, &dayKey, &marker.Source, &marker.Stage, &marker.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	parsed, err := parseDay(dayKey)
	if err != nil {
		return nil, err
	}
	marker.Day = parsed
	marker.UpdatedAt = marker.UpdatedAt.UTC()
	return &marker, nil
}

func (s *Store) SaveRollupMarker(ctx context.Context, marker domain.RollupMarker) error {
	if marker.UpdatedAt.IsZero() {
		marker.UpdatedAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO rollup_markers (shop_id, day, source, stage, updated_at)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (shop_id, day) DO UPDATE
		SET source = EXCLUDED.source, stage = EXCLUDED.stage, updated_at = EXCLUDED.updated_at
	`, marker.ShopID, bizday.Key(marker.Day), marker.Source, marker.Stage, marker.UpdatedAt); err != nil {
		return classify(err)
	}
	return nil
}

var _ store.Repository = (*Store)(nil)
