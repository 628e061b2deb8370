package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	FieldProductQuantity = "product_quantity"
	FieldTotalPrice      = "total_price"
)

// Batch collects writes that Store.Exec applies atomically.
type Batch interface {
	Append(key string, value []byte)
	IncrementField(key string, field string, delta int64)
	IncrementFieldFloat(key string, field string, delta float64)
}

// Store is the cache-resident side of the sales pipeline: ordered lists of
// payment snapshots and hashes of per-product counters. Keys never expire on
// their own; the rollup deletes them.
type Store interface {
	Exec(ctx context.Context, fill func(Batch)) error
	ReadList(ctx context.Context, key string) ([]string, error)
	ReadHash(ctx context.Context, key string) (map[string]string, error)
	Delete(ctx context.Context, keys ...string) error
}

func SaleOrderKey(shop string) string {
	return shop + "_sale_order"
}

func DailySaleOrderKey(shop string, dayKey string) string {
	return SaleOrderKey(shop) + ":" + dayKey
}

func OrderLineKey(shop string) string {
	return shop + "_order_line"
}

func DailyOrderLineKey(shop string, dayKey string) string {
	return OrderLineKey(shop) + ":" + dayKey
}

func QuantityField(productID string) string {
	return productID + ":" + FieldProductQuantity
}

func TotalPriceField(productID string) string {
	return productID + ":" + FieldTotalPrice
}

// MemoryStore is a process-local Store used when no Redis is configured and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	lists  map[string][]string
	hashes map[string]map[string]decimal.Decimal
	failOn func() error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists:  make(map[string][]string),
		hashes: make(map[string]map[string]decimal.Decimal),
	}
}

// FailExecWith makes every following Exec return the error produced by fn.
// Passing nil restores normal behaviour.
func (m *MemoryStore) FailExecWith(fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = fn
}

type memoryOp struct {
	key   string
	field string
	value []byte
	delta decimal.Decimal
	isInt bool
	list  bool
}

type memoryBatch struct {
	ops []memoryOp
}

func (b *memoryBatch) Append(key string, value []byte) {
	b.ops = append(b.ops, memoryOp{key: key, value: value, list: true})
}

func (b *memoryBatch) IncrementField(key string, field string, delta int64) {
	b.ops = append(b.ops, memoryOp{key: key, field: field, delta: decimal.NewFromInt(delta), isInt: true})
}

func (b *memoryBatch) IncrementFieldFloat(key string, field string, delta float64) {
	b.ops = append(b.ops, memoryOp{key: key, field: field, delta: decimal.NewFromFloat(delta)})
}

func (m *MemoryStore) Exec(_ context.Context, fill func(Batch)) error {
	batch := &memoryBatch{}
	fill(batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn != nil {
		if err := m.failOn(); err != nil {
			return err
		}
	}

	for _, op := range batch.ops {
		if op.list {
			m.lists[op.key] = append(m.lists[op.key], string(op.value))
			continue
		}
		fields, ok := m.hashes[op.key]
		if !ok {
			fields = make(map[string]decimal.Decimal)
			m.hashes[op.key] = fields
		}
		fields[op.field] = fields[op.field].Add(op.delta)
	}
	return nil
}

func (m *MemoryStore) ReadList(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.lists[key]
	out := make([]string, len(items))
	copy(out, items)
	return out, nil
}

func (m *MemoryStore) ReadHash(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := m.hashes[key]
	out := make(map[string]string, len(fields))
	for field, value := range fields {
		if value.IsInteger() {
			out[field] = strconv.FormatInt(value.IntPart(), 10)
			continue
		}
		out[field] = value.String()
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.lists, key)
		delete(m.hashes, key)
	}
	return nil
}

// SetRaw overwrites a list with raw entries.
func (m *MemoryStore) SetRaw(key string, entries ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string(nil), entries...)
}

// SetField overwrites a single hash field with a raw value.
func (m *MemoryStore) SetField(key string, field string, raw string) error {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("set field %s/%s: %w", key, field, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.hashes[key]
	if !ok {
		fields = make(map[string]decimal.Decimal)
		m.hashes[key] = fields
	}
	fields[field] = value
	return nil
}

// Keys lists every key currently held.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.lists)+len(m.hashes))
	for k := range m.lists {
		keys = append(keys, k)
	}
	for k := range m.hashes {
		keys = append(keys, k)
	}
	return keys
}
