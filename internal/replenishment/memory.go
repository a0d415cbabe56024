package replenishment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryState struct {
	products  map[string]Product
	stock     map[string]StockRecord
	suppliers []Supplier
	orders    []PurchaseOrder
	reminders []SupplierReminder
	returns   []ReturnTicket
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		products:  make(map[string]Product, len(s.products)),
		stock:     make(map[string]StockRecord, len(s.stock)),
		suppliers: s.suppliers,
		orders:    append([]PurchaseOrder(nil), s.orders...),
		reminders: append([]SupplierReminder(nil), s.reminders...),
		returns:   append([]ReturnTicket(nil), s.returns...),
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.stock {
		out.stock[k] = v
	}
	return out
}

// MemoryRepository keeps the entity store in process memory. Transactions work
// on a copy which replaces the live state only when the callback succeeds.
type MemoryRepository struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryRepository loads catalog into a fresh store.
func NewMemoryRepository(catalog Catalog) *MemoryRepository {
	state := &memoryState{
		products: make(map[string]Product, len(catalog.Products)),
		stock:    make(map[string]StockRecord, len(catalog.Stock)),
	}
	for _, p := range catalog.Products {
		state.products[p.ID] = p
	}
	for _, s := range catalog.Stock {
		state.stock[s.ProductID] = s
	}
	state.suppliers = append(state.suppliers, catalog.Suppliers...)
	state.orders = append(state.orders, catalog.PurchaseOrders...)
	state.returns = append(state.returns, catalog.Returns...)
	return &MemoryRepository{state: state}
}

// WithTx runs fn against a private copy and publishes it on success.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

// GetProduct implements RepositoryPort.
func (r *MemoryRepository) GetProduct(_ context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.state.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return p, nil
}

// ListProducts returns products ordered by id.
func (r *MemoryRepository) ListProducts(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(r.state.products))
	for _, p := range r.state.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStock implements RepositoryPort.
func (r *MemoryRepository) GetStock(_ context.Context, productID string) (StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.state.stock[productID]
	if !ok {
		return StockRecord{}, fmt.Errorf("%w: stock for %s", ErrNotFound, productID)
	}
	return s, nil
}

// ListSuppliers implements RepositoryPort.
func (r *MemoryRepository) ListSuppliers(_ context.Context) ([]Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Supplier(nil), r.state.suppliers...), nil
}

// GetPurchaseOrder implements RepositoryPort.
func (r *MemoryRepository) GetPurchaseOrder(_ context.Context, id string) (PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.findOrder(id)
}

// ListPurchaseOrders returns POs in insertion order.
func (r *MemoryRepository) ListPurchaseOrders(_ context.Context) ([]PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PurchaseOrder(nil), r.state.orders...), nil
}

// ListReminders implements RepositoryPort.
func (r *MemoryRepository) ListReminders(_ context.Context) ([]SupplierReminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SupplierReminder(nil), r.state.reminders...), nil
}

// ListReturns implements RepositoryPort.
func (r *MemoryRepository) ListReturns(_ context.Context) ([]ReturnTicket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ReturnTicket(nil), r.state.returns...), nil
}

func (s *memoryState) findOrder(id string) (PurchaseOrder, error) {
	for _, po := range s.orders {
		if po.ID == id {
			return po, nil
		}
	}
	return PurchaseOrder{}, fmt.Errorf("%w: purchase order %s", ErrNotFound, id)
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) GetPurchaseOrder(_ context.Context, id string) (PurchaseOrder, error) {
	return t.state.findOrder(id)
}

func (t *memoryTx) InsertPurchaseOrder(_ context.Context, po PurchaseOrder) error {
	if _, err := t.state.findOrder(po.ID); err == nil {
		return fmt.Errorf("%w: purchase order %s already exists", ErrDuplicateID, po.ID)
	}
	t.state.orders = append(t.state.orders, po)
	return nil
}

func (t *memoryTx) UpdatePurchaseOrder(_ context.Context, po PurchaseOrder) error {
	for i := range t.state.orders {
		if t.state.orders[i].ID == po.ID {
			t.state.orders[i] = po
			return nil
		}
	}
	return fmt.Errorf("%w: purchase order %s", ErrNotFound, po.ID)
}

func (t *memoryTx) AdjustStock(_ context.Context, productID string, delta int, at time.Time) (StockRecord, error) {
	s, ok := t.state.stock[productID]
	if !ok {
		return StockRecord{}, fmt.Errorf("%w: stock for %s", ErrNotFound, productID)
	}
	if s.QuantityOnHand+delta < 0 {
		return StockRecord{}, fmt.Errorf("%w: stock for %s cannot go below zero", ErrInvalidArgument, productID)
	}
	s.QuantityOnHand += delta
	s.UpdatedAt = at
	t.state.stock[productID] = s
	return s, nil
}

func (t *memoryTx) InsertReminder(_ context.Context, reminder SupplierReminder) error {
	t.state.reminders = append(t.state.reminders, reminder)
	return nil
}

func (t *memoryTx) InsertReturn(_ context.Context, ticket ReturnTicket) error {
	for _, existing := range t.state.returns {
		if existing.ID == ticket.ID {
			return fmt.Errorf("%w: return ticket %s already exists", ErrDuplicateID, ticket.ID)
		}
	}
	t.state.returns = append(t.state.returns, ticket)
	return nil
}
