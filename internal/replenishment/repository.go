package replenishment

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/replenish/internal/platform/db"
)

//go:embed schema.sql
var schemaSQL string

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error)
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	AdjustStock(ctx context.Context, productID string, delta int, at time.Time) (StockRecord, error)
	InsertReminder(ctx context.Context, reminder SupplierReminder) error
	InsertReturn(ctx context.Context, ticket ReturnTicket) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates missing tables.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("replenishment: ensure schema: %w", err)
	}
	return nil
}

// Seed inserts the catalog unless products already exist.
func (r *Repository) Seed(ctx context.Context, catalog Catalog) error {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range catalog.Products {
			_, err := tx.Exec(ctx, `INSERT INTO products (id, name, sku, description, unit_cost, retail_price, safety_stock_fraction, average_daily_sales)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)`,
				p.ID, p.Name, p.SKU, p.Description, p.UnitCost.String(), p.RetailPrice.String(), p.SafetyStockFraction, p.AverageDailySales)
			if err != nil {
				return err
			}
		}
		for _, s := range catalog.Stock {
			_, err := tx.Exec(ctx, `INSERT INTO stock_records (product_id, quantity_on_hand, warehouse_location, updated_at) VALUES ($1, $2, $3, $4)`,
				s.ProductID, s.QuantityOnHand, s.WarehouseLocation, s.UpdatedAt)
			if err != nil {
				return err
			}
		}
		for _, s := range catalog.Suppliers {
			_, err := tx.Exec(ctx, `INSERT INTO suppliers (id, name, contact_person, email, phone, average_lead_time_days, on_time_delivery_rate)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				s.ID, s.Name, s.ContactPerson, s.Email, s.Phone, s.AverageLeadTimeDays, s.OnTimeDeliveryRate)
			if err != nil {
				return err
			}
			for productID, offer := range s.Offers {
				_, err := tx.Exec(ctx, `INSERT INTO supplier_offers (supplier_id, product_id, price, moq) VALUES ($1, $2, $3::numeric, $4)`,
					s.ID, productID, offer.Price.String(), offer.MOQ)
				if err != nil {
					return err
				}
			}
		}
		txRepo := &txRepo{q: tx}
		for _, po := range catalog.PurchaseOrders {
			if err := txRepo.InsertPurchaseOrder(ctx, po); err != nil {
				return err
			}
		}
		for _, t := range catalog.Returns {
			if err := txRepo.InsertReturn(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

type txRepo struct {
	q querier
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const productColumns = `id, name, sku, description, unit_cost::text, retail_price::text, safety_stock_fraction, average_daily_sales`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p                 Product
		unitCost, retail string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &unitCost, &retail, &p.SafetyStockFraction, &p.AverageDailySales); err != nil {
		return Product{}, err
	}
	var err error
	if p.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
		return Product{}, err
	}
	if p.RetailPrice, err = decimal.NewFromString(retail); err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetProduct fetches one product.
func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns products ordered by id.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetStock returns the stock record of a product.
func (r *Repository) GetStock(ctx context.Context, productID string) (StockRecord, error) {
	var s StockRecord
	err := r.pool.QueryRow(ctx, `SELECT product_id, quantity_on_hand, warehouse_location, updated_at FROM stock_records WHERE product_id = $1`, productID).
		Scan(&s.ProductID, &s.QuantityOnHand, &s.WarehouseLocation, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, fmt.Errorf("%w: stock for %s", ErrNotFound, productID)
		}
		return StockRecord{}, err
	}
	return s, nil
}

// ListSuppliers returns suppliers with their offers, ordered by id.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, contact_person, email, phone, average_lead_time_days, on_time_delivery_rate FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var suppliers []Supplier
	index := make(map[string]int)
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.AverageLeadTimeDays, &s.OnTimeDeliveryRate); err != nil {
			rows.Close()
			return nil, err
		}
		s.Offers = make(map[string]SupplierOffer)
		index[s.ID] = len(suppliers)
		suppliers = append(suppliers, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	offerRows, err := r.pool.Query(ctx, `SELECT supplier_id, product_id, price::text, moq FROM supplier_offers`)
	if err != nil {
		return nil, err
	}
	defer offerRows.Close()
	for offerRows.Next() {
		var (
			supplierID, productID, price string
			moq                          int
		)
		if err := offerRows.Scan(&supplierID, &productID, &price, &moq); err != nil {
			return nil, err
		}
		i, ok := index[supplierID]
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(price)
		if err != nil {
			return nil, err
		}
		suppliers[i].Offers[productID] = SupplierOffer{Price: amount, MOQ: moq}
	}
	return suppliers, offerRows.Err()
}

const poColumns = `id, supplier_id, product_id, quantity_ordered, unit_price::text, order_date, expected_delivery_date, actual_delivery_date, status`

func scanPurchaseOrder(row pgx.Row) (PurchaseOrder, error) {
	var (
		po       PurchaseOrder
		price    string
		expected *time.Time
		status   string
	)
	if err := row.Scan(&po.ID, &po.SupplierID, &po.ProductID, &po.QuantityOrdered, &price, &po.OrderDate, &expected, &po.ActualDeliveryDate, &status); err != nil {
		return PurchaseOrder{}, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.UnitPrice = amount
	po.Status = POStatus(status)
	if expected != nil {
		po.ExpectedDeliveryDate = *expected
	}
	return po, nil
}

func getPurchaseOrder(ctx context.Context, q querier, id string, lock bool) (PurchaseOrder, error) {
	sql := `SELECT ` + poColumns + ` FROM purchase_orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	po, err := scanPurchaseOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: purchase order %s", ErrNotFound, id)
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// GetPurchaseOrder fetches a PO by id.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return getPurchaseOrder(ctx, r.pool, id, false)
}

// ListPurchaseOrders returns POs in insertion order.
func (r *Repository) ListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders ORDER BY order_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

// ListReminders returns the reminder log oldest first.
func (r *Repository) ListReminders(ctx context.Context) ([]SupplierReminder, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, po_id, supplier_id, message, sent_at FROM supplier_reminders ORDER BY sent_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SupplierReminder
	for rows.Next() {
		var rem SupplierReminder
		if err := rows.Scan(&rem.ID, &rem.POID, &rem.SupplierID, &rem.Message, &rem.SentAt); err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

// ListReturns returns return tickets oldest first.
func (r *Repository) ListReturns(ctx context.Context) ([]ReturnTicket, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, quantity_returned, reason, returned_at, supplier_id FROM return_tickets ORDER BY returned_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReturnTicket
	for rows.Next() {
		var t ReturnTicket
		if err := rows.Scan(&t.ID, &t.ProductID, &t.QuantityReturned, &t.Reason, &t.ReturnedAt, &t.SupplierID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (t *txRepo) GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return getPurchaseOrder(ctx, t.q, id, true)
}

func nullableTime(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}

func (t *txRepo) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := t.q.Exec(ctx, `INSERT INTO purchase_orders (id, supplier_id, product_id, quantity_ordered, unit_price, order_date, expected_delivery_date, actual_delivery_date, status)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
		po.ID, po.SupplierID, po.ProductID, po.QuantityOrdered, po.UnitPrice.String(), po.OrderDate, nullableTime(po.ExpectedDeliveryDate), po.ActualDeliveryDate, string(po.Status))
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: purchase order %s already exists", ErrDuplicateID, po.ID)
	}
	return err
}

func (t *txRepo) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.q.Exec(ctx, `UPDATE purchase_orders SET status = $2, actual_delivery_date = $3, expected_delivery_date = $4 WHERE id = $1`,
		po.ID, string(po.Status), po.ActualDeliveryDate, nullableTime(po.ExpectedDeliveryDate))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order %s", ErrNotFound, po.ID)
	}
	return nil
}

func (t *txRepo) AdjustStock(ctx context.Context, productID string, delta int, at time.Time) (StockRecord, error) {
	var s StockRecord
	err := t.q.QueryRow(ctx, `SELECT product_id, quantity_on_hand, warehouse_location, updated_at FROM stock_records WHERE product_id = $1 FOR UPDATE`, productID).
		Scan(&s.ProductID, &s.QuantityOnHand, &s.WarehouseLocation, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, fmt.Errorf("%w: stock for %s", ErrNotFound, productID)
		}
		return StockRecord{}, err
	}
	if s.QuantityOnHand+delta < 0 {
		return StockRecord{}, fmt.Errorf("%w: stock for %s cannot go below zero", ErrInvalidArgument, productID)
	}
	s.QuantityOnHand += delta
	s.UpdatedAt = at
	if _, err := t.q.Exec(ctx, `UPDATE stock_records SET quantity_on_hand = $2, updated_at = $3 WHERE product_id = $1`, productID, s.QuantityOnHand, at); err != nil {
		return StockRecord{}, err
	}
	return s, nil
}

func (t *txRepo) InsertReminder(ctx context.Context, reminder SupplierReminder) error {
	_, err := t.q.Exec(ctx, `INSERT INTO supplier_reminders (id, po_id, supplier_id, message, sent_at) VALUES ($1, $2, $3, $4, $5)`,
		reminder.ID, reminder.POID, reminder.SupplierID, reminder.Message, reminder.SentAt)
	return err
}

func (t *txRepo) InsertReturn(ctx context.Context, ticket ReturnTicket) error {
	_, err := t.q.Exec(ctx, `INSERT INTO return_tickets (id, product_id, quantity_returned, reason, returned_at, supplier_id) VALUES ($1, $2, $3, $4, $5, $6)`,
		ticket.ID, ticket.ProductID, ticket.QuantityReturned, ticket.Reason, ticket.ReturnedAt, ticket.SupplierID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: return ticket %s already exists", ErrDuplicateID, ticket.ID)
	}
	return err
}
