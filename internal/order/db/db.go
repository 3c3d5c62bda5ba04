package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-sorteos/internal/models"
	ticketdb "ms-sorteos/internal/tickets/db"
	"ms-sorteos/internal/utils"
)

var (
	ErrNotPending     = errors.New("order is no longer pending")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// DB is the order ledger. Tickets shares the same handle so reservation and
// settlement touch orders and inventory in one transaction.
type DB struct {
	Bun     bun.IDB
	Tickets *ticketdb.DB
}

func New(idb bun.IDB) *DB {
	return &DB{Bun: idb, Tickets: &ticketdb.DB{Bun: idb}}
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, New(tx))
	})
}

func (d *DB) isPostgres() bool {
	return d.Bun.Dialect().Name() == dialect.PG
}

// IsUniqueViolation reports whether err is a unique constraint failure on
// either Postgres or SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	return err
}

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderForUpdate re-reads the order inside a transaction, taking a row lock
// where the dialect has one.
func (d *DB) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	q := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1)
	if d.isPostgres() {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return &order, nil
}

// SettleOrder writes the terminal status. The pending guard turns a lost race
// into ErrNotPending instead of a second transition.
func (d *DB) SettleOrder(ctx context.Context, order *models.Order) error {
	res, err := d.Bun.NewUpdate().
		Model(order).
		Column("status", "status_reason", "settled_at").
		WherePK().
		Where("status = ?", models.OrderPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrNotPending
	}
	return nil
}

// ---------------- CLIENTS ----------------

// FindOrCreateClient reuses a client only when every identity field matches.
func (d *DB) FindOrCreateClient(ctx context.Context, identity models.ClientIdentity) (*models.Client, error) {
	var client models.Client
	err := d.Bun.NewSelect().
		Model(&client).
		Where("name = ?", identity.Name).
		Where("email = ?", identity.Email).
		Where("phone = ?", identity.Phone).
		Where("address = ?", identity.Address).
		Where("national_id = ?", identity.NationalID).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &client, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	client = models.Client{
		ID:         utils.GenerateUUID(),
		Name:       identity.Name,
		Email:      identity.Email,
		Phone:      identity.Phone,
		Address:    identity.Address,
		NationalID: identity.NationalID,
		CreatedAt:  time.Now(),
	}
	if _, err := d.Bun.NewInsert().Model(&client).Exec(ctx); err != nil {
		return nil, err
	}
	return &client, nil
}

func (d *DB) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	err := d.Bun.NewSelect().
		Model(&client).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ---------------- ORDER ITEMS ----------------

func (d *DB) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&items).Exec(ctx)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: order item", ErrDuplicateEntry)
	}
	return err
}

func (d *DB) OrderItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Scan(ctx)
	return items, err
}

// ---------------- CATALOG ----------------

func (d *DB) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	var pkg models.Package
	err := d.Bun.NewSelect().
		Model(&pkg).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (d *DB) GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := d.Bun.NewSelect().
		Model(&pm).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// WinnersByOrder pairs the order's sold tickets with any prize assigned to them.
func (d *DB) WinnersByOrder(ctx context.Context, orderID string) ([]models.PrizeWin, error) {
	var wins []models.PrizeWin
	err := d.Bun.NewSelect().
		TableExpr("prizes AS p").
		ColumnExpr("t.code AS ticket_code").
		ColumnExpr("p.description AS description").
		Join("JOIN tickets AS t ON t.id = p.ticket_id").
		Where("t.order_id = ?", orderID).
		Where("t.state = ?", models.TicketSold).
		OrderExpr("t.code ASC").
		Scan(ctx, &wins)
	return wins, err
}

// ---------------- PAYMENT ATTEMPTS ----------------

func (d *DB) CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	_, err := d.Bun.NewInsert().Model(attempt).Exec(ctx)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: payment attempt %s", ErrDuplicateEntry, attempt.ExternalID)
	}
	return err
}

func (d *DB) GetPaymentAttemptByExternalID(ctx context.Context, externalID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := d.Bun.NewSelect().
		Model(&attempt).
		Where("external_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// OpenPaymentAttempt returns the newest unexpired attempt still in init.
func (d *DB) OpenPaymentAttempt(ctx context.Context, orderID string, now time.Time) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := d.Bun.NewSelect().
		Model(&attempt).
		Where("order_id = ?", orderID).
		Where("status = ?", models.AttemptInit).
		Where("expires_at > ?", now).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// SaveAttemptResponse stores the latest raw gateway payload.
func (d *DB) SaveAttemptResponse(ctx context.Context, attempt *models.PaymentAttempt) error {
	attempt.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(attempt).
		Column("raw_response", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// SetAttemptStatus moves an attempt out of init. Attempts already settled keep
// their status.
func (d *DB) SetAttemptStatus(ctx context.Context, externalID string, status models.PaymentAttemptStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.PaymentAttempt)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("external_id = ?", externalID).
		Where("status = ?", models.AttemptInit).
		Exec(ctx)
	return err
}

// ---------------- INVOICES ----------------

func (d *DB) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	_, err := d.Bun.NewInsert().Model(invoice).Exec(ctx)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: invoice for order %s", ErrDuplicateEntry, invoice.OrderID)
	}
	return err
}

// SetInvoiceFile records where the invoice PDF was stored.
func (d *DB) SetInvoiceFile(ctx context.Context, id, location string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Invoice)(nil)).
		Set("file_path = ?", location).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteInvoice frees the number of an invoice whose PDF could not be stored.
func (d *DB) DeleteInvoice(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Invoice)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) GetInvoiceByOrder(ctx context.Context, orderID string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := d.Bun.NewSelect().
		Model(&invoice).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
