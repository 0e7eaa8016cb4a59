package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Catalog Repository ===========

type catalogRepoPG struct{ pool *pgxpool.Pool }

func NewCatalogRepoPG(pool *pgxpool.Pool) CatalogRepository { return &catalogRepoPG{pool: pool} }

func (r *catalogRepoPG) Create(ctx context.Context, item *CatalogItem) error {
	item.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO billing_catalog_item (id, name, description, unit_price, category, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		item.ID, item.Name, item.Description, item.UnitPrice, item.Category, item.Active,
	).Scan(&item.CreatedAt)
}

func (r *catalogRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CatalogItem, error) {
	var item CatalogItem
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, description, unit_price, category, active, created_at
		FROM billing_catalog_item WHERE id = $1`, id).
		Scan(&item.ID, &item.Name, &item.Description, &item.UnitPrice,
			&item.Category, &item.Active, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "catalog item not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *catalogRepoPG) List(ctx context.Context, limit, offset int) ([]*CatalogItem, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM billing_catalog_item`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, name, description, unit_price, category, active, created_at
		FROM billing_catalog_item
		ORDER BY category, name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*CatalogItem
	for rows.Next() {
		var item CatalogItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.UnitPrice,
			&item.Category, &item.Active, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &item)
	}
	return items, total, rows.Err()
}

// =========== Bill Repository ===========

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository { return &billRepoPG{pool: pool} }

const billCols = `id, bill_number, patient_id, patient_name, status, bill_date,
	due_date, tax_amount, discount_amount, total_amount, notes, created_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.BillNumber, &b.PatientID, &b.PatientName, &b.Status,
		&b.BillDate, &b.DueDate, &b.TaxAmount, &b.DiscountAmount, &b.TotalAmount,
		&b.Notes, &b.CreatedAt)
	return &b, err
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO bill (id, bill_number, patient_id, patient_name, status,
			bill_date, due_date, tax_amount, discount_amount, total_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		b.ID, b.BillNumber, b.PatientID, b.PatientName, b.Status,
		b.BillDate, b.DueDate, b.TaxAmount, b.DiscountAmount, b.TotalAmount, b.Notes,
	).Scan(&b.CreatedAt)
}

func (r *billRepoPG) CreateItem(ctx context.Context, item *BillItem) error {
	item.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO bill_item (id, bill_id, catalog_item_id, item_name,
			quantity, unit_price, total_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.BillID, item.CatalogItemID, item.ItemName,
		item.Quantity, item.UnitPrice, item.TotalPrice, item.Notes)
	return err
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := scanBill(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+billCols+` FROM bill WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "bill not found")
	}
	return b, err
}

func (r *billRepoPG) ListItems(ctx context.Context, billID uuid.UUID) ([]*BillItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, bill_id, catalog_item_id, item_name, quantity, unit_price, total_price, notes
		FROM bill_item WHERE bill_id = $1
		ORDER BY item_name`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BillItem
	for rows.Next() {
		var item BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.CatalogItemID, &item.ItemName,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.Notes); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *billRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE bill SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "bill not found")
	}
	return nil
}

func (r *billRepoPG) Search(ctx context.Context, p SearchParams) ([]*Bill, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0

	if p.Query != "" {
		n++
		where += fmt.Sprintf(" AND (bill_number ILIKE $%d OR patient_name ILIKE $%d)", n, n)
		args = append(args, "%"+p.Query+"%")
	}
	if p.Status != "" {
		n++
		where += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, p.Status)
	}
	if p.Start != nil {
		n++
		where += fmt.Sprintf(" AND bill_date >= $%d", n)
		args = append(args, *p.Start)
	}
	if p.End != nil {
		n++
		where += fmt.Sprintf(" AND bill_date <= $%d", n)
		args = append(args, *p.End)
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM bill "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM bill %s ORDER BY bill_date DESC LIMIT $%d OFFSET $%d",
		billCols, where, n+1, n+2)
	args = append(args, p.Limit, p.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bills []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		bills = append(bills, b)
	}
	return bills, total, rows.Err()
}

func (r *billRepoPG) CreatedBetween(ctx context.Context, start, end time.Time) (int, float64, map[string]int, error) {
	var count int
	var billed float64
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM bill WHERE created_at >= $1 AND created_at <= $2`, start, end).
		Scan(&count, &billed)
	if err != nil {
		return 0, 0, nil, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT status, COUNT(*)
		FROM bill WHERE created_at >= $1 AND created_at <= $2
		GROUP BY status`, start, end)
	if err != nil {
		return 0, 0, nil, err
	}
	defer rows.Close()

	statusCounts := make(map[string]int)
	for rows.Next() {
		var status string
		var c int
		if err := rows.Scan(&status, &c); err != nil {
			return 0, 0, nil, err
		}
		statusCounts[status] = c
	}
	return count, billed, statusCounts, rows.Err()
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payment (id, bill_id, patient_id, amount, method,
			reference_number, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		p.ID, p.BillID, p.PatientID, p.Amount, p.Method,
		p.ReferenceNumber, p.Notes, p.Status,
	).Scan(&p.CreatedAt)
}

func (r *paymentRepoPG) ListByBill(ctx context.Context, billID uuid.UUID) ([]*Payment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, bill_id, patient_id, amount, method, reference_number, notes, status, created_at
		FROM payment WHERE bill_id = $1
		ORDER BY created_at DESC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.BillID, &p.PatientID, &p.Amount, &p.Method,
			&p.ReferenceNumber, &p.Notes, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (r *paymentRepoPG) RecordedBetween(ctx context.Context, start, end time.Time) (float64, error) {
	var total float64
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payment WHERE created_at >= $1 AND created_at <= $2`, start, end).
		Scan(&total)
	return total, err
}
