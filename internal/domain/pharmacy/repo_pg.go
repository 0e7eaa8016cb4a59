package pharmacy

import (
	"context"
	"errors"
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

// pgUndefinedColumn is the Postgres error code for a missing column.
const pgUndefinedColumn = "42703"

// =========== Stock Repository ===========

type stockRepoPG struct{ pool *pgxpool.Pool }

func NewStockRepoPG(pool *pgxpool.Pool) StockRepository { return &stockRepoPG{pool: pool} }

func (r *stockRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const stockCols = `id, name, description, quantity, unit, last_restocked, created_at, updated_at`

func scanStockItem(row pgx.Row) (*StockItem, error) {
	var s StockItem
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Quantity, &s.Unit,
		&s.LastRestocked, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *stockRepoPG) Create(ctx context.Context, item *StockItem) error {
	item.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock_item (id, name, description, quantity, unit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		item.ID, item.Name, item.Description, item.Quantity, item.Unit,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (r *stockRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*StockItem, error) {
	item, err := scanStockItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stockCols+` FROM stock_item WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "stock item not found")
	}
	return item, err
}

func (r *stockRepoPG) List(ctx context.Context, limit, offset int) ([]*StockItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM stock_item`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stockCols+` FROM stock_item
		ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*StockItem
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *stockRepoPG) Restock(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error) {
	item, err := scanStockItem(r.conn(ctx).QueryRow(ctx, `
		UPDATE stock_item
		SET quantity = quantity + $2, last_restocked = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING `+stockCols, id, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "stock item not found")
	}
	return item, err
}

// Dispense decrements stock in a single conditional statement so concurrent
// dispenses can never drive the quantity negative.
func (r *stockRepoPG) Dispense(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error) {
	item, err := scanStockItem(r.conn(ctx).QueryRow(ctx, `
		UPDATE stock_item
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING `+stockCols, id, qty))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Distinguish a missing item from an insufficient balance.
	var have int
	err = r.conn(ctx).QueryRow(ctx, `SELECT quantity FROM stock_item WHERE id = $1`, id).Scan(&have)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "stock item not found")
	}
	if err != nil {
		return nil, err
	}
	return nil, apperr.Newf(apperr.KindInsufficientStock,
		"insufficient stock: have %d, requested %d", have, qty)
}

func (r *stockRepoPG) AppendLog(ctx context.Context, itemID uuid.UUID, qtyAdded int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_log (id, stock_item_id, quantity_added)
		VALUES ($1, $2, $3)`, uuid.New(), itemID, qtyAdded)
	return err
}

func (r *stockRepoPG) ListLog(ctx context.Context, itemID uuid.UUID) ([]*StockLogEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, stock_item_id, quantity_added, created_at
		FROM stock_log WHERE stock_item_id = $1
		ORDER BY created_at DESC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*StockLogEntry
	for rows.Next() {
		var e StockLogEntry
		if err := rows.Scan(&e.ID, &e.StockItemID, &e.QuantityAdded, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, medications, quantity, status, dispensed_at, created_at
		FROM prescription WHERE id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.Medications, &p.Quantity, &p.Status, &p.DispensedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "prescription not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// markDispensedFull writes the completed status, quantity and timestamp and
// reads the row back in one statement. Inside a transaction it runs through a
// savepoint, so a missing-column failure does not abort the enclosing
// transaction and the reduced update stays possible.
func (r *prescriptionRepoPG) markDispensedFull(ctx context.Context, id uuid.UUID, qty int, dispensedAt time.Time) (*Prescription, error) {
	const q = `
		UPDATE prescription
		SET status = $2, quantity = $3, dispensed_at = $4
		WHERE id = $1
		RETURNING id, patient_id, medications, quantity, status, dispensed_at, created_at`

	var p Prescription
	scan := func(row pgx.Row) error {
		return row.Scan(&p.ID, &p.PatientID, &p.Medications, &p.Quantity, &p.Status, &p.DispensedAt, &p.CreatedAt)
	}

	tx := db.TxFromContext(ctx)
	if tx == nil {
		if err := scan(r.pool.QueryRow(ctx, q, id, PrescriptionCompleted, qty, dispensedAt)); err != nil {
			return nil, err
		}
		return &p, nil
	}

	nested, err := tx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := scan(nested.QueryRow(ctx, q, id, PrescriptionCompleted, qty, dispensedAt)); err != nil {
		_ = nested.Rollback(ctx)
		return nil, err
	}
	return &p, nested.Commit(ctx)
}

func (r *prescriptionRepoPG) MarkDispensed(ctx context.Context, id uuid.UUID, qty int, dispensedAt time.Time) (*Prescription, bool, error) {
	p, err := r.markDispensedFull(ctx, id, qty, dispensedAt)
	if err == nil {
		return p, false, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn {
		// Older prescription tables lack dispensed_at. Complete the
		// prescription anyway; the RETURNING clause must also leave the
		// column out, nothing on this branch may touch it again.
		var p Prescription
		err = r.conn(ctx).QueryRow(ctx, `
			UPDATE prescription
			SET status = $2, quantity = $3
			WHERE id = $1
			RETURNING id, patient_id, medications, quantity, status, created_at`,
			id, PrescriptionCompleted, qty).
			Scan(&p.ID, &p.PatientID, &p.Medications, &p.Quantity, &p.Status, &p.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, true, apperr.New(apperr.KindNotFound, "prescription not found")
		}
		if err != nil {
			return nil, true, err
		}
		return &p, true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperr.New(apperr.KindNotFound, "prescription not found")
	}
	return nil, false, err
}
