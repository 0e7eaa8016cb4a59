package charges

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

type chargeRepoPG struct{ pool *pgxpool.Pool }

func NewChargeRepoPG(pool *pgxpool.Pool) ChargeRepository { return &chargeRepoPG{pool: pool} }

func (r *chargeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const chargeCols = `id, patient_id, kind, catalog_item_id, name, status,
	quantity, unit_charge, service_date, created_at, updated_at`

func scanCharge(row pgx.Row) (*Charge, error) {
	var c Charge
	err := row.Scan(&c.ID, &c.PatientID, &c.Kind, &c.CatalogItemID, &c.Name, &c.Status,
		&c.Quantity, &c.UnitCharge, &c.ServiceDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Amount = c.UnitCharge * float64(c.Quantity)
	return &c, nil
}

func (r *chargeRepoPG) Create(ctx context.Context, c *Charge) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO charge (id, patient_id, kind, catalog_item_id, name, status,
			quantity, unit_charge, service_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.Kind, c.CatalogItemID, c.Name, c.Status,
		c.Quantity, c.UnitCharge, c.ServiceDate,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return err
	}
	c.Amount = c.UnitCharge * float64(c.Quantity)
	return nil
}

func (r *chargeRepoPG) GetByKindID(ctx context.Context, kind string, id uuid.UUID) (*Charge, error) {
	c, err := scanCharge(r.conn(ctx).QueryRow(ctx,
		`SELECT `+chargeCols+` FROM charge WHERE id = $1 AND kind = $2`, id, kind))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "charge not found")
	}
	return c, err
}

func (r *chargeRepoPG) listCharges(ctx context.Context, sql string, args ...interface{}) ([]*Charge, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *chargeRepoPG) ListOutstanding(ctx context.Context, patientID uuid.UUID) ([]*Charge, error) {
	return r.listCharges(ctx, `
		SELECT `+chargeCols+` FROM charge
		WHERE patient_id = $1 AND status IN ($2, $3)
		ORDER BY service_date DESC, created_at DESC`,
		patientID, StatusPending, StatusOrdered)
}

func (r *chargeRepoPG) MarkAllPaid(ctx context.Context, patientID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE charge SET status = $2, updated_at = NOW()
		WHERE patient_id = $1 AND status IN ($3, $4)`,
		patientID, StatusPaid, StatusPending, StatusOrdered)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *chargeRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE charge SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "charge not found")
	}
	return nil
}

func (r *chargeRepoPG) ListPaidBetween(ctx context.Context, patientID uuid.UUID, start, end *time.Time) ([]*Charge, error) {
	return r.listCharges(ctx, `
		SELECT `+chargeCols+` FROM charge
		WHERE patient_id = $1 AND status = $2
		  AND ($3::timestamptz IS NULL OR service_date >= $3)
		  AND ($4::timestamptz IS NULL OR service_date <= $4)
		ORDER BY service_date DESC`,
		patientID, StatusPaid, start, end)
}

func (r *chargeRepoPG) Analytics(ctx context.Context, unit string, buckets int) ([]AnalyticsBucket, error) {
	// unit is validated upstream against day|week|month before reaching the
	// date_trunc call.
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT date_trunc($1, service_date) AS bucket,
		       SUM(unit_charge * quantity) AS total
		FROM charge
		WHERE status = $2
		GROUP BY bucket
		ORDER BY bucket DESC
		LIMIT $3`, unit, StatusPaid, buckets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalyticsBucket
	for rows.Next() {
		var b AnalyticsBucket
		if err := rows.Scan(&b.Period, &b.Total); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
