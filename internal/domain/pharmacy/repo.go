package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StockRepository persists stock items and their restock log.
type StockRepository interface {
	Create(ctx context.Context, item *StockItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*StockItem, error)
	List(ctx context.Context, limit, offset int) ([]*StockItem, int, error)
	// Restock atomically increments quantity and stamps last_restocked.
	Restock(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error)
	// Dispense atomically decrements quantity when enough stock exists.
	Dispense(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error)
	AppendLog(ctx context.Context, itemID uuid.UUID, qtyAdded int) error
	ListLog(ctx context.Context, itemID uuid.UUID) ([]*StockLogEntry, error)
}

// PrescriptionRepository updates prescriptions during fulfillment.
type PrescriptionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// MarkDispensed completes a prescription with the dispensed quantity and
	// timestamp and returns the updated row. It reports degraded=true when the
	// store lacks the timestamp column and the update was retried without it;
	// the returned row then carries no dispensed timestamp.
	MarkDispensed(ctx context.Context, id uuid.UUID, qty int, dispensedAt time.Time) (rx *Prescription, degraded bool, err error)
}
