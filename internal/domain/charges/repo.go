package charges

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChargeRepository persists billable events.
type ChargeRepository interface {
	Create(ctx context.Context, c *Charge) error
	// GetByKindID fetches a charge only when both id and kind match.
	GetByKindID(ctx context.Context, kind string, id uuid.UUID) (*Charge, error)
	// ListOutstanding returns pending and ordered charges for a patient.
	ListOutstanding(ctx context.Context, patientID uuid.UUID) ([]*Charge, error)
	// MarkAllPaid transitions every outstanding charge of a patient to paid
	// and returns how many rows changed.
	MarkAllPaid(ctx context.Context, patientID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// ListPaidBetween returns a patient's paid charges, optionally bounded by
	// an inclusive service-date range.
	ListPaidBetween(ctx context.Context, patientID uuid.UUID, start, end *time.Time) ([]*Charge, error)
	// Analytics aggregates charge amounts into the most recent buckets of the
	// given calendar unit (day, week or month), most recent first.
	Analytics(ctx context.Context, unit string, buckets int) ([]AnalyticsBucket, error)
}
