package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CatalogRepository persists the billing price list.
type CatalogRepository interface {
	Create(ctx context.Context, item *CatalogItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*CatalogItem, error)
	List(ctx context.Context, limit, offset int) ([]*CatalogItem, int, error)
}

// BillRepository persists bills and their line items.
type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	CreateItem(ctx context.Context, item *BillItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	ListItems(ctx context.Context, billID uuid.UUID) ([]*BillItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Search(ctx context.Context, p SearchParams) ([]*Bill, int, error)
	// CreatedBetween returns the count and summed total of bills created in
	// the window, plus per-status counts.
	CreatedBetween(ctx context.Context, start, end time.Time) (count int, billed float64, statusCounts map[string]int, err error)
}

// PaymentRepository persists immutable payment records.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ListByBill(ctx context.Context, billID uuid.UUID) ([]*Payment, error)
	// RecordedBetween sums payments received in the window.
	RecordedBetween(ctx context.Context, start, end time.Time) (float64, error)
}
