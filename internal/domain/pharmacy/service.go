package pharmacy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

// Service orchestrates stock-ledger operations and prescription fulfillment.
type Service struct {
	stock  StockRepository
	rx     PrescriptionRepository
	tx     db.TxRunner
	logger zerolog.Logger
}

func NewService(stock StockRepository, rx PrescriptionRepository, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{stock: stock, rx: rx, tx: tx, logger: logger}
}

// AddDrug registers a new drug in the stock ledger.
func (s *Service) AddDrug(ctx context.Context, name, description string, quantity int, unit string) (*StockItem, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "name is required")
	}
	if strings.TrimSpace(unit) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "unit is required")
	}
	if quantity < 0 {
		return nil, apperr.New(apperr.KindInvalidQuantity, "quantity must not be negative")
	}

	item := &StockItem{
		Name:        strings.TrimSpace(name),
		Description: description,
		Quantity:    quantity,
		Unit:        strings.TrimSpace(unit),
	}
	if err := s.stock.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) GetStock(ctx context.Context, id uuid.UUID) (*StockItem, error) {
	return s.stock.GetByID(ctx, id)
}

func (s *Service) ListStock(ctx context.Context, limit, offset int) ([]*StockItem, int, error) {
	return s.stock.List(ctx, limit, offset)
}

func (s *Service) StockLog(ctx context.Context, id uuid.UUID) ([]*StockLogEntry, error) {
	if _, err := s.stock.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.stock.ListLog(ctx, id)
}

// Restock increments stock and appends to the restock log in one transaction.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.KindInvalidQuantity, "restock quantity must be positive")
	}

	var item *StockItem
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.stock.Restock(ctx, id, qty)
		if err != nil {
			return err
		}
		return s.stock.AppendLog(ctx, id, qty)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Dispense removes stock without touching any prescription.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.KindInvalidQuantity, "dispense quantity must be positive")
	}
	return s.stock.Dispense(ctx, id, qty)
}

// DispensePrescription fulfills a prescription against stock. The stock
// decrement and the prescription update run in one transaction: either both
// commit or neither does. A missing dispensed-timestamp column downgrades the
// prescription update rather than failing the dispense; the result reports it.
func (s *Service) DispensePrescription(ctx context.Context, drugID uuid.UUID, qty int, prescriptionID uuid.UUID) (*DispenseResult, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.KindInvalidQuantity, "dispense quantity must be positive")
	}
	if prescriptionID == uuid.Nil {
		return nil, apperr.New(apperr.KindInvalidInput, "prescription id is required")
	}

	result := &DispenseResult{}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		stock, err := s.stock.Dispense(ctx, drugID, qty)
		if err != nil {
			return err
		}
		result.Stock = stock

		rx, degraded, err := s.rx.MarkDispensed(ctx, prescriptionID, qty, time.Now().UTC())
		if err != nil {
			return err
		}
		result.Prescription = rx
		result.Degraded = degraded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Degraded {
		result.Warning = "prescription completed without dispensed timestamp"
		s.logger.Warn().
			Str("prescription_id", prescriptionID.String()).
			Str("stock_item_id", drugID.String()).
			Int("quantity", qty).
			Msg("dispense completed degraded: prescription store lacks dispensed_at")
	}

	return result, nil
}
