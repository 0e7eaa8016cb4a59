package pharmacy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
)

// mockStockRepo is a mutex-guarded in-memory stock store so concurrent
// dispense tests exercise the same atomicity the SQL statement provides.
type mockStockRepo struct {
	mu     sync.Mutex
	items  map[uuid.UUID]*StockItem
	logs   map[uuid.UUID][]*StockLogEntry
	logErr error
}

func newMockStockRepo() *mockStockRepo {
	return &mockStockRepo{
		items: make(map[uuid.UUID]*StockItem),
		logs:  make(map[uuid.UUID][]*StockLogEntry),
	}
}

func (m *mockStockRepo) Create(ctx context.Context, item *StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockStockRepo) GetByID(ctx context.Context, id uuid.UUID) (*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "stock item not found")
	}
	cp := *item
	return &cp, nil
}

func (m *mockStockRepo) List(ctx context.Context, limit, offset int) ([]*StockItem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*StockItem
	for _, item := range m.items {
		cp := *item
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *mockStockRepo) Restock(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "stock item not found")
	}
	item.Quantity += qty
	now := time.Now()
	item.LastRestocked = &now
	item.UpdatedAt = now
	cp := *item
	return &cp, nil
}

func (m *mockStockRepo) Dispense(ctx context.Context, id uuid.UUID, qty int) (*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "stock item not found")
	}
	if item.Quantity < qty {
		return nil, apperr.New(apperr.KindInsufficientStock, "insufficient stock")
	}
	item.Quantity -= qty
	item.UpdatedAt = time.Now()
	cp := *item
	return &cp, nil
}

func (m *mockStockRepo) AppendLog(ctx context.Context, itemID uuid.UUID, qtyAdded int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.logs[itemID] = append(m.logs[itemID], &StockLogEntry{
		ID:            uuid.New(),
		StockItemID:   itemID,
		QuantityAdded: qtyAdded,
		CreatedAt:     time.Now(),
	})
	return nil
}

func (m *mockStockRepo) ListLog(ctx context.Context, itemID uuid.UUID) ([]*StockLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[itemID], nil
}

func (m *mockStockRepo) quantity(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Quantity
}

func (m *mockStockRepo) snapshot() map[uuid.UUID]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[uuid.UUID]int, len(m.items))
	for id, item := range m.items {
		snap[id] = item.Quantity
	}
	return snap
}

func (m *mockStockRepo) restore(snap map[uuid.UUID]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, qty := range snap {
		if item, ok := m.items[id]; ok {
			item.Quantity = qty
		}
	}
}

type mockRxRepo struct {
	mu       sync.Mutex
	rx       map[uuid.UUID]*Prescription
	noColumn bool
	markErr  error
}

func newMockRxRepo() *mockRxRepo {
	return &mockRxRepo{rx: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRxRepo) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A store without the column rejects every read that names it, the same
	// way the SQL implementation would.
	if m.noColumn {
		return nil, errors.New(`column "dispensed_at" does not exist`)
	}
	p, ok := m.rx[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "prescription not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRxRepo) MarkDispensed(ctx context.Context, id uuid.UUID, qty int, dispensedAt time.Time) (*Prescription, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return nil, false, m.markErr
	}
	p, ok := m.rx[id]
	if !ok {
		return nil, false, apperr.New(apperr.KindNotFound, "prescription not found")
	}
	p.Status = PrescriptionCompleted
	p.Quantity = qty
	if m.noColumn {
		cp := *p
		cp.DispensedAt = nil
		return &cp, true, nil
	}
	at := dispensedAt
	p.DispensedAt = &at
	cp := *p
	return &cp, false, nil
}

// mockTxRunner restores stock quantities when the function fails, mirroring a
// rolled-back transaction.
type mockTxRunner struct {
	stock *mockStockRepo
}

func (r *mockTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := r.stock.snapshot()
	if err := fn(ctx); err != nil {
		r.stock.restore(snap)
		return err
	}
	return nil
}

func newTestService() (*Service, *mockStockRepo, *mockRxRepo) {
	stock := newMockStockRepo()
	rx := newMockRxRepo()
	svc := NewService(stock, rx, &mockTxRunner{stock: stock}, zerolog.Nop())
	return svc, stock, rx
}

func seedStock(t *testing.T, svc *Service, qty int) *StockItem {
	t.Helper()
	item, err := svc.AddDrug(context.Background(), "Amoxicillin", "500mg capsules", qty, "capsule")
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return item
}

func seedPrescription(rx *mockRxRepo) *Prescription {
	p := &Prescription{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		Medications: "Amoxicillin 500mg",
		Quantity:    0,
		Status:      PrescriptionActive,
		CreatedAt:   time.Now(),
	}
	rx.rx[p.ID] = p
	return p
}

func TestAddDrug(t *testing.T) {
	svc, _, _ := newTestService()

	item, err := svc.AddDrug(context.Background(), "Ibuprofen", "200mg tablets", 100, "tablet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if item.Quantity != 100 {
		t.Errorf("expected quantity 100, got %d", item.Quantity)
	}
}

func TestAddDrug_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name     string
		drugName string
		qty      int
		unit     string
		kind     apperr.Kind
	}{
		{"missing name", "", 10, "tablet", apperr.KindInvalidInput},
		{"missing unit", "Ibuprofen", 10, "", apperr.KindInvalidInput},
		{"negative quantity", "Ibuprofen", -1, "tablet", apperr.KindInvalidQuantity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddDrug(ctx, tc.drugName, "", tc.qty, tc.unit)
			if err == nil {
				t.Fatal("expected error")
			}
			if apperr.KindOf(err) != tc.kind {
				t.Errorf("expected kind %v, got %v", tc.kind, apperr.KindOf(err))
			}
		})
	}
}

func TestRestock(t *testing.T) {
	svc, stock, _ := newTestService()
	item := seedStock(t, svc, 10)

	updated, err := svc.Restock(context.Background(), item.ID, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Quantity != 25 {
		t.Errorf("expected quantity 25, got %d", updated.Quantity)
	}
	if updated.LastRestocked == nil {
		t.Error("expected last_restocked to be set")
	}

	logs, err := svc.StockLog(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].QuantityAdded != 15 {
		t.Errorf("expected one log entry of 15, got %+v", logs)
	}

	if stock.quantity(item.ID) != 25 {
		t.Errorf("store quantity mismatch: %d", stock.quantity(item.ID))
	}
}

func TestRestock_InvalidQuantity(t *testing.T) {
	svc, _, _ := newTestService()
	item := seedStock(t, svc, 10)

	for _, qty := range []int{0, -5} {
		_, err := svc.Restock(context.Background(), item.ID, qty)
		if apperr.KindOf(err) != apperr.KindInvalidQuantity {
			t.Errorf("qty %d: expected InvalidQuantity, got %v", qty, err)
		}
	}
}

func TestRestock_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Restock(context.Background(), uuid.New(), 5)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestRestock_RollbackOnLogFailure(t *testing.T) {
	svc, stock, _ := newTestService()
	item := seedStock(t, svc, 10)
	stock.logErr = errors.New("log store down")

	_, err := svc.Restock(context.Background(), item.ID, 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if stock.quantity(item.ID) != 10 {
		t.Errorf("quantity increment must roll back, got %d", stock.quantity(item.ID))
	}
	logs, _ := stock.ListLog(context.Background(), item.ID)
	if len(logs) != 0 {
		t.Errorf("expected no log entries, got %d", len(logs))
	}
}

func TestDispense(t *testing.T) {
	svc, _, _ := newTestService()
	item := seedStock(t, svc, 10)

	updated, err := svc.Dispense(context.Background(), item.ID, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Quantity != 6 {
		t.Errorf("expected quantity 6, got %d", updated.Quantity)
	}
}

func TestDispense_InsufficientStock(t *testing.T) {
	svc, stock, _ := newTestService()
	item := seedStock(t, svc, 10)

	_, err := svc.Dispense(context.Background(), item.ID, 15)
	if apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if stock.quantity(item.ID) != 10 {
		t.Errorf("failed dispense must leave quantity unchanged, got %d", stock.quantity(item.ID))
	}
}

func TestDispense_Concurrent(t *testing.T) {
	svc, stock, _ := newTestService()
	item := seedStock(t, svc, 50)

	const workers = 100
	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Dispense(context.Background(), item.ID, 1); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 50 {
		t.Errorf("expected exactly 50 successful dispenses, got %d", successes)
	}
	if got := stock.quantity(item.ID); got != 0 {
		t.Errorf("expected quantity 0, got %d", got)
	}
	if stock.quantity(item.ID) < 0 {
		t.Error("quantity must never be negative")
	}
}

func TestDispensePrescription(t *testing.T) {
	svc, stock, rx := newTestService()
	item := seedStock(t, svc, 5)
	p := seedPrescription(rx)

	result, err := svc.DispensePrescription(context.Background(), item.ID, 2, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stock.Quantity != 3 {
		t.Errorf("expected stock 3, got %d", result.Stock.Quantity)
	}
	if result.Prescription.Status != PrescriptionCompleted {
		t.Errorf("expected completed prescription, got %s", result.Prescription.Status)
	}
	if result.Prescription.Quantity != 2 {
		t.Errorf("expected prescription quantity 2, got %d", result.Prescription.Quantity)
	}
	if result.Prescription.DispensedAt == nil {
		t.Error("expected dispensed_at to be set")
	}
	if result.Degraded {
		t.Error("expected non-degraded result")
	}
	if stock.quantity(item.ID) != 3 {
		t.Errorf("store quantity mismatch: %d", stock.quantity(item.ID))
	}
}

func TestDispensePrescription_Validation(t *testing.T) {
	svc, _, rx := newTestService()
	item := seedStock(t, svc, 5)
	p := seedPrescription(rx)
	ctx := context.Background()

	_, err := svc.DispensePrescription(ctx, item.ID, 0, p.ID)
	if apperr.KindOf(err) != apperr.KindInvalidQuantity {
		t.Errorf("expected InvalidQuantity, got %v", err)
	}

	_, err = svc.DispensePrescription(ctx, item.ID, 2, uuid.Nil)
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

func TestDispensePrescription_InsufficientStock(t *testing.T) {
	svc, stock, rx := newTestService()
	item := seedStock(t, svc, 1)
	p := seedPrescription(rx)

	_, err := svc.DispensePrescription(context.Background(), item.ID, 5, p.ID)
	if apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if stock.quantity(item.ID) != 1 {
		t.Errorf("expected stock unchanged at 1, got %d", stock.quantity(item.ID))
	}
	got, _ := rx.GetByID(context.Background(), p.ID)
	if got.Status != PrescriptionActive {
		t.Errorf("prescription must stay active, got %s", got.Status)
	}
}

func TestDispensePrescription_RollbackOnPrescriptionFailure(t *testing.T) {
	svc, stock, rx := newTestService()
	item := seedStock(t, svc, 5)
	rx.markErr = errors.New("prescription store down")

	_, err := svc.DispensePrescription(context.Background(), item.ID, 2, uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if stock.quantity(item.ID) != 5 {
		t.Errorf("stock decrement must roll back, got %d", stock.quantity(item.ID))
	}
}

func TestDispensePrescription_Degraded(t *testing.T) {
	svc, stock, rx := newTestService()
	item := seedStock(t, svc, 5)
	p := seedPrescription(rx)
	rx.noColumn = true

	result, err := svc.DispensePrescription(context.Background(), item.ID, 2, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if result.Warning == "" {
		t.Error("expected warning message")
	}
	if result.Prescription.Status != PrescriptionCompleted {
		t.Errorf("expected completed prescription, got %s", result.Prescription.Status)
	}
	if result.Prescription.DispensedAt != nil {
		t.Error("degraded path must not set dispensed_at")
	}
	if stock.quantity(item.ID) != 3 {
		t.Errorf("degraded dispense must still commit the decrement, got %d", stock.quantity(item.ID))
	}
}
