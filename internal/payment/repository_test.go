package payment_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/idea-vending/vendsync/internal/infrastructure/database"
	"github.com/idea-vending/vendsync/internal/payment"
	_ "github.com/idea-vending/vendsync/migrations"
)

func openTestRepo(t *testing.T) *payment.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "payments.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return payment.NewSQLiteRepository(db)
}

func testPayment(id, machineID int64) payment.Payment {
	now := time.Now().UTC().Format(time.RFC3339)
	return payment.Payment{
		ID:                id,
		Successful:        true,
		Amount:            1500,
		Date:              now,
		Product:           "Agua Mineral",
		ResponseCode:      0,
		ResponseMessage:   "Aprobado",
		CommerceCode:      "597012345678",
		TerminalID:        "T-01",
		AuthorizationCode: 123456,
		LastDigits:        "4321",
		OperationNumber:   "OP-9",
		CardType:          payment.CardTypeDebit,
		CardBrand:         "Visa",
		ShareType:         "N/D",
		MachineID:         machineID,
		EnterpriseID:      2,
		MachineName:       "Lobby",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestSaveAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	want := testPayment(77, 5)
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.GetByPaymentID(ctx, 77)
	if err != nil {
		t.Fatalf("GetByPaymentID() error = %v", err)
	}
	if got.ID != 77 || got.Amount != 1500 || got.CardType != payment.CardTypeDebit {
		t.Errorf("GetByPaymentID() = %+v", got)
	}
	if got.CardBrand != "Visa" || got.LastDigits != "4321" {
		t.Errorf("card fields = %q/%q", got.CardBrand, got.LastDigits)
	}
}

func TestSaveDeduplicatesOnPaymentID(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	p := testPayment(77, 5)
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	// At-least-once redelivery with newer data.
	p.Amount = 2000
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	all, err := repo.List(ctx, payment.ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List() returned %d rows, want 1 after redelivery", len(all))
	}
	if all[0].Amount != 2000 {
		t.Errorf("Amount = %v, want 2000 (redelivery wins)", all[0].Amount)
	}
}

func TestSaveAllowsMultipleUnidentifiedRecords(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := testPayment(0, 5)
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save() #%d error = %v", i, err)
		}
	}

	all, err := repo.List(ctx, payment.ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d rows, want 3 (no dedupe without gateway id)", len(all))
	}
}

func TestListFilters(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	a := testPayment(1, 5)
	b := testPayment(2, 6)
	c := testPayment(3, 5)
	c.Successful = false
	c.ResponseCode = -3

	for _, p := range []payment.Payment{a, b, c} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	byMachine, err := repo.List(ctx, payment.ListFilter{MachineID: 5})
	if err != nil {
		t.Fatalf("List(machine) error = %v", err)
	}
	if len(byMachine) != 2 {
		t.Errorf("machine filter returned %d rows, want 2", len(byMachine))
	}

	failed, err := repo.List(ctx, payment.ListFilter{OnlyFailed: true})
	if err != nil {
		t.Fatalf("List(failed) error = %v", err)
	}
	if len(failed) != 1 || failed[0].ID != 3 {
		t.Errorf("failed filter = %+v, want only payment 3", failed)
	}

	limited, err := repo.List(ctx, payment.ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit filter returned %d rows, want 1", len(limited))
	}
}

func TestGetByPaymentIDNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetByPaymentID(context.Background(), 404)
	if !errors.Is(err, payment.ErrNotFound) {
		t.Errorf("GetByPaymentID() error = %v, want ErrNotFound", err)
	}
}
