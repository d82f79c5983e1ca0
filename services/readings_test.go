package services

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omegahouses/invoice-api/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// One connection, or every pooled connection gets its own :memory: db.
	db.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createTestApartment(t *testing.T, db *sql.DB) int64 {
	t.Helper()

	res, err := db.Exec(`
		INSERT INTO apartments (city, zip, street,
			gas_unit_price, electricity_unit_price, water_unit_price, heating_unit_price,
			rent, maintenance_fee, deadline, language)
		VALUES ('Budapest', '1111', 'Fő utca 1.', 250, 4500, 120, 300, 150000, 20000, 10, 'e')
	`)
	if err != nil {
		t.Fatalf("Failed to create test apartment: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func countFlagged(t *testing.T, db *sql.DB, meter MeterType, apartmentID int64) int {
	t.Helper()

	var count int
	err := db.QueryRow(fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE apartment_reference = ? AND latest = 1", meter.table()),
		apartmentID).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count flagged rows: %v", err)
	}
	return count
}

func TestAppend_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	id, err := store.Append(apartmentID, Gas, 1500, 0, nil)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if id == 0 {
		t.Error("Expected non-zero reading id")
	}

	reading, err := store.Latest(apartmentID, Gas)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if reading.Value != 1500 {
		t.Errorf("Expected value 1500, got %d", reading.Value)
	}
	if !reading.Latest {
		t.Error("Expected latest flag to be set")
	}
	if reading.Consumption != nil {
		t.Errorf("Expected no stored consumption, got %d", *reading.Consumption)
	}
}

func TestAppend_RejectsNonPositiveValue(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	for _, value := range []int{0, -5} {
		if _, err := store.Append(apartmentID, Water, value, 0, nil); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Append(%d): expected ErrInvalidValue, got %v", value, err)
		}
	}

	history, err := store.RecentHistory(apartmentID, Water, 12)
	if err != nil {
		t.Fatalf("RecentHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no rows after rejected appends, got %d", len(history))
	}
}

func TestAppend_UnknownApartment(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)

	if _, err := store.Append(999, Gas, 100, 0, nil); !errors.Is(err, ErrApartmentNotFound) {
		t.Errorf("Expected ErrApartmentNotFound, got %v", err)
	}
}

func TestLatest_NoReading(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	if _, err := store.Latest(apartmentID, Heating); !errors.Is(err, ErrNoReading) {
		t.Errorf("Expected ErrNoReading, got %v", err)
	}
}

func TestAppend_SingleLatestFlag(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	for _, value := range []int{100, 150, 220} {
		if _, err := store.Append(apartmentID, Electricity, value, 0, nil); err != nil {
			t.Fatalf("Append(%d) failed: %v", value, err)
		}
	}

	if flagged := countFlagged(t, db, Electricity, apartmentID); flagged != 1 {
		t.Errorf("Expected exactly 1 flagged row, got %d", flagged)
	}

	reading, err := store.Latest(apartmentID, Electricity)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if reading.Value != 220 {
		t.Errorf("Expected latest value 220, got %d", reading.Value)
	}
}

func TestPromote_Idempotent(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	if _, err := store.Append(apartmentID, Gas, 100, 0, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.Promote(apartmentID, Gas); err != nil {
			t.Fatalf("Promote run %d failed: %v", i, err)
		}
	}

	if flagged := countFlagged(t, db, Gas, apartmentID); flagged != 1 {
		t.Errorf("Expected 1 flagged row after repeated promotes, got %d", flagged)
	}
}

func TestPromote_HealsDuplicateFlags(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	for _, value := range []int{100, 150, 220} {
		if _, err := store.Append(apartmentID, Gas, value, 0, nil); err != nil {
			t.Fatalf("Append(%d) failed: %v", value, err)
		}
	}

	// Simulate the append/promote race leaving every row flagged.
	if _, err := db.Exec("UPDATE gas_meter_values SET latest = 1 WHERE apartment_reference = ?", apartmentID); err != nil {
		t.Fatalf("Failed to corrupt flags: %v", err)
	}

	if err := store.Promote(apartmentID, Gas); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	if flagged := countFlagged(t, db, Gas, apartmentID); flagged != 1 {
		t.Errorf("Expected promote to heal down to 1 flagged row, got %d", flagged)
	}

	reading, err := store.Latest(apartmentID, Gas)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if reading.Value != 220 {
		t.Errorf("Expected most recent value 220 to survive healing, got %d", reading.Value)
	}
}

func TestRecentHistory_OrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	for value := 1; value <= 15; value++ {
		if _, err := store.Append(apartmentID, Water, value*10, 0, nil); err != nil {
			t.Fatalf("Append(%d) failed: %v", value*10, err)
		}
	}

	history, err := store.RecentHistory(apartmentID, Water, 12)
	if err != nil {
		t.Fatalf("RecentHistory failed: %v", err)
	}
	if len(history) != 12 {
		t.Fatalf("Expected 12 entries, got %d", len(history))
	}
	if history[0].Value != 150 {
		t.Errorf("Expected most recent value 150 first, got %d", history[0].Value)
	}
	for i := 1; i < len(history); i++ {
		if history[i].Value >= history[i-1].Value {
			t.Errorf("History not in descending order at index %d: %d then %d",
				i, history[i-1].Value, history[i].Value)
		}
	}
}

func TestSeries_Independent(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	if _, err := store.Append(apartmentID, Gas, 500, 0, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	for _, meter := range []MeterType{Electricity, Water, Heating} {
		if _, err := store.Latest(apartmentID, meter); !errors.Is(err, ErrNoReading) {
			t.Errorf("Expected ErrNoReading for untouched %s series, got %v", meter, err)
		}
	}
}

func TestActiveWindow_ToleratesDuplicateFlags(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	apartmentID := createTestApartment(t, db)

	for _, value := range []int{100, 150} {
		if _, err := store.Append(apartmentID, Heating, value, 0, nil); err != nil {
			t.Fatalf("Append(%d) failed: %v", value, err)
		}
	}
	if _, err := db.Exec("UPDATE heating_meter_values SET latest = 1 WHERE apartment_reference = ?", apartmentID); err != nil {
		t.Fatalf("Failed to corrupt flags: %v", err)
	}

	window, err := store.ActiveWindow(apartmentID, Heating, 3)
	if err != nil {
		t.Fatalf("ActiveWindow failed: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("Expected both flagged rows, got %d", len(window))
	}
	if window[0].Value != 150 {
		t.Errorf("Expected most recent flagged row first, got value %d", window[0].Value)
	}
}

func TestParseMeterType(t *testing.T) {
	for _, name := range []string{"gas", "electricity", "water", "heating"} {
		if _, err := ParseMeterType(name); err != nil {
			t.Errorf("ParseMeterType(%q) failed: %v", name, err)
		}
	}
	if _, err := ParseMeterType("steam"); !errors.Is(err, ErrInvalidMeterType) {
		t.Errorf("Expected ErrInvalidMeterType for unknown utility, got %v", err)
	}
}
