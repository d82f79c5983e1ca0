package services

import (
	"errors"
	"testing"
)

func TestCost_Truncates(t *testing.T) {
	cases := []struct {
		consumption, unitPrice, expected int
	}{
		{50, 250, 125},  // 50 * 2.50
		{7, 333, 23},    // 23.31 truncates to 23
		{1, 99, 0},      // below one whole unit
		{0, 4500, 0},
		{-50, 250, -125}, // credit for negative consumption
	}

	for _, c := range cases {
		if got := Cost(c.consumption, c.unitPrice); got != c.expected {
			t.Errorf("Cost(%d, %d) = %d, expected %d",
				c.consumption, c.unitPrice, got, c.expected)
		}
	}
}

func TestCompare_TwoReadings(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	engine := NewCostEngine(db, store)
	apartmentID := createTestApartment(t, db)

	for _, value := range []int{100, 150} {
		if _, err := store.Append(apartmentID, Gas, value, 0, nil); err != nil {
			t.Fatalf("Append(%d) failed: %v", value, err)
		}
	}

	cmp, err := engine.Compare(apartmentID, Gas)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if cmp.Current.Value != 150 || cmp.Previous.Value != 100 {
		t.Errorf("Expected 150/100, got %d/%d", cmp.Current.Value, cmp.Previous.Value)
	}
	if cmp.Consumption != 50 {
		t.Errorf("Expected consumption 50, got %d", cmp.Consumption)
	}
	// gas unit price is 250 hundredths
	if cmp.Cost != 125 {
		t.Errorf("Expected cost 125, got %d", cmp.Cost)
	}
	if cmp.Padded {
		t.Error("Expected Padded false with two real readings")
	}
	if cmp.OldMeterConsumption != 0 {
		t.Errorf("Expected no old meter consumption, got %d", cmp.OldMeterConsumption)
	}
}

func TestCompare_SingleReadingPads(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	engine := NewCostEngine(db, store)
	apartmentID := createTestApartment(t, db)

	if _, err := store.Append(apartmentID, Water, 830, 0, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	cmp, err := engine.Compare(apartmentID, Water)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if !cmp.Padded {
		t.Error("Expected Padded true with a single reading")
	}
	if cmp.Current.Value != 830 {
		t.Errorf("Expected current value 830, got %d", cmp.Current.Value)
	}
	if cmp.Previous.Value != 0 || !cmp.Previous.Date.IsZero() {
		t.Errorf("Expected zero previous entry, got %+v", cmp.Previous)
	}
	if cmp.Consumption != 0 || cmp.Cost != 0 {
		t.Errorf("Expected zero consumption and cost, got %d / %d", cmp.Consumption, cmp.Cost)
	}
}

func TestCompare_NoReading(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	engine := NewCostEngine(db, store)
	apartmentID := createTestApartment(t, db)

	if _, err := engine.Compare(apartmentID, Heating); !errors.Is(err, ErrNoReading) {
		t.Errorf("Expected ErrNoReading, got %v", err)
	}
}

func TestCompare_ReplacementCarryOver(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	engine := NewCostEngine(db, store)
	apartmentID := createTestApartment(t, db)

	// Old meter read 1200, then swapped for a new one starting at 5 with the
	// old meter's final 40 units recorded on the baseline row.
	if _, err := store.Append(apartmentID, Gas, 1200, 0, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := store.Append(apartmentID, Gas, 5, 40, nil); err != nil {
		t.Fatalf("Baseline append failed: %v", err)
	}
	if _, err := store.Append(apartmentID, Gas, 55, 0, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	cmp, err := engine.Compare(apartmentID, Gas)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if cmp.Consumption != 50 {
		t.Errorf("Expected new meter consumption 50, got %d", cmp.Consumption)
	}
	if cmp.OldMeterConsumption != 40 {
		t.Errorf("Expected old meter consumption 40 carried over, got %d", cmp.OldMeterConsumption)
	}
	if cmp.Cost != 125 {
		t.Errorf("Expected cost 125 on the new meter only, got %d", cmp.Cost)
	}
}

func TestCompareAll_OmitsEmptySeries(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	engine := NewCostEngine(db, store)
	apartmentID := createTestApartment(t, db)

	for _, value := range []int{100, 150} {
		if _, err := store.Append(apartmentID, Electricity, value, 0, nil); err != nil {
			t.Fatalf("Append(%d) failed: %v", value, err)
		}
	}

	all, err := engine.CompareAll(apartmentID)
	if err != nil {
		t.Fatalf("CompareAll failed: %v", err)
	}

	if len(all) != 1 {
		t.Fatalf("Expected exactly one utility, got %d", len(all))
	}
	cmp, ok := all[Electricity]
	if !ok {
		t.Fatal("Expected electricity comparison present")
	}
	// electricity unit price is 4500 hundredths
	if cmp.Cost != 2250 {
		t.Errorf("Expected cost 2250, got %d", cmp.Cost)
	}
}

func TestCompare_ToleratesDuplicateFlags(t *testing.T) {
	db := newTestDB(t)
	store := NewReadingStore(db)
	engine := NewCostEngine(db, store)
	apartmentID := createTestApartment(t, db)

	for _, value := range []int{100, 150} {
		if _, err := store.Append(apartmentID, Gas, value, 0, nil); err != nil {
			t.Fatalf("Append(%d) failed: %v", value, err)
		}
	}

	// Two racing submissions can leave both rows flagged until the next
	// promote; the comparison must still pick the newer row as current.
	if _, err := db.Exec("UPDATE gas_meter_values SET latest = 1 WHERE apartment_reference = ?", apartmentID); err != nil {
		t.Fatalf("Failed to corrupt flags: %v", err)
	}

	cmp, err := engine.Compare(apartmentID, Gas)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if cmp.Current.Value != 150 || cmp.Previous.Value != 100 {
		t.Errorf("Expected 150/100 despite duplicate flags, got %d/%d",
			cmp.Current.Value, cmp.Previous.Value)
	}
	if cmp.Consumption != 50 || cmp.Cost != 125 {
		t.Errorf("Expected consumption 50 cost 125, got %d / %d", cmp.Consumption, cmp.Cost)
	}
}

func TestUnitPrice_UnknownApartment(t *testing.T) {
	db := newTestDB(t)
	engine := NewCostEngine(db, NewReadingStore(db))

	if _, err := engine.UnitPrice(999, Gas); !errors.Is(err, ErrApartmentNotFound) {
		t.Errorf("Expected ErrApartmentNotFound, got %v", err)
	}
}
