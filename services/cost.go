package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/omegahouses/invoice-api/models"
)

// Cost multiplies consumption by a unit price stored as price*100 and
// truncates toward zero. The same truncation applies to all four utilities.
func Cost(consumption, unitPriceHundredths int) int {
	return (consumption * unitPriceHundredths) / 100
}

// ComparisonEntry is one of the two readings a cost comparison is built from.
type ComparisonEntry struct {
	Value int       `json:"value"`
	Date  time.Time `json:"date"`
}

// CostComparison holds the latest and previous readings of one utility with
// the derived consumption and cost. When fewer than two readings exist the
// previous entry is synthesized as zero and Padded is set, so consumers that
// expect two values never see missing data.
type CostComparison struct {
	Current             ComparisonEntry `json:"current"`
	Previous            ComparisonEntry `json:"previous"`
	Consumption         int             `json:"consumption"`
	Cost                int             `json:"cost"`
	OldMeterConsumption int             `json:"old_meter_consumption"`
	Padded              bool            `json:"padded"`
}

// CostEngine derives consumption and cost figures from the reading ledger
// and the apartment's unit prices.
type CostEngine struct {
	db    *sql.DB
	store *ReadingStore
}

func NewCostEngine(db *sql.DB, store *ReadingStore) *CostEngine {
	return &CostEngine{db: db, store: store}
}

// UnitPrice returns the apartment's price*100 for one utility.
func (ce *CostEngine) UnitPrice(apartmentID int64, meter MeterType) (int, error) {
	var price int
	err := ce.db.QueryRow(fmt.Sprintf(
		"SELECT %s_unit_price FROM apartments WHERE id = ?", meter),
		apartmentID).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %d", ErrApartmentNotFound, apartmentID)
	}
	if err != nil {
		return 0, err
	}
	return price, nil
}

// Compare builds the latest-vs-previous comparison for one utility. The
// current value comes from the flagged rows (ActiveWindow), which tolerates
// the append/promote race leaving more than one row flagged; the baseline is
// the newest row that is not the current one. A brand new utility has no
// baseline yet, so consumption and cost degrade to zero instead of erroring.
func (ce *CostEngine) Compare(apartmentID int64, meter MeterType) (*CostComparison, error) {
	window, err := ce.store.ActiveWindow(apartmentID, meter, 3)
	if err != nil {
		return nil, err
	}
	history, err := ce.store.RecentHistory(apartmentID, meter, 2)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNoReading
	}

	current := history[0]
	if len(window) > 0 {
		current = window[0]
	}

	var previous *models.Reading
	for i := range history {
		if history[i].ID != current.ID {
			previous = &history[i]
			break
		}
	}

	if previous == nil {
		// Single reading: pad the previous slot with a zero entry.
		return &CostComparison{
			Current:  ComparisonEntry{Value: current.Value, Date: current.DateOfRecording},
			Previous: ComparisonEntry{},
			Padded:   true,
		}, nil
	}

	unitPrice, err := ce.UnitPrice(apartmentID, meter)
	if err != nil {
		return nil, err
	}

	consumption := ComputeConsumption(previous.Value, current.Value)

	cmp := &CostComparison{
		Current:     ComparisonEntry{Value: current.Value, Date: current.DateOfRecording},
		Previous:    ComparisonEntry{Value: previous.Value, Date: previous.DateOfRecording},
		Consumption: consumption,
		Cost:        Cost(consumption, unitPrice),
	}

	// A stored consumption on the previous row means that row is a
	// replacement baseline; its value is the old meter's final usage and is
	// reported as a separate invoice line.
	if previous.Consumption != nil {
		cmp.OldMeterConsumption = *previous.Consumption
	}

	log.Printf("Cost comparison %s apartment %d: %d - %d = %d, unit price %d, cost %d",
		meter, apartmentID, cmp.Current.Value, cmp.Previous.Value, consumption, unitPrice, cmp.Cost)
	return cmp, nil
}

// CompareAll returns comparisons for every utility that exists for the
// apartment. Utilities with no readings at all are omitted, not zero-filled.
func (ce *CostEngine) CompareAll(apartmentID int64) (map[MeterType]*CostComparison, error) {
	result := make(map[MeterType]*CostComparison)
	for _, meter := range AllMeterTypes {
		cmp, err := ce.Compare(apartmentID, meter)
		if err == ErrNoReading {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[meter] = cmp
	}
	return result, nil
}
