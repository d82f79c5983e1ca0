package services

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/omegahouses/invoice-api/models"
)

// FlatCharges are the non-metered items of an invoice. TotalSum is supplied
// by the administrator, not summed here: the other line is free-form and the
// manager confirms or overrides the figure before sending.
type FlatCharges struct {
	Rent           int    `json:"rent"`
	Cleaning       int    `json:"cleaning"`
	MaintenanceFee int    `json:"maintenance_fee"`
	OtherText      string `json:"other_text"`
	OtherSum       int    `json:"other_sum"`
	TotalSum       int    `json:"total_sum"`
}

// InvoiceAssembler collects readings, consumption and costs into a single
// record ready for PDF rendering and mailing.
type InvoiceAssembler struct {
	db   *sql.DB
	cost *CostEngine
}

func NewInvoiceAssembler(db *sql.DB, cost *CostEngine) *InvoiceAssembler {
	return &InvoiceAssembler{db: db, cost: cost}
}

// Assemble builds the invoice record for one apartment. Utilities that were
// never installed (no readings) are left out entirely; rent and maintenance
// fall back to the apartment's stored charges when the caller passes zero.
func (ia *InvoiceAssembler) Assemble(apartmentID int64, charges FlatCharges, email string) (*models.InvoiceRecord, error) {
	var city, zip, street, language string
	var rent, maintenanceFee int
	err := ia.db.QueryRow(`
		SELECT city, zip, street, language, rent, maintenance_fee
		FROM apartments WHERE id = ?
	`, apartmentID).Scan(&city, &zip, &street, &language, &rent, &maintenanceFee)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrApartmentNotFound, apartmentID)
	}
	if err != nil {
		return nil, err
	}

	comparisons, err := ia.cost.CompareAll(apartmentID)
	if err != nil {
		return nil, err
	}

	lines := make(map[string]models.InvoiceLine, len(comparisons))
	for meter, cmp := range comparisons {
		lines[string(meter)] = models.InvoiceLine{
			PreviousValue:       cmp.Previous.Value,
			PreviousDate:        cmp.Previous.Date,
			CurrentValue:        cmp.Current.Value,
			CurrentDate:         cmp.Current.Date,
			Consumption:         cmp.Consumption,
			Cost:                cmp.Cost,
			OldMeterConsumption: cmp.OldMeterConsumption,
		}
	}

	if charges.Rent == 0 {
		charges.Rent = rent
	}
	if charges.MaintenanceFee == 0 {
		charges.MaintenanceFee = maintenanceFee
	}

	record := &models.InvoiceRecord{
		ApartmentAddress: city + ", " + street,
		Email:            email,
		Lines:            lines,
		Rent:             charges.Rent,
		Cleaning:         charges.Cleaning,
		MaintenanceFee:   charges.MaintenanceFee,
		OtherText:        charges.OtherText,
		OtherSum:         charges.OtherSum,
		TotalSum:         charges.TotalSum,
		Language:         language,
	}

	log.Printf("Assembled invoice for apartment %d (%s): %d utility lines, total %d",
		apartmentID, record.ApartmentAddress, len(lines), record.TotalSum)
	return record, nil
}
