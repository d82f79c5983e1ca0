package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/omegahouses/invoice-api/models"
)

// MeterType selects which of the four per-utility tables an operation works
// on. Each apartment has up to four independent physical meters, so each
// utility keeps its own table and its own latest pointer.
type MeterType string

const (
	Gas         MeterType = "gas"
	Electricity MeterType = "electricity"
	Water       MeterType = "water"
	Heating     MeterType = "heating"
)

// AllMeterTypes in the order they appear on invoices.
var AllMeterTypes = []MeterType{Gas, Electricity, Water, Heating}

func ParseMeterType(s string) (MeterType, error) {
	switch MeterType(s) {
	case Gas, Electricity, Water, Heating:
		return MeterType(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidMeterType, s)
}

func (m MeterType) table() string {
	return string(m) + "_meter_values"
}

// ReadingStore persists the four utility series. Appends are the only write
// path; history rows are immutable except for the latest flag.
type ReadingStore struct {
	db *sql.DB
}

func NewReadingStore(db *sql.DB) *ReadingStore {
	return &ReadingStore{db: db}
}

// Append inserts a new reading for the given apartment and utility and then
// promotes it to latest. consumption is stored only when non-zero: it is set
// exclusively by the meter-replacement flow, where the naive difference
// against the previous row would be wrong forever after.
//
// The insert and the promote are two statements, not one transaction. Two
// racing submissions can leave two rows flagged for a moment; readers order
// flagged rows by timestamp rather than assuming one (see ActiveWindow), and
// the next promote heals the flags.
func (rs *ReadingStore) Append(apartmentID int64, meter MeterType, value int, consumption int, image []byte) (int64, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidValue, value)
	}

	exists, err := rs.apartmentExists(apartmentID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %d", ErrApartmentNotFound, apartmentID)
	}

	var consumptionVal interface{}
	if consumption != 0 {
		consumptionVal = consumption
	}
	var imageVal interface{}
	if len(image) > 0 {
		imageVal = image
	}

	// date_of_recording is set here, never taken from the client.
	res, err := rs.db.Exec(fmt.Sprintf(`
		INSERT INTO %s (apartment_reference, value, date_of_recording, latest, consumption, image_file)
		VALUES (?, ?, ?, 1, ?, ?)
	`, meter.table()), apartmentID, value, time.Now().UTC(), consumptionVal, imageVal)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s reading: %v", meter, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := rs.Promote(apartmentID, meter); err != nil {
		return 0, err
	}

	log.Printf("Appended %s reading %d for apartment %d (value %d)", meter, id, apartmentID, value)
	return id, nil
}

// Promote demotes every reading of the (apartment, utility) pair except the
// single most recent one. Running it with no new reading is a no-op, and it
// repairs the flags if more than one row was ever left flagged.
func (rs *ReadingStore) Promote(apartmentID int64, meter MeterType) error {
	table := meter.table()
	_, err := rs.db.Exec(fmt.Sprintf(`
		UPDATE %s SET latest = 0
		WHERE apartment_reference = ?
		  AND id NOT IN (
			SELECT id FROM %s
			WHERE apartment_reference = ?
			ORDER BY date_of_recording DESC, id DESC
			LIMIT 1
		)
	`, table, table), apartmentID, apartmentID)
	if err != nil {
		return fmt.Errorf("failed to promote latest %s reading: %v", meter, err)
	}
	return nil
}

// Latest returns the single current reading, or ErrNoReading when the
// utility has never been read for this apartment. It orders by timestamp
// among flagged rows rather than trusting the flag to be unique.
func (rs *ReadingStore) Latest(apartmentID int64, meter MeterType) (*models.Reading, error) {
	row := rs.db.QueryRow(fmt.Sprintf(`
		SELECT id, apartment_reference, value, date_of_recording, latest, consumption, image_file
		FROM %s
		WHERE apartment_reference = ? AND latest = 1
		ORDER BY date_of_recording DESC, id DESC
		LIMIT 1
	`, meter.table()), apartmentID)

	reading, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoReading
	}
	return reading, err
}

// RecentHistory returns up to limit readings, most recent first. The trend
// view asks for 12.
func (rs *ReadingStore) RecentHistory(apartmentID int64, meter MeterType, limit int) ([]models.Reading, error) {
	rows, err := rs.db.Query(fmt.Sprintf(`
		SELECT id, apartment_reference, value, date_of_recording, latest, consumption, image_file
		FROM %s
		WHERE apartment_reference = ?
		ORDER BY date_of_recording DESC, id DESC
		LIMIT ?
	`, meter.table()), apartmentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReadings(rows)
}

// ActiveWindow returns up to limit flagged rows, most recent first. More
// than one row can be flagged during the append/promote window; callers take
// the first entry as current rather than assuming uniqueness.
func (rs *ReadingStore) ActiveWindow(apartmentID int64, meter MeterType, limit int) ([]models.Reading, error) {
	rows, err := rs.db.Query(fmt.Sprintf(`
		SELECT id, apartment_reference, value, date_of_recording, latest, consumption, image_file
		FROM %s
		WHERE apartment_reference = ? AND latest = 1
		ORDER BY date_of_recording DESC, id DESC
		LIMIT ?
	`, meter.table()), apartmentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReadings(rows)
}

func (rs *ReadingStore) apartmentExists(apartmentID int64) (bool, error) {
	var one int
	err := rs.db.QueryRow("SELECT 1 FROM apartments WHERE id = ?", apartmentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var r models.Reading
	var consumption sql.NullInt64
	var image []byte
	err := row.Scan(&r.ID, &r.ApartmentReference, &r.Value, &r.DateOfRecording, &r.Latest, &consumption, &image)
	if err != nil {
		return nil, err
	}
	if consumption.Valid {
		c := int(consumption.Int64)
		r.Consumption = &c
	}
	r.ImageFile = image
	return &r, nil
}

func collectReadings(rows *sql.Rows) ([]models.Reading, error) {
	readings := []models.Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}
