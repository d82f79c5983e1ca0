package models

import "time"

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Email        string     `json:"email"`
	ApartmentID  *int64     `json:"apartment_id"`
	IsAdmin      bool       `json:"is_admin"`
	Enabled      bool       `json:"enabled"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Apartment struct {
	ID                   int64     `json:"id"`
	City                 string    `json:"city"`
	Zip                  string    `json:"zip"`
	Street               string    `json:"street"`
	GasMeterID           string    `json:"gas_meter_id"`
	ElectricityMeterID   string    `json:"electricity_meter_id"`
	WaterMeterID         string    `json:"water_meter_id"`
	HeatingMeterID       string    `json:"heating_meter_id"`
	GasUnitPrice         int       `json:"gas_unit_price"`
	ElectricityUnitPrice int       `json:"electricity_unit_price"`
	WaterUnitPrice       int       `json:"water_unit_price"`
	HeatingUnitPrice     int       `json:"heating_unit_price"`
	Rent                 int       `json:"rent"`
	MaintenanceFee       int       `json:"maintenance_fee"`
	Deadline             *int      `json:"deadline"`
	Language             string    `json:"language"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Reading is one row of a per-utility meter value table. Rows are append-only;
// only the latest flag is ever updated in place.
type Reading struct {
	ID                 int64     `json:"id"`
	ApartmentReference int64     `json:"apartment_reference"`
	Value              int       `json:"value"`
	DateOfRecording    time.Time `json:"date_of_recording"`
	Latest             bool      `json:"latest"`
	Consumption        *int      `json:"consumption"`
	ImageFile          []byte    `json:"image_file,omitempty"`
}

type RegistrationToken struct {
	ID         int64     `json:"id"`
	Token      string    `json:"token"`
	UserEmail  string    `json:"user_email"`
	Expiration time.Time `json:"expiration"`
	IsUsed     bool      `json:"is_used"`
}

// InvoiceLine is the per-utility block of an assembled invoice.
type InvoiceLine struct {
	PreviousValue int       `json:"previous_value"`
	PreviousDate  time.Time `json:"previous_date"`
	CurrentValue  int       `json:"current_value"`
	CurrentDate   time.Time `json:"current_date"`
	Consumption   int       `json:"consumption"`
	Cost          int       `json:"cost"`
	// OldMeterConsumption carries the final consumption recorded against a
	// replaced meter, shown as its own row on the invoice.
	OldMeterConsumption int `json:"old_meter_consumption"`
}

// InvoiceRecord is assembled per request and handed to the PDF renderer; it
// is never persisted. The PDF and the email are the durable artifacts.
type InvoiceRecord struct {
	ApartmentAddress string                 `json:"apartment_address"`
	Email            string                 `json:"email"`
	Lines            map[string]InvoiceLine `json:"lines"`
	Rent             int                    `json:"rent"`
	Cleaning         int                    `json:"cleaning"`
	MaintenanceFee   int                    `json:"maintenance_fee"`
	OtherText        string                 `json:"other_text"`
	OtherSum         int                    `json:"other_sum"`
	TotalSum         int                    `json:"total_sum"`
	Language         string                 `json:"language"`
}
