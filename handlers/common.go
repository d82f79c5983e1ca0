package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/omegahouses/invoice-api/models"
	"github.com/omegahouses/invoice-api/services"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const apartmentColumns = `id, city, zip, street,
	gas_meter_id, electricity_meter_id, water_meter_id, heating_meter_id,
	gas_unit_price, electricity_unit_price, water_unit_price, heating_unit_price,
	rent, maintenance_fee, deadline, language, created_at, updated_at`

func scanApartment(row interface{ Scan(...interface{}) error }) (models.Apartment, error) {
	var a models.Apartment
	var gasID, elecID, waterID, heatingID sql.NullString
	var deadline sql.NullInt64
	err := row.Scan(&a.ID, &a.City, &a.Zip, &a.Street,
		&gasID, &elecID, &waterID, &heatingID,
		&a.GasUnitPrice, &a.ElectricityUnitPrice, &a.WaterUnitPrice, &a.HeatingUnitPrice,
		&a.Rent, &a.MaintenanceFee, &deadline, &a.Language, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	a.GasMeterID = gasID.String
	a.ElectricityMeterID = elecID.String
	a.WaterMeterID = waterID.String
	a.HeatingMeterID = heatingID.String
	if deadline.Valid {
		d := int(deadline.Int64)
		a.Deadline = &d
	}
	return a, nil
}

func fetchApartment(db *sql.DB, id int64) (models.Apartment, error) {
	row := db.QueryRow("SELECT "+apartmentColumns+" FROM apartments WHERE id = ?", id)
	apartment, err := scanApartment(row)
	if err == sql.ErrNoRows {
		return apartment, services.ErrApartmentNotFound
	}
	return apartment, err
}
