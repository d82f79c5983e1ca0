package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/omegahouses/invoice-api/models"
	"github.com/omegahouses/invoice-api/services"
)

type ApartmentHandler struct {
	db    *sql.DB
	store *services.ReadingStore
}

func NewApartmentHandler(db *sql.DB, store *services.ReadingStore) *ApartmentHandler {
	return &ApartmentHandler{db: db, store: store}
}

type apartmentRequest struct {
	City                 string `json:"city"`
	Zip                  string `json:"zip"`
	Street               string `json:"street"`
	GasMeterID           string `json:"gas_meter_id"`
	ElectricityMeterID   string `json:"electricity_meter_id"`
	WaterMeterID         string `json:"water_meter_id"`
	HeatingMeterID       string `json:"heating_meter_id"`
	GasUnitPrice         int    `json:"gas_unit_price"`
	ElectricityUnitPrice int    `json:"electricity_unit_price"`
	WaterUnitPrice       int    `json:"water_unit_price"`
	HeatingUnitPrice     int    `json:"heating_unit_price"`
	Rent                 int    `json:"rent"`
	MaintenanceFee       int    `json:"maintenance_fee"`
	Deadline             *int   `json:"deadline"`
	Language             string `json:"language"`
	// NewMeterValues holds the starting value of each replaced meter and
	// OldMeterValues the final dial value read off the outgoing meter at
	// removal, keyed by utility. Present only on edits that swap a meter out.
	NewMeterValues map[string]int `json:"new_meter_values"`
	OldMeterValues map[string]int `json:"old_meter_values"`
}

func (h *ApartmentHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query("SELECT " + apartmentColumns + " FROM apartments ORDER BY city, street")
	if err != nil {
		log.Printf("Failed to list apartments: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	apartments := []models.Apartment{}
	for rows.Next() {
		apartment, err := scanApartment(rows)
		if err != nil {
			log.Printf("Failed to scan apartment: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		apartments = append(apartments, apartment)
	}

	writeJSON(w, http.StatusOK, apartments)
}

func (h *ApartmentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return
	}

	apartment, err := fetchApartment(h.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apartment)
}

func (h *ApartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req apartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.City) == "" || strings.TrimSpace(req.Zip) == "" || strings.TrimSpace(req.Street) == "" {
		http.Error(w, "City, zip and street are required", http.StatusBadRequest)
		return
	}
	if req.Language == "" {
		req.Language = "e"
	}
	if req.Deadline != nil && (*req.Deadline < 1 || *req.Deadline > 31) {
		http.Error(w, "Deadline must be a day of month between 1 and 31", http.StatusBadRequest)
		return
	}

	result, err := h.db.Exec(`INSERT INTO apartments
		(city, zip, street,
		 gas_meter_id, electricity_meter_id, water_meter_id, heating_meter_id,
		 gas_unit_price, electricity_unit_price, water_unit_price, heating_unit_price,
		 rent, maintenance_fee, deadline, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.City, req.Zip, req.Street,
		nullIfEmpty(req.GasMeterID), nullIfEmpty(req.ElectricityMeterID),
		nullIfEmpty(req.WaterMeterID), nullIfEmpty(req.HeatingMeterID),
		req.GasUnitPrice, req.ElectricityUnitPrice, req.WaterUnitPrice, req.HeatingUnitPrice,
		req.Rent, req.MaintenanceFee, nullableInt(req.Deadline), req.Language)
	if err != nil {
		log.Printf("Failed to create apartment: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	id, _ := result.LastInsertId()
	apartment, err := fetchApartment(h.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Printf("Apartment created: %s %s (%d)", apartment.City, apartment.Street, apartment.ID)
	writeJSON(w, http.StatusCreated, apartment)
}

// Update edits apartment master data. When a meter id changes and the request
// carries a starting value for that utility, the handler closes out the old
// meter: the displaced meter's last value becomes the consumption stored on
// the new baseline row, so the next invoice still bills the old dials.
func (h *ApartmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return
	}

	existing, err := fetchApartment(h.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var req apartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Language == "" {
		req.Language = existing.Language
	}
	if req.Deadline != nil && (*req.Deadline < 1 || *req.Deadline > 31) {
		http.Error(w, "Deadline must be a day of month between 1 and 31", http.StatusBadRequest)
		return
	}

	replaced := meterReplacements(existing, req)
	for _, rep := range replaced {
		baseline, ok := req.NewMeterValues[string(rep)]
		if !ok {
			http.Error(w, "Missing starting value for replaced "+string(rep)+" meter", http.StatusBadRequest)
			return
		}
		finalValue, haveFinal := req.OldMeterValues[string(rep)]
		if err := h.replaceMeter(id, rep, baseline, finalValue, haveFinal); err != nil {
			if errors.Is(err, errMissingFinalValue) {
				http.Error(w, "Missing final value for replaced "+string(rep)+" meter", http.StatusBadRequest)
				return
			}
			writeStoreError(w, err)
			return
		}
	}

	_, err = h.db.Exec(`UPDATE apartments SET
		city = ?, zip = ?, street = ?,
		gas_meter_id = ?, electricity_meter_id = ?, water_meter_id = ?, heating_meter_id = ?,
		gas_unit_price = ?, electricity_unit_price = ?, water_unit_price = ?, heating_unit_price = ?,
		rent = ?, maintenance_fee = ?, deadline = ?, language = ?,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		req.City, req.Zip, req.Street,
		nullIfEmpty(req.GasMeterID), nullIfEmpty(req.ElectricityMeterID),
		nullIfEmpty(req.WaterMeterID), nullIfEmpty(req.HeatingMeterID),
		req.GasUnitPrice, req.ElectricityUnitPrice, req.WaterUnitPrice, req.HeatingUnitPrice,
		req.Rent, req.MaintenanceFee, nullableInt(req.Deadline), req.Language, id)
	if err != nil {
		log.Printf("Failed to update apartment %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	apartment, err := fetchApartment(h.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apartment)
}

var errMissingFinalValue = errors.New("missing final value for replaced meter")

// replaceMeter appends the new meter's starting value with the old meter's
// closing consumption attached. finalValue is the dial value read off the old
// meter at removal; the closing consumption is the unbilled remainder between
// the last stored reading and that value.
func (h *ApartmentHandler) replaceMeter(apartmentID int64, meter services.MeterType, baseline, finalValue int, haveFinal bool) error {
	var oldConsumption int
	last, err := h.store.Latest(apartmentID, meter)
	switch {
	case err == nil:
		if !haveFinal {
			return errMissingFinalValue
		}
		oldConsumption = services.ReplacementConsumption(last.Value, finalValue)
	case errors.Is(err, services.ErrNoReading):
		// first meter on this utility, nothing to close out
	default:
		return err
	}

	_, err = h.store.Append(apartmentID, meter, baseline, oldConsumption, nil)
	if err == nil {
		log.Printf("Meter replaced: apartment %d %s, baseline %d, closing consumption %d",
			apartmentID, meter, baseline, oldConsumption)
	}
	return err
}

// Delete removes an apartment. Apartments with tenants or readings are
// protected by foreign keys and refuse deletion.
func (h *ApartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return
	}

	result, err := h.db.Exec("DELETE FROM apartments WHERE id = ?", id)
	if err != nil {
		// sqlite reports FK violations as a generic constraint error
		http.Error(w, "Apartment has users or meter readings and cannot be deleted", http.StatusConflict)
		return
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		http.Error(w, services.ErrApartmentNotFound.Error(), http.StatusNotFound)
		return
	}

	log.Printf("Apartment deleted: %d", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Apartment deleted"})
}

func meterReplacements(existing models.Apartment, req apartmentRequest) []services.MeterType {
	var replaced []services.MeterType
	if req.GasMeterID != "" && existing.GasMeterID != "" && req.GasMeterID != existing.GasMeterID {
		replaced = append(replaced, services.Gas)
	}
	if req.ElectricityMeterID != "" && existing.ElectricityMeterID != "" && req.ElectricityMeterID != existing.ElectricityMeterID {
		replaced = append(replaced, services.Electricity)
	}
	if req.WaterMeterID != "" && existing.WaterMeterID != "" && req.WaterMeterID != existing.WaterMeterID {
		replaced = append(replaced, services.Water)
	}
	if req.HeatingMeterID != "" && existing.HeatingMeterID != "" && req.HeatingMeterID != existing.HeatingMeterID {
		replaced = append(replaced, services.Heating)
	}
	return replaced
}

func nullIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
