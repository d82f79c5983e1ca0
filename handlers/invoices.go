package handlers

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/omegahouses/invoice-api/services"
)

type InvoiceHandler struct {
	db        *sql.DB
	cost      *services.CostEngine
	assembler *services.InvoiceAssembler
	pdf       *services.PDFGenerator
	mailer    *services.Mailer
}

func NewInvoiceHandler(db *sql.DB, cost *services.CostEngine, assembler *services.InvoiceAssembler,
	pdf *services.PDFGenerator, mailer *services.Mailer) *InvoiceHandler {
	return &InvoiceHandler{db: db, cost: cost, assembler: assembler, pdf: pdf, mailer: mailer}
}

// Comparisons returns the last two readings, consumption and cost per
// utility, the figures the invoice form shows before the manager posts it.
func (h *InvoiceHandler) Comparisons(w http.ResponseWriter, r *http.Request) {
	apartmentID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return
	}

	if _, err := fetchApartment(h.db, apartmentID); err != nil {
		writeStoreError(w, err)
		return
	}

	comparisons, err := h.cost.CompareAll(apartmentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	type line struct {
		PreviousValue       int    `json:"previousValue"`
		PreviousDate        string `json:"previousDate"`
		CurrentValue        int    `json:"currentValue"`
		CurrentDate         string `json:"currentDate"`
		Consumption         int    `json:"consumption"`
		Cost                int    `json:"cost"`
		OldMeterConsumption int    `json:"oldMeterConsumption"`
		Padded              bool   `json:"padded"`
	}

	response := map[string]line{}
	for meter, cmp := range comparisons {
		response[string(meter)] = line{
			PreviousValue:       cmp.Previous.Value,
			PreviousDate:        cmp.Previous.Date.Format(time.RFC3339),
			CurrentValue:        cmp.Current.Value,
			CurrentDate:         cmp.Current.Date.Format(time.RFC3339),
			Consumption:         cmp.Consumption,
			Cost:                cmp.Cost,
			OldMeterConsumption: cmp.OldMeterConsumption,
			Padded:              cmp.Padded,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

type createInvoiceRequest struct {
	ApartmentID    int64  `json:"apartment_id"`
	Email          string `json:"email"`
	Rent           int    `json:"rent"`
	Cleaning       int    `json:"cleaning"`
	MaintenanceFee int    `json:"maintenance_fee"`
	OtherText      string `json:"other_text"`
	OtherSum       int    `json:"other_sum"`
	TotalSum       int    `json:"total_sum"`
}

// Create assembles the invoice and renders it to PDF, returned base64-encoded
// so the dashboard can preview it before anything is sent.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.assembler.Assemble(req.ApartmentID, services.FlatCharges{
		Rent:           req.Rent,
		Cleaning:       req.Cleaning,
		MaintenanceFee: req.MaintenanceFee,
		OtherText:      req.OtherText,
		OtherSum:       req.OtherSum,
		TotalSum:       req.TotalSum,
	}, req.Email)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	data, err := h.pdf.GenerateInvoicePDF(record)
	if err != nil {
		log.Printf("Failed to generate invoice PDF for apartment %d: %v", req.ApartmentID, err)
		http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"pdf":     base64.StdEncoding.EncodeToString(data),
		"address": record.ApartmentAddress,
		"email":   record.Email,
	})
}

type sendInvoiceRequest struct {
	ApartmentID int64  `json:"apartment_id"`
	Email       string `json:"email"`
	PDF         string `json:"pdf"`
}

// Send mails a previously rendered invoice PDF to the tenant, in the
// apartment's configured language.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "Recipient email is required", http.StatusBadRequest)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.PDF)
	if err != nil || len(data) == 0 {
		http.Error(w, "Invalid PDF payload", http.StatusBadRequest)
		return
	}

	apartment, err := fetchApartment(h.db, req.ApartmentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	address := apartment.City + ", " + apartment.Street
	if err := h.mailer.SendInvoicePDF(req.Email, address, apartment.Language, data); err != nil {
		log.Printf("Failed to email invoice for apartment %d to %s: %v", req.ApartmentID, req.Email, err)
		http.Error(w, "Failed to send email", http.StatusInternalServerError)
		return
	}

	log.Printf("Invoice for apartment %d sent to %s", req.ApartmentID, req.Email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Invoice sent."})
}
