package handlers

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/omegahouses/invoice-api/services"
)

const maxImageSize = 10 << 20 // 10 MB

type ReadingHandler struct {
	db     *sql.DB
	store  *services.ReadingStore
	mailer *services.Mailer
	hub    *services.EventHub
}

func NewReadingHandler(db *sql.DB, store *services.ReadingStore, mailer *services.Mailer, hub *services.EventHub) *ReadingHandler {
	return &ReadingHandler{db: db, store: store, mailer: mailer, hub: hub}
}

// Submit accepts a tenant's meter reading as multipart form data with an
// optional dial photo. The raw value must parse as a positive integer;
// nothing is persisted otherwise.
func (h *ReadingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		http.Error(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	meter, err := services.ParseMeterType(r.FormValue("meterType"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	apartmentID, err := strconv.ParseInt(r.FormValue("apartmentId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return
	}

	value, err := strconv.Atoi(r.FormValue("meterValue"))
	if err != nil {
		http.Error(w, "Invalid meter value", http.StatusBadRequest)
		return
	}

	var image []byte
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		if header.Size > maxImageSize {
			http.Error(w, "File size exceeds the maximum allowed limit of 10 MB.", http.StatusBadRequest)
			return
		}
		image, err = io.ReadAll(file)
		if err != nil {
			http.Error(w, "Failed to read image", http.StatusInternalServerError)
			return
		}
	}

	if _, err := h.store.Append(apartmentID, meter, value, 0, image); err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Broadcast(services.SubmissionEvent{
		ApartmentID: apartmentID,
		MeterType:   string(meter),
		Value:       value,
		Timestamp:   time.Now().UTC(),
	})

	// The manager's copy is best-effort; the submission already succeeded.
	if apartment, err := fetchApartment(h.db, apartmentID); err == nil {
		if err := h.mailer.SendSubmissionReport(meter, value, apartment); err != nil {
			log.Printf("Failed to send submission report: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Meter value submitted successfully."})
}

// Latest returns the current value of one meter as a plain string, the shape
// the portal's submission form pre-fills from.
func (h *ReadingHandler) Latest(w http.ResponseWriter, r *http.Request) {
	apartmentID, meter, ok := readingParams(w, r)
	if !ok {
		return
	}

	reading, err := h.store.Latest(apartmentID, meter)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"value": strconv.Itoa(reading.Value)})
}

// History returns the most recent 12 readings for the trend view, keyed by
// recording date, most recent first.
func (h *ReadingHandler) History(w http.ResponseWriter, r *http.Request) {
	apartmentID, meter, ok := readingParams(w, r)
	if !ok {
		return
	}

	readings, err := h.store.RecentHistory(apartmentID, meter, 12)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	type entry struct {
		Date  string `json:"date"`
		Value int    `json:"value"`
	}
	entries := make([]entry, 0, len(readings))
	for _, reading := range readings {
		entries = append(entries, entry{
			Date:  reading.DateOfRecording.Format(time.RFC3339),
			Value: reading.Value,
		})
	}

	writeJSON(w, http.StatusOK, entries)
}

// HistoryWithImages is History plus the base64 dial photo per reading.
func (h *ReadingHandler) HistoryWithImages(w http.ResponseWriter, r *http.Request) {
	apartmentID, meter, ok := readingParams(w, r)
	if !ok {
		return
	}

	readings, err := h.store.RecentHistory(apartmentID, meter, 12)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	type entry struct {
		Date  string `json:"date"`
		Value int    `json:"value"`
		Image string `json:"image,omitempty"`
	}
	entries := make([]entry, 0, len(readings))
	for _, reading := range readings {
		e := entry{
			Date:  reading.DateOfRecording.Format(time.RFC3339),
			Value: reading.Value,
		}
		if len(reading.ImageFile) > 0 {
			e.Image = base64.StdEncoding.EncodeToString(reading.ImageFile)
		}
		entries = append(entries, e)
	}

	writeJSON(w, http.StatusOK, entries)
}

// AllLatest returns the current value of every installed meter for an
// apartment; utilities with no readings are left out. With images=1 each
// value carries its dial photo as well.
func (h *ReadingHandler) AllLatest(w http.ResponseWriter, r *http.Request) {
	apartmentID, err := strconv.ParseInt(r.URL.Query().Get("apartmentId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return
	}

	if _, err := fetchApartment(h.db, apartmentID); err != nil {
		writeStoreError(w, err)
		return
	}

	withImages := r.URL.Query().Get("images") == "1"

	response := map[string]interface{}{}
	for _, meter := range services.AllMeterTypes {
		reading, err := h.store.Latest(apartmentID, meter)
		if err == services.ErrNoReading {
			continue
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
		response[string(meter)] = reading.Value
		if withImages && len(reading.ImageFile) > 0 {
			response[string(meter)+"_image"] = base64.StdEncoding.EncodeToString(reading.ImageFile)
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func readingParams(w http.ResponseWriter, r *http.Request) (int64, services.MeterType, bool) {
	apartmentID, err := strconv.ParseInt(r.URL.Query().Get("apartmentId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return 0, "", false
	}

	meter, err := services.ParseMeterType(r.URL.Query().Get("meterType"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, "", false
	}

	return apartmentID, meter, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrApartmentNotFound), errors.Is(err, services.ErrNoReading):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidValue), errors.Is(err, services.ErrInvalidMeterType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Storage error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
