package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/omegahouses/invoice-api/models"
	"github.com/omegahouses/invoice-api/services"
)

type UserHandler struct {
	db     *sql.DB
	tokens *services.TokenService
	mailer *services.Mailer
}

func NewUserHandler(db *sql.DB, tokens *services.TokenService, mailer *services.Mailer) *UserHandler {
	return &UserHandler{db: db, tokens: tokens, mailer: mailer}
}

const userColumns = "id, username, email, apartment_id, is_admin, enabled, created_at"

func scanUser(row interface{ Scan(...interface{}) error }) (models.User, error) {
	var u models.User
	var email sql.NullString
	var apartmentID sql.NullInt64
	err := row.Scan(&u.ID, &u.Username, &email, &apartmentID, &u.IsAdmin, &u.Enabled, &u.CreatedAt)
	if err != nil {
		return u, err
	}
	u.Email = email.String
	if apartmentID.Valid {
		u.ApartmentID = &apartmentID.Int64
	}
	return u, nil
}

func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query("SELECT " + userColumns + " FROM users ORDER BY username")
	if err != nil {
		log.Printf("Failed to list users: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			log.Printf("Failed to scan user: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		users = append(users, user)
	}

	writeJSON(w, http.StatusOK, users)
}

// GetByApartment returns the tenant attached to an apartment, the lookup the
// invoice form uses to pre-fill the recipient address.
func (h *UserHandler) GetByApartment(w http.ResponseWriter, r *http.Request) {
	apartmentID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid apartment id", http.StatusBadRequest)
		return
	}

	row := h.db.QueryRow("SELECT "+userColumns+" FROM users WHERE apartment_id = ? LIMIT 1", apartmentID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		http.Error(w, "No user registered for this apartment", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to fetch user for apartment %d: %v", apartmentID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type editUserRequest struct {
	Email       string `json:"email"`
	ApartmentID *int64 `json:"apartment_id"`
	Enabled     *bool  `json:"enabled"`
}

func (h *UserHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var req editUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	row := h.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to fetch user %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if req.Email != "" {
		user.Email = req.Email
	}
	if req.ApartmentID != nil {
		if _, err := fetchApartment(h.db, *req.ApartmentID); err != nil {
			writeStoreError(w, err)
			return
		}
		user.ApartmentID = req.ApartmentID
	}
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	var apartmentID interface{}
	if user.ApartmentID != nil {
		apartmentID = *user.ApartmentID
	}
	_, err = h.db.Exec("UPDATE users SET email = ?, apartment_id = ?, enabled = ? WHERE id = ?",
		user.Email, apartmentID, user.Enabled, id)
	if err != nil {
		log.Printf("Failed to update user %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Delete removes a tenant account. Administrator accounts cannot be deleted
// through the API.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var isAdmin bool
	err = h.db.QueryRow("SELECT is_admin FROM users WHERE id = ?", id).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to fetch user %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if isAdmin {
		http.Error(w, "Administrator accounts cannot be deleted", http.StatusForbidden)
		return
	}

	if _, err := h.db.Exec("DELETE FROM users WHERE id = ?", id); err != nil {
		log.Printf("Failed to delete user %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	log.Printf("User deleted: %d", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

type registrationEmailRequest struct {
	Email       string `json:"email"`
	ApartmentID int64  `json:"apartment_id"`
}

// SendRegistrationEmail issues a single-use token and mails the tenant a
// registration link for their apartment's portal account.
func (h *UserHandler) SendRegistrationEmail(w http.ResponseWriter, r *http.Request) {
	var req registrationEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "A valid email address is required", http.StatusBadRequest)
		return
	}

	apartment, err := fetchApartment(h.db, req.ApartmentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	token, err := h.tokens.Issue(req.Email)
	if err != nil {
		log.Printf("Failed to issue registration token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	link, err := h.mailer.SendRegistrationLink(req.Email, token, apartment)
	if err != nil {
		log.Printf("Failed to send registration email to %s: %v", req.Email, err)
		http.Error(w, "Failed to send email", http.StatusInternalServerError)
		return
	}

	log.Printf("Registration link sent to %s for apartment %d", req.Email, req.ApartmentID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registration email sent.", "link": link})
}
