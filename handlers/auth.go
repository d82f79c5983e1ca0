package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/omegahouses/invoice-api/models"
	"github.com/omegahouses/invoice-api/services"
)

type AuthHandler struct {
	db        *sql.DB
	jwtSecret string
	store     *services.ReadingStore
	tokens    *services.TokenService
}

func NewAuthHandler(db *sql.DB, jwtSecret string, store *services.ReadingStore, tokens *services.TokenService) *AuthHandler {
	return &AuthHandler{db: db, jwtSecret: jwtSecret, store: store, tokens: tokens}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Token       string `json:"token"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	ApartmentID string `json:"apartmentId"`
}

// Login authenticates a tenant or administrator and returns a JWT together
// with the caller's apartment snapshot and the latest reading of every
// installed meter, so the portal renders without further round trips.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var user models.User
	var apartmentID sql.NullInt64
	err := h.db.QueryRow(`
		SELECT id, username, password_hash, email, apartment_id, is_admin, enabled
		FROM users WHERE username = ?
	`, req.Username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Email,
		&apartmentID, &user.IsAdmin, &user.Enabled)

	if err == sql.ErrNoRows {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if !user.Enabled {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
		"exp":      time.Now().Add(30 * time.Minute).Unix(),
	})

	tokenString, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"token":   tokenString,
		"message": "Login successful",
		"isAdmin": user.IsAdmin,
	}

	if apartmentID.Valid {
		apartment, err := fetchApartment(h.db, apartmentID.Int64)
		if err == nil {
			response["apartment"] = apartmentToMap(apartment)

			for _, meter := range services.AllMeterTypes {
				latest, err := h.store.Latest(apartment.ID, meter)
				if err != nil {
					continue
				}
				// actualGas, actualWater, ... keys for the portal
				response["actual"+titleCase(string(meter))] = strconv.Itoa(latest.Value)
			}
		}
	}

	log.Printf("Login successful for user %s", user.Username)
	writeJSON(w, http.StatusOK, response)
}

// Register completes a registration started by an emailed single-use token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.Lookup(req.Token)
	if err == services.ErrTokenInvalid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or already used token."})
		return
	}
	if err == services.ErrTokenExpired {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Token has expired."})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "An error occurred during registration."})
		return
	}

	var exists int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", req.Username).Scan(&exists); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "An error occurred during registration."})
		return
	}
	if exists > 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Username already exists"})
		return
	}

	apartmentID, err := strconv.ParseInt(req.ApartmentID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid apartment id"})
		return
	}
	if _, err := fetchApartment(h.db, apartmentID); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Apartment not found"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "An error occurred during registration."})
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO users (username, password_hash, email, apartment_id, is_admin, enabled)
		VALUES (?, ?, ?, ?, 0, 1)
	`, req.Username, string(hash), req.Email, apartmentID)
	if err != nil {
		log.Printf("Failed to register user %s: %v", req.Username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "An error occurred during registration."})
		return
	}

	if err := h.tokens.Consume(token.ID); err != nil {
		log.Printf("Failed to mark token used: %v", err)
	}

	log.Printf("User %s registered successfully", req.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully."})
}

// apartmentToMap serializes the apartment's public fields explicitly; no
// field is ever exposed by accident.
func apartmentToMap(a models.Apartment) map[string]string {
	deadline := ""
	if a.Deadline != nil {
		deadline = strconv.Itoa(*a.Deadline)
	}
	return map[string]string{
		"id":                   strconv.FormatInt(a.ID, 10),
		"city":                 a.City,
		"zip":                  a.Zip,
		"street":               a.Street,
		"gasMeterID":           a.GasMeterID,
		"electricityMeterID":   a.ElectricityMeterID,
		"waterMeterID":         a.WaterMeterID,
		"heatingMeterID":       a.HeatingMeterID,
		"gasUnitPrice":         strconv.Itoa(a.GasUnitPrice),
		"electricityUnitPrice": strconv.Itoa(a.ElectricityUnitPrice),
		"waterUnitPrice":       strconv.Itoa(a.WaterUnitPrice),
		"heatingUnitPrice":     strconv.Itoa(a.HeatingUnitPrice),
		"rent":                 strconv.Itoa(a.Rent),
		"maintenanceFee":       strconv.Itoa(a.MaintenanceFee),
		"deadline":             deadline,
		"language":             a.Language,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
