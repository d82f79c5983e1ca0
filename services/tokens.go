package services

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/omegahouses/invoice-api/models"
)

const (
	tokenCharacters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength     = 10
	tokenLifetime   = 24 * time.Hour
)

// GenerateToken returns a random alphanumeric token for registration links.
func GenerateToken() (string, error) {
	token := make([]byte, tokenLength)
	max := big.NewInt(int64(len(tokenCharacters)))
	for i := range token {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		token[i] = tokenCharacters[n.Int64()]
	}
	return string(token), nil
}

// TokenService manages single-use registration tokens. A token is consumed
// exactly once; used or expired tokens stay invalid forever.
type TokenService struct {
	db *sql.DB
}

func NewTokenService(db *sql.DB) *TokenService {
	return &TokenService{db: db}
}

// Issue creates and persists a fresh token for the given email.
func (ts *TokenService) Issue(userEmail string) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}

	_, err = ts.db.Exec(`
		INSERT INTO registration_tokens (token, user_email, expiration, is_used)
		VALUES (?, ?, ?, 0)
	`, token, userEmail, time.Now().UTC().Add(tokenLifetime))
	if err != nil {
		return "", fmt.Errorf("failed to store registration token: %v", err)
	}

	log.Printf("Issued registration token for %s", userEmail)
	return token, nil
}

// Lookup returns the unused token row, ErrTokenInvalid when the token is
// unknown or already consumed, ErrTokenExpired when past its deadline.
func (ts *TokenService) Lookup(token string) (*models.RegistrationToken, error) {
	var t models.RegistrationToken
	err := ts.db.QueryRow(`
		SELECT id, token, user_email, expiration, is_used
		FROM registration_tokens WHERE token = ? AND is_used = 0
	`, token).Scan(&t.ID, &t.Token, &t.UserEmail, &t.Expiration, &t.IsUsed)
	if err == sql.ErrNoRows {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if t.Expiration.Before(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}
	return &t, nil
}

// Consume marks the token used. Called once the registration it guards has
// completed; there is no way back to unused.
func (ts *TokenService) Consume(id int64) error {
	_, err := ts.db.Exec("UPDATE registration_tokens SET is_used = 1 WHERE id = ?", id)
	return err
}
