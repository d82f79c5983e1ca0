package services

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/omegahouses/invoice-api/models"
)

type reminderRecorder struct {
	sent []string
	fail map[string]bool
}

func (r *reminderRecorder) SendReminder(to string, apartment models.Apartment) error {
	if r.fail[to] {
		return errors.New("smtp down")
	}
	r.sent = append(r.sent, to)
	return nil
}

func seedTenant(t *testing.T, db *sql.DB, apartmentID int64, email string, deadline int) {
	t.Helper()

	if _, err := db.Exec("UPDATE apartments SET deadline = ? WHERE id = ?", deadline, apartmentID); err != nil {
		t.Fatalf("Failed to set deadline: %v", err)
	}
	_, err := db.Exec(`
		INSERT INTO users (username, password_hash, email, apartment_id, is_admin, enabled)
		VALUES (?, 'x', ?, ?, 0, 1)
	`, email, email, apartmentID)
	if err != nil {
		t.Fatalf("Failed to seed tenant: %v", err)
	}
}

func TestSweep_MatchesDeadlineDay(t *testing.T) {
	db := newTestDB(t)

	due := createTestApartment(t, db)
	seedTenant(t, db, due, "due@example.com", 15)

	notDue := createTestApartment(t, db)
	seedTenant(t, db, notDue, "notdue@example.com", 20)

	recorder := &reminderRecorder{}
	scheduler := NewReminderScheduler(db, recorder)

	scheduler.Sweep(time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC))

	if len(recorder.sent) != 1 || recorder.sent[0] != "due@example.com" {
		t.Errorf("Expected exactly one reminder to due@example.com, got %v", recorder.sent)
	}
}

func TestSweep_SkipsDisabledTenants(t *testing.T) {
	db := newTestDB(t)

	apartmentID := createTestApartment(t, db)
	seedTenant(t, db, apartmentID, "gone@example.com", 15)
	if _, err := db.Exec("UPDATE users SET enabled = 0 WHERE email = 'gone@example.com'"); err != nil {
		t.Fatalf("Failed to disable tenant: %v", err)
	}

	recorder := &reminderRecorder{}
	NewReminderScheduler(db, recorder).Sweep(time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC))

	if len(recorder.sent) != 0 {
		t.Errorf("Expected no reminders for disabled tenant, got %v", recorder.sent)
	}
}

func TestSweep_FailureDoesNotAbortRun(t *testing.T) {
	db := newTestDB(t)

	first := createTestApartment(t, db)
	seedTenant(t, db, first, "broken@example.com", 15)
	second := createTestApartment(t, db)
	seedTenant(t, db, second, "fine@example.com", 15)

	recorder := &reminderRecorder{fail: map[string]bool{"broken@example.com": true}}
	NewReminderScheduler(db, recorder).Sweep(time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC))

	if len(recorder.sent) != 1 || recorder.sent[0] != "fine@example.com" {
		t.Errorf("Expected the healthy tenant to still get a reminder, got %v", recorder.sent)
	}
}

func TestNextRunTime(t *testing.T) {
	loc := time.UTC

	before := time.Date(2026, 9, 1, 7, 30, 0, 0, loc)
	if next := nextRunTime(before); next != time.Date(2026, 9, 1, 9, 0, 0, 0, loc) {
		t.Errorf("Expected same-day 9:00, got %v", next)
	}

	after := time.Date(2026, 9, 1, 10, 0, 0, 0, loc)
	if next := nextRunTime(after); next != time.Date(2026, 9, 2, 9, 0, 0, 0, loc) {
		t.Errorf("Expected next-day 9:00, got %v", next)
	}

	exact := time.Date(2026, 9, 1, 9, 0, 0, 0, loc)
	if next := nextRunTime(exact); next != time.Date(2026, 9, 2, 9, 0, 0, 0, loc) {
		t.Errorf("Expected next-day 9:00 at the boundary, got %v", next)
	}
}
