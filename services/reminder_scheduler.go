package services

import (
	"database/sql"
	"log"
	"time"

	"github.com/omegahouses/invoice-api/models"
)

// ReminderSender is satisfied by Mailer; tests substitute a recorder.
type ReminderSender interface {
	SendReminder(to string, apartment models.Apartment) error
}

// ReminderScheduler runs a daily sweep at 09:00: every apartment whose
// submission deadline equals today's day-of-month gets a reminder email to
// its tenant. Apartments with no deadline or no tenant are skipped silently.
type ReminderScheduler struct {
	db       *sql.DB
	sender   ReminderSender
	stopChan chan struct{}
}

func NewReminderScheduler(db *sql.DB, sender ReminderSender) *ReminderScheduler {
	return &ReminderScheduler{
		db:       db,
		sender:   sender,
		stopChan: make(chan struct{}),
	}
}

// Start blocks until Stop; run it on its own goroutine.
func (rs *ReminderScheduler) Start() {
	log.Println("[REMINDER] Scheduler started")

	for {
		next := nextRunTime(time.Now())
		log.Printf("[REMINDER] Next sweep at %s", next.Format("2006-01-02 15:04"))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			rs.Sweep(time.Now())
		case <-rs.stopChan:
			timer.Stop()
			log.Println("[REMINDER] Scheduler stopped")
			return
		}
	}
}

func (rs *ReminderScheduler) Stop() {
	close(rs.stopChan)
}

// nextRunTime returns the next 09:00 after now.
func nextRunTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Sweep sends reminders for every apartment whose deadline matches now's
// day-of-month. Per-apartment failures are logged and never abort the run.
func (rs *ReminderScheduler) Sweep(now time.Time) {
	today := now.Day()
	log.Printf("[REMINDER] Sweep for day %d", today)

	rows, err := rs.db.Query(`
		SELECT a.id, a.city, a.zip, a.street, a.language, u.email
		FROM apartments a
		JOIN users u ON u.apartment_id = a.id AND u.enabled = 1
		WHERE a.deadline = ?
	`, today)
	if err != nil {
		log.Printf("[REMINDER] Failed to query apartments: %v", err)
		return
	}
	defer rows.Close()

	sent := 0
	for rows.Next() {
		var apartment models.Apartment
		var email string
		if err := rows.Scan(&apartment.ID, &apartment.City, &apartment.Zip, &apartment.Street, &apartment.Language, &email); err != nil {
			log.Printf("[REMINDER] Failed to scan apartment: %v", err)
			continue
		}

		if err := rs.sender.SendReminder(email, apartment); err != nil {
			log.Printf("[REMINDER] Failed to send reminder for apartment %d: %v", apartment.ID, err)
			continue
		}
		sent++
		log.Printf("[REMINDER] Reminder sent for apartment %d", apartment.ID)
	}

	log.Printf("[REMINDER] Sweep complete, %d reminders sent", sent)
}
