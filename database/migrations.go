package database

import (
	"database/sql"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// MeterTables lists the four per-utility reading tables. Each utility keeps
// its own table and its own latest flag; they are never merged into one
// polymorphic series.
var MeterTables = []string{
	"gas_meter_values",
	"electricity_meter_values",
	"water_meter_values",
	"heating_meter_values",
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS apartments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			city TEXT NOT NULL,
			zip TEXT NOT NULL,
			street TEXT NOT NULL,
			gas_meter_id TEXT,
			electricity_meter_id TEXT,
			water_meter_id TEXT,
			heating_meter_id TEXT,
			gas_unit_price INTEGER DEFAULT 0,
			electricity_unit_price INTEGER DEFAULT 0,
			water_unit_price INTEGER DEFAULT 0,
			heating_unit_price INTEGER DEFAULT 0,
			rent INTEGER DEFAULT 0,
			maintenance_fee INTEGER DEFAULT 0,
			deadline INTEGER,
			language TEXT DEFAULT 'e',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			email TEXT NOT NULL,
			apartment_id INTEGER,
			is_admin INTEGER DEFAULT 0,
			enabled INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (apartment_id) REFERENCES apartments(id)
		)`,

		`CREATE TABLE IF NOT EXISTS registration_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT UNIQUE NOT NULL,
			user_email TEXT NOT NULL,
			expiration DATETIME NOT NULL,
			is_used INTEGER DEFAULT 0
		)`,
	}

	// Four structurally identical reading tables, one per physical meter.
	for _, table := range MeterTables {
		migrations = append(migrations, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			apartment_reference INTEGER NOT NULL,
			value INTEGER NOT NULL,
			date_of_recording DATETIME NOT NULL,
			latest INTEGER NOT NULL DEFAULT 0,
			consumption INTEGER,
			image_file BLOB,
			FOREIGN KEY (apartment_reference) REFERENCES apartments(id)
		)`, table))

		migrations = append(migrations, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%s_apartment ON %s(apartment_reference, date_of_recording DESC)`,
			table, table))
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %v", err)
		}
	}

	if err := seedDefaultAdmin(db); err != nil {
		return err
	}

	log.Println("Migrations completed")
	return nil
}

func seedDefaultAdmin(db *sql.DB) error {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE is_admin = 1").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		_, err = db.Exec(`
			INSERT INTO users (username, password_hash, email, is_admin)
			VALUES (?, ?, ?, 1)
		`, "admin", string(hashedPassword), "admin@localhost")

		if err != nil {
			return err
		}

		log.Println("Default admin user created")
		log.Println("   Username: admin")
		log.Println("   Password: admin123")
		log.Println("   IMPORTANT: Change the default password immediately!")
	}

	return nil
}
