package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath  string
	ServerAddress string
	JWTSecret     string
	APIKey        string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// ManagerEmail receives a copy of every submission report.
	ManagerEmail string

	// FrontendAddress is used to build registration and portal links.
	FrontendAddress string

	InvoiceDir string
}

func Load() *Config {
	// Optional .env for local development; real env vars win in production.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return &Config{
		DatabasePath:    getEnv("DATABASE_PATH", "./invoice-api.db"),
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8081"),
		JWTSecret:       getEnv("JWT_SECRET", "invoice-api-secret-change-in-production"),
		APIKey:          getEnv("API_KEY", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:        getEnv("SMTP_FROM", ""),
		ManagerEmail:    getEnv("MANAGER_EMAIL", ""),
		FrontendAddress: getEnv("FRONTEND_ADDRESS", "omegahouses.org"),
		InvoiceDir:      getEnv("INVOICE_DIR", "./invoices"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
