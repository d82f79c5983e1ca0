package main

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/omegahouses/invoice-api/config"
	"github.com/omegahouses/invoice-api/database"
	"github.com/omegahouses/invoice-api/handlers"
	"github.com/omegahouses/invoice-api/middleware"
	"github.com/omegahouses/invoice-api/services"
)

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOVERED: %v", err)
				log.Printf("Stack trace: %s", debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func main() {
	log.Println("Starting Omega Houses Invoice API...")
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store := services.NewReadingStore(db)
	costEngine := services.NewCostEngine(db, store)
	assembler := services.NewInvoiceAssembler(db, costEngine)
	pdfGenerator := services.NewPDFGenerator(cfg.InvoiceDir, cfg.FrontendAddress)
	mailer := services.NewMailer(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, cfg.FrontendAddress, cfg.ManagerEmail)
	tokens := services.NewTokenService(db)
	hub := services.NewEventHub()

	reminders := services.NewReminderScheduler(db, mailer)
	go reminders.Start()
	defer reminders.Stop()

	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret, store, tokens)
	readingHandler := handlers.NewReadingHandler(db, store, mailer, hub)
	apartmentHandler := handlers.NewApartmentHandler(db, store)
	invoiceHandler := handlers.NewInvoiceHandler(db, costEngine, assembler, pdfGenerator, mailer)
	userHandler := handlers.NewUserHandler(db, tokens, mailer)
	eventsHandler := handlers.NewEventsHandler(hub)

	// One bucket for the whole process: login and registration share it, so
	// a credential-stuffing run slows down no matter which door it knocks on.
	loginLimiter := middleware.NewLoginLimiter(3)

	r := mux.NewRouter()

	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(middleware.APIKeyCheck(cfg.APIKey))

	r.HandleFunc("/api/v1/login", loginLimiter.Wrap(authHandler.Login)).Methods("POST")
	r.HandleFunc("/api/v1/register", loginLimiter.Wrap(authHandler.Register)).Methods("POST")
	r.HandleFunc("/api/v1/health", healthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	api.HandleFunc("/meter-values", readingHandler.Submit).Methods("POST")
	api.HandleFunc("/meter-values/latest", readingHandler.Latest).Methods("GET")
	api.HandleFunc("/meter-values/history", readingHandler.History).Methods("GET")

	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.AdminOnly)

	admin.HandleFunc("/meter-values/history-with-images", readingHandler.HistoryWithImages).Methods("GET")
	admin.HandleFunc("/meter-values/all-latest", readingHandler.AllLatest).Methods("GET")

	admin.HandleFunc("/apartments", apartmentHandler.GetAll).Methods("GET")
	admin.HandleFunc("/apartments", apartmentHandler.Create).Methods("POST")
	admin.HandleFunc("/apartments/{id}", apartmentHandler.GetByID).Methods("GET")
	admin.HandleFunc("/apartments/{id}", apartmentHandler.Update).Methods("PUT")
	admin.HandleFunc("/apartments/{id}", apartmentHandler.Delete).Methods("DELETE")

	admin.HandleFunc("/apartments/{id}/comparisons", invoiceHandler.Comparisons).Methods("GET")
	admin.HandleFunc("/apartments/{id}/user", userHandler.GetByApartment).Methods("GET")

	admin.HandleFunc("/invoices", invoiceHandler.Create).Methods("POST")
	admin.HandleFunc("/invoices/send", invoiceHandler.Send).Methods("POST")

	admin.HandleFunc("/users", userHandler.GetAll).Methods("GET")
	admin.HandleFunc("/users/{id}", userHandler.Edit).Methods("PUT")
	admin.HandleFunc("/users/{id}", userHandler.Delete).Methods("DELETE")
	admin.HandleFunc("/users/registration-email", userHandler.SendRegistrationEmail).Methods("POST")

	admin.HandleFunc("/events", eventsHandler.Subscribe).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"https://" + cfg.FrontendAddress, "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  180 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.ServerAddress)
	log.Println("Reminder scheduler running (daily 9:00 sweep)")
	log.Println("Default credentials: admin / admin123")
	log.Println("IMPORTANT: Change default password after first login!")
	log.Println("===========================================")

	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
