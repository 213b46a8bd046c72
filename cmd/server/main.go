// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/borrowers"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/circulation"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/config"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/eventlog"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/httpx"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/inventory"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/notify"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/observability"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/reminders"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/reporting"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEnabled {
		shutdown, err := observability.SetupTracing(ctx, "sfalibrary")
		if err != nil {
			log.Fatalf("Failed to set up tracing: %v", err)
		}
		defer shutdown(context.Background())
	}

	var (
		bookStore inventory.BookStore
		loanStore circulation.LoanStore
		regStore  borrowers.Store
		auditLog  eventlog.Log
	)
	if cfg.Storage == "memory" {
		log.Println("Using in-memory storage")
		bookStore = inventory.NewMemoryBookStore()
		loanStore = circulation.NewMemoryLoanStore()
		regStore = borrowers.NewMemoryStore()
		auditLog = eventlog.NewMemoryLog()
	} else {
		db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		bookStore = inventory.NewPostgresBookStore(db)
		loanStore = circulation.NewPostgresLoanStore(db)
		regStore = borrowers.NewPostgresStore(db)
		auditLog = eventlog.NewPostgresLog(db.DB)
	}

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if cfg.WebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.WebhookURL)
	}

	inventorySvc := inventory.NewService(bookStore, auditLog)
	borrowerSvc := borrowers.NewService(regStore)
	circulationSvc := circulation.NewService(
		loanStore, inventorySvc, borrowerSvc, cfg.Borrowing, circulation.SystemClock(), auditLog, dispatcher)
	reportingSvc := reporting.NewService(inventorySvc, circulationSvc)

	inventoryHandler := inventory.NewHandler(inventorySvc)
	borrowerHandler := borrowers.NewHandler(borrowerSvc)
	circulationHandler := circulation.NewHandler(circulationSvc)
	reportingHandler := reporting.NewHandler(reportingSvc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(httpx.RateLimit(rate.Limit(50), 100))

	borrowerRouter := borrowerHandler.Routes()
	circulationHandler.MountBorrowerRoutes(borrowerRouter)

	router.Mount("/books", inventoryHandler.Routes())
	router.Mount("/borrowers", borrowerRouter)
	router.Mount("/loans", circulationHandler.Routes())
	router.Mount("/reports", reportingHandler.Routes())
	router.Get("/settings", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, cfg.Borrowing)
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.ReminderIntervalHours > 0 {
		worker := reminders.NewWorker(circulationSvc, dispatcher,
			time.Duration(cfg.ReminderIntervalHours)*time.Hour)
		go worker.Run(ctx)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Library server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
