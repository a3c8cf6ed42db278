package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jarvis-app/jarvis-backend/internal/bootstrap"
	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/database"
	"github.com/jarvis-app/jarvis-backend/internal/domain"
	"github.com/jarvis-app/jarvis-backend/internal/events"
	"github.com/jarvis-app/jarvis-backend/internal/reminder"
	"github.com/jarvis-app/jarvis-backend/internal/repository"
	"github.com/jarvis-app/jarvis-backend/internal/server"
	"github.com/jarvis-app/jarvis-backend/internal/service"

	_ "github.com/joho/godotenv/autoload"
)

func gracefulShutdown(apiServer *http.Server, dbService database.Service, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	if dbService != nil {
		log.Println("Closing database connection pool...")
		if err := dbService.Close(); err != nil {
			log.Printf("Error closing database connection pool: %v", err)
		} else {
			log.Println("Database connection pool closed.")
		}
	}

	log.Println("Server exiting")

	done <- true
}

func main() {
	clk := clock.System()
	dbService := database.New(clk)

	gormDB := dbService.GetDB()

	log.Println("Running database auto-migration...")
	if err := gormDB.AutoMigrate(domain.AllModels()...); err != nil {
		log.Fatalf("Failed to auto-migrate database: %v", err)
	}
	log.Println("Database auto-migration complete.")

	repos := repository.New(gormDB)

	if err := bootstrap.SeedDefaultLists(repos, clk); err != nil {
		log.Fatalf("Failed to seed default lists: %v", err)
	}
	// My-day membership is ephemeral; clear anything left over from a
	// previous day. The server stays up across midnight rarely enough
	// that a boot-time pass suffices.
	if _, err := bootstrap.RolloverMyDay(repos, time.Time{}, clk.Now()); err != nil {
		log.Fatalf("Failed to roll over my-day flags: %v", err)
	}

	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) {
		log.Printf("change event: %s %s", e.Kind, e.ID)
	})

	scheduler := reminder.NewScheduler(reminder.LogDispatcher{}, clk)

	var mu sync.Mutex
	services := server.Services{
		Tasks:  service.NewTaskService(repos, scheduler, bus, clk, &mu),
		Lists:  service.NewListService(repos, scheduler, bus, clk, &mu),
		Tags:   service.NewTagService(repos, bus, clk, &mu),
		Backup: service.NewBackupService(repos, bus, clk, &mu),
	}

	apiServer := server.NewServer(services, dbService, clk)

	done := make(chan bool, 1)

	go gracefulShutdown(apiServer, dbService, done)

	log.Printf("Starting server on %s", apiServer.Addr)
	err := apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server ListenAndServe error: %v", err)
	}

	<-done
	log.Println("Graceful shutdown complete.")
}
