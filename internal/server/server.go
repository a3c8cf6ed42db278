package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/jarvis-app/jarvis-backend/internal/clock"
	"github.com/jarvis-app/jarvis-backend/internal/database"
	"github.com/jarvis-app/jarvis-backend/internal/service"
)

type Server struct {
	port int

	tasks  service.TaskService
	lists  service.ListService
	tags   service.TagService
	backup service.BackupService
	db     database.Service
	clock  clock.Clock
}

type Services struct {
	Tasks  service.TaskService
	Lists  service.ListService
	Tags   service.TagService
	Backup service.BackupService
}

func NewServer(services Services, dbService database.Service, clk clock.Clock) *http.Server {
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		fmt.Printf("Warning: Invalid PORT environment variable '%s'. Using default 8080. Error: %v", portStr, err)
		port = 8080
	}

	appServer := &Server{
		port:   port,
		tasks:  services.Tasks,
		lists:  services.Lists,
		tags:   services.Tags,
		backup: services.Backup,
		db:     dbService,
		clock:  clk,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appServer.port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
