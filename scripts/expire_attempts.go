// Manual expiry sweep.
//
// The sweep runs inside the main application on a timer; this script triggers
// one pass by hand, for example after the service was down long enough for
// open attempts to pile up past their deadlines.
//
// Usage: go run scripts/expire_attempts.go
package main

import (
	"log"
	"os"

	"examhub_backend/internal/config"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/service"
	"examhub_backend/pkg/database"
	"examhub_backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("Failed to parse config file: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	attempts := repository.NewAttemptRepository(db)
	definitions := repository.NewDefinitionRepository(db)
	svc := service.NewAttemptService(attempts, definitions, nil)

	log.Println("Running expiry sweep...")
	n, err := svc.ExpireStale(1000)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("Done, expired %d attempts", n)
}
