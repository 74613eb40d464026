package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/proctor_backend/internal/config"
	"github.com/zaqqye/proctor_backend/internal/database"
	"github.com/zaqqye/proctor_backend/internal/routes"
	"github.com/zaqqye/proctor_backend/internal/telemetry"
	"github.com/zaqqye/proctor_backend/internal/ws"
)

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}

	hubs := ws.NewHubs()
	go hubs.Violations.Run()
	go hubs.Student.Run()

	tel := telemetry.NewPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
	defer tel.Close()

	r := gin.Default()
	routes.Register(r, db, cfg, hubs, tel)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Println("server exited with error:", err)
		os.Exit(1)
	}
}
