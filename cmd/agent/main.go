package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/zaqqye/proctor_backend/internal/agent"
	"github.com/zaqqye/proctor_backend/internal/proctor"
)

func main() {
	_ = godotenv.Load()
	log.SetPrefix("proctor-agent: ")

	baseURL := getenv("PROCTOR_API_URL", "http://localhost:8080")
	token := os.Getenv("PROCTOR_API_TOKEN")
	examID := os.Getenv("PROCTOR_EXAM_ID")
	if token == "" || examID == "" {
		log.Fatal("PROCTOR_API_TOKEN and PROCTOR_EXAM_ID are required")
	}
	maxViolations := proctor.DefaultMaxViolations
	if v := os.Getenv("PROCTOR_MAX_VIOLATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxViolations = n
		}
	}

	shell := agent.NewShell(os.Stdout)
	client := agent.NewClient(baseURL, token)

	coordinator := &proctor.AutoSubmitCoordinator{
		Submitter: client,
		Navigator: shell,
		Notifier:  shell,
	}
	monitor, err := proctor.NewMonitor(proctor.Config{
		ExamID:        examID,
		MaxViolations: maxViolations,
		Camera:        shell,
		Screen:        shell,
		Consent:       shell,
		Notifier:      shell,
		Reporter:      client,
		Events:        shell,
		Submit:        coordinator,
	})
	if err != nil {
		log.Fatalf("monitor setup: %v", err)
	}

	go shell.Run(os.Stdin)

	if err := monitor.Start(context.Background()); err != nil {
		log.Fatalf("session start: %v", err)
	}
	log.Printf("session active for exam %s (threshold %d)", examID, maxViolations)

	<-shell.Done()

	// Shell gone or shutdown requested: release everything, let pending
	// violation logs finish.
	monitor.Stop()
	monitor.Flush()
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
