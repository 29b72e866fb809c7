package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aistate/aml-engine/internal/api"
	"github.com/aistate/aml-engine/internal/db"
	"github.com/aistate/aml-engine/internal/memory"
	"github.com/aistate/aml-engine/internal/ocr"
	"github.com/aistate/aml-engine/internal/pdfparse"
	"github.com/aistate/aml-engine/internal/pipeline"
	"github.com/aistate/aml-engine/internal/rules"
)

func main() {
	log.Println("Starting AIState AML Engine...")

	dataDir := getEnvOrDefault("AISTATE_DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("FATAL: cannot create data dir %s: %v", dataDir, err)
	}

	store, err := db.Open(filepath.Join(dataDir, "aml.db"))
	if err != nil {
		log.Fatalf("FATAL: failed to open database: %v", err)
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	ruleStore, err := rules.NewStore(os.Getenv("RULES_CONFIG"))
	if err != nil {
		log.Fatalf("FATAL: rules config failed to load: %v", err)
	}

	mem := memory.New(memory.DefaultConfig(), store)
	ctx := context.Background()
	if profiles, err := store.LoadProfiles(ctx); err != nil {
		log.Printf("Warning: failed to load counterparty profiles: %v", err)
	} else {
		mem.Load(profiles)
	}
	if items, err := store.LoadLearningQueue(ctx); err != nil {
		log.Printf("Warning: failed to load learning queue: %v", err)
	} else {
		mem.LoadQueue(items)
	}

	if !ocr.Available() {
		log.Println("Warning: pdftoppm/tesseract not found, scanned statements will fail")
	}

	pipe := &pipeline.Pipeline{
		Parser:       pdfparse.NewParser(store),
		Store:        store,
		Memory:       mem,
		Rules:        ruleStore,
		StageTimeout: 2 * time.Minute,
	}

	hub := api.NewHub()
	go hub.Run()

	r := api.SetupRouter(store, pipe, mem, ruleStore, hub, dataDir)

	port := getEnvOrDefault("PORT", "5340")
	log.Printf("Engine running on :%s (data dir %s)", port, dataDir)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnvOrDefault returns the env var value or a default for non-secret
// settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
