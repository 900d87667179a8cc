package main

import (
	"fmt"
	"log"
	"os"

	"github.com/shelfmatch/backend/config"
	httpDelivery "github.com/shelfmatch/backend/internal/delivery/http"
	"github.com/shelfmatch/backend/internal/infrastructure/cache"
	"github.com/shelfmatch/backend/internal/infrastructure/catalog"
	"github.com/shelfmatch/backend/internal/infrastructure/store"
	"github.com/shelfmatch/backend/internal/infrastructure/vision"
	"github.com/shelfmatch/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting ShelfMatch Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)

	debug := cfg.Server.Environment == "development"

	// Initialize infrastructure dependencies
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store at %s: %v", cfg.Store.Path, err)
	}
	defer db.Close()
	log.Printf("Store: %s", cfg.Store.Path)

	catalogClient := catalog.NewClient(cfg.Catalog.APIKey, cfg.Catalog.BaseURL, cfg.Catalog.PageSize, cfg.Catalog.RatePerSec)
	visionClient := vision.NewClient(cfg.Vision.APIKey, cfg.Vision.BaseURL)
	if debug {
		catalogClient.SetDebug(true)
		visionClient.SetDebug(true)
		log.Printf("Client debug mode enabled")
	}

	if cfg.Catalog.APIKey != "" {
		log.Printf("Catalog search configured: %s", cfg.Catalog.BaseURL)
	} else {
		log.Printf("WARNING: catalog API key NOT CONFIGURED - search calls will fail!")
	}
	log.Printf("Vision service configured: %s (mode: %s)", cfg.Vision.BaseURL, cfg.Vision.Mode)

	memoryCache := cache.NewMemoryCache()

	// Initialize usecase layer
	prefilter := usecase.NewPreFilter(usecase.PreFilterConfig{
		SimilarityFloor:     cfg.PreFilter.SimilarityFloor,
		SafetyCap:           cfg.PreFilter.SafetyCap,
		SizeConfidenceFloor: cfg.PreFilter.SizeConfidenceFloor,
		EnableDebugLogging:  cfg.PreFilter.EnableDebugLogging,
	})

	classifier := usecase.NewClassifier(visionClient, usecase.ClassifierConfig{
		SelectorConfidenceThreshold: cfg.Matching.SelectorConfidenceThreshold,
		EnableDebugLogging:          cfg.Matching.EnableDebugLogging,
	})

	matcher := usecase.NewMatchService(
		catalogClient,
		classifier,
		prefilter,
		db,
		db,
		memoryCache,
		usecase.MatchServiceConfig{
			CacheEnabled:       cfg.Cache.Enabled,
			CacheTTL:           cfg.Cache.TTL,
			StoreHint:          cfg.Catalog.StoreHint,
			VisionMode:         cfg.Vision.Mode,
			ItemBudget:         cfg.Orchestrator.ItemBudget,
			EnableDebugLogging: cfg.Matching.EnableDebugLogging,
		},
	)

	orchestrator := usecase.NewOrchestrator(matcher, usecase.OrchestratorConfig{
		Window:             cfg.Orchestrator.Window,
		MaxWindow:          cfg.Orchestrator.MaxWindow,
		SubBatchSize:       cfg.Orchestrator.SubBatchSize,
		SubBatchInterval:   cfg.Orchestrator.SubBatchInterval,
		EnableDebugLogging: debug,
	})

	log.Printf("Orchestrator: window=%d (max %d), sub-batch=%d/%s, item budget=%s",
		cfg.Orchestrator.Window, cfg.Orchestrator.MaxWindow,
		cfg.Orchestrator.SubBatchSize, cfg.Orchestrator.SubBatchInterval,
		cfg.Orchestrator.ItemBudget)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(matcher, orchestrator, db, db)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
