package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"

	"github.com/grantforge/backend/config"
	"github.com/grantforge/backend/internal/eventbus"
	"github.com/grantforge/backend/internal/handler"
	"github.com/grantforge/backend/internal/pkg/database"
	"github.com/grantforge/backend/internal/pkg/llm"
	"github.com/grantforge/backend/internal/repository"
	"github.com/grantforge/backend/internal/router"
	"github.com/grantforge/backend/internal/service"
	"github.com/grantforge/backend/internal/service/agency"
	"github.com/grantforge/backend/internal/service/orchestrator"
	"github.com/grantforge/backend/internal/subscriber"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg := config.Load()

	if cfg.Database.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	runRepo := repository.NewRunRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	accessKeyRepo := repository.NewAccessKeyRepository(db)

	completer, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	bus := eventbus.NewRunEventBus()
	subscriber.NewProgressSubscriber(runRepo).Register(bus)

	agencies := agency.NewService(cfg.Agency.TemplatesDir)
	companies := service.NewCompanyService(cfg.Company.ProfilePath)
	accessKeys := service.NewAccessKeyService(accessKeyRepo, cfg.Auth.Salt)
	runService := service.NewRunService(cfg, runRepo, proposalRepo, usageRepo, agencies, companies, completer, bus)

	// Worker count stays small: concurrency is bounded by LLM quota, not CPU.
	orch, err := orchestrator.New(cfg.Worker, runService)
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}
	runService.SetOrchestrator(orch)
	orch.Start()
	defer orch.Stop()

	recoverRuns(runService)

	agencyHandler := handler.NewAgencyHandler(agencies)
	runHandler := handler.NewRunHandler(runService)
	eventsHandler := handler.NewEventsHandler(runService, bus)
	accessKeyHandler := handler.NewAccessKeyHandler(accessKeys)

	r := router.Setup(cfg, agencyHandler, runHandler, eventsHandler, accessKeyHandler, accessKeys)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// recoverRuns picks the database up after a restart. Waiting runs go back
// into the queue first, which refreshes their rows and keeps the stuck-run
// sweep from failing them; abandoned runs older than the timeout are then
// marked failed.
func recoverRuns(runService *service.RunService) {
	ctx := context.Background()

	requeued, err := runService.RequeueInterrupted(ctx)
	if err != nil {
		klog.Errorf("requeue interrupted runs failed: %v", err)
	} else if requeued > 0 {
		klog.V(6).Infof("requeued %d interrupted runs", requeued)
	}

	affected, err := runService.CleanupStuckRuns(ctx, 30*time.Minute)
	if err != nil {
		klog.Errorf("stuck run cleanup failed: %v", err)
		return
	}
	if affected > 0 {
		klog.V(6).Infof("marked %d stuck runs as failed at startup", affected)
	}
}
