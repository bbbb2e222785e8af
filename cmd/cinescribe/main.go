package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cinescribe/cinescribe/config"
	"github.com/cinescribe/cinescribe/internal/adapter/ai/openai"
	"github.com/cinescribe/cinescribe/internal/adapter/downloader/ytdlp"
	HTTPAdapter "github.com/cinescribe/cinescribe/internal/adapter/http"
	"github.com/cinescribe/cinescribe/internal/adapter/media/ffmpeg"
	"github.com/cinescribe/cinescribe/internal/adapter/storage/memory"
	"github.com/cinescribe/cinescribe/internal/adapter/storage/sqlite"
	"github.com/cinescribe/cinescribe/internal/domain"
	"github.com/cinescribe/cinescribe/internal/infrastructure/logger"
	"github.com/cinescribe/cinescribe/internal/service"
	"github.com/cinescribe/cinescribe/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	if cfg.OpenAIKey == "" {
		logger.Error.Printf("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	logger.Info.Printf("starting cinescribe on port %d (workers=%d, queue=%d)",
		cfg.Port, cfg.MaxConcurrentJobs, cfg.MaxPendingJobs)

	workspace := ffmpeg.NewWorkspace(cfg.DataDir)
	if err := workspace.EnsureDirs(); err != nil {
		logger.Error.Printf("failed to create data directories: %v", err)
		os.Exit(1)
	}

	archive, err := sqlite.NewArchive(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to open script archive: %v", err)
		os.Exit(1)
	}
	defer func() { _ = archive.Close() }()

	aiClient, err := openai.NewClient(openai.Config{
		APIKey:          cfg.OpenAIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		TranscribeModel: cfg.OpenAITranscribeModel,
		VisionModel:     cfg.OpenAIVisionModel,
		ScriptModel:     cfg.OpenAIScriptModel,
	})
	if err != nil {
		logger.Error.Printf("failed to create AI client: %v", err)
		os.Exit(1)
	}

	store := memory.NewStore()
	eventBus := service.NewEventBus()
	telemetry.RegisterQueueDepth(func() int {
		return store.CountByStatus(domain.JobStatusQueued)
	})

	pipeline := service.NewPipeline(
		store,
		ytdlp.NewDownloader(cfg.YtDlpPath, workspace.VideoPath),
		ffmpeg.NewAudioExtractor(workspace),
		ffmpeg.NewFrameSampler(workspace),
		openai.NewTranscriber(aiClient),
		openai.NewVisualAnalyzer(aiClient),
		openai.NewAssembler(aiClient),
		workspace,
		archive,
		eventBus,
	)

	scheduler := service.NewScheduler(store, pipeline.Run, cfg.MaxConcurrentJobs, cfg.MaxPendingJobs)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	scheduler.Start(workerCtx)

	sweeper := service.NewSweeper(store, workspace.TempDirs(), cfg.JobExpiry, cfg.SweepInterval)
	go sweeper.Run(workerCtx)

	server := HTTPAdapter.NewServer(scheduler, archive, eventBus, workspace.VideosDir(), cfg.MaxUploadSizeMB)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		// Stop the sweeper and signal in-flight pipelines
		workerCancel()

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
}
