package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"photocatalog/internal/config"
	"photocatalog/internal/coordinator"
	"photocatalog/internal/decoder"
	"photocatalog/internal/derivativecache"
	"photocatalog/internal/logger"
	"photocatalog/internal/observability"
	"photocatalog/internal/persistence/handlestore"
	"photocatalog/internal/persistence/postgres"
	"photocatalog/internal/pipeline"
	"photocatalog/internal/scanner"
	"photocatalog/internal/server"
)

func main() {
	cfg := config.Load()

	log := logger.Init("photocatalog", cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), "photocatalog")
	if err != nil {
		log.Warn("failed to initialize OpenTelemetry", "error", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Error("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		stdlog.Fatalf("failed to connect to catalog database: %v", err)
	}
	defer db.Close()
	log.Info("connected to catalog database")

	handles, err := handlestore.Open(cfg.HandleStorePath)
	if err != nil {
		stdlog.Fatalf("failed to open handle store: %v", err)
	}
	defer handles.Close()

	thumbStore, previewStore := buildBlobStores(cfg)

	thumbCache := derivativecache.New("thumbnail", cfg.ThumbnailCapacity, thumbStore, log)
	previewCache := derivativecache.New("preview", cfg.PreviewCapacity, previewStore, log)

	dec := decoder.NewLocalDecoder()
	thumbPipeline := pipeline.New("thumbnail", decoder.TargetSize{Kind: "thumbnail", LongEdge: 512}, dec, thumbCache, cfg.PipelineConcurrency, log)
	previewPipeline := pipeline.New("preview", decoder.TargetSize{Kind: "preview", LongEdge: 2560}, dec, previewCache, cfg.PipelineConcurrency, log)

	scan := scanner.New(cfg.ScanBatchSize, log)

	engine := coordinator.New(coordinator.Deps{
		Folders:    postgres.NewFolderRepository(db),
		Assets:     postgres.NewAssetRepository(db),
		EditStates: postgres.NewEditStateRepository(db),
		Handles:    handles,
		Scanner:    scan,
		Picker:     coordinator.NewLocalFolderPicker(os.Getenv("CATALOG_ROOT")),
		Thumbnails: thumbPipeline,
		Previews:   previewPipeline,
		Log:        log,
	})

	ctx, cancelEngine := context.WithCancel(context.Background())
	engine.Start(ctx)

	srv := server.New(engine, config.GetAllowedOrigins())

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdlog.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	cancelEngine()
	engine.Close()
	log.Info("server exited")
}

// buildBlobStores constructs the persistent tier for both caches per
// cfg.CacheBackend, sharing the same backend choice and distinguishing
// thumbnails from previews by directory or key prefix.
func buildBlobStores(cfg config.Config) (thumb, preview derivativecache.BlobStore) {
	switch cfg.CacheBackend {
	case config.CacheBackendS3:
		thumb = derivativecache.NewS3BlobStore(derivativecache.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKeyID,
			SecretKey: cfg.S3SecretAccessKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    "thumbnails/",
		})
		preview = derivativecache.NewS3BlobStore(derivativecache.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKeyID,
			SecretKey: cfg.S3SecretAccessKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    "previews/",
		})
	default:
		thumb = derivativecache.NewDiskBlobStore(filepath.Join(cfg.CacheDir, "thumbnails"), ".thumb")
		preview = derivativecache.NewDiskBlobStore(filepath.Join(cfg.CacheDir, "previews"), ".preview")
	}
	return thumb, preview
}
