package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Brownie44l1/classifier-api/internal/config"
	"github.com/Brownie44l1/classifier-api/internal/handlers"
	"github.com/Brownie44l1/classifier-api/internal/httpx"
	"github.com/Brownie44l1/classifier-api/internal/metrics"
	"github.com/Brownie44l1/classifier-api/internal/model"
	"github.com/Brownie44l1/classifier-api/internal/preprocess"
)

// resolve makes a relative artifact path relative to the project root, so the
// server can also be started from cmd/server.
func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	root, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(root) == "server" {
		root = filepath.Join(root, "../..")
	}

	modelPath := resolve(root, cfg.ModelPath)
	metadataPath := resolve(root, cfg.MetadataPath)
	labelsPath := resolve(root, cfg.LabelsPath)

	metadata, err := model.LoadMetadata(metadataPath)
	if err != nil {
		log.Fatalf("Failed to load metadata: %v", err)
	}

	var labels *model.Labels
	if labelsPath != "" {
		labels, err = model.LoadLabels(labelsPath)
	} else {
		labels, err = model.NewLabels(metadata.Classes)
	}
	if err != nil {
		log.Fatalf("Failed to load labels: %v", err)
	}

	if err := metadata.Validate(labels); err != nil {
		log.Fatalf("Model metadata does not match labels: %v", err)
	}

	filter, err := preprocess.ParseFilter(cfg.ResizeFilter)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	pre := preprocess.New(metadata.ImageSize, metadata.ImageSize)
	pre.Filter = filter
	pre.Debug = cfg.Debug

	if len(metadata.OutputShape) == 0 {
		metadata.OutputShape = []int64{1, int64(labels.Len())}
	}

	log.Printf("Loading model from: %s", modelPath)

	modelServer, err := model.NewServer(modelPath, cfg.ONNXLibPath, metadata)
	if err != nil {
		log.Fatalf("Failed to initialize model server: %v", err)
	}
	defer modelServer.Close()

	handler := handlers.NewHandler(handlers.Options{
		Classifier:     modelServer,
		Labels:         labels,
		Preprocessor:   pre,
		Latency:        metrics.NewLatencyTracker(0.2),
		Confidence:     cfg.ConfidenceFormat,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Message:        cfg.Message,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpx.CORS{AllowOrigin: cfg.CORSOrigin}.Wrap(handler.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on %s", srv.Addr)
	log.Printf("Classes: %v", labels.Classes())
	log.Printf("Input: %dx%d, confidence format: %s", pre.Width, pre.Height, cfg.ConfidenceFormat)
	log.Println("Endpoints:")
	log.Println("  GET  /               - Identity message")
	log.Println("  GET  /health         - Health check and inference latency")
	log.Println("  POST /predict        - Predict from image upload (field \"file\")")
	log.Println("  POST /predict/tensor - Predict from preprocessed values")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}
