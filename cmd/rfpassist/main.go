// File path: cmd/rfpassist/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nicodishanthj/rfpassist/internal/api"
	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/data/orchestrator"
)

func main() {
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warn("rfpassist: .env file not loaded", "error", err)
	} else {
		logger.Info("rfpassist: environment loaded from .env")
	}

	addrDefault := ":8000"
	if env := strings.TrimSpace(os.Getenv("RFP_ADDR")); env != "" {
		addrDefault = env
	}
	addr := flag.String("addr", addrDefault, "listen address")
	storageDir := flag.String("storage", "", "directory for uploaded and generated artifacts")
	dbPath := flag.String("db", "", "path to the SQLite database")
	kbDir := flag.String("kb", "", "knowledge base directory used for drafting")
	maxUpload := flag.Int64("max-upload", 0, "maximum upload size in bytes (0 uses the configured default)")
	flag.Parse()

	orchCfg, err := orchestrator.LoadConfig()
	if err != nil {
		logger.Error("rfpassist: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	orchCfg = orchCfg.Merge(orchestrator.Config{
		StorageDir:     strings.TrimSpace(*storageDir),
		DatabasePath:   strings.TrimSpace(*dbPath),
		KBDir:          strings.TrimSpace(*kbDir),
		MaxUploadBytes: *maxUpload,
	})

	logger.Info("rfpassist: startup initiated", "addr", *addr, "storage", orchCfg.StorageDir, "db", orchCfg.DatabasePath, "kb", orchCfg.KBDir)

	orch, err := orchestrator.New(ctx, orchCfg)
	if err != nil {
		logger.Error("rfpassist: orchestrator initialization failed", "error", err)
		fmt.Println("orchestrator error:", err)
		os.Exit(1)
	}
	defer orch.Close()

	server, err := api.NewServer(orch, nil)
	if err != nil {
		logger.Error("rfpassist: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("rfpassist: shutdown incomplete", "error", err)
		}
	}()

	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("rfpassist: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on http://%s\n", reachable)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("rfpassist: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}
