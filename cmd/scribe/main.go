// File path: cmd/scribe/main.go
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

	"github.com/showfolio/scribe/internal/api"
	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/crawler"
	"github.com/showfolio/scribe/internal/docstore"
	"github.com/showfolio/scribe/internal/llm"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug("scribe: .env file not loaded", "error", err)
	} else {
		logger.Info("scribe: environment loaded from .env")
	}

	addr := flag.String("addr", defaultAddr(), "listen address")
	dataDir := flag.String("data", "", "data directory for generated docs and the catalog (overrides SCRIBE_DATA_DIR)")
	cacheSize := flag.Int("cache-size", 512, "maximum cached LLM responses")
	cacheTTL := flag.String("cache-ttl", "", "LLM cache entry lifetime (e.g. 30m; empty for no expiry)")
	flag.Parse()

	storeCfg := docstore.DefaultConfig()
	if trimmed := strings.TrimSpace(*dataDir); trimmed != "" {
		storeCfg = storeCfg.Merge(docstore.Config{
			Root:   trimmed + "/docs",
			DBPath: trimmed + "/scribe.db",
		})
	}
	store, err := docstore.Open(storeCfg)
	if err != nil {
		logger.Error("scribe: docstore open failed", "error", err)
		fmt.Println("docstore error:", err)
		os.Exit(1)
	}
	defer store.Close()

	cacheOpts := []llm.CacheOption{llm.WithCacheSize(*cacheSize)}
	if trimmed := strings.TrimSpace(*cacheTTL); trimmed != "" {
		ttl, err := time.ParseDuration(trimmed)
		if err != nil {
			logger.Error("scribe: invalid cache ttl", "value", trimmed, "error", err)
			fmt.Println("cache ttl error:", err)
			os.Exit(1)
		}
		cacheOpts = append(cacheOpts, llm.WithTTL(ttl))
	}
	gateway := llm.NewGateway(llm.NewCache(cacheOpts...))

	server, err := api.NewServer(crawler.New(), gateway, store)
	if err != nil {
		logger.Error("scribe: server init failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{Addr: *addr, Handler: server}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("scribe: shutdown error", "error", err)
		}
	}()

	logger.Info("scribe: listening", "addr", *addr, "docs_root", storeCfg.Root)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("scribe: server exited", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}
	logger.Info("scribe: shutdown complete")
}

func defaultAddr() string {
	if env := strings.TrimSpace(os.Getenv("SCRIBE_ADDR")); env != "" {
		return env
	}
	return ":8080"
}
