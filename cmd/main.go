package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/telreader/telugu-science-reader/internal/aiserver"
	"github.com/telreader/telugu-science-reader/internal/aitask"
	"github.com/telreader/telugu-science-reader/internal/assetcache"
	"github.com/telreader/telugu-science-reader/internal/config"
	"github.com/telreader/telugu-science-reader/internal/connectivity"
	"github.com/telreader/telugu-science-reader/internal/llm"
	"github.com/telreader/telugu-science-reader/internal/reader"
	"github.com/telreader/telugu-science-reader/internal/store"
	"github.com/telreader/telugu-science-reader/internal/webapp"
	"github.com/telreader/telugu-science-reader/internal/webproxy"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// precacheManifest lists the shell assets fetched during install. All of
// them must be present for the precache to commit.
var precacheManifest = []string{
	"/",
	"/index.html",
	"/styles.css",
	"/app.js",
	"/data/sentences.json",
	"/data/glossary.json",
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	level := log.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.LogFile != "" {
		fileLogger, err := log.InitFileLogger(cfg.Server.LogFile, level)
		if err != nil {
			log.Fatal("Failed to open log file: %v", err)
		}
		defer fileLogger.Close()
	} else {
		log.InitLogger(level)
	}

	ctx := context.Background()

	st, err := store.Open(cfg.Reader.DBPath)
	if err != nil {
		log.Fatal("Failed to open durable store: %v", err)
	}
	defer st.Close()

	library := reader.NewLibrary(st, cfg.Reader.PageSize)
	glossary := reader.NewGlossary(st)
	boot := &reader.Bootstrap{Library: library, Glossary: glossary, DataDir: cfg.Reader.DataDir}
	if err := boot.Run(ctx); err != nil {
		log.Fatal("Bootstrap failed: %v", err)
	}

	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	})
	if err != nil {
		log.Fatal("Failed to build LLM client: %v", err)
	}

	monitor := connectivity.NewMonitor(true)
	queue := aitask.NewQueue(st)
	dispatcher := aitask.NewDispatcher(
		aitask.NewCache(st),
		queue,
		aitask.NewClient(cfg.Tasks.Endpoint),
		monitor,
	)
	monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			if replayed, err := dispatcher.Drain(context.Background()); err != nil {
				log.Error("Queue replay failed: %v", err)
			} else if replayed > 0 {
				log.Info("Replayed %d queued AI request(s)", replayed)
			}
		}()
	})

	assets, err := assetcache.Open(cfg.Assets.CachePath)
	if err != nil {
		log.Fatal("Failed to open asset cache: %v", err)
	}
	defer assets.Close()

	static := webapp.StaticHandler(cfg.Reader.DataDir)
	proxy := webproxy.New(assets, cfg.Assets.CacheName, webproxy.HandlerTransport{Handler: static})
	if err := proxy.Install(ctx, precacheManifest); err != nil {
		log.Warn("Precache failed, serving without it: %v", err)
	} else if err := proxy.Activate(ctx); err != nil {
		log.Warn("Old cache cleanup failed: %v", err)
	}

	server := webapp.NewServer(
		library,
		glossary,
		reader.NewFeedback(st),
		reader.NewAnalytics(st),
		queue,
		dispatcher,
		monitor,
		webapp.WithAIEndpoint(aiserver.NewHandler(llmClient)),
		webapp.WithStatic(proxy),
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe(cfg.Server.Addr)
	}()

	prober := connectivity.NewProber(monitor, cfg.Tasks.ProbeURL, cfg.Tasks.ProbeCron)
	if err := prober.Start(ctx); err != nil {
		log.Fatal("Failed to start connectivity probe: %v", err)
	}
	defer prober.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: %v", err)
		}
	case sig := <-sigCh:
		log.Info("Received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown error: %v", err)
		}
		proxy.WaitRefresh()
	}
}
