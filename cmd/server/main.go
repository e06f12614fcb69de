package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/anikchand/videotube/internal/config"
	"github.com/anikchand/videotube/internal/es"
	"github.com/anikchand/videotube/internal/events"
	"github.com/anikchand/videotube/internal/handlers"
	"github.com/anikchand/videotube/internal/logging"
	authmw "github.com/anikchand/videotube/internal/middleware/auth"
	loggingmw "github.com/anikchand/videotube/internal/middleware/logging"
	"github.com/anikchand/videotube/internal/service/search"
	"github.com/anikchand/videotube/internal/session"
	"github.com/anikchand/videotube/internal/tokens"
	httpserver "github.com/anikchand/videotube/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	config.MustNonEmptyBytes(cfg.AccessSecret, "ACCESS_TOKEN_SECRET")
	config.MustNonEmptyBytes(cfg.RefreshSecret, "REFRESH_TOKEN_SECRET")
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	logger := logging.New(cfg.LogLevel, cfg.ServiceName)

	ctx := context.Background()
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, user events are disabled")
	}

	var esClient *elasticsearch.Client
	if cfg.ESURL != "" {
		esClient, err = es.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
	} else {
		logger.Warn("ES_URL not set, channel search is disabled")
	}

	codec := tokens.NewCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	store := &session.Store{DB: db}
	sessions := &session.Service{DB: db, Store: store, Codec: codec}
	indexer := &search.Indexer{ES: esClient, Index: cfg.ESIndex}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler:   &handlers.AuthHandler{DB: db, Sessions: sessions, Producer: producer, Indexer: indexer},
		UserHandler:   &handlers.UserHandler{DB: db, Indexer: indexer},
		SearchHandler: &handlers.SearchHandler{ES: esClient, Index: cfg.ESIndex},
		Guard:         &authmw.Guard{Codec: codec},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
