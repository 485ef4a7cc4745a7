package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kero-live/kero-server/internal/cache"
	"github.com/kero-live/kero-server/internal/catalog"
	"github.com/kero-live/kero-server/internal/config"
	"github.com/kero-live/kero-server/internal/httpapi"
	"github.com/kero-live/kero-server/internal/hub"
	"github.com/kero-live/kero-server/internal/media"
	"github.com/kero-live/kero-server/internal/queue"
	"github.com/kero-live/kero-server/internal/store"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres", zap.Error(err))
	}

	c, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer c.Close()
	st.UseReferenceCache(c)

	songs := catalog.New(cfg.CatalogBaseURL, log)
	worker := media.New(cfg.MediaWorkerURL, st, c, log)
	pipeline := queue.New(songs, worker, log,
		queue.WithPollInterval(cfg.PollInterval),
		queue.WithMaxAttempts(cfg.PollMaxAttempts))

	h := hub.New(ctx, pipeline, st, st, log)

	api := &httpapi.API{Hub: h, Store: st, Media: worker, Catalog: songs, Log: log}
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Routes()}

	go func() {
		<-ctx.Done()
		h.Inbox() <- hub.Shutdown{}
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server", zap.Error(err))
	}
}
