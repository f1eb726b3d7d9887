package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bbernhard/tumorscan-playground/src/api"
	"github.com/bbernhard/tumorscan-playground/src/commons"
	"github.com/bbernhard/tumorscan-playground/src/predict"
	"github.com/bbernhard/tumorscan-playground/src/preview"
	"github.com/bbernhard/tumorscan-playground/src/session"
	"github.com/bbernhard/tumorscan-playground/src/web"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	janitorInterval = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := commons.Load("playground-web", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "[Main] Invalid configuration: %s\n", err.Error())
		os.Exit(2)
	}

	commons.SetupLogging(cfg.LogLevel, cfg.Release)
	if err := commons.SetupSentry(cfg.SentryDSN, cfg.Release); err != nil {
		log.Fatal("[Main] Couldn't set up error reporting: ", err.Error())
	}

	if cfg.Release {
		log.Info("[Main] Starting gin in release mode!")
		gin.SetMode(gin.ReleaseMode)
	}

	previews, err := preview.NewStore(cfg.PreviewsDir, cfg.MaxUploadSize)
	if err != nil {
		log.Fatal("[Main] ", err.Error())
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		log.Fatal("[Main] ", err.Error())
	}
	defer store.Close()

	slot := session.NewSlot(store, previews)

	log.Info("[Main] Using prediction service at ", cfg.ApiUrl)
	client := api.NewClient(cfg.ApiUrl, api.WithTimeout(cfg.RequestTimeout))

	log.Debug("[Main] Starting dispatcher with ", cfg.MaxWorkers, " workers")
	dispatcher := predict.NewDispatcher(client, web.NewSettleFunc(slot), cfg.MaxWorkers, cfg.MaxWorkerQueueSize)
	dispatcher.Run()

	server, err := web.NewServer(slot, client, dispatcher, web.Options{
		Release:       cfg.Release,
		MaxUploadSize: cfg.MaxUploadSize,
	})
	if err != nil {
		log.Fatal("[Main] Couldn't load templates: ", err.Error())
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	//a selected preview outlives its session's idle timeout as long as the session keeps being used
	go janitor(janitorCtx, previews, store, 2*cfg.SessionTTL)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.Handler(),
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("[Main] Listening on ", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("[Main] Received shutdown signal, gracefully shutting down...")
	case err := <-serverErrChan:
		log.Error("[Main] HTTP server error: ", err.Error())
		commons.ReportError(err, map[string]string{"stage": "serve"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("[Main] Server forced to shutdown: ", err.Error())
	}

	stopJanitor()
	dispatcher.Stop()
	log.Info("[Main] Stopped")
}

func newSessionStore(cfg *commons.Config) (session.Store, error) {
	if cfg.SessionStore == commons.SessionStoreRedis {
		log.Debug("[Main] Keeping sessions in redis at ", cfg.RedisAddress)
		pool := session.NewRedisPool(cfg.RedisAddress, cfg.RedisMaxConnections)
		store := session.NewRedisStore(pool, cfg.SessionTTL)
		if err := store.Ping(); err != nil {
			store.Close()
			return nil, fmt.Errorf("couldn't reach redis at %s: %w", cfg.RedisAddress, err)
		}
		return store, nil
	}

	log.Debug("[Main] Keeping sessions in memory")
	return session.NewMemoryStore(cfg.SessionTTL), nil
}

// janitor removes previews nobody released and, for in-memory sessions,
// the sessions that expired.
func janitor(ctx context.Context, previews *preview.Store, store session.Store, maxPreviewAge time.Duration) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m, ok := store.(*session.MemoryStore); ok {
				if n := m.Purge(); n > 0 {
					log.Debug("[Janitor] Purged ", n, " expired sessions")
				}
			}

			removed, err := previews.Sweep(maxPreviewAge)
			if err != nil {
				log.Error("[Janitor] Couldn't sweep previews: ", err.Error())
				commons.ReportError(err, map[string]string{"stage": "sweep"})
				continue
			}
			if removed > 0 {
				log.Debug("[Janitor] Removed ", removed, " orphaned previews")
			}
		}
	}
}
