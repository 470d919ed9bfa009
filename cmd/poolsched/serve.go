package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"poolsched/pkg/middleware"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "expose health and metrics endpoints and refresh the overdue gauge",
		Action: withApp(func(c *cli.Context, a *app) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go refreshOverdue(ctx, a)
			return runServer(ctx, a)
		}),
	}
}

func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := ping(ctx, a); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ping checks every connection the configured backends opened.
func ping(ctx context.Context, a *app) error {
	clients := a.cfg.Client
	if clients.SQLite != nil {
		if err := clients.SQLite.PingContext(ctx); err != nil {
			return errors.New("sqlite not ready")
		}
	}
	if clients.Mongo != nil {
		if err := clients.Mongo.Ping(ctx, nil); err != nil {
			return errors.New("mongo not ready")
		}
	}
	if clients.Redis != nil {
		if err := clients.Redis.Ping(ctx).Err(); err != nil {
			return errors.New("redis not ready")
		}
	}
	return nil
}

func runServer(ctx context.Context, a *app) error {
	var handler http.Handler = newMux(a)
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)

	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      handler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.cfg.Log.Warn("Server shutdown failed", "error", err)
		}
	}()

	a.cfg.Log.Info("Serving health and metrics", "port", a.cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.cfg.Log.Info("Server stopped")
	return nil
}

func refreshOverdue(ctx context.Context, a *app) {
	ticker := time.NewTicker(a.cfg.OverdueRefreshInterval)
	defer ticker.Stop()

	for {
		if err := a.query.RecordOverdue(ctx); err != nil {
			a.cfg.Log.Warn("Failed to refresh overdue gauge", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
