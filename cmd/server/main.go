package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inkwell/internal/app"
	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	zl := logging.Stdout(cfg.LogLevel)
	defer func() {
		_ = zl.Sync()
	}()
	if !cfg.EnvFileLoaded {
		zl.Info("no .env file found, using environment variables")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			zl.Warn("close store", zap.Error(err))
		}
	}()

	engine, err := router.New(a.Deps())
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Ranking.Run(ctx)
	}()
	a.Ranking.StartScheduledRefresh(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           engine,
		IdleTimeout:       3 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// stop accepting requests on interrupt, then cancel the workers
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-stop
		zl.Warn("got signal", zap.String("signal", sig.String()))

		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Error("server shutdown", zap.Error(err))
		}
		cancel()
	}()

	zl.Info("server started", zap.String("address", srv.Addr), zap.String("storage", cfg.Storage))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		cancel()
		wg.Wait()
		return err
	}

	wg.Wait()
	zl.Warn("server is shut down")
	return nil
}
