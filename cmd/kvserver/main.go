// Command kvserver runs the in-memory key/value server: a
// single-threaded TCP event loop (internal/eventloop) speaking the
// length-prefixed binary protocol (internal/wire, internal/command)
// over the keyspace in internal/store, plus a read-only diagnostics
// HTTP surface (internal/adminapi) for operators. Both listeners run
// under one errgroup and shut down together on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/kvserver/internal/adminapi"
	"github.com/edirooss/kvserver/internal/config"
	"github.com/edirooss/kvserver/internal/diag"
	"github.com/edirooss/kvserver/internal/eventloop"
	"github.com/edirooss/kvserver/internal/store"
	"github.com/edirooss/kvserver/pkg/fmtt"
)

func buildLogger(env string) *zap.Logger {
	var logConfig zap.Config
	if env == "production" {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.TimeKey = ""
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.DisableStacktrace = true
	return zap.Must(logConfig.Build())
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmtt.PrintErrChain(err)
		panic(err)
	}

	log := buildLogger(cfg.Env)
	defer log.Sync()
	log = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv := store.New()
	ring := diag.NewRing()

	loop := eventloop.New(eventloop.Config{
		Addr:          cfg.ListenAddr,
		IdleTimeoutMS: cfg.IdleTimeoutMS,
		MaxConns:      cfg.MaxConns,
	}, log.Named("eventloop"), kv, ring)

	admin := adminapi.New(log.Named("adminapi"), loop, ring, adminapi.Options{
		Env:            cfg.Env,
		MaxConcurrent:  64,
		TrustedProxies: []string{"127.0.0.1"},
	})
	adminSrv := &http.Server{
		Addr:           cfg.AdminAddr,
		Handler:        admin,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 15,
		ErrorLog:       zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	g.Go(func() error {
		log.Info("admin HTTP surface listening", zap.String("addr", cfg.AdminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return adminSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server stopped")
}
