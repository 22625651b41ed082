// Package main is a demonstration host for the engine: it loads
// configuration, starts the engine's background workers, exposes the
// ambient /metrics and /status surfaces (§10), and drives a toy
// client loop that syncs a fixed instance set and records synthetic
// call outcomes so the breaker/health-check machinery has something
// to react to. Grounded on a typical gateway-style main.go startup
// sequence (flag parse, config load + warnings, mux assembly,
// signal-based graceful shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polaris-governance/core"
)

func main() {
	configPath := flag.String("config", "configs/polaris.yaml", "path to engine configuration file")
	addr := flag.String("addr", ":9190", "address to serve /metrics and /status on")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := polaris.InitFromFile(ctx, *configPath, logger)
	if err != nil {
		logger.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}
	defer engine.Shutdown()

	logger.Info("engine initialized", "load_balancer", engine.Config().LoadBalancer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", engine.MetricsHandler())
	mux.Handle("/status", engine.StatusHandler())

	srv := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	go func() {
		logger.Info("starting demo server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	go runDemoTraffic(ctx, engine, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("demo stopped gracefully")
}

const demoServiceKey = "demo-service"

var demoInstances = []string{
	"127.0.0.1:9001",
	"127.0.0.1:9002",
	"127.0.0.1:9003",
}

// runDemoTraffic syncs a fixed instance set into the registry and then
// repeatedly chooses and records synthetic call outcomes, biasing one
// instance toward failure so the breaker's state machine has something
// observable to do under /status. This is demonstration scaffolding,
// not part of the engine's public contract.
func runDemoTraffic(ctx context.Context, engine *polaris.Engine, logger *slog.Logger) {
	engine.SyncInstances(demoServiceKey, demoInstances)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	rnd := rand.New(rand.NewSource(1))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inst, err := engine.ChooseInstance(demoServiceKey, polaris.Criteria{})
			if err != nil {
				continue
			}

			outcome := polaris.Ok
			if inst.ID == demoInstances[0] && rnd.Float64() < 0.7 {
				outcome = polaris.Fail
			}
			engine.RecordCall(inst.ID, outcome, rnd.Int63n(50))

			logger.Debug("demo call recorded", "instance", inst.ID, "outcome", fmt.Sprint(outcome))
		}
	}
}
