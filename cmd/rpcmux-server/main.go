// ABOUTME: Main entry point for the rpcmux WebSocket server
// ABOUTME: Loads configuration, wires the dispatch table, and serves until signaled

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/rpcmux/internal/config"
	"github.com/harper/rpcmux/internal/dispatch"
	"github.com/harper/rpcmux/internal/journal"
	"github.com/harper/rpcmux/internal/logger"
	"github.com/harper/rpcmux/internal/server"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	initConfig := flag.Bool("init-config", false, "write a starter config file and exit")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.WriteDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A missing config file is fine; run on defaults.
		if os.IsNotExist(err) {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	if *verbose || cfg.Log.Verbose {
		logger.SetVerbose(true)
	}

	var rec journal.Recorder
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
			os.Exit(1)
		}
		defer j.Close()
		rec = j
	}

	table := dispatch.New()
	table.MustRegister("rpc.ping", func(ctx *dispatch.Context) (any, error) {
		return "pong", nil
	})
	table.MustRegister("rpc.methods", func(ctx *dispatch.Context) (any, error) {
		return table.Methods(), nil
	})

	srv := server.New(server.Options{
		Table:         table,
		Journal:       rec,
		InboundBuffer: cfg.Server.InboundBuffer,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on ws://%s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received %s, shutting down", sig)
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete: %v", err)
	}
	logger.Info("bye")
}
