package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"galle/internal/auth"
	"galle/internal/config"
	"galle/internal/persist"
	"galle/internal/relay"
	"galle/internal/service/server"
	"galle/internal/session"
	"galle/internal/utils/log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using system environment", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load configuration failed", zap.Error(err))
	}
	log.Init(cfg.LogLevel)
	defer log.Sync()

	store := session.NewStore()
	verifier := auth.NewHTTPVerifier(cfg.Auth)
	gate := auth.NewGate(store, verifier)
	router := relay.NewRouter(store)
	pipeline := persist.NewPipeline(cfg.Persist)

	handler := server.NewHandler(store, gate, router, pipeline)
	srv := server.NewHttpServer(cfg.Server, handler)

	if err := srv.Run(ctx); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
