package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/SkyMonder/SkyCallPro/internal/auth"
	"github.com/SkyMonder/SkyCallPro/internal/chat"
	"github.com/SkyMonder/SkyCallPro/internal/config"
	"github.com/SkyMonder/SkyCallPro/internal/directory"
	internalhttp "github.com/SkyMonder/SkyCallPro/internal/http"
	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/presence"
	"github.com/SkyMonder/SkyCallPro/internal/registry"
	callsignal "github.com/SkyMonder/SkyCallPro/internal/signal"
	"github.com/SkyMonder/SkyCallPro/internal/store"
	"github.com/SkyMonder/SkyCallPro/internal/ws"
	"github.com/SkyMonder/SkyCallPro/pkg/logger"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().
		Int("ws_port", cfg.WSPort).
		Int("http_port", cfg.HTTPPort).
		Str("database", cfg.DatabaseDSN).
		Msg("starting relay service")

	db, err := store.NewSQLiteStore(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	dir := directory.New(db, log.With().Str("component", "directory").Logger())
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	connectionHub := hub.NewHub()
	reg := registry.New()
	pres := presence.New(reg, dir, connectionHub, cfg.RosterLimit, log.With().Str("component", "presence").Logger())
	reg.OnChange(pres.Broadcast)

	router := callsignal.New(reg, dir, log.With().Str("component", "signal").Logger())
	chatRelay := chat.New(reg, db, log.With().Str("component", "chat").Logger())

	wsServer := ws.NewServer(cfg, connectionHub, reg, pres, router, chatRelay, dir, tokens,
		log.With().Str("component", "ws").Logger())

	wsEcho := echo.New()
	wsEcho.HideBanner = true
	wsEcho.HidePort = true
	wsEcho.Use(middleware.Recover())
	wsEcho.GET("/ws", wsServer.HandleWebSocket)

	httpServer := internalhttp.NewServer(dir, chatRelay, connectionHub, reg, tokens,
		log.With().Str("component", "http").Logger())

	go func() {
		addr := fmt.Sprintf(":%d", cfg.WSPort)
		if err := wsEcho.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start WebSocket server")
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	log.Info().Msg("relay service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsEcho.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down WebSocket server gracefully")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down HTTP server gracefully")
	}

	log.Info().Msg("stopped")
}
