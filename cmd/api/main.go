package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/billy/internal/app"
	"github.com/MrJamesThe3rd/billy/internal/auth"
	"github.com/MrJamesThe3rd/billy/internal/config"
	billyHttp "github.com/MrJamesThe3rd/billy/internal/http"
	documentHandler "github.com/MrJamesThe3rd/billy/internal/http/document"
	importHandler "github.com/MrJamesThe3rd/billy/internal/http/importcsv"
	sequenceHandler "github.com/MrJamesThe3rd/billy/internal/http/sequence"
	"github.com/MrJamesThe3rd/billy/internal/importer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Auth.JWTSecret == "" {
		slog.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	var (
		documentH = documentHandler.NewHandler(a.Billing)
		sequenceH = sequenceHandler.NewHandler(a.Billing)
		importH   = importHandler.NewHandler(importer.NewService())
	)

	router := billyHttp.New(
		auth.NewAuthenticator(cfg.Auth.JWTSecret),
		billyHttp.Options{CORSOrigins: cfg.Server.CORSOrigins},
		documentH,
		sequenceH,
		importH,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + cfg.DB.TxTimeout,
	}

	go func() {
		slog.Info("starting server", "port", srv.Addr, "driver", a.Driver)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}

	if err := a.Close(shutdownCtx); err != nil {
		slog.Error("failed to close", "error", err)
	}
}
