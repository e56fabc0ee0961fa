// Package app wires the database, store and billing service shared by the
// binaries under cmd/.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrJamesThe3rd/billy/internal/audit"
	"github.com/MrJamesThe3rd/billy/internal/auth"
	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/billing/store"
	"github.com/MrJamesThe3rd/billy/internal/config"
	"github.com/MrJamesThe3rd/billy/internal/database"
)

type App struct {
	Config   *config.Config
	DB       *sql.DB
	Driver   database.Driver
	Store    *store.Store
	Recorder *audit.Recorder
	Billing  *billing.Service
}

// Open connects to the configured database, applies pending migrations and
// builds the billing service.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := cfg.Driver()
	if err != nil {
		return nil, err
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := database.New(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	applied, err := database.Migrate(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if len(applied) > 0 {
		logger.Info("applied migrations", "versions", applied)
	}

	st := store.New(db, driver)
	recorder := audit.NewRecorder(st, cfg.Audit.Buffer, logger)

	svc := billing.NewService(st,
		auth.NewRoleAuthorizer(cfg.Auth.MutatorRoles...),
		billing.WithAuditRecorder(recorder),
		billing.WithLogger(logger),
		billing.WithTxTimeout(cfg.DB.TxTimeout),
	)

	return &App{
		Config:   cfg,
		DB:       db,
		Driver:   driver,
		Store:    st,
		Recorder: recorder,
		Billing:  svc,
	}, nil
}

// Operator is the actor local tools act as.
func (a *App) Operator() billing.Actor {
	return billing.Actor{ID: a.Config.Operator.ID, Role: a.Config.Operator.Role}
}

// Close drains pending audit entries and closes the database.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Recorder.Close(ctx), a.DB.Close())
}
