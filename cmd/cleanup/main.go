// Command cleanup runs one trial expiry sweep and exits. It is meant for a
// scheduler when the server's own sweep is disabled or too coarse.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/config"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/store/postgres"
	"github.com/fluxoclean/controlplane/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	if cfg.Database.Driver != "postgres" {
		fmt.Fprintln(os.Stderr, "cleanup needs STORE=postgres")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		QueryTimeout: cfg.Database.QueryTimeout,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.Real{}
	auditLogger := audit.NewSlogLogger()
	users := identity.NewService(postgres.NewUserRepository(db), nil, auditLogger, clk,
		cfg.Security.LockoutMaxAttempts, cfg.Security.LockoutDuration)
	svc := tenant.NewService(postgres.NewTenantRepository(db), users, auditLogger, clk)

	n, err := svc.ExpireTrials(ctx)
	if err != nil {
		slog.Error("trial sweep failed", logger.Error(err))
		os.Exit(1)
	}
	fmt.Printf("Expired %d trial(s).\n", n)
}
