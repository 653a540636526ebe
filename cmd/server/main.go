// Copyright 2026 The FluxoClean Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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

	"github.com/fluxoclean/controlplane/internal/account"
	"github.com/fluxoclean/controlplane/internal/audit"
	"github.com/fluxoclean/controlplane/internal/authz"
	"github.com/fluxoclean/controlplane/internal/billing"
	"github.com/fluxoclean/controlplane/internal/billing/mercadopago"
	"github.com/fluxoclean/controlplane/internal/clock"
	"github.com/fluxoclean/controlplane/internal/config"
	"github.com/fluxoclean/controlplane/internal/exchange"
	"github.com/fluxoclean/controlplane/internal/identity"
	"github.com/fluxoclean/controlplane/internal/mail"
	"github.com/fluxoclean/controlplane/internal/observability/logger"
	"github.com/fluxoclean/controlplane/internal/observability/metrics"
	"github.com/fluxoclean/controlplane/internal/observability/tracing"
	"github.com/fluxoclean/controlplane/internal/store/memory"
	"github.com/fluxoclean/controlplane/internal/store/postgres"
	"github.com/fluxoclean/controlplane/internal/store/redis"
	"github.com/fluxoclean/controlplane/internal/tenant"
	"github.com/fluxoclean/controlplane/internal/token"
	transportHTTP "github.com/fluxoclean/controlplane/internal/transport/http"
	"github.com/fluxoclean/controlplane/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting fluxoclean control plane")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(flushCtx); err != nil {
			slog.Error("failed to flush traces", logger.Error(err))
		}
	}()

	// Initialize meter
	meterProvider, err := metrics.NewProvider(ctx, metrics.ProviderConfig{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Endpoint:       cfg.Observability.OTLPMetricsEndpoint,
		ExportInterval: cfg.Observability.MetricsInterval,
	})
	if err != nil {
		slog.Error("failed to initialize meter provider", logger.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(flushCtx); err != nil {
			slog.Error("failed to flush metrics", logger.Error(err))
		}
	}()

	instruments, err := metrics.NewBillingInstruments(metrics.New(metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	}))
	if err != nil {
		slog.Error("failed to register billing instruments", logger.Error(err))
	}

	health := map[string]transportHTTP.HealthChecker{}

	// Initialize repositories
	var (
		tenantRepo tenant.Repository
		userRepo   identity.UserRepository
	)
	switch cfg.Database.Driver {
	case "memory":
		slog.Warn("using in-memory store, data is lost on restart")
		tenantRepo = memory.NewTenantRepository()
		userRepo = memory.NewUserRepository()
	default:
		db, err := postgres.New(ctx, postgresConfig(cfg))
		if err != nil {
			slog.Error("failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to database")
		tenantRepo = postgres.NewTenantRepository(db)
		userRepo = postgres.NewUserRepository(db)
		health["database"] = db
	}

	// One-time codes are shared through Redis when several replicas run
	clk := clock.Real{}
	var codeStore exchange.Store = exchange.NewMemoryStore(clk)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer rdb.Close()
		codeStore = redis.NewExchangeStore(rdb)
		health["redis"] = rdb
	}

	// Payment gateway
	var gateway billing.Gateway = billing.UnconfiguredGateway{}
	if cfg.GatewayEnabled() {
		mp, err := mercadopago.New(mercadopago.Config{
			BaseURL:     cfg.Billing.GatewayBaseURL,
			AccessToken: cfg.Billing.GatewayAccessToken,
			PublicURL:   cfg.Server.PublicURL,
			Timeout:     cfg.Billing.GatewayTimeout,
			Retries:     cfg.Billing.GatewayRetries,
		}, instruments)
		if err != nil {
			slog.Error("failed to initialize payment gateway", logger.Error(err))
			os.Exit(1)
		}
		gateway = mp
	} else {
		slog.Warn("payment gateway not configured, checkout and payment checks are disabled")
	}
	if cfg.Billing.WebhookSecret == "" {
		slog.Warn("webhook secret not configured, notification signatures are not checked")
	}

	// Outgoing mail
	var provider mail.Provider = mail.UnconfiguredProvider{}
	if cfg.Mail.Host != "" {
		provider = mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}
	mailer := mail.NewMailer(provider, cfg.Mail.AppURL)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	issuer, err := token.NewIssuer(cfg.Security.JWTSecret, cfg.Security.TokenIssuer, clk)
	if err != nil {
		slog.Error("failed to initialize token issuer", logger.Error(err))
		os.Exit(1)
	}
	destinations := tenant.Destinations{
		Home:     cfg.Destinations.Home,
		Commerce: cfg.Destinations.Commerce,
		Industry: cfg.Destinations.Industry,
		Services: cfg.Destinations.Services,
	}

	// Initialize services
	identityService := identity.NewService(
		userRepo,
		passwordHasher,
		auditLogger,
		clk,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	tenantService := tenant.NewService(tenantRepo, identityService, auditLogger, clk)
	accountService := account.NewService(
		tenantRepo,
		identityService,
		issuer,
		exchange.NewBroker(codeStore, cfg.Security.ExchangeCodeTTL, instruments),
		mailer,
		auditLogger,
		clk,
		account.Config{
			UserTokenTTL:     cfg.Security.UserTokenTTL,
			OperatorTokenTTL: cfg.Security.OperatorTokenTTL,
			Operator: identity.Operator{
				Email:    cfg.Security.OperatorEmail,
				Password: cfg.Security.OperatorPassword,
				Name:     cfg.Security.OperatorName,
			},
			Destinations: destinations,
		},
	)
	reconciler := billing.NewReconciler(tenantRepo, clk, auditLogger, instruments, cfg.Billing.WebhookTimeout)
	intake := billing.NewIntake(
		tenantRepo,
		gateway,
		billing.Prices{
			Monthly:   cfg.Billing.MonthlyPrice,
			Extension: cfg.Billing.ExtensionPrice,
			Upgrade:   cfg.Billing.UpgradePrice,
		},
		cfg.Billing.GatewayPublicKey,
		cfg.Billing.StatementName,
		clk,
		auditLogger,
	)
	processor := webhook.NewProcessor(
		webhook.NewAuthenticator(cfg.Billing.WebhookSecret),
		gateway,
		reconciler,
		auditLogger,
		instruments,
		cfg.Billing.WebhookTimeout,
	)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(transportHTTP.Dependencies{
		Accounts:     accountService,
		Users:        identityService,
		Tenants:      tenantService,
		Intake:       intake,
		Poller:       billing.NewPoller(tenantRepo, gateway, reconciler),
		Webhooks:     processor,
		Gate:         authz.NewGate(issuer, tenantRepo, userRepo, auditLogger),
		Destinations: destinations,
		Health:       health,
	})

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start trial expiry sweep
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.Server.TrialSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				n, err := tenantService.ExpireTrials(sweepCtx)
				if err != nil {
					slog.ErrorContext(sweepCtx, "failed to expire trials", logger.Error(err))
					continue
				}
				if n > 0 {
					slog.InfoContext(sweepCtx, "expired trials", slog.Int("count", n))
				}
			}
		}
	}()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	stopSweep()

	// Acknowledged notifications are still being settled
	if err := processor.Wait(shutdownCtx); err != nil {
		slog.Error("payment notifications still pending at shutdown", logger.Error(err))
	}

	slog.Info("server stopped")
}

func postgresConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	}
}
