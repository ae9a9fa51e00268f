package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/knowledgehub/service-api-go/internal/router"
	userrepo "github.com/knowledgehub/service-api-go/internal/user/repo"
	"github.com/knowledgehub/service-api-go/pkg/database"
	"github.com/knowledgehub/service-api-go/pkg/keyvalue"
	"github.com/knowledgehub/service-api-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting knowledgehub api")

	// init db
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	// dev convenience: create the users table when asked to
	if os.Getenv("DB_ENSURE_SCHEMA") == "1" {
		ensureCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := userrepo.NewUserRepo(sqlxDB).EnsureTable(ensureCtx); err != nil {
			cancel()
			sugar.Fatalf("ensure schema: %v", err)
		}
		cancel()
	}

	// init session store backend
	rdb, err := keyvalue.Connect(keyvalue.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// mount http server
	handler, err := router.RegisterRoutes(sugar, sqlxDB, rdb, router.Options{
		SessionTTL:   sessionTTLFromEnv(),
		CookieSecure: os.Getenv("APP_ENV") != "local",
	})
	if err != nil {
		sugar.Fatalf("register routes: %v", err)
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// ping stores once more
	if err := sqlDB.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}
	if err := rdb.Ping(doneCtx).Err(); err != nil {
		sugar.Warnf("redis ping on shutdown failed: %v", err)
	}

	// shutdown http server
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// sessionTTLFromEnv reads SESSION_TTL_HOURS, defaulting to 24.
func sessionTTLFromEnv() time.Duration {
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			return time.Duration(hours) * time.Hour
		}
	}
	return 24 * time.Hour
}
