// Package server initializes and runs the authentication server.
// It opens the database, applies migrations, wires the services and the HTTP
// API, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/simpleauth/internal/logging"
	"github.com/dmitrijs2005/simpleauth/internal/server/config"
	"github.com/dmitrijs2005/simpleauth/internal/server/httpapi"
	"github.com/dmitrijs2005/simpleauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/simpleauth/internal/server/services"
)

// tokenPruneInterval is how often expired refresh tokens are purged.
const tokenPruneInterval = time.Hour

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	authService *services.AuthService
	userService *services.UserService
}

func NewApp(cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()

	as := services.NewAuthService(db, m, cfg)
	us := services.NewUserService(db, m)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		repomanager: m,
		authService: as,
		userService: us,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger,
		app.authService, app.userService, app.config.JwtKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startTokenPruner periodically deletes refresh tokens past their expiry.
// Revoked rows inside their validity window are kept so replay attempts
// keep failing on the revoked flag rather than on a missing row.
func (app *App) startTokenPruner(ctx context.Context) {
	ticker := time.NewTicker(tokenPruneInterval)
	defer ticker.Stop()

	repo := app.repomanager.RefreshTokens(app.db)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				app.logger.Error(ctx, "pruning refresh tokens", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "pruned expired refresh tokens", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		app.logger.Error(ctx, "migration error", "error", err.Error())
		return
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startTokenPruner(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err.Error())
	}
}
