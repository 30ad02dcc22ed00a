// Package server initializes and runs the auth server.
// It opens the credential store, applies migrations, wires the user service
// and serves the HTTP API until a termination signal arrives.
package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

const closeTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	store  repomanager.RepositoryManager
	server *httpapi.HTTPServer
}

// newStore is a seam for tests.
var newStore = repomanager.New

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogFormat, nil)
	gin.SetMode(gin.ReleaseMode)

	store, err := newStore(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := store.RunMigrations(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, oops.Code("DB_MIGRATION_FAILED").Wrap(err)
	}

	issuer := auth.NewIssuer(c.AccessTokenSecret, c.AccessTokenExpiry, c.RefreshTokenSecret, c.RefreshTokenExpiry)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	us := services.NewUserService(store.Users(), issuer, newSender(c, logger), c, logger.With("module", "user_service"), m)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Users:        us,
		Tokens:       issuer,
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		Health:       store.Ping,
		RefreshTTL:   issuer.RefreshTTL(),
		CookieSecure: c.CookieSecure,
	})

	return &App{
		config: c,
		logger: logger,
		store:  store,
		server: httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, router),
	}, nil
}

// newSender picks SMTP delivery when credentials are configured and falls
// back to logging the messages.
func newSender(c *config.Config, logger logging.Logger) notify.Sender {
	if c.SMTPUser == "" {
		logger.Warn(context.Background(), "SMTP credentials not set, reset emails will only be logged")
		return notify.NewLogSender(logger)
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", logging.ErrorAttrs(err)...)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := app.store.Close(closeCtx); err != nil {
		app.logger.Error(closeCtx, "failed to close store", logging.ErrorAttrs(err)...)
	}

	app.logger.Info(closeCtx, "App stopped")
}
