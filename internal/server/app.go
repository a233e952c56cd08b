// Package server initializes and runs the messaging server. It constructs
// the core components (identity directory, delivery ledger, presence
// transport), wires them into the HTTP router, and handles graceful
// shutdown. No component is a package-level singleton; everything is owned
// here and torn down via Reset hooks.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmitrijs2005/gophgram/internal/logging"
	"github.com/dmitrijs2005/gophgram/internal/server/api"
	"github.com/dmitrijs2005/gophgram/internal/server/config"
	"github.com/dmitrijs2005/gophgram/internal/server/identity"
	"github.com/dmitrijs2005/gophgram/internal/server/ledger"
	"github.com/dmitrijs2005/gophgram/internal/server/presence"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config    *config.Config
	logger    logging.Logger
	directory *identity.Directory
	ledger    *ledger.Ledger
	transport *presence.Transport
	server    *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger := logging.NewZerologLogger(zl)

	directory := identity.NewDirectory([]byte(cfg.SecretKey), cfg.SessionValidityDuration)
	messageLedger := ledger.NewLedger(directory)
	transport := presence.NewTransport(directory, logger)

	handler := api.NewHandler(directory, messageLedger, transport, cfg.InboxLimit, logger)
	router := api.NewRouter(zl, handler, directory)

	srv := &http.Server{
		Addr:    cfg.EndpointAddr,
		Handler: router,
	}

	return &App{
		config:    cfg,
		logger:    logger,
		directory: directory,
		ledger:    messageLedger,
		transport: transport,
		server:    srv,
	}, nil
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

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "server failed", "error", err.Error())
		}
	case <-ctx.Done():
		app.shutdown()
	}
}

// shutdown stops accepting connections, drains in-flight requests, and
// releases the in-memory registries.
func (app *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	app.logger.Info(ctx, "shutting down")

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err.Error())
	}

	app.transport.Reset()
	app.ledger.ClearAll()
	app.directory.Reset()
}
