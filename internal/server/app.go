// Package server wires the skybox components together and runs the gRPC and
// HTTP transports until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/skybox/internal/dbx"
	"github.com/dmitrijs2005/skybox/internal/logging"
	"github.com/dmitrijs2005/skybox/internal/server/auth"
	"github.com/dmitrijs2005/skybox/internal/server/config"
	"github.com/dmitrijs2005/skybox/internal/server/httpapi"
	"github.com/dmitrijs2005/skybox/internal/server/objectstore"
	"github.com/dmitrijs2005/skybox/internal/server/payments"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/skybox/internal/server/services"

	gs "github.com/dmitrijs2005/skybox/internal/server/grpc"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	verifier       auth.Verifier
	fileService    *services.FileService
	paymentService *services.PaymentService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := objectstore.NewS3Store(ctx, objectstore.Config{
		Bucket:             c.S3Bucket,
		Region:             c.S3Region,
		AccessKey:          c.S3AccessKey,
		SecretKey:          c.S3SecretKey,
		BaseEndpoint:       c.S3BaseEndpoint,
		PublicDomain:       c.S3PublicDomain,
		MultipartThreshold: c.MultipartThreshold,
		PartSize:           c.MultipartPartSize,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	verifier, err := newVerifier(ctx, c, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("auth init error: %w", err)
	}

	tx := dbx.NewSQLTransactor(db, nil)
	gateway := payments.NewRazorpayGateway(c.RazorpayKeyID, c.RazorpayKeySecret, c.GatewayTimeout)

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		verifier:       verifier,
		fileService:    services.NewFileService(tx, rm, store, c, logger),
		paymentService: services.NewPaymentService(tx, rm, gateway, c, logger),
	}, nil
}

// newVerifier prefers the identity provider's JWKS and falls back to the
// shared HMAC secret for local development.
func newVerifier(ctx context.Context, c *config.Config, logger logging.Logger) (auth.Verifier, error) {
	if c.JWKSURL == "" {
		logger.Warn(ctx, "no JWKS URL configured, verifying HS256 tokens with the shared secret")
		return auth.NewHMACVerifier([]byte(c.SecretKey)), nil
	}
	return auth.NewJWKSVerifier(ctx, auth.JWKSConfig{
		URL:             c.JWKSURL,
		Issuer:          c.JWTIssuer,
		RefreshInterval: c.JWKSRefreshInterval,
		Leeway:          c.JWTLeeway,
		ClientTimeout:   c.JWKSClientTimeout,
	}, logger)
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.fileService, app.verifier, app.config.MaxMessageSize)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.fileService, app.paymentService, app.verifier, app.config.ShutdownTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or either transport fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
