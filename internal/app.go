package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/starford/geocam/internal/capture"
	"github.com/starford/geocam/internal/gateway"
	"github.com/starford/geocam/internal/geocode"
	"github.com/starford/geocam/internal/kv"
	"github.com/starford/geocam/internal/markers"
	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/natsbus"
	"github.com/starford/geocam/internal/photostore"
	"github.com/starford/geocam/internal/sse"
	"github.com/starford/geocam/internal/storage"
)

// App is the assembled component graph shared by every command.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	KV       kv.Store
	Gateway  *gateway.Gateway
	Probe    *gateway.KVProbe
	Store    *photostore.Store
	Workflow *capture.Workflow
	Resolver *geocode.Client
	Enricher *geocode.Enricher
	Broker   *sse.Broker

	nc *nats.Conn
}

// Open builds the component graph and loads the photo index.
func Open(ctx context.Context, opts ...Option) (*App, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("kv_backend", cfg.KV.Backend),
		slog.String("location_source", cfg.Location.Source),
		slog.String("log_level", cfg.App.LogLevel.String()))

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	files, err := openFiles(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.KV, err = openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.Probe = gateway.NewKVProbe(a.KV)
	gwOpts, err := gatewayOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Gateway = gateway.New(files, append(gwOpts, gateway.WithProbe(a.Probe))...)

	a.Broker = sse.NewBroker(cfg.SSE.MapThrottle)
	storeOpts := []photostore.Option{
		photostore.WithLogger(logger),
		photostore.WithNotifier(a.Broker),
		photostore.WithRehydrateLimit(cfg.Storage.RehydrateLimit),
	}
	if cfg.NATS.Enabled {
		nc, pub, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.Prefix, logger)
		if err != nil {
			return nil, err
		}
		a.nc = nc
		storeOpts = append(storeOpts, photostore.WithNotifier(pub))
	}

	a.Store = photostore.New(a.KV, a.Gateway, storeOpts...)
	photos, err := a.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}
	logger.Info("Photo index loaded", slog.Int("photos", len(photos)))

	wfOpts := []capture.Option{
		capture.WithLogger(logger),
		capture.WithFixTimeout(cfg.Location.FixTimeout),
	}
	if cfg.Camera.RequirePermission {
		wfOpts = append(wfOpts, capture.WithCameraPermission(func(ctx context.Context) bool {
			return a.Gateway.RequestCameraAccess(ctx).IsGranted()
		}))
	}
	if cfg.Geocode.Enabled {
		a.Resolver = geocode.NewClient(
			geocode.WithEndpoint(cfg.Geocode.Endpoint),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
			geocode.WithHTTPClient(&http.Client{Timeout: cfg.Geocode.Timeout}),
			geocode.WithClientLogger(logger),
		)
		a.Enricher = geocode.NewEnricher(a.Resolver, a.Store, logger)
		wfOpts = append(wfOpts, capture.WithOnCommit(func(p models.Photo) {
			a.Enricher.Request(p.ID)
		}))
	}
	a.Workflow = capture.New(a.Gateway, a.Store, wfOpts...)

	ok = true
	return a, nil
}

// Layout returns the configured marker layout options.
func (a *App) Layout() markers.Options {
	return markers.Options{
		Epsilon:    a.Config.Markers.Epsilon,
		BaseRadius: a.Config.Markers.BaseRadius,
	}
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.Enricher != nil {
		a.Enricher.Close()
	}
	if a.Broker != nil {
		a.Broker.Close()
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.Logger.Warn("nats drain failed", slog.String("error", err.Error()))
		}
	}
	if a.KV != nil {
		if err := a.KV.Close(); err != nil {
			a.Logger.Warn("kv close failed", slog.String("error", err.Error()))
		}
	}
}

func openFiles(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case StorageMinIO:
		m := cfg.Storage.MinIO
		files, err := storage.NewMinIO(ctx, storage.MinIOOptions{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			UseSSL:    m.UseSSL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		return files, nil
	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		files, err := storage.NewFS(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		return files, nil
	}
}

func openKV(ctx context.Context, cfg *Config) (kv.Store, error) {
	switch cfg.KV.Backend {
	case KVRedis:
		r := cfg.KV.Redis
		store, err := kv.OpenRedis(ctx, kv.RedisOptions{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init kv: %w", err)
		}
		return store, nil
	default:
		store, err := kv.OpenSQLite(cfg.KV.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init kv: %w", err)
		}
		return store, nil
	}
}

func outputMode(s string) gateway.OutputMode {
	if s == OutputPath {
		return gateway.OutputPath
	}
	return gateway.OutputBytes
}

func gatewayOptions(cfg *Config, logger *slog.Logger) ([]gateway.Option, error) {
	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithPhotoDir(cfg.Storage.PhotoDir),
		gateway.WithHighAccuracy(cfg.Location.HighAccuracy),
	}

	if cfg.Camera.Command != "" {
		cam, err := gateway.NewCommandCamera(cfg.Camera.Command, outputMode(cfg.Camera.Output))
		if err != nil {
			return nil, err
		}
		opts = append(opts, gateway.WithCamera(cam))
	}
	if cfg.Camera.PromptCommand != "" {
		picker, err := gateway.NewCommandCamera(cfg.Camera.PromptCommand, outputMode(cfg.Camera.PromptOutput))
		if err != nil {
			return nil, err
		}
		opts = append(opts, gateway.WithPrompt(picker))
	}

	switch cfg.Location.Source {
	case LocationStatic:
		opts = append(opts, gateway.WithLocator(gateway.StaticLocator{
			Coords: models.Coords{Lat: cfg.Location.Lat, Lng: cfg.Location.Lng},
		}))
	case LocationGPSD:
		opts = append(opts, gateway.WithLocator(gateway.GPSDLocator{Addr: cfg.Location.GPSDAddr}))
	case LocationNone:
		opts = append(opts, gateway.WithLocator(gateway.NoLocator{}))
	default:
		return nil, errors.New("unknown location source: " + cfg.Location.Source)
	}
	return opts, nil
}
