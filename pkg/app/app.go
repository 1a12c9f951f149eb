// Package app assembles the Pokédex: camera, classifier, detector and
// dashboard, and manages their lifecycle.
package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	_ "golang.org/x/image/webp"
	"golang.org/x/oauth2/google"

	"github.com/teslashibe/go-pokedex/internal/config"
	"github.com/teslashibe/go-pokedex/pkg/camera"
	"github.com/teslashibe/go-pokedex/pkg/credential"
	"github.com/teslashibe/go-pokedex/pkg/inference"
	"github.com/teslashibe/go-pokedex/pkg/pokedex"
	"github.com/teslashibe/go-pokedex/pkg/web"
)

// generativeLanguageScope is the OAuth2 scope for ADC auth.
const generativeLanguageScope = "https://www.googleapis.com/auth/generative-language"

// App is the main application orchestrator.
type App struct {
	config *config.Config
	logger *slog.Logger

	// Overridable for tests
	open     camera.OpenFunc
	prompter credential.Prompter
	alerts   io.Writer

	// Classification
	store    credential.Store
	client   *inference.Client // nil in ADC mode
	provider inference.Provider
	detector *pokedex.Detector

	// Capture
	cameraManager *camera.Manager
	source        *camera.Source

	// Web dashboard, set once Run starts it
	webServer atomic.Pointer[web.Server]
}

// Option customises an App.
type Option func(*App)

// WithCamera sets the device opener. Without it the app runs with no
// camera.
func WithCamera(open camera.OpenFunc) Option {
	return func(a *App) { a.open = open }
}

// WithPrompter replaces the terminal key prompt.
func WithPrompter(p credential.Prompter) Option {
	return func(a *App) { a.prompter = p }
}

// WithProvider bypasses Gemini and the credential store.
func WithProvider(p inference.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithAlerts redirects the console sighting alerts.
func WithAlerts(w io.Writer) Option {
	return func(a *App) { a.alerts = w }
}

func noCamera(device string, width, height int) (camera.Device, error) {
	return nil, fmt.Errorf("%w: no camera driver configured", camera.ErrUnavailable)
}

// New creates an application with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		config:   cfg,
		logger:   logger,
		open:     noCamera,
		prompter: credential.NewTerminalPrompter(),
		alerts:   os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init builds the classifier and detector.
// Call this after New() and before Run() or ClassifyImage().
func (a *App) Init(ctx context.Context) error {
	if a.provider == nil {
		if err := a.initProvider(ctx); err != nil {
			return fmt.Errorf("classifier init: %w", err)
		}
	}

	notifier := pokedex.MultiNotifier{
		pokedex.NewConsoleNotifier(a.alerts),
		&webAdapter{app: a},
	}
	a.detector = pokedex.NewDetector(a.provider, notifier,
		pokedex.WithObserver(&webAdapter{app: a}),
		pokedex.WithLogger(a.logger),
	)
	return nil
}

func (a *App) initProvider(ctx context.Context) error {
	gcfg := a.config.Gemini
	opts := []inference.Option{
		inference.WithModel(gcfg.Model),
		inference.WithTimeout(gcfg.Timeout),
		inference.WithJSONResponse(true),
		inference.WithLogger(a.logger),
	}
	if gcfg.BaseURL != "" {
		opts = append(opts, inference.WithBaseURL(gcfg.BaseURL))
	}

	if gcfg.Auth == config.AuthADC {
		ts, err := google.DefaultTokenSource(ctx, generativeLanguageScope)
		if err != nil {
			return fmt.Errorf("application default credentials: %w", err)
		}
		provider, err := inference.NewGemini(ctx, append(opts, inference.WithTokenSource(ts))...)
		if err != nil {
			return err
		}
		a.provider = provider
		a.logger.Info("classifier ready", "model", provider.Model(), "auth", config.AuthADC)
		return nil
	}

	store, err := openStore(a.config.Credential)
	if err != nil {
		return err
	}
	a.store = store

	if err := seedStore(store, gcfg.APIKey); err != nil {
		return err
	}

	a.client = inference.NewClient(store, a.prompter, inference.GeminiFactory(opts...), a.logger)
	a.provider = a.client
	a.logger.Info("classifier ready",
		"model", gcfg.Model,
		"auth", config.AuthAPIKey,
		"store", a.config.Credential.Store,
	)
	return nil
}

// openStore opens the configured credential store.
func openStore(cfg config.CredentialConfig) (credential.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return credential.NewMemoryStore(""), nil
	case config.StoreSQLite:
		return credential.OpenSQLite(cfg.Path)
	default:
		return credential.NewFileStore(cfg.Path)
	}
}

// seedStore saves key when the store is empty.
func seedStore(store credential.Store, key string) error {
	if key == "" {
		return nil
	}
	if _, err := store.Load(); !errors.Is(err, credential.ErrNotFound) {
		return err
	}
	return store.Save(key)
}

// Run starts capture and the dashboard, then blocks until ctx is cancelled.
// A missing camera is logged; the app keeps running without frames.
func (a *App) Run(ctx context.Context) error {
	if a.detector == nil {
		return errors.New("app: Run called before Init")
	}

	a.cameraManager = camera.NewManager(a.config.Camera)
	a.source = camera.NewSource(a.cameraManager, a.open, a.logger)

	stop := a.detector.Watch(ctx, a.source.Frames())
	defer stop()

	if err := a.source.Start(ctx); err != nil {
		a.logger.Warn("running without camera", "error", err)
	}

	if a.config.Web.Enabled {
		a.startWebDashboard(ctx)
	}

	a.logger.Info("pokedex running", "interval", a.cameraManager.GetConfig().Interval())
	<-ctx.Done()
	return nil
}

func (a *App) startWebDashboard(ctx context.Context) {
	deps := web.Deps{
		Camera:   a.cameraManager,
		Source:   a.source,
		Frames:   a.source.Frames(),
		Detector: a.detector,
		Logger:   a.logger,
	}
	if a.client != nil {
		deps.Credentials = a.client
	}
	server := web.NewServer(a.config.Web.Port, deps)
	a.webServer.Store(server)
	server.StartAsync(ctx)
}

// ClassifyImage runs one cycle on a local image or URL. Non-JPEG input is
// re-encoded at its own size.
func (a *App) ClassifyImage(ctx context.Context, src string) (pokedex.Result, error) {
	if a.detector == nil {
		return pokedex.Result{}, errors.New("app: ClassifyImage called before Init")
	}

	b64 := camera.ImageToBase64(ctx, src)
	if b64 == "" {
		return pokedex.Result{}, fmt.Errorf("load image %s: failed", src)
	}

	frame, err := toJPEGFrame(b64, a.config.Camera.Quality)
	if err != nil {
		return pokedex.Result{}, fmt.Errorf("load image %s: %w", src, err)
	}
	return a.detector.Classify(ctx, frame)
}

func toJPEGFrame(b64 string, quality int) (camera.Frame, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return camera.Frame{}, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return camera.Frame{}, err
	}
	if format == "jpeg" {
		return camera.NewFrame(b64), nil
	}
	b := img.Bounds()
	return camera.EncodeFrame(img, b.Dx(), b.Dy(), quality)
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	if a.source != nil {
		a.source.Close()
	}
	if a.detector != nil {
		a.detector.Wait()
	}
	if server := a.webServer.Load(); server != nil {
		if err := server.Shutdown(); err != nil {
			a.logger.Warn("web shutdown failed", "error", err)
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn("classifier close failed", "error", err)
		}
	}
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("credential store close failed", "error", err)
		}
	}
	a.logger.Info("goodbye")
}

// webAdapter forwards sightings and cycles to the dashboard once it runs.
type webAdapter struct {
	app *App
}

func (w *webAdapter) Notify(ctx context.Context, name string) error {
	if server := w.app.webServer.Load(); server != nil {
		return server.Notify(ctx, name)
	}
	return nil
}

func (w *webAdapter) CycleFinished(c pokedex.Cycle) {
	if server := w.app.webServer.Load(); server != nil {
		server.CycleFinished(c)
	}
}
