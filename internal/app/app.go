// Package app wires every component into a running process: storage,
// renderer client, catalog resolution, binder, guard, draft store, metadata
// cache, job queue runner, purge scheduler, interaction router, and the
// Discord gateway. It is the shared core used by cmd/palette.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/palette/internal/binder"
	"github.com/bobmcallan/palette/internal/catalog"
	"github.com/bobmcallan/palette/internal/clients/civitai"
	"github.com/bobmcallan/palette/internal/clients/renderer"
	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/draft"
	"github.com/bobmcallan/palette/internal/gateway/discord"
	"github.com/bobmcallan/palette/internal/guard"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/jobqueue"
	"github.com/bobmcallan/palette/internal/metadata"
	"github.com/bobmcallan/palette/internal/models"
	"github.com/bobmcallan/palette/internal/purge"
	"github.com/bobmcallan/palette/internal/router"
	"github.com/bobmcallan/palette/internal/storage/sqlite"
)

// App holds every initialized component. It is the shared core used by
// cmd/palette.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Store   *sqlite.Store
	Catalog *models.NodeCatalog

	Renderer interfaces.RendererClient
	Binder   interfaces.Binder
	Guard    *guard.Guard
	Drafts   *draft.Store
	Metadata *metadata.Cache

	Runner *jobqueue.Runner
	Purge  *purge.Scheduler
	Router *router.Router

	Gateway *discord.Gateway

	StartupTime time.Time
}

// NewApp loads configuration and wires every component. The renderer must
// already be reachable — catalog resolution performs a blocking object_info
// call at boot.
func NewApp() (*App, error) {
	startupStart := time.Now()
	common.LoadVersionFromFile()

	config, err := common.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	store, err := sqlite.Open(config.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	rendererClient := renderer.NewClient(config.Backend.BaseURL,
		renderer.WithLogger(logger),
		renderer.WithTimeout(config.Backend.GetTimeout()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if !rendererClient.Ping(ctx) {
		logger.Warn().Msg("Renderer did not respond to ping at boot; continuing, catalog resolution may fail")
	}

	nodeCatalog, err := catalog.Resolve(ctx, rendererClient, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to resolve renderer node catalog: %w", err)
	}

	var civitaiOpts []civitai.ClientOption
	civitaiOpts = append(civitaiOpts, civitai.WithLogger(logger))
	if config.CivitaiAPIKey != "" {
		civitaiOpts = append(civitaiOpts, civitai.WithAPIKey(config.CivitaiAPIKey))
	}
	civitaiClient := civitai.NewClient(civitaiOpts...)

	templateBinder := binder.New(config.Templates, config.Upscale.Workflow, logger)
	if err := templateBinder.ValidateBaseTemplate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("base template invalid: %w", err)
	}
	if config.Upscale.Enabled {
		if err := templateBinder.ValidateUpscaleTemplate(); err != nil {
			logger.Warn().Err(err).Msg("Upscale template invalid; upscale requests will fail until fixed")
		}
	}

	contentGuard := guard.New(store, logger)
	draftStore := draft.New()
	metadataCache := metadata.New(rendererClient, civitaiClient, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Store:       store,
		Catalog:     nodeCatalog,
		Renderer:    rendererClient,
		Binder:      templateBinder,
		Guard:       contentGuard,
		Drafts:      draftStore,
		Metadata:    metadataCache,
		Purge:       purge.New(store, config.Purge, logger),
		StartupTime: startupStart,
	}

	gw, err := discord.New(config, nil, nodeCatalog, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to construct discord gateway: %w", err)
	}
	a.Gateway = gw

	a.Runner = jobqueue.New(store, rendererClient, templateBinder, gw, metadataCache, config, logger)
	a.Router = router.New(draftStore, contentGuard, templateBinder, store, a.Runner, rendererClient, a.Purge, nodeCatalog, config, logger)
	gw.SetRouter(a.Router)

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// Start launches the background runner, purge scheduler, and Discord gateway.
func (a *App) Start() error {
	a.Runner.Start()
	a.Purge.Start()
	if err := a.Gateway.Start(); err != nil {
		return fmt.Errorf("failed to start discord gateway: %w", err)
	}
	return nil
}

// Close releases every resource held by the App, in reverse dependency order.
func (a *App) Close() {
	if a.Gateway != nil {
		_ = a.Gateway.Close()
	}
	if a.Purge != nil {
		a.Purge.Stop()
	}
	if a.Runner != nil {
		a.Runner.Stop()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
