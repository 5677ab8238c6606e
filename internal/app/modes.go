package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/server"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/server/handler"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/server/ws"
)

// archiveInterval is how often the watch loop checks for expired ledger rows.
const archiveInterval = 24 * time.Hour

// ServeMode runs the HTTP API, WebSocket hub, reconciler, and the archival
// loop.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "serve mode starting")
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Reconciler.Run(ctx)
	})
	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// WatchMode runs only the background reconciliation loop, for deployments
// where another instance serves the API.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "watch mode starting")
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Reconciler.Run(ctx)
	})

	return g.Wait()
}

// FullMode runs everything in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "full mode starting")
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Reconciler.Run(ctx)
	})
	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	retention := time.Duration(a.cfg.S3.RetentionDays) * 24 * time.Hour
	g.Go(func() error {
		return deps.Archiver.Run(ctx, archiveInterval, retention)
	})
}

// startHTTPServer registers all handlers and adds server plus hub goroutines
// to the group. Shutdown is driven by context cancellation.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by config")
		return
	}

	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthProbes),
		Assets:    handler.NewAssetHandler(deps.Assets),
		Positions: handler.NewPositionHandler(deps.Positions, a.logger),
		Intents:   handler.NewIntentHandler(deps.Orchestrator, deps.Positions, a.logger),
		History:   handler.NewHistoryHandler(deps.Positions, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
