package app

import (
	"context"
	"fmt"
	"log"

	"redline/internal/gateway/config"
	"redline/internal/gateway/handler"
	"redline/internal/gateway/handler/rpc"
	"redline/internal/gateway/server"
	"redline/internal/gateway/service/reviewsession"
	"redline/internal/provider"
)

type App struct {
	server *server.Server
	ai     provider.Provider
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	ai, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	artifactStore, err := initArtifactStore(cfg)
	if err != nil {
		return nil, err
	}
	svc := reviewsession.New(ai, artifactStore)

	reviewHandler := rpc.NewReviewHandler(svc)
	chatHandler := rpc.NewChatHandler(svc)
	watchHandler := rpc.NewWatchHandler(svc)
	artifactHandler := handler.NewArtifactHandler(svc.ArtifactStore())

	// Routing & Server
	mux := server.NewMux(reviewHandler, chatHandler, watchHandler, artifactHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		ai:     ai,
	}, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	if cfg.Gemini.APIKey == "" {
		log.Printf("provider: no API key configured, using fake provider")
		return provider.NewFakeProvider(), nil
	}
	client, err := provider.NewGeminiClient(ctx, provider.GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		VisionModel: cfg.Gemini.VisionModel,
		ImageModel:  cfg.Gemini.ImageModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini provider: %w", err)
	}
	log.Printf("provider: %s", client.Name())
	return client, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.ai.Close(); err != nil {
		log.Printf("provider close error: %v", err)
	}
	return a.server.Shutdown(ctx)
}
