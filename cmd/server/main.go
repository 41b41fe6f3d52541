// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package main is the entry point for the Eventscout server.
//
// Eventscout aggregates live event listings from multiple providers
// (Ticketmaster, SeatGeek, DICE, Exa and a local scrape cache) behind a
// conversational search API. Natural-language time phrases ("this
// weekend", "next friday") are resolved server-side, searches fan out
// to every available source concurrently, and long-running deep
// discovery pushes late results to connected sessions over websockets
// or SSE.
//
// Startup order:
//
//  1. Configuration via Koanf v2 (defaults, config.yaml, env vars)
//  2. Zerolog logging
//  3. BadgerDB event cache
//  4. Source registry (credentialed adapters wrapped in circuit breakers)
//  5. Aggregation engine, push hub, discovery manager
//  6. Suture supervision tree (janitor / hub / discovery / HTTP)
//
// Shutdown is signal-driven: SIGINT/SIGTERM cancels the root context,
// the tree drains each service within its timeout, and the cache is
// closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/eventscout/internal/aggregate"
	"github.com/tomtom215/eventscout/internal/api"
	"github.com/tomtom215/eventscout/internal/cache"
	"github.com/tomtom215/eventscout/internal/config"
	"github.com/tomtom215/eventscout/internal/discovery"
	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/push"
	"github.com/tomtom215/eventscout/internal/sources"
	"github.com/tomtom215/eventscout/internal/supervisor"
	"github.com/tomtom215/eventscout/internal/supervisor/services"
	"github.com/tomtom215/eventscout/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("city", cfg.Search.City).
		Str("timezone", cfg.Search.Timezone).
		Str("cache_path", cfg.Cache.Path).
		Msg("Starting Eventscout")

	store, err := cache.Open(cache.Options{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event cache")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event cache")
		}
	}()

	registry := buildRegistry(cfg, store)
	available := registry.Available()
	names := make([]string, 0, len(available))
	for _, src := range available {
		names = append(names, src.Name())
	}
	logging.Info().Strs("sources", names).Msg("Source registry ready")
	if len(available) == 0 {
		logging.Warn().Msg("No sources available; configure at least one API credential or enable the local cache")
	}

	engine := aggregate.New(registry, aggregate.Options{
		SourceTimeout: cfg.Search.SourceTimeout,
		MaxResults:    cfg.Search.MaxResults,
	})
	resolver := temporal.New(cfg.Location())
	hub := push.NewHub(cfg.Push.BufferSize)

	var manager *discovery.Manager
	websetClient := discovery.NewExaWebsetClient(cfg.Sources.Exa.APIKey, cfg.Discovery.BaseURL)
	if websetClient.Available() {
		manager = discovery.NewManager(websetClient, hub, discovery.Options{
			PollInterval: cfg.Discovery.PollInterval,
			MaxPolls:     cfg.Discovery.MaxPolls,
			ResultCount:  cfg.Discovery.ResultCount,
		})
	} else {
		logging.Info().Msg("Deep discovery disabled (no Exa API key)")
	}

	// The handler takes the manager as an interface; a typed nil would
	// dodge its nil checks.
	var discoveryForAPI api.DiscoveryManager
	if manager != nil {
		discoveryForAPI = manager
	}

	handler := api.NewHandler(cfg, engine, resolver, store, registry, discoveryForAPI, hub)
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     api.NewRouter(cfg, handler),
		ReadTimeout: cfg.Server.Timeout,
		IdleTimeout: 2 * cfg.Server.Timeout,
		// No WriteTimeout: SSE and websocket responses are long-lived.
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewJanitorService(store, cfg.Cache.JanitorInterval))
	tree.AddMessagingService(hub)
	if manager != nil {
		tree.AddMessagingService(manager)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
	}
	logging.Info().Msg("Eventscout stopped")
}

// buildRegistry registers every configured adapter. Live HTTP sources
// get a circuit breaker; the cache-backed local source does not need
// one.
func buildRegistry(cfg *config.Config, store *cache.Store) *sources.Registry {
	registry := sources.NewRegistry()

	register := func(src sources.Source) {
		if err := registry.Register(src); err != nil {
			logging.Fatal().Err(err).Msg("Failed to register source")
		}
	}

	register(sources.WithBreaker(sources.NewTicketmaster(sources.TicketmasterOptions{
		APIKey:    cfg.Sources.Ticketmaster.APIKey,
		BaseURL:   cfg.Sources.Ticketmaster.BaseURL,
		RateLimit: cfg.Sources.Ticketmaster.RateLimit,
	})))
	register(sources.WithBreaker(sources.NewSeatGeek(cfg.Sources.SeatGeek.ClientID, cfg.Sources.SeatGeek.BaseURL)))
	register(sources.WithBreaker(sources.NewDice(cfg.Sources.Dice.APIKey, cfg.Sources.Dice.BaseURL)))
	register(sources.WithBreaker(sources.NewExa(cfg.Sources.Exa.APIKey, cfg.Sources.Exa.BaseURL)))
	register(sources.NewLocal(store, cfg.Sources.LocalEnabled))

	return registry
}
